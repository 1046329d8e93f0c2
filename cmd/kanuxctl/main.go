package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var addrFlag string

var rootCmd = &cobra.Command{
	Use:   "kanuxctl",
	Short: "Kanux daemon CLI",
	Long:  "Command-line interface for the kanux sync daemon.\nInspect status, trigger sync passes, and exercise the message and ticket APIs.",
}

func main() {
	_ = godotenv.Load()
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "daemon address (default from config, e.g. 127.0.0.1:7870)")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
