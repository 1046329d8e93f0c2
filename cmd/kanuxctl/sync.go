package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Trigger a sync pass now",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Skipped   bool `json:"skipped"`
			Drained   int  `json:"drained"`
			Dropped   int  `json:"dropped"`
			Remaining int  `json:"remaining"`
		}
		if err := apiPost("/v1/sync", map[string]string{}, &out); err != nil {
			return err
		}
		if out.Skipped {
			fmt.Println("Skipped: daemon is offline or a pass is already running")
			return nil
		}
		fmt.Printf("Drained:   %d\n", out.Drained)
		fmt.Printf("Dropped:   %d\n", out.Dropped)
		fmt.Printf("Remaining: %d\n", out.Remaining)
		return nil
	},
}
