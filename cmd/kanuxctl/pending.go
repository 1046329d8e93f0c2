package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(pendingCmd)
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Show how many queued writes are waiting to sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		var st struct {
			PendingOps int  `json:"pending_ops"`
			Online     bool `json:"online"`
		}
		if err := apiGet("/v1/status", &st); err != nil {
			return err
		}
		fmt.Printf("%d pending operation(s)\n", st.PendingOps)
		if st.PendingOps > 0 && !st.Online {
			fmt.Println("Daemon is offline; they will sync when connectivity returns")
		}
		return nil
	},
}
