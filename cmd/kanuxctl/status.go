package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon state, connectivity, and pending queue depth",
	RunE: func(cmd *cobra.Command, args []string) error {
		var st struct {
			State      string `json:"state"`
			Online     bool   `json:"online"`
			PendingOps int    `json:"pending_ops"`
			LastSyncMs int64  `json:"last_sync_ms"`
			EverSynced bool   `json:"ever_synced"`
		}
		if err := apiGet("/v1/status", &st); err != nil {
			return err
		}

		fmt.Printf("State:       %s\n", st.State)
		fmt.Printf("Online:      %v\n", st.Online)
		fmt.Printf("Pending ops: %d\n", st.PendingOps)
		if st.EverSynced {
			fmt.Printf("Last sync:   %s\n", time.UnixMilli(st.LastSyncMs).Format(time.RFC3339))
		} else {
			fmt.Println("Last sync:   never")
		}
		return nil
	},
}
