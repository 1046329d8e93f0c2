package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sendAuthor string

func init() {
	sendCmd.Flags().StringVar(&sendAuthor, "author", "cli", "author id attached to the message")
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send <chat-id> <content...>",
	Short: "Send a chat message, queueing it locally if the backend is unreachable",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var msg struct {
			ID      string `json:"id"`
			Pending bool   `json:"pending"`
		}
		err := apiPost("/v1/chats/"+args[0]+"/messages", map[string]string{
			"author_id": sendAuthor,
			"content":   strings.Join(args[1:], " "),
		}, &msg)
		if err != nil {
			return err
		}
		if msg.Pending {
			fmt.Printf("Queued %s (will sync when online)\n", msg.ID)
		} else {
			fmt.Printf("Sent %s\n", msg.ID)
		}
		return nil
	},
}
