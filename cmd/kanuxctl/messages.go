package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(messagesCmd)
}

var messagesCmd = &cobra.Command{
	Use:   "messages <chat-id>",
	Short: "List the recent messages of a chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var msgs []struct {
			ID        string `json:"id"`
			AuthorID  string `json:"author_id"`
			Content   string `json:"content"`
			CreatedAt int64  `json:"created_at"`
			Pending   bool   `json:"pending"`
		}
		if err := apiGet("/v1/chats/"+args[0]+"/messages", &msgs); err != nil {
			return err
		}
		if len(msgs) == 0 {
			fmt.Println("(no messages)")
			return nil
		}
		for _, m := range msgs {
			marker := " "
			if m.Pending {
				marker = "*"
			}
			ts := time.UnixMilli(m.CreatedAt).Format("2006-01-02 15:04")
			fmt.Printf("%s %s  %-12s %s\n", marker, ts, m.AuthorID, m.Content)
		}
		return nil
	},
}
