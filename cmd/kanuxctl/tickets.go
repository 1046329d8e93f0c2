package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	ticketDescription string
	ticketPriority    string
)

func init() {
	ticketCreateCmd.Flags().StringVar(&ticketDescription, "description", "", "ticket description")
	ticketCreateCmd.Flags().StringVar(&ticketPriority, "priority", "normal", "ticket priority (low, normal, high, urgent)")
	ticketsCmd.AddCommand(ticketCreateCmd)
	rootCmd.AddCommand(ticketsCmd)
}

var ticketsCmd = &cobra.Command{
	Use:   "tickets <company-id>",
	Short: "List the recent tickets of a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var tks []struct {
			ID       string `json:"id"`
			Title    string `json:"title"`
			Priority string `json:"priority"`
			Status   string `json:"status"`
			Pending  bool   `json:"pending"`
		}
		if err := apiGet("/v1/tickets?company_id="+args[0], &tks); err != nil {
			return err
		}
		if len(tks) == 0 {
			fmt.Println("(no tickets)")
			return nil
		}
		for _, tk := range tks {
			marker := " "
			if tk.Pending {
				marker = "*"
			}
			fmt.Printf("%s %-10s %-8s %-20s %s\n", marker, tk.Status, tk.Priority, tk.ID, tk.Title)
		}
		return nil
	},
}

var ticketCreateCmd = &cobra.Command{
	Use:   "create <company-id> <title>",
	Short: "Open a ticket, queueing it locally if the backend is unreachable",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var tk struct {
			ID      string `json:"id"`
			Pending bool   `json:"pending"`
		}
		err := apiPost("/v1/tickets", map[string]string{
			"company_id":  args[0],
			"title":       args[1],
			"description": ticketDescription,
			"priority":    ticketPriority,
		}, &tk)
		if err != nil {
			return err
		}
		if tk.Pending {
			fmt.Printf("Queued %s (will sync when online)\n", tk.ID)
		} else {
			fmt.Printf("Created %s\n", tk.ID)
		}
		return nil
	},
}
