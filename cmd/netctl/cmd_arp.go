package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type arpEntryResponse struct {
	IP          string `json:"ip"`
	HWAddr      string `json:"hw_addr"`
	State       string `json:"state"`
	LastUpdated int64  `json:"last_updated_ms"`
	Retries     int    `json:"retries"`
}

type staticArpRequest struct {
	IP     string `json:"ip"`
	HWAddr string `json:"hw_addr"`
}

var arpCmd = &cobra.Command{
	Use:   "arp",
	Short: "Inspect and manage the ARP cache",
}

var arpListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List ARP cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		var entries []arpEntryResponse
		if err := apiRequest("GET", "/api/v1/arp", nil, &entries); err != nil {
			return err
		}
		printJSON(entries)
		return nil
	},
}

var arpAddCmd = &cobra.Command{
	Use:   "add <ip> <hw-addr>",
	Short: "Add a static ARP entry, persisted across restarts",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := staticArpRequest{IP: args[0], HWAddr: args[1]}
		if err := apiRequest("POST", "/api/v1/arp", req, nil); err != nil {
			return err
		}
		fmt.Printf("added static arp %s -> %s\n", args[0], args[1])
		return nil
	},
}

var arpRemoveCmd = &cobra.Command{
	Use:   "rm <ip>",
	Short: "Remove a static ARP entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiRequest("DELETE", "/api/v1/arp/"+args[0], nil, nil); err != nil {
			return err
		}
		fmt.Printf("removed static arp %s\n", args[0])
		return nil
	},
}

func init() {
	arpCmd.AddCommand(arpListCmd, arpAddCmd, arpRemoveCmd)
	rootCmd.AddCommand(arpCmd)
}
