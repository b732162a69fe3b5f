package main

import (
	"github.com/spf13/cobra"
)

type socketResponse struct {
	Handle     int64  `json:"handle"`
	TraceID    string `json:"trace_id"`
	Type       string `json:"type"`
	Protocol   uint8  `json:"protocol,omitempty"`
	LocalIP    string `json:"local_ip"`
	LocalPort  uint16 `json:"local_port"`
	RemoteIP   string `json:"remote_ip,omitempty"`
	RemotePort uint16 `json:"remote_port,omitempty"`
	Connected  bool   `json:"connected"`
	Listening  bool   `json:"listening"`
	TCPState   string `json:"tcp_state,omitempty"`
}

var socketsCmd = &cobra.Command{
	Use:   "sockets",
	Short: "List live socket table entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		var sockets []socketResponse
		if err := apiRequest("GET", "/api/v1/sockets", nil, &sockets); err != nil {
			return err
		}
		printJSON(sockets)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(socketsCmd)
}
