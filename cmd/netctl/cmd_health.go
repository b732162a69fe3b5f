package main

import (
	"github.com/spf13/cobra"
)

type statusResponse struct {
	Status string `json:"status"`
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether netstackd is reachable and healthy",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp statusResponse
		if err := apiRequest("GET", "/api/v1/health", nil, &resp); err != nil {
			return err
		}
		printJSON(resp)
		return nil
	},
}

type networkStatsResponse struct {
	ArpCacheEntries int    `json:"arp_cache_entries"`
	SocketCount     int    `json:"socket_count"`
	TCPConnections  int    `json:"tcp_connections"`
	FramesReceived  uint64 `json:"frames_received_total"`
	FramesDropped   uint64 `json:"frames_dropped_total"`
	ChecksumErrors  uint64 `json:"checksum_errors_total"`
	TCPRetransmits  uint64 `json:"tcp_retransmits_total"`
	UDPDatagrams    uint64 `json:"udp_datagrams_total"`
	SynRejected     uint64 `json:"syn_rejected_total"`
}

type statsResponse struct {
	Uptime        string               `json:"uptime"`
	UptimeSeconds int64                `json:"uptime_seconds"`
	Network       networkStatsResponse `json:"network"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print runtime and network stack statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp statsResponse
		if err := apiRequest("GET", "/api/v1/stats", nil, &resp); err != nil {
			return err
		}
		printJSON(resp)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statsCmd)
}
