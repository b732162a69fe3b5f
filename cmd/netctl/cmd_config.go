package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type networkConfigResponse struct {
	LocalIP string `json:"local_ip"`
	Netmask string `json:"netmask"`
	Gateway string `json:"gateway"`
}

type arpConfigResponse struct {
	Capacity      int `json:"capacity"`
	RetryMs       int `json:"retry_ms"`
	MaxRetries    int `json:"max_retries"`
	ResolvedTTLMs int `json:"resolved_ttl_ms"`
	StaleTTLMs    int `json:"stale_ttl_ms"`
}

type tcpConfigResponse struct {
	Capacity     int `json:"capacity"`
	SendBufBytes int `json:"send_buf_bytes"`
	RecvBufBytes int `json:"recv_buf_bytes"`
	RTOMs        int `json:"rto_ms"`
	MaxRetries   int `json:"max_retries"`
	TimeWaitMs   int `json:"time_wait_ms"`
}

type socketConfigResponse struct {
	Capacity        int `json:"capacity"`
	EphemeralPortLo int `json:"ephemeral_port_lo"`
	EphemeralPortHi int `json:"ephemeral_port_hi"`
}

type apiConfigResponse struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

type configResponse struct {
	Network networkConfigResponse `json:"network"`
	Arp     arpConfigResponse     `json:"arp"`
	Tcp     tcpConfigResponse     `json:"tcp"`
	Socket  socketConfigResponse  `json:"socket"`
	API     apiConfigResponse     `json:"api"`
}

type networkConfigUpdateRequest struct {
	LocalIP string `json:"local_ip"`
	Netmask string `json:"netmask"`
	Gateway string `json:"gateway"`
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or update the running configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current configuration (API key redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp configResponse
		if err := apiRequest("GET", "/api/v1/config", nil, &resp); err != nil {
			return err
		}
		printJSON(resp)
		return nil
	},
}

var (
	setLocalIP string
	setNetmask string
	setGateway string
)

var configSetNetworkCmd = &cobra.Command{
	Use:   "set-network",
	Short: "Update the durable network address (local-ip, netmask, gateway)",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := networkConfigUpdateRequest{LocalIP: setLocalIP, Netmask: setNetmask, Gateway: setGateway}
		if err := apiRequest("PUT", "/api/v1/config", req, nil); err != nil {
			return err
		}
		fmt.Println("network config updated")
		return nil
	},
}

var configReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload configuration from disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiRequest("POST", "/api/v1/config/reload", nil, nil); err != nil {
			return err
		}
		fmt.Println("configuration reloaded")
		return nil
	},
}

func init() {
	configSetNetworkCmd.Flags().StringVar(&setLocalIP, "local-ip", "", "New local IP address")
	configSetNetworkCmd.Flags().StringVar(&setNetmask, "netmask", "", "New netmask")
	configSetNetworkCmd.Flags().StringVar(&setGateway, "gateway", "", "New gateway address")

	configCmd.AddCommand(configGetCmd, configSetNetworkCmd, configReloadCmd)
	rootCmd.AddCommand(configCmd)
}
