package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type routeResponse struct {
	ID          int64  `json:"id"`
	Destination string `json:"destination"`
	Netmask     string `json:"netmask"`
	Gateway     string `json:"gateway"`
}

type staticRouteRequest struct {
	Destination string `json:"destination"`
	Netmask     string `json:"netmask"`
	Gateway     string `json:"gateway"`
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Inspect and manage static routes",
}

var routesListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List static routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		var routes []routeResponse
		if err := apiRequest("GET", "/api/v1/routes", nil, &routes); err != nil {
			return err
		}
		printJSON(routes)
		return nil
	},
}

var routesAddCmd = &cobra.Command{
	Use:   "add <destination> <netmask> <gateway>",
	Short: "Add a static route",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := staticRouteRequest{Destination: args[0], Netmask: args[1], Gateway: args[2]}
		if err := apiRequest("POST", "/api/v1/routes", req, nil); err != nil {
			return err
		}
		fmt.Printf("added route %s/%s via %s\n", args[0], args[1], args[2])
		return nil
	},
}

var routesRemoveCmd = &cobra.Command{
	Use:   "rm <destination> <netmask>",
	Short: "Remove a static route",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiRequest("DELETE", "/api/v1/routes/"+args[0]+"/"+args[1], nil, nil); err != nil {
			return err
		}
		fmt.Printf("removed route %s/%s\n", args[0], args[1])
		return nil
	},
}

func init() {
	routesCmd.AddCommand(routesListCmd, routesAddCmd, routesRemoveCmd)
	rootCmd.AddCommand(routesCmd)
}
