// Command netctl is a REST client for netstackd's management API: it
// inspects health/stats, and lists or edits the ARP cache, sockets,
// static routes, and runtime config of a running daemon.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
