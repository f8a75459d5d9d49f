// ABOUTME: Entry point for the trustcache CLI and MCP server
// ABOUTME: Sets build info and executes the cobra root command
package main

import (
	"fmt"
	"os"

	"github.com/harperreed/trustcache/cli"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersion(version, commit, date)

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
