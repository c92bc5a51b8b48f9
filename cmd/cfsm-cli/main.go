// Package main provides the entry point for cfsm-cli, the command-line
// tool for creating, inspecting, merging and restoring Cloudflare zone
// configuration snapshots.
package main

import (
	"fmt"
	"os"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/cli/command"
)

func main() {
	if err := command.App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
