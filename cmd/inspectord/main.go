// Package main is the entry point for the inspection kiosk daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pitabwire/inspector/internal/observability"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "inspectord: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "inspectord",
		Short:         "Guided inspection kiosk with camera recording",
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			observability.Version = version
			observability.Commit = commit
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to configuration file")

	cmd.AddCommand(runCmd(&configPath))
	cmd.AddCommand(checkCmd(&configPath))
	return cmd
}
