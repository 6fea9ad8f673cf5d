package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vantage/pkg/vantage"
)

var (
	healthAddr    string
	healthTimeout time.Duration
)

// healthCmd probes a running server over HTTP.
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that a vantage-server is up",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
		defer cancel()

		status, err := vantage.NewClient(healthAddr).Health(ctx)
		if err != nil {
			return err
		}
		if status != "ok" {
			return fmt.Errorf("server at %s reports status %q", healthAddr, status)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", healthAddr, status)
		return nil
	},
}

func init() {
	healthCmd.Flags().StringVar(&healthAddr, "addr", "http://localhost:8000", "server base URL")
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "request timeout")
}
