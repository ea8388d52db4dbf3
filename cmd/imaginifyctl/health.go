package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check API health",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	var resp map[string]any
	if err := newClient().getJSON("/healthz", &resp); err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}

	if structured() {
		return printOutput(cmd.OutOrStdout(), resp)
	}
	status, _ := resp["status"].(string)
	printTable(cmd.OutOrStdout(), []string{"Check", "Status"}, [][]string{{"Liveness", status}})
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
