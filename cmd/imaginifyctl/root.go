package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	outputFmt string
	userID    string
)

var rootCmd = &cobra.Command{
	Use:   "imaginifyctl",
	Short: "CLI for the imaginify image service",
	Long: `imaginifyctl builds CDN transformation URLs offline, downloads rendered
images, and manages saved images and exports through the imaginify API.

The url and download commands work without a running server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "imaginify API URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "Acting user id (default: from IMAGINIFY_USER env)")

	rootCmd.AddCommand(urlCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(imagesCmd)
	rootCmd.AddCommand(healthCmd)
}

// resolvedUser returns the effective user id.
// Priority: --user flag > IMAGINIFY_USER env var.
func resolvedUser() string {
	if userID != "" {
		return userID
	}
	return os.Getenv("IMAGINIFY_USER")
}
