// Package cli implements the lvctl command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/lovendo/analytics-service/internal/client"
)

var rootCmd = &cobra.Command{
	Use:   "lvctl",
	Short: "Lovendo analytics CLI",
	Long: `lvctl is the command-line interface for the Lovendo analytics service.

Track events, query activity, build cohorts, run funnel analyses,
manage A/B tests, and seed demo traffic from your terminal.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("server", "http://localhost:8085", "analytics service URL")
	rootCmd.PersistentFlags().String("output", "table", "output format: table, json, yaml")
}

func apiClient(cmd *cobra.Command) *client.Client {
	server, _ := cmd.Flags().GetString("server")
	return client.New(server)
}

func outputFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("output")
	return format
}
