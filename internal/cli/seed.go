package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/lovendo/analytics-service/internal/seeder"
	"github.com/lovendo/analytics-service/pkg/output"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo traffic into the analytics service",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		users, _ := cmd.Flags().GetInt("users")
		events, _ := cmd.Flags().GetInt("events")
		spread, _ := cmd.Flags().GetDuration("spread")
		seed, _ := cmd.Flags().GetInt64("seed")

		runner := seeder.NewRunner(seeder.Config{
			ServerURL:  server,
			Users:      users,
			Events:     events,
			TimeSpread: spread,
			Seed:       seed,
		})
		sent, err := runner.Run()
		if err != nil {
			return err
		}
		output.Success("Seeded %d events", sent)
		return nil
	},
}

func init() {
	seedCmd.Flags().Int("users", 50, "number of demo users")
	seedCmd.Flags().Int("events", 1000, "number of events to generate")
	seedCmd.Flags().Duration("spread", 7*24*time.Hour, "scatter timestamps over this past window")
	seedCmd.Flags().Int64("seed", 0, "random seed (0 = time-based)")

	rootCmd.AddCommand(seedCmd)
}
