package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lovendo/analytics-service/pkg/output"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Generate LLM-backed insights from recent activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		insights, err := apiClient(cmd).GenerateInsights()
		if err != nil {
			return fmt.Errorf("failed to generate insights: %w", err)
		}

		if done, err := output.Print(outputFormat(cmd), insights); done {
			return err
		}
		if len(insights) == 0 {
			output.Info("No insights produced")
			return nil
		}

		for _, in := range insights {
			output.Info("[%s/%s] %s", in.Type, in.Impact, in.Title)
			output.Info("  %s", in.Description)
			for _, rec := range in.Recommendations {
				output.Info("  - %s", rec)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(insightsCmd)
}
