package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lovendo/analytics-service/pkg/output"
)

var abtestsCmd = &cobra.Command{
	Use:   "abtests",
	Short: "Manage A/B tests",
}

var abtestsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List A/B tests",
	RunE: func(cmd *cobra.Command, args []string) error {
		tests, err := apiClient(cmd).ListABTests()
		if err != nil {
			return fmt.Errorf("failed to list tests: %w", err)
		}

		if done, err := output.Print(outputFormat(cmd), tests); done {
			return err
		}
		if len(tests) == 0 {
			output.Info("No A/B tests found")
			return nil
		}

		table := output.NewTable([]string{"ID", "Name", "Status", "Variants", "Target Event"})
		for _, t := range tests {
			table.AddRow([]string{
				t.ID,
				t.Name,
				t.Status,
				strconv.Itoa(len(t.Variants)),
				t.TargetEvent,
			})
		}
		table.Render()
		return nil
	},
}

var abtestsStartCmd = &cobra.Command{
	Use:   "start <test-id>",
	Short: "Start a draft or paused test",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		test, err := apiClient(cmd).StartTest(args[0])
		if err != nil {
			return fmt.Errorf("failed to start test: %w", err)
		}
		output.Success("Test %q is now %s", test.Name, test.Status)
		return nil
	},
}

var abtestsVariantCmd = &cobra.Command{
	Use:   "variant <test-id> <user-id>",
	Short: "Get (or assign) a user's variant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		variant, err := apiClient(cmd).GetVariant(args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to get variant: %w", err)
		}
		if done, err := output.Print(outputFormat(cmd), variant); done {
			return err
		}
		output.Info("%s (%s)", variant.Name, variant.ID)
		return nil
	},
}

var abtestsAnalyzeCmd = &cobra.Command{
	Use:   "analyze <test-id>",
	Short: "Analyze test results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		analysis, err := apiClient(cmd).AnalyzeTest(args[0])
		if err != nil {
			return fmt.Errorf("failed to analyze test: %w", err)
		}

		if done, err := output.Print(outputFormat(cmd), analysis); done {
			return err
		}

		table := output.NewTable([]string{"Variant", "Users", "Conversions", "Rate"})
		for _, v := range analysis.Variants {
			table.AddRow([]string{
				v.VariantName,
				strconv.Itoa(v.Users),
				strconv.Itoa(v.Conversions),
				fmt.Sprintf("%.2f%%", v.ConversionRate*100),
			})
		}
		table.Render()

		if analysis.Significant {
			output.Success("Winner: %s (confidence %.1f%%)", analysis.Winner, analysis.Confidence*100)
		} else if len(analysis.Variants) == 2 {
			output.Info("No significant winner yet (confidence %.1f%%)", analysis.Confidence*100)
		} else {
			output.Info("Significance testing requires exactly two variants")
		}
		return nil
	},
}

func init() {
	abtestsCmd.AddCommand(abtestsListCmd, abtestsStartCmd, abtestsVariantCmd, abtestsAnalyzeCmd)
	rootCmd.AddCommand(abtestsCmd)
}
