package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lovendo/analytics-service/internal/models"
	"github.com/lovendo/analytics-service/pkg/output"
)

var cohortsCmd = &cobra.Command{
	Use:   "cohorts",
	Short: "Build and inspect user cohorts",
}

var cohortsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List cohorts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cohorts, err := apiClient(cmd).ListCohorts()
		if err != nil {
			return fmt.Errorf("failed to list cohorts: %w", err)
		}

		if done, err := output.Print(outputFormat(cmd), cohorts); done {
			return err
		}
		if len(cohorts) == 0 {
			output.Info("No cohorts found")
			return nil
		}

		table := output.NewTable([]string{"ID", "Name", "Users", "Created"})
		for _, c := range cohorts {
			table.AddRow([]string{
				c.ID,
				c.Name,
				strconv.Itoa(c.UserCount),
				c.CreatedAt.Format("2006-01-02 15:04"),
			})
		}
		table.Render()
		return nil
	},
}

var cohortsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a cohort from a definition file",
	Long:  "Create a cohort snapshot. The definition is read as JSON from --definition-file or stdin.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		file, _ := cmd.Flags().GetString("definition-file")

		var raw []byte
		var err error
		if file != "" {
			raw, err = os.ReadFile(file)
		} else {
			raw, err = readAllStdin()
		}
		if err != nil {
			return fmt.Errorf("failed to read definition: %w", err)
		}

		var def models.CohortDefinition
		if err := json.Unmarshal(raw, &def); err != nil {
			return fmt.Errorf("invalid definition JSON: %w", err)
		}

		cohort, err := apiClient(cmd).CreateCohort(args[0], description, def)
		if err != nil {
			return fmt.Errorf("failed to create cohort: %w", err)
		}
		output.Success("Cohort %s created with %d members", cohort.ID, cohort.UserCount)
		return nil
	},
}

var cohortsMembersCmd = &cobra.Command{
	Use:   "members <cohort-id>",
	Short: "List the members of a cohort",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		members, err := apiClient(cmd).GetCohortMembers(args[0])
		if err != nil {
			return fmt.Errorf("failed to fetch members: %w", err)
		}

		if done, err := output.Print(outputFormat(cmd), members); done {
			return err
		}
		for _, m := range members {
			output.Info("%s", m)
		}
		output.Info("%d members", len(members))
		return nil
	},
}

func readAllStdin() ([]byte, error) {
	return io.ReadAll(os.Stdin)
}

func init() {
	cohortsCreateCmd.Flags().String("description", "", "cohort description")
	cohortsCreateCmd.Flags().String("definition-file", "", "path to a JSON definition file")

	cohortsCmd.AddCommand(cohortsListCmd, cohortsCreateCmd, cohortsMembersCmd)
	rootCmd.AddCommand(cohortsCmd)
}
