package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lovendo/analytics-service/internal/client"
	"github.com/lovendo/analytics-service/internal/models"
	"github.com/lovendo/analytics-service/pkg/output"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Track and query events",
}

var eventsTrackCmd = &cobra.Command{
	Use:   "track <event-name>",
	Short: "Track a single event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		anonID, _ := cmd.Flags().GetString("anonymous")
		propsJSON, _ := cmd.Flags().GetString("properties")

		var props map[string]interface{}
		if propsJSON != "" {
			if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
				return fmt.Errorf("invalid properties JSON: %w", err)
			}
		}

		c := apiClient(cmd)
		if err := c.Track(&client.TrackRequest{
			Event:       args[0],
			UserID:      userID,
			AnonymousID: anonID,
			Properties:  props,
		}); err != nil {
			return fmt.Errorf("failed to track event: %w", err)
		}
		output.Success("Event %q accepted", args[0])
		return nil
	},
}

var eventsQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query stored events",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		userID, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := &models.EventFilter{UserID: userID, Limit: limit}
		if name != "" {
			filter.Names = []string{name}
		}

		events, err := apiClient(cmd).QueryEvents(filter)
		if err != nil {
			return fmt.Errorf("failed to query events: %w", err)
		}

		if done, err := output.Print(outputFormat(cmd), events); done {
			return err
		}
		if len(events) == 0 {
			output.Info("No events found")
			return nil
		}

		table := output.NewTable([]string{"Time", "Event", "User", "Anonymous"})
		for _, e := range events {
			table.AddRow([]string{
				e.Timestamp.Format("2006-01-02 15:04:05"),
				e.Name,
				e.UserID,
				e.AnonymousID,
			})
		}
		table.Render()
		return nil
	},
}

var eventsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recent activity summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		hours, _ := cmd.Flags().GetInt("hours")
		since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

		summary, err := apiClient(cmd).Stats(&since)
		if err != nil {
			return fmt.Errorf("failed to fetch stats: %w", err)
		}

		if done, err := output.Print(outputFormat(cmd), summary); done {
			return err
		}

		output.Info("Since:          %s", summary.Since.Format(time.RFC3339))
		output.Info("Total events:   %d", summary.TotalEvents)
		output.Info("Distinct users: %d", summary.DistinctUsers)
		if len(summary.TopEvents) > 0 {
			table := output.NewTable([]string{"Event", "Count"})
			for _, e := range summary.TopEvents {
				table.AddRow([]string{e.Name, strconv.Itoa(e.Count)})
			}
			table.Render()
		}
		return nil
	},
}

func init() {
	eventsTrackCmd.Flags().String("user", "", "user ID")
	eventsTrackCmd.Flags().String("anonymous", "", "anonymous ID")
	eventsTrackCmd.Flags().String("properties", "", "event properties as JSON")

	eventsQueryCmd.Flags().String("name", "", "filter by event name")
	eventsQueryCmd.Flags().String("user", "", "filter by user ID")
	eventsQueryCmd.Flags().Int("limit", 50, "maximum events to return")

	eventsStatsCmd.Flags().Int("hours", 24, "summary window in hours")

	eventsCmd.AddCommand(eventsTrackCmd, eventsQueryCmd, eventsStatsCmd)
	rootCmd.AddCommand(eventsCmd)
}
