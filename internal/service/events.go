package service

import (
	"context"
	"time"

	"github.com/lovendo/analytics-service/internal/metrics"
	"github.com/lovendo/analytics-service/internal/models"
	"github.com/lovendo/analytics-service/internal/props"
)

// QueryEvents returns events matching the filter, newest first. Name,
// user, and time-range predicates run in the store; the property filter
// runs here after retrieval, so a query combining Properties with Limit
// can return fewer matches than exist (the limit truncates first).
func (s *Service) QueryEvents(ctx context.Context, filter *models.EventFilter) ([]*models.Event, error) {
	start := s.now()
	defer func() {
		metrics.QueryDuration.WithLabelValues("events").Observe(time.Since(start).Seconds())
	}()

	events, err := s.repo.QueryEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(filter.Properties) == 0 {
		return events, nil
	}

	filtered := events[:0]
	for _, e := range events {
		if props.Match(e.Properties, filter.Properties) {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// GetProfile returns the merged profile for a user.
func (s *Service) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	return s.repo.GetProfile(ctx, userID)
}

// Summary aggregates recent activity for the insight prompt and the
// stats endpoint.
type Summary struct {
	Since         time.Time               `json:"since"`
	TotalEvents   int                     `json:"total_events"`
	DistinctUsers int                     `json:"distinct_users"`
	TopEvents     []models.EventNameCount `json:"top_events"`
}

// Summarize computes event volume, distinct users, and the top event
// names since the given time.
func (s *Service) Summarize(ctx context.Context, since time.Time) (*Summary, error) {
	total, err := s.repo.CountEventsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	users, err := s.repo.CountDistinctUsersSince(ctx, since)
	if err != nil {
		return nil, err
	}
	top, err := s.repo.TopEventNames(ctx, since, s.topEvents)
	if err != nil {
		return nil, err
	}
	return &Summary{Since: since, TotalEvents: total, DistinctUsers: users, TopEvents: top}, nil
}
