package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lovendo/analytics-service/internal/metrics"
	"github.com/lovendo/analytics-service/internal/models"
	"github.com/lovendo/analytics-service/internal/props"
)

// AnalyzeFunnel computes step-by-step conversion through an ordered event
// sequence. A user advances to step N only with a qualifying event at or
// after their step N-1 event; when a step sets WithinSeconds the event
// must also fall inside that window. Conversion rates are relative to
// funnel entry, dropoff rates to the previous step.
func (s *Service) AnalyzeFunnel(ctx context.Context, req *models.FunnelRequest) (*models.FunnelResult, error) {
	if len(req.Steps) < 2 {
		return nil, ErrTooFewSteps
	}

	start := s.now()
	defer func() {
		metrics.QueryDuration.WithLabelValues("funnel").Observe(time.Since(start).Seconds())
	}()

	// Optional cohort restriction on funnel entry.
	var cohort map[string]struct{}
	if req.CohortID != "" {
		members, err := s.repo.GetCohortMembers(ctx, req.CohortID)
		if err != nil {
			return nil, err
		}
		cohort = toSet(members)
	}

	// reached maps identity -> earliest qualifying timestamp at the
	// current step.
	var reached map[string]time.Time
	result := &models.FunnelResult{AnalyzedAt: s.now().UTC()}

	for i, step := range req.Steps {
		events, err := s.repo.QueryEvents(ctx, &models.EventFilter{
			Names:     []string{step.Event},
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
		})
		if err != nil {
			return nil, fmt.Errorf("querying step %d (%s): %w", i+1, step.Event, err)
		}

		next := make(map[string]time.Time)
		for _, e := range events {
			id := e.Identity()
			if id == "" {
				continue
			}
			if len(step.Properties) > 0 && !props.Match(e.Properties, step.Properties) {
				continue
			}
			if i == 0 {
				if cohort != nil {
					if _, ok := cohort[id]; !ok {
						continue
					}
				}
				if prev, ok := next[id]; !ok || e.Timestamp.Before(prev) {
					next[id] = e.Timestamp
				}
				continue
			}
			prevTS, ok := reached[id]
			if !ok || e.Timestamp.Before(prevTS) {
				continue
			}
			if step.WithinSeconds > 0 &&
				e.Timestamp.Sub(prevTS) > time.Duration(step.WithinSeconds)*time.Second {
				continue
			}
			if cur, seen := next[id]; !seen || e.Timestamp.Before(cur) {
				next[id] = e.Timestamp
			}
		}
		reached = next

		name := step.Name
		if name == "" {
			name = step.Event
		}
		sr := models.FunnelStepResult{
			Name:  name,
			Event: step.Event,
			Users: len(reached),
		}
		if i == 0 {
			result.TotalUsers = len(reached)
			if result.TotalUsers > 0 {
				sr.ConversionRate = 1
			}
		} else {
			if result.TotalUsers > 0 {
				sr.ConversionRate = float64(len(reached)) / float64(result.TotalUsers)
			}
			prevUsers := result.Steps[i-1].Users
			if prevUsers > 0 {
				sr.DropoffRate = 1 - float64(len(reached))/float64(prevUsers)
			}
		}
		result.Steps = append(result.Steps, sr)
	}

	if result.TotalUsers > 0 {
		result.OverallConversion = float64(result.Steps[len(result.Steps)-1].Users) / float64(result.TotalUsers)
	}
	return result, nil
}
