package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lovendo/analytics-service/common/logging"
	"github.com/lovendo/analytics-service/internal/metrics"
	"github.com/lovendo/analytics-service/internal/models"
	"github.com/lovendo/analytics-service/internal/props"
)

// CreateCohort evaluates the definition against current data and stores
// the result as a point-in-time snapshot. Conditions within a definition
// combine with AND; a user must satisfy every supplied family. Membership
// is frozen at creation time.
func (s *Service) CreateCohort(ctx context.Context, name, description string, def models.CohortDefinition) (*models.Cohort, error) {
	if def.Empty() {
		return nil, ErrEmptyDefinition
	}

	start := s.now()
	defer func() {
		metrics.QueryDuration.WithLabelValues("cohort_build").Observe(time.Since(start).Seconds())
	}()

	var sets []map[string]struct{}

	for _, cond := range def.EventConditions {
		set, err := s.usersMatchingEventCondition(ctx, cond)
		if err != nil {
			return nil, fmt.Errorf("evaluating event condition %q: %w", cond.Event, err)
		}
		sets = append(sets, set)
	}

	if len(def.TraitConditions) > 0 {
		ids, err := s.repo.FindUserIDsByTraits(ctx, def.TraitConditions)
		if err != nil {
			return nil, fmt.Errorf("evaluating trait conditions: %w", err)
		}
		sets = append(sets, toSet(ids))
	}

	if def.FirstSeenAfter != nil || def.FirstSeenBefore != nil {
		ids, err := s.repo.FindUserIDsByFirstSeen(ctx, def.FirstSeenAfter, def.FirstSeenBefore)
		if err != nil {
			return nil, fmt.Errorf("evaluating first-seen conditions: %w", err)
		}
		sets = append(sets, toSet(ids))
	}

	members := intersect(sets)
	sort.Strings(members)

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating cohort id: %w", err)
	}
	cohort := &models.Cohort{
		ID:          id.String(),
		Name:        name,
		Description: description,
		Definition:  def,
		UserCount:   len(members),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateCohort(ctx, cohort, members); err != nil {
		return nil, fmt.Errorf("storing cohort: %w", err)
	}

	metrics.CohortsBuilt.Inc()
	s.logger.InfoContext(ctx, "cohort created",
		logging.CohortID(cohort.ID), logging.Count(len(members)))
	return cohort, nil
}

func (s *Service) GetCohort(ctx context.Context, id string) (*models.Cohort, error) {
	return s.repo.GetCohort(ctx, id)
}

func (s *Service) ListCohorts(ctx context.Context) ([]*models.Cohort, error) {
	return s.repo.ListCohorts(ctx)
}

func (s *Service) GetCohortMembers(ctx context.Context, id string) ([]string, error) {
	return s.repo.GetCohortMembers(ctx, id)
}

// usersMatchingEventCondition returns the identified users whose count of
// qualifying events falls within the condition's bounds. Only users who
// performed the event at least once are candidates; a nil MinCount is
// treated as one occurrence.
func (s *Service) usersMatchingEventCondition(ctx context.Context, cond models.EventCondition) (map[string]struct{}, error) {
	filter := &models.EventFilter{Names: []string{cond.Event}}
	if cond.TimeWindowDays > 0 {
		since := s.now().UTC().AddDate(0, 0, -cond.TimeWindowDays)
		filter.StartDate = &since
	}

	events, err := s.repo.QueryEvents(ctx, filter)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, e := range events {
		if e.UserID == "" {
			continue
		}
		if len(cond.Properties) > 0 && !props.Match(e.Properties, cond.Properties) {
			continue
		}
		counts[e.UserID]++
	}

	set := make(map[string]struct{})
	for userID, n := range counts {
		if cond.MinCount != nil && n < *cond.MinCount {
			continue
		}
		if cond.MaxCount != nil && n > *cond.MaxCount {
			continue
		}
		set[userID] = struct{}{}
	}
	return set, nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func intersect(sets []map[string]struct{}) []string {
	if len(sets) == 0 {
		return nil
	}
	var out []string
	for id := range sets[0] {
		inAll := true
		for _, other := range sets[1:] {
			if _, ok := other[id]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			out = append(out, id)
		}
	}
	return out
}
