package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lovendo/analytics-service/internal/models"
	"github.com/lovendo/analytics-service/internal/props"
)

// InMemoryRepository is a non-durable Repository for development and tests.
type InMemoryRepository struct {
	mu          sync.RWMutex
	events      []*models.Event
	profiles    map[string]*models.UserProfile
	groups      map[string]*models.GroupMembership // key: userID|groupID
	cohorts     map[string]*models.Cohort
	memberships map[string][]string // cohortID -> userIDs
	tests       map[string]*models.ABTest
	assignments map[string]*models.ABTestAssignment // key: testID|userID
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		profiles:    make(map[string]*models.UserProfile),
		groups:      make(map[string]*models.GroupMembership),
		cohorts:     make(map[string]*models.Cohort),
		memberships: make(map[string][]string),
		tests:       make(map[string]*models.ABTest),
		assignments: make(map[string]*models.ABTestAssignment),
	}
}

func (r *InMemoryRepository) Ping(ctx context.Context) error { return nil }

func (r *InMemoryRepository) Close() {}

func (r *InMemoryRepository) InsertEvents(ctx context.Context, events []*models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, e := range events {
		stored := *e
		if stored.Ingested.IsZero() {
			stored.Ingested = now
		}
		r.events = append(r.events, &stored)
	}
	return nil
}

func (r *InMemoryRepository) QueryEvents(ctx context.Context, filter *models.EventFilter) ([]*models.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var nameSet map[string]bool
	if len(filter.Names) > 0 {
		nameSet = make(map[string]bool, len(filter.Names))
		for _, n := range filter.Names {
			nameSet[n] = true
		}
	}

	var out []*models.Event
	for _, e := range r.events {
		if nameSet != nil && !nameSet[e.Name] {
			continue
		}
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.StartDate != nil && e.Timestamp.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && e.Timestamp.After(*filter.EndDate) {
			continue
		}
		out = append(out, e)
	}

	// Newest first, matching the store's ORDER BY timestamp DESC.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) CountEventsSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, e := range r.events {
		if !e.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *InMemoryRepository) CountDistinctUsersSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make(map[string]bool)
	for _, e := range r.events {
		if e.Timestamp.Before(since) {
			continue
		}
		if id := e.Identity(); id != "" {
			users[id] = true
		}
	}
	return len(users), nil
}

func (r *InMemoryRepository) TopEventNames(ctx context.Context, since time.Time, n int) ([]models.EventNameCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range r.events {
		if !e.Timestamp.Before(since) {
			counts[e.Name]++
		}
	}

	out := make([]models.EventNameCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, models.EventNameCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (r *InMemoryRepository) UpsertProfile(ctx context.Context, userID string, traits map[string]interface{}, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.profiles[userID]
	if !exists {
		p = &models.UserProfile{
			UserID:    userID,
			Traits:    make(map[string]interface{}),
			FirstSeen: now,
		}
		r.profiles[userID] = p
	}
	for k, v := range traits {
		p.Traits[k] = v
	}
	p.LastSeen = now
	p.SessionCount++
	return nil
}

func (r *InMemoryRepository) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.profiles[userID]
	if !exists {
		return nil, ErrProfileNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *InMemoryRepository) IncrementEventCounts(ctx context.Context, counts map[string]int, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, n := range counts {
		p, exists := r.profiles[userID]
		if !exists {
			p = &models.UserProfile{
				UserID:    userID,
				Traits:    make(map[string]interface{}),
				FirstSeen: now,
			}
			r.profiles[userID] = p
		}
		p.TotalEventCount += n
		p.LastSeen = now
	}
	return nil
}

func (r *InMemoryRepository) FindUserIDsByTraits(ctx context.Context, traits map[string]interface{}) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for id, p := range r.profiles {
		if props.Match(p.Traits, traits) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *InMemoryRepository) FindUserIDsByFirstSeen(ctx context.Context, after, before *time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for id, p := range r.profiles {
		if after != nil && p.FirstSeen.Before(*after) {
			continue
		}
		if before != nil && p.FirstSeen.After(*before) {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (r *InMemoryRepository) UpsertGroupMembership(ctx context.Context, m *models.GroupMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *m
	r.groups[m.UserID+"|"+m.GroupID] = &copied
	return nil
}

func (r *InMemoryRepository) CreateCohort(ctx context.Context, c *models.Cohort, userIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *c
	r.cohorts[c.ID] = &copied
	r.memberships[c.ID] = append([]string(nil), userIDs...)
	return nil
}

func (r *InMemoryRepository) GetCohort(ctx context.Context, id string) (*models.Cohort, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.cohorts[id]
	if !exists {
		return nil, ErrCohortNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *InMemoryRepository) ListCohorts(ctx context.Context) ([]*models.Cohort, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Cohort, 0, len(r.cohorts))
	for _, c := range r.cohorts {
		copied := *c
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *InMemoryRepository) GetCohortMembers(ctx context.Context, id string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.cohorts[id]; !exists {
		return nil, ErrCohortNotFound
	}
	return append([]string(nil), r.memberships[id]...), nil
}

func (r *InMemoryRepository) CreateABTest(ctx context.Context, t *models.ABTest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *t
	r.tests[t.ID] = &copied
	return nil
}

func (r *InMemoryRepository) GetABTest(ctx context.Context, id string) (*models.ABTest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tests[id]
	if !exists {
		return nil, ErrTestNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *InMemoryRepository) ListABTests(ctx context.Context) ([]*models.ABTest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.ABTest, 0, len(r.tests))
	for _, t := range r.tests {
		copied := *t
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *InMemoryRepository) UpdateABTestStatus(ctx context.Context, id, status string, endDate *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.tests[id]
	if !exists {
		return ErrTestNotFound
	}
	t.Status = status
	if endDate != nil {
		t.EndDate = endDate
	}
	return nil
}

func (r *InMemoryRepository) SaveABTestResults(ctx context.Context, id string, results []models.VariantResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.tests[id]
	if !exists {
		return ErrTestNotFound
	}
	t.Results = append([]models.VariantResult(nil), results...)
	return nil
}

func (r *InMemoryRepository) GetAssignment(ctx context.Context, testID, userID string) (*models.ABTestAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.assignments[testID+"|"+userID]
	if !exists {
		return nil, ErrAssignmentNotFound
	}
	copied := *a
	return &copied, nil
}

// CreateAssignment inserts the assignment unless one already exists for the
// (testID, userID) pair, in which case the existing row wins. This mirrors
// the store's insert-on-conflict-do-nothing semantics.
func (r *InMemoryRepository) CreateAssignment(ctx context.Context, a *models.ABTestAssignment) (*models.ABTestAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := a.TestID + "|" + a.UserID
	if existing, ok := r.assignments[key]; ok {
		copied := *existing
		return &copied, nil
	}
	copied := *a
	r.assignments[key] = &copied
	result := copied
	return &result, nil
}

func (r *InMemoryRepository) ListAssignments(ctx context.Context, testID string) ([]*models.ABTestAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.ABTestAssignment
	for _, a := range r.assignments {
		if a.TestID == testID {
			copied := *a
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}
