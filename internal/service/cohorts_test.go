package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lovendo/analytics-service/internal/models"
)

func TestCreateCohort_EventAndTraitConditions(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// u1: two purchases, pro plan -> member.
	// u2: two purchases, free plan -> excluded by trait.
	// u3: one purchase, pro plan -> excluded by count.
	require.NoError(t, repo.UpsertProfile(ctx, "u1", map[string]interface{}{"plan": "pro"}, now))
	require.NoError(t, repo.UpsertProfile(ctx, "u2", map[string]interface{}{"plan": "free"}, now))
	require.NoError(t, repo.UpsertProfile(ctx, "u3", map[string]interface{}{"plan": "pro"}, now))

	for _, userID := range []string{"u1", "u2"} {
		seedEvent(t, repo, "purchase", userID, nil, now.Add(-2*time.Hour))
		seedEvent(t, repo, "purchase", userID, nil, now.Add(-time.Hour))
	}
	seedEvent(t, repo, "purchase", "u3", nil, now.Add(-time.Hour))

	minCount := 2
	cohort, err := svc.CreateCohort(ctx, "pro repeat buyers", "", models.CohortDefinition{
		EventConditions: []models.EventCondition{
			{Event: "purchase", MinCount: &minCount, TimeWindowDays: 30},
		},
		TraitConditions: map[string]interface{}{"plan": "pro"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, cohort.UserCount)
	members, err := svc.GetCohortMembers(ctx, cohort.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, members)
}

func TestCreateCohort_MaxCountAndWindow(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// u1 has one recent purchase plus an old one outside the window.
	seedEvent(t, repo, "purchase", "u1", nil, now.Add(-time.Hour))
	seedEvent(t, repo, "purchase", "u1", nil, now.AddDate(0, 0, -40))
	// u2 has two recent purchases, over the max.
	seedEvent(t, repo, "purchase", "u2", nil, now.Add(-2*time.Hour))
	seedEvent(t, repo, "purchase", "u2", nil, now.Add(-time.Hour))

	maxCount := 1
	cohort, err := svc.CreateCohort(ctx, "one-time buyers", "", models.CohortDefinition{
		EventConditions: []models.EventCondition{
			{Event: "purchase", MaxCount: &maxCount, TimeWindowDays: 30},
		},
	})
	require.NoError(t, err)

	members, err := svc.GetCohortMembers(ctx, cohort.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, members)
}

func TestCreateCohort_EventPropertyCondition(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedEvent(t, repo, "purchase", "u1", map[string]interface{}{"category": "flowers"}, now.Add(-time.Hour))
	seedEvent(t, repo, "purchase", "u2", map[string]interface{}{"category": "chocolate"}, now.Add(-time.Hour))

	cohort, err := svc.CreateCohort(ctx, "flower buyers", "", models.CohortDefinition{
		EventConditions: []models.EventCondition{
			{Event: "purchase", Properties: map[string]interface{}{"category": "flowers"}},
		},
	})
	require.NoError(t, err)

	members, err := svc.GetCohortMembers(ctx, cohort.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, members)
}

func TestCreateCohort_FirstSeenWindow(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.UpsertProfile(ctx, "old", nil, now.AddDate(0, -3, 0)))
	require.NoError(t, repo.UpsertProfile(ctx, "recent", nil, now.AddDate(0, 0, -3)))

	after := now.AddDate(0, 0, -7)
	cohort, err := svc.CreateCohort(ctx, "new signups", "", models.CohortDefinition{
		FirstSeenAfter: &after,
	})
	require.NoError(t, err)

	members, err := svc.GetCohortMembers(ctx, cohort.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"recent"}, members)
}

func TestCreateCohort_EmptyDefinition(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateCohort(context.Background(), "empty", "", models.CohortDefinition{})
	assert.ErrorIs(t, err, ErrEmptyDefinition)
}

func TestCreateCohort_SnapshotIsFrozen(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedEvent(t, repo, "purchase", "u1", nil, now.Add(-time.Hour))

	cohort, err := svc.CreateCohort(ctx, "buyers", "", models.CohortDefinition{
		EventConditions: []models.EventCondition{{Event: "purchase"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, cohort.UserCount)

	// A later purchase does not change the stored snapshot.
	seedEvent(t, repo, "purchase", "u2", nil, now)
	members, err := svc.GetCohortMembers(ctx, cohort.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, members)
}
