package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lovendo/analytics-service/internal/models"
)

var (
	ErrProfileNotFound    = errors.New("user profile not found")
	ErrCohortNotFound     = errors.New("cohort not found")
	ErrTestNotFound       = errors.New("ab test not found")
	ErrAssignmentNotFound = errors.New("ab test assignment not found")
)

// Repository defines the durable store boundary of the analytics engine:
// batch event insert, profile upsert, counter increments, and filtered
// selects. The concrete schema is an implementation detail of the store.
type Repository interface {
	Ping(ctx context.Context) error
	Close()

	// Events
	InsertEvents(ctx context.Context, events []*models.Event) error
	QueryEvents(ctx context.Context, filter *models.EventFilter) ([]*models.Event, error)
	CountEventsSince(ctx context.Context, since time.Time) (int, error)
	CountDistinctUsersSince(ctx context.Context, since time.Time) (int, error)
	TopEventNames(ctx context.Context, since time.Time, n int) ([]models.EventNameCount, error)

	// Profiles
	UpsertProfile(ctx context.Context, userID string, traits map[string]interface{}, now time.Time) error
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	IncrementEventCounts(ctx context.Context, counts map[string]int, now time.Time) error
	FindUserIDsByTraits(ctx context.Context, traits map[string]interface{}) ([]string, error)
	FindUserIDsByFirstSeen(ctx context.Context, after, before *time.Time) ([]string, error)
	UpsertGroupMembership(ctx context.Context, m *models.GroupMembership) error

	// Cohorts
	CreateCohort(ctx context.Context, c *models.Cohort, userIDs []string) error
	GetCohort(ctx context.Context, id string) (*models.Cohort, error)
	ListCohorts(ctx context.Context) ([]*models.Cohort, error)
	GetCohortMembers(ctx context.Context, id string) ([]string, error)

	// A/B tests
	CreateABTest(ctx context.Context, t *models.ABTest) error
	GetABTest(ctx context.Context, id string) (*models.ABTest, error)
	ListABTests(ctx context.Context) ([]*models.ABTest, error)
	UpdateABTestStatus(ctx context.Context, id, status string, endDate *time.Time) error
	SaveABTestResults(ctx context.Context, id string, results []models.VariantResult) error
	GetAssignment(ctx context.Context, testID, userID string) (*models.ABTestAssignment, error)
	CreateAssignment(ctx context.Context, a *models.ABTestAssignment) (*models.ABTestAssignment, error)
	ListAssignments(ctx context.Context, testID string) ([]*models.ABTestAssignment, error)
}
