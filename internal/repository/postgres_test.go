package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lovendo/analytics-service/internal/models"
)

// setupTestDatabase creates a PostgreSQL testcontainer and runs migrations.
func setupTestDatabase(t *testing.T) (*PostgresRepository, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed tests in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("analytics_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	if err := runMigrations(connStr); err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	repo, err := NewPostgresRepository(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create repository: %v", err)
	}

	cleanup := func() {
		repo.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return repo, cleanup
}

// runMigrations applies the init migration to the test database.
func runMigrations(connStr string) error {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	migrationPath := filepath.Join("..", "..", "migrations", "001_init.up.sql")
	migrationSQL, err := os.ReadFile(migrationPath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

func TestPostgres_EventsRoundTrip(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	id1, _ := uuid.NewV7()
	id2, _ := uuid.NewV7()

	events := []*models.Event{
		{
			ID:         id1.String(),
			Name:       "purchase",
			UserID:     "u1",
			Properties: map[string]interface{}{"amount": 249.9, "currency": "TRY"},
			Timestamp:  base,
		},
		{
			ID:          id2.String(),
			Name:        "view_gift",
			AnonymousID: "anon-1",
			Timestamp:   base.Add(time.Second),
		},
	}
	require.NoError(t, repo.InsertEvents(ctx, events))

	out, err := repo.QueryEvents(ctx, &models.EventFilter{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "view_gift", out[0].Name, "newest first")
	assert.Equal(t, "anon-1", out[0].AnonymousID)

	byName, err := repo.QueryEvents(ctx, &models.EventFilter{Names: []string{"purchase"}})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "u1", byName[0].UserID)
	assert.Equal(t, 249.9, byName[0].Properties["amount"])

	count, err := repo.CountEventsSince(ctx, base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	users, err := repo.CountDistinctUsersSince(ctx, base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, users)

	top, err := repo.TopEventNames(ctx, base.Add(-time.Minute), 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
}

func TestPostgres_ProfileUpsertAndCounters(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, repo.UpsertProfile(ctx, "u1", map[string]interface{}{"plan": "free", "city": "Ankara"}, now))
	require.NoError(t, repo.UpsertProfile(ctx, "u1", map[string]interface{}{"plan": "pro"}, now.Add(time.Hour)))

	p, err := repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "pro", p.Traits["plan"])
	assert.Equal(t, "Ankara", p.Traits["city"])
	assert.Equal(t, 2, p.SessionCount)

	require.NoError(t, repo.IncrementEventCounts(ctx, map[string]int{"u1": 5, "u9": 2}, now.Add(2*time.Hour)))

	p, err = repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.TotalEventCount)

	p9, err := repo.GetProfile(ctx, "u9")
	require.NoError(t, err)
	assert.Equal(t, 2, p9.TotalEventCount)

	pro, err := repo.FindUserIDsByTraits(ctx, map[string]interface{}{"plan": "pro"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, pro)
}

func TestPostgres_CohortSnapshot(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	id, _ := uuid.NewV7()
	minCount := 2
	c := &models.Cohort{
		ID:          id.String(),
		Name:        "repeat buyers",
		Description: "two or more purchases",
		Definition: models.CohortDefinition{
			EventConditions: []models.EventCondition{
				{Event: "purchase", MinCount: &minCount, TimeWindowDays: 30},
			},
		},
		UserCount: 2,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, repo.CreateCohort(ctx, c, []string{"u1", "u2"}))

	got, err := repo.GetCohort(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UserCount)
	require.Len(t, got.Definition.EventConditions, 1)
	assert.Equal(t, "purchase", got.Definition.EventConditions[0].Event)

	members, err := repo.GetCohortMembers(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, members)
	assert.Equal(t, got.UserCount, len(members))
}

func TestPostgres_ABTestsAndAssignments(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	id, _ := uuid.NewV7()
	test := &models.ABTest{
		ID:   id.String(),
		Name: "checkout button color",
		Variants: []models.Variant{
			{ID: "control", Name: "Blue", Weight: 0.5},
			{ID: "treatment", Name: "Green", Weight: 0.5},
		},
		TargetEvent: "purchase",
		StartDate:   time.Now().UTC().Truncate(time.Millisecond),
		Status:      models.TestStatusDraft,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, repo.CreateABTest(ctx, test))

	got, err := repo.GetABTest(ctx, test.ID)
	require.NoError(t, err)
	require.Len(t, got.Variants, 2)
	assert.Equal(t, models.TestStatusDraft, got.Status)

	_, err = repo.GetABTest(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrTestNotFound)

	require.NoError(t, repo.UpdateABTestStatus(ctx, test.ID, models.TestStatusRunning, nil))

	a := &models.ABTestAssignment{TestID: test.ID, UserID: "u1", VariantID: "control", AssignedAt: time.Now().UTC()}
	stored, err := repo.CreateAssignment(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "control", stored.VariantID)

	// Conflicting insert keeps the first assignment.
	b := &models.ABTestAssignment{TestID: test.ID, UserID: "u1", VariantID: "treatment", AssignedAt: time.Now().UTC()}
	stored, err = repo.CreateAssignment(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, "control", stored.VariantID)

	require.NoError(t, repo.SaveABTestResults(ctx, test.ID, []models.VariantResult{
		{VariantID: "control", Users: 100, Conversions: 10, ConversionRate: 0.1},
	}))
	got, err = repo.GetABTest(ctx, test.ID)
	require.NoError(t, err)
	require.Len(t, got.Results, 1)
}
