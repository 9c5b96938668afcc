package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lovendo/analytics-service/internal/models"
)

// PostgresRepository is the durable store implementation backed by pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Close() { r.pool.Close() }

// =============================================================================
// EVENTS
// =============================================================================

func (r *PostgresRepository) InsertEvents(ctx context.Context, events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}

	q := `INSERT INTO events (id, name, user_id, anonymous_id, properties, context, event_time, ingested)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	batch := &pgx.Batch{}
	now := time.Now()
	for _, e := range events {
		properties, err := json.Marshal(e.Properties)
		if err != nil {
			return fmt.Errorf("marshal properties: %w", err)
		}
		eventCtx, err := json.Marshal(e.Context)
		if err != nil {
			return fmt.Errorf("marshal context: %w", err)
		}
		ingested := e.Ingested
		if ingested.IsZero() {
			ingested = now
		}
		batch.Queue(q, e.ID, e.Name, nullable(e.UserID), nullable(e.AnonymousID), properties, eventCtx, e.Timestamp, ingested)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert events: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) QueryEvents(ctx context.Context, filter *models.EventFilter) ([]*models.Event, error) {
	q := `SELECT id, name, COALESCE(user_id, ''), COALESCE(anonymous_id, ''), properties, context, event_time, ingested
	      FROM events`

	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Names) > 0 {
		where = append(where, "name = ANY("+arg(filter.Names)+")")
	}
	if filter.UserID != "" {
		where = append(where, "user_id = "+arg(filter.UserID))
	}
	if filter.StartDate != nil {
		where = append(where, "event_time >= "+arg(*filter.StartDate))
	}
	if filter.EndDate != nil {
		where = append(where, "event_time <= "+arg(*filter.EndDate))
	}

	for i, w := range where {
		if i == 0 {
			q += " WHERE " + w
		} else {
			q += " AND " + w
		}
	}
	q += " ORDER BY event_time DESC"
	if filter.Limit > 0 {
		q += " LIMIT " + arg(filter.Limit)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		var e models.Event
		var properties, eventCtx []byte
		if err := rows.Scan(&e.ID, &e.Name, &e.UserID, &e.AnonymousID, &properties, &eventCtx, &e.Timestamp, &e.Ingested); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if len(properties) > 0 {
			if err := json.Unmarshal(properties, &e.Properties); err != nil {
				return nil, fmt.Errorf("unmarshal properties: %w", err)
			}
		}
		if len(eventCtx) > 0 {
			if err := json.Unmarshal(eventCtx, &e.Context); err != nil {
				return nil, fmt.Errorf("unmarshal context: %w", err)
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CountEventsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE event_time >= $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) CountDistinctUsersSince(ctx context.Context, since time.Time) (int, error) {
	q := `SELECT COUNT(DISTINCT COALESCE(user_id, anonymous_id))
	      FROM events
	      WHERE event_time >= $1 AND COALESCE(user_id, anonymous_id) IS NOT NULL`
	var count int
	if err := r.pool.QueryRow(ctx, q, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count distinct users: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) TopEventNames(ctx context.Context, since time.Time, n int) ([]models.EventNameCount, error) {
	q := `SELECT name, COUNT(*) AS cnt
	      FROM events
	      WHERE event_time >= $1
	      GROUP BY name
	      ORDER BY cnt DESC, name ASC
	      LIMIT $2`

	rows, err := r.pool.Query(ctx, q, since, n)
	if err != nil {
		return nil, fmt.Errorf("top event names: %w", err)
	}
	defer rows.Close()

	var out []models.EventNameCount
	for rows.Next() {
		var nc models.EventNameCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, fmt.Errorf("scan name count: %w", err)
		}
		out = append(out, nc)
	}
	return out, rows.Err()
}

// =============================================================================
// PROFILES
// =============================================================================

// UpsertProfile shallow-merges traits into the profile row. New keys
// overwrite existing keys on conflict; first_seen is only set on creation.
func (r *PostgresRepository) UpsertProfile(ctx context.Context, userID string, traits map[string]interface{}, now time.Time) error {
	traitsJSON, err := json.Marshal(traits)
	if err != nil {
		return fmt.Errorf("marshal traits: %w", err)
	}

	q := `INSERT INTO user_profiles (user_id, traits, first_seen, last_seen, session_count, total_event_count)
	      VALUES ($1, $2, $3, $3, 1, 0)
	      ON CONFLICT (user_id) DO UPDATE SET
	          traits = user_profiles.traits || EXCLUDED.traits,
	          last_seen = EXCLUDED.last_seen,
	          session_count = user_profiles.session_count + 1`

	if _, err := r.pool.Exec(ctx, q, userID, traitsJSON, now); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	q := `SELECT user_id, traits, first_seen, last_seen, session_count, total_event_count
	      FROM user_profiles WHERE user_id = $1`

	var p models.UserProfile
	var traits []byte
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&p.UserID, &traits, &p.FirstSeen, &p.LastSeen, &p.SessionCount, &p.TotalEventCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if len(traits) > 0 {
		if err := json.Unmarshal(traits, &p.Traits); err != nil {
			return nil, fmt.Errorf("unmarshal traits: %w", err)
		}
	}
	return &p, nil
}

// IncrementEventCounts bumps total_event_count per user after a successful
// batch insert. Users without a profile row yet get a counter-only row so
// no event is uncounted.
func (r *PostgresRepository) IncrementEventCounts(ctx context.Context, counts map[string]int, now time.Time) error {
	if len(counts) == 0 {
		return nil
	}

	q := `INSERT INTO user_profiles (user_id, traits, first_seen, last_seen, session_count, total_event_count)
	      VALUES ($1, '{}', $2, $2, 0, $3)
	      ON CONFLICT (user_id) DO UPDATE SET
	          total_event_count = user_profiles.total_event_count + EXCLUDED.total_event_count,
	          last_seen = EXCLUDED.last_seen`

	batch := &pgx.Batch{}
	for userID, n := range counts {
		batch.Queue(q, userID, now, n)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range counts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("increment event counts: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) FindUserIDsByTraits(ctx context.Context, traits map[string]interface{}) ([]string, error) {
	traitsJSON, err := json.Marshal(traits)
	if err != nil {
		return nil, fmt.Errorf("marshal traits: %w", err)
	}

	q := `SELECT user_id FROM user_profiles WHERE traits @> $1::jsonb ORDER BY user_id`
	rows, err := r.pool.Query(ctx, q, traitsJSON)
	if err != nil {
		return nil, fmt.Errorf("find users by traits: %w", err)
	}
	defer rows.Close()

	return scanUserIDs(rows)
}

func (r *PostgresRepository) FindUserIDsByFirstSeen(ctx context.Context, after, before *time.Time) ([]string, error) {
	q := `SELECT user_id FROM user_profiles`
	var where []string
	var args []interface{}
	if after != nil {
		args = append(args, *after)
		where = append(where, fmt.Sprintf("first_seen >= $%d", len(args)))
	}
	if before != nil {
		args = append(args, *before)
		where = append(where, fmt.Sprintf("first_seen <= $%d", len(args)))
	}
	for i, w := range where {
		if i == 0 {
			q += " WHERE " + w
		} else {
			q += " AND " + w
		}
	}
	q += " ORDER BY user_id"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("find users by first seen: %w", err)
	}
	defer rows.Close()

	return scanUserIDs(rows)
}

func (r *PostgresRepository) UpsertGroupMembership(ctx context.Context, m *models.GroupMembership) error {
	traitsJSON, err := json.Marshal(m.Traits)
	if err != nil {
		return fmt.Errorf("marshal group traits: %w", err)
	}

	q := `INSERT INTO group_memberships (user_id, group_id, traits, updated_at)
	      VALUES ($1, $2, $3, $4)
	      ON CONFLICT (user_id, group_id) DO UPDATE SET
	          traits = group_memberships.traits || EXCLUDED.traits,
	          updated_at = EXCLUDED.updated_at`

	if _, err := r.pool.Exec(ctx, q, m.UserID, m.GroupID, traitsJSON, m.UpdatedAt); err != nil {
		return fmt.Errorf("upsert group membership: %w", err)
	}
	return nil
}

// =============================================================================
// COHORTS
// =============================================================================

// CreateCohort persists the cohort row and its membership snapshot in a
// single transaction so user_count always matches the membership rows.
func (r *PostgresRepository) CreateCohort(ctx context.Context, c *models.Cohort, userIDs []string) error {
	definition, err := json.Marshal(c.Definition)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	q := `INSERT INTO cohorts (id, name, description, definition, user_count, created_at)
	      VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, q, c.ID, c.Name, c.Description, definition, c.UserCount, c.CreatedAt); err != nil {
		return fmt.Errorf("insert cohort: %w", err)
	}

	if len(userIDs) > 0 {
		rows := make([][]interface{}, 0, len(userIDs))
		for _, userID := range userIDs {
			rows = append(rows, []interface{}{c.ID, userID})
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"cohort_memberships"},
			[]string{"cohort_id", "user_id"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("insert memberships: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cohort: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetCohort(ctx context.Context, id string) (*models.Cohort, error) {
	q := `SELECT id, name, description, definition, user_count, created_at
	      FROM cohorts WHERE id = $1`

	var c models.Cohort
	var definition []byte
	err := r.pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.Name, &c.Description, &definition, &c.UserCount, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCohortNotFound
		}
		return nil, fmt.Errorf("get cohort: %w", err)
	}
	if err := json.Unmarshal(definition, &c.Definition); err != nil {
		return nil, fmt.Errorf("unmarshal definition: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepository) ListCohorts(ctx context.Context) ([]*models.Cohort, error) {
	q := `SELECT id, name, description, definition, user_count, created_at
	      FROM cohorts ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list cohorts: %w", err)
	}
	defer rows.Close()

	var out []*models.Cohort
	for rows.Next() {
		var c models.Cohort
		var definition []byte
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &definition, &c.UserCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cohort: %w", err)
		}
		if err := json.Unmarshal(definition, &c.Definition); err != nil {
			return nil, fmt.Errorf("unmarshal definition: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetCohortMembers(ctx context.Context, id string) ([]string, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM cohorts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check cohort: %w", err)
	}
	if !exists {
		return nil, ErrCohortNotFound
	}

	rows, err := r.pool.Query(ctx, `SELECT user_id FROM cohort_memberships WHERE cohort_id = $1 ORDER BY user_id`, id)
	if err != nil {
		return nil, fmt.Errorf("get cohort members: %w", err)
	}
	defer rows.Close()

	return scanUserIDs(rows)
}

// =============================================================================
// A/B TESTS
// =============================================================================

func (r *PostgresRepository) CreateABTest(ctx context.Context, t *models.ABTest) error {
	variants, err := json.Marshal(t.Variants)
	if err != nil {
		return fmt.Errorf("marshal variants: %w", err)
	}

	q := `INSERT INTO ab_tests (id, name, description, hypothesis, variants, target_event, start_date, end_date, status, created_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.pool.Exec(ctx, q,
		t.ID, t.Name, t.Description, t.Hypothesis, variants, t.TargetEvent,
		t.StartDate, t.EndDate, t.Status, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ab test: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetABTest(ctx context.Context, id string) (*models.ABTest, error) {
	q := `SELECT id, name, description, hypothesis, variants, target_event, start_date, end_date, status, results, created_at
	      FROM ab_tests WHERE id = $1`

	t, err := scanABTest(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get ab test: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) ListABTests(ctx context.Context) ([]*models.ABTest, error) {
	q := `SELECT id, name, description, hypothesis, variants, target_event, start_date, end_date, status, results, created_at
	      FROM ab_tests ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list ab tests: %w", err)
	}
	defer rows.Close()

	var out []*models.ABTest
	for rows.Next() {
		t, err := scanABTest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ab test: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) UpdateABTestStatus(ctx context.Context, id, status string, endDate *time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE ab_tests SET status = $2, end_date = COALESCE($3, end_date) WHERE id = $1`,
		id, status, endDate,
	)
	if err != nil {
		return fmt.Errorf("update ab test status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTestNotFound
	}
	return nil
}

func (r *PostgresRepository) SaveABTestResults(ctx context.Context, id string, results []models.VariantResult) error {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `UPDATE ab_tests SET results = $2 WHERE id = $1`, id, resultsJSON)
	if err != nil {
		return fmt.Errorf("save ab test results: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTestNotFound
	}
	return nil
}

func (r *PostgresRepository) GetAssignment(ctx context.Context, testID, userID string) (*models.ABTestAssignment, error) {
	q := `SELECT test_id, user_id, variant_id, assigned_at
	      FROM ab_test_assignments WHERE test_id = $1 AND user_id = $2`

	var a models.ABTestAssignment
	err := r.pool.QueryRow(ctx, q, testID, userID).Scan(&a.TestID, &a.UserID, &a.VariantID, &a.AssignedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return &a, nil
}

// CreateAssignment inserts the assignment with ON CONFLICT DO NOTHING and
// re-reads the row, so concurrent first calls for the same user converge
// on a single variant.
func (r *PostgresRepository) CreateAssignment(ctx context.Context, a *models.ABTestAssignment) (*models.ABTestAssignment, error) {
	q := `INSERT INTO ab_test_assignments (test_id, user_id, variant_id, assigned_at)
	      VALUES ($1, $2, $3, $4)
	      ON CONFLICT (test_id, user_id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, q, a.TestID, a.UserID, a.VariantID, a.AssignedAt); err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}

	return r.GetAssignment(ctx, a.TestID, a.UserID)
}

func (r *PostgresRepository) ListAssignments(ctx context.Context, testID string) ([]*models.ABTestAssignment, error) {
	q := `SELECT test_id, user_id, variant_id, assigned_at
	      FROM ab_test_assignments WHERE test_id = $1 ORDER BY user_id`

	rows, err := r.pool.Query(ctx, q, testID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []*models.ABTestAssignment
	for rows.Next() {
		var a models.ABTestAssignment
		if err := rows.Scan(&a.TestID, &a.UserID, &a.VariantID, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func scanUserIDs(rows pgx.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanABTest(row pgx.Row) (*models.ABTest, error) {
	var t models.ABTest
	var variants, results []byte
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.Hypothesis, &variants, &t.TargetEvent,
		&t.StartDate, &t.EndDate, &t.Status, &results, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(variants, &t.Variants); err != nil {
		return nil, fmt.Errorf("unmarshal variants: %w", err)
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &t.Results); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
	}
	return &t, nil
}
