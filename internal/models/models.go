// Package models defines the data model of the analytics engine: events,
// user profiles, cohorts, funnels, and A/B tests.
package models

import "time"

// A/B test lifecycle statuses.
const (
	TestStatusDraft     = "draft"
	TestStatusRunning   = "running"
	TestStatusPaused    = "paused"
	TestStatusCompleted = "completed"
)

// Event is an immutable timestamped occurrence with a name, optional
// user/anonymous identity, and a property bag. Events are never mutated
// once persisted.
type Event struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	UserID      string                 `json:"user_id,omitempty"`
	AnonymousID string                 `json:"anonymous_id,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Ingested    time.Time              `json:"ingested,omitempty"`
}

// Identity returns the user ID if present, falling back to the anonymous ID.
func (e *Event) Identity() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.AnonymousID
}

// UserProfile holds the merged traits and activity counters for a user.
// Traits are shallow-merged (last-write-wins per key) on each identify call.
type UserProfile struct {
	UserID          string                 `json:"user_id"`
	Traits          map[string]interface{} `json:"traits,omitempty"`
	FirstSeen       time.Time              `json:"first_seen"`
	LastSeen        time.Time              `json:"last_seen"`
	SessionCount    int                    `json:"session_count"`
	TotalEventCount int                    `json:"total_event_count"`
}

// GroupMembership associates a user with a group. Group traits do not
// affect the user's own profile traits.
type GroupMembership struct {
	UserID    string                 `json:"user_id"`
	GroupID   string                 `json:"group_id"`
	Traits    map[string]interface{} `json:"traits,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// EventFilter describes an event query. Names, UserID, and the time range
// are applied by the store; Properties is an equality filter applied by the
// service after retrieval, so combining it with Limit can under-count
// matches (truncation happens before the property filter runs).
type EventFilter struct {
	Names      []string               `json:"names,omitempty"`
	UserID     string                 `json:"user_id,omitempty"`
	StartDate  *time.Time             `json:"start_date,omitempty"`
	EndDate    *time.Time             `json:"end_date,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Limit      int                    `json:"limit,omitempty"`
}

// EventCondition is one event-count condition of a cohort definition.
// A user matches when their count of qualifying events falls within
// [MinCount, MaxCount]; nil bounds are unbounded. TimeWindowDays of zero
// means no time restriction.
type EventCondition struct {
	Event          string                 `json:"event"`
	Properties     map[string]interface{} `json:"properties,omitempty"`
	MinCount       *int                   `json:"min_count,omitempty"`
	MaxCount       *int                   `json:"max_count,omitempty"`
	TimeWindowDays int                    `json:"time_window_days,omitempty"`
}

// CohortDefinition is a boolean AND across up to three condition families.
// A family that is not supplied does not constrain the result.
type CohortDefinition struct {
	EventConditions []EventCondition       `json:"event_conditions,omitempty"`
	TraitConditions map[string]interface{} `json:"trait_conditions,omitempty"`
	FirstSeenAfter  *time.Time             `json:"first_seen_after,omitempty"`
	FirstSeenBefore *time.Time             `json:"first_seen_before,omitempty"`
}

// Empty reports whether no condition family is supplied.
func (d *CohortDefinition) Empty() bool {
	return len(d.EventConditions) == 0 &&
		len(d.TraitConditions) == 0 &&
		d.FirstSeenAfter == nil &&
		d.FirstSeenBefore == nil
}

// Cohort is a named, point-in-time snapshot of user IDs matching a
// definition. Membership is not recomputed automatically; recomputation
// requires creating a new cohort.
type Cohort struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Definition  CohortDefinition `json:"definition"`
	UserCount   int              `json:"user_count"`
	CreatedAt   time.Time        `json:"created_at"`
}

// FunnelStep is one ordered step of a funnel analysis.
// WithinSeconds, when positive, gates step qualification on the event
// occurring within that many seconds of the user's previous-step event.
type FunnelStep struct {
	Name          string                 `json:"name,omitempty"`
	Event         string                 `json:"event"`
	Properties    map[string]interface{} `json:"properties,omitempty"`
	WithinSeconds int                    `json:"within_seconds,omitempty"`
}

// FunnelRequest describes a funnel analysis over an ordered step list.
type FunnelRequest struct {
	Steps     []FunnelStep `json:"steps"`
	StartDate *time.Time   `json:"start_date,omitempty"`
	EndDate   *time.Time   `json:"end_date,omitempty"`
	CohortID  string       `json:"cohort_id,omitempty"`
}

// FunnelStepResult holds per-step conversion numbers. ConversionRate is
// relative to funnel entry; DropoffRate is relative to the previous step.
type FunnelStepResult struct {
	Name           string  `json:"name"`
	Event          string  `json:"event"`
	Users          int     `json:"users"`
	ConversionRate float64 `json:"conversion_rate"`
	DropoffRate    float64 `json:"dropoff_rate"`
}

// FunnelResult is the outcome of a funnel analysis.
type FunnelResult struct {
	TotalUsers        int                `json:"total_users"`
	Steps             []FunnelStepResult `json:"steps"`
	OverallConversion float64            `json:"overall_conversion"`
	AnalyzedAt        time.Time          `json:"analyzed_at"`
}

// Variant is one weighted configuration option within an A/B test.
type Variant struct {
	ID     string                 `json:"id"`
	Name   string                 `json:"name"`
	Weight float64                `json:"weight"`
	Config map[string]interface{} `json:"config,omitempty"`
}

// ABTest is a two-or-more variant experiment definition. Variant weights
// must sum to 1.0 within a tolerance of 0.01.
type ABTest struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Hypothesis  string          `json:"hypothesis,omitempty"`
	Variants    []Variant       `json:"variants"`
	TargetEvent string          `json:"target_event"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     *time.Time      `json:"end_date,omitempty"`
	Status      string          `json:"status"`
	Results     []VariantResult `json:"results,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Variant returns the variant with the given ID, or nil if the test has
// no such variant.
func (t *ABTest) Variant(id string) *Variant {
	for i := range t.Variants {
		if t.Variants[i].ID == id {
			return &t.Variants[i]
		}
	}
	return nil
}

// ABTestAssignment pins a user to a variant for the test's lifetime.
// One row per (testID, userID) pair.
type ABTestAssignment struct {
	TestID     string    `json:"test_id"`
	UserID     string    `json:"user_id"`
	VariantID  string    `json:"variant_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// VariantResult holds per-variant conversion counts from an analysis run.
type VariantResult struct {
	VariantID      string  `json:"variant_id"`
	VariantName    string  `json:"variant_name"`
	Users          int     `json:"users"`
	Conversions    int     `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
}

// ABTestAnalysis is the outcome of analyzing a test. ZScore, Confidence,
// and Winner are only populated for tests with exactly two variants; the
// confidence value is a heuristic (1 - exp(-z²/2)), not an exact tail
// probability.
type ABTestAnalysis struct {
	TestID      string          `json:"test_id"`
	Variants    []VariantResult `json:"variants"`
	ZScore      float64         `json:"z_score,omitempty"`
	Confidence  float64         `json:"confidence,omitempty"`
	Winner      string          `json:"winner,omitempty"`
	Significant bool            `json:"significant"`
	AnalyzedAt  time.Time       `json:"analyzed_at"`
}

// Insight is one advisory finding produced by the insight generator.
type Insight struct {
	Type            string   `json:"type"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Impact          string   `json:"impact"`
	Confidence      float64  `json:"confidence"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// EventNameCount pairs an event name with its occurrence count.
type EventNameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
