package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lovendo/analytics-service/common/logging"
	"github.com/lovendo/analytics-service/internal/metrics"
	"github.com/lovendo/analytics-service/internal/models"
	"github.com/lovendo/analytics-service/internal/repository"
)

const weightTolerance = 0.01

// winnerConfidence is the heuristic confidence a variant must exceed to
// be declared the winner of a two-variant test.
const winnerConfidence = 0.9

// CreateABTest validates and stores a new test in draft status. Variant
// weights must sum to 1.0 within a tolerance of 0.01.
func (s *Service) CreateABTest(ctx context.Context, t *models.ABTest) (*models.ABTest, error) {
	if len(t.Variants) < 2 {
		return nil, ErrTooFewVariants
	}
	var sum float64
	for _, v := range t.Variants {
		sum += v.Weight
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return nil, fmt.Errorf("%w: got %.3f", ErrInvalidWeights, sum)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating test id: %w", err)
	}
	t.ID = id.String()
	t.Status = models.TestStatusDraft
	t.CreatedAt = s.now().UTC()
	if t.StartDate.IsZero() {
		t.StartDate = t.CreatedAt
	}
	if err := s.repo.CreateABTest(ctx, t); err != nil {
		return nil, fmt.Errorf("storing test: %w", err)
	}
	return t, nil
}

func (s *Service) GetABTest(ctx context.Context, id string) (*models.ABTest, error) {
	return s.repo.GetABTest(ctx, id)
}

func (s *Service) ListABTests(ctx context.Context) ([]*models.ABTest, error) {
	return s.repo.ListABTests(ctx)
}

// StartTest moves a draft or paused test to running.
func (s *Service) StartTest(ctx context.Context, id string) error {
	return s.transition(ctx, id, models.TestStatusRunning,
		models.TestStatusDraft, models.TestStatusPaused)
}

// PauseTest suspends a running test; paused tests hand out no new
// assignments.
func (s *Service) PauseTest(ctx context.Context, id string) error {
	return s.transition(ctx, id, models.TestStatusPaused, models.TestStatusRunning)
}

// CompleteTest ends a test and records its end date.
func (s *Service) CompleteTest(ctx context.Context, id string) error {
	t, err := s.repo.GetABTest(ctx, id)
	if err != nil {
		return err
	}
	if t.Status == models.TestStatusCompleted {
		return ErrInvalidTransition
	}
	end := s.now().UTC()
	return s.repo.UpdateABTestStatus(ctx, id, models.TestStatusCompleted, &end)
}

func (s *Service) transition(ctx context.Context, id, to string, from ...string) error {
	t, err := s.repo.GetABTest(ctx, id)
	if err != nil {
		return err
	}
	for _, f := range from {
		if t.Status == f {
			return s.repo.UpdateABTestStatus(ctx, id, to, nil)
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
}

// GetVariant returns the user's variant for a running test, assigning one
// on first call. Assignments are sticky: once made they never change, even
// if variant weights do. Concurrent first calls race harmlessly; the store
// keeps the first row and every caller reads it back.
func (s *Service) GetVariant(ctx context.Context, testID, userID string) (*models.Variant, error) {
	t, err := s.repo.GetABTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TestStatusRunning {
		return nil, ErrTestNotRunning
	}

	if v := s.cachedVariant(ctx, t, userID); v != nil {
		metrics.AssignmentCacheHits.Inc()
		return v, nil
	}

	a, err := s.repo.GetAssignment(ctx, testID, userID)
	if err == nil {
		s.cacheAssignment(ctx, testID, userID, a.VariantID)
		return t.Variant(a.VariantID), nil
	}
	if !errors.Is(err, repository.ErrAssignmentNotFound) {
		return nil, err
	}

	picked := pickVariant(t.Variants, s.randFloat())
	stored, err := s.repo.CreateAssignment(ctx, &models.ABTestAssignment{
		TestID:     testID,
		UserID:     userID,
		VariantID:  picked.ID,
		AssignedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("storing assignment: %w", err)
	}

	metrics.VariantAssignments.WithLabelValues(testID).Inc()
	s.cacheAssignment(ctx, testID, userID, stored.VariantID)
	return t.Variant(stored.VariantID), nil
}

// pickVariant walks the cumulative weight distribution. The final variant
// absorbs any rounding slack.
func pickVariant(variants []models.Variant, r float64) models.Variant {
	var cum float64
	for _, v := range variants {
		cum += v.Weight
		if r < cum {
			return v
		}
	}
	return variants[len(variants)-1]
}

func assignmentKey(testID, userID string) string {
	return "abtest:assign:" + testID + ":" + userID
}

func (s *Service) cachedVariant(ctx context.Context, t *models.ABTest, userID string) *models.Variant {
	if s.cache == nil {
		return nil
	}
	variantID, err := s.cache.Get(ctx, assignmentKey(t.ID, userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WarnContext(ctx, "assignment cache read failed", logging.Error(err))
		}
		return nil
	}
	return t.Variant(variantID)
}

func (s *Service) cacheAssignment(ctx context.Context, testID, userID, variantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, assignmentKey(testID, userID), variantID, s.cacheTTL).Err(); err != nil {
		s.logger.WarnContext(ctx, "assignment cache write failed", logging.Error(err))
	}
}

// AnalyzeTest computes per-variant conversion and, for two-variant tests,
// a two-proportion z-test. A user converts when they perform the target
// event at or after their assignment. The confidence figure is the
// heuristic 1 - exp(-z²/2); tests with more than two variants get counts
// only, no significance verdict. Results are persisted on the test.
func (s *Service) AnalyzeTest(ctx context.Context, testID string) (*models.ABTestAnalysis, error) {
	t, err := s.repo.GetABTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	start := s.now()
	defer func() {
		metrics.QueryDuration.WithLabelValues("abtest").Observe(time.Since(start).Seconds())
	}()

	assignments, err := s.repo.ListAssignments(ctx, testID)
	if err != nil {
		return nil, err
	}

	events, err := s.repo.QueryEvents(ctx, &models.EventFilter{
		Names:     []string{t.TargetEvent},
		StartDate: &t.StartDate,
	})
	if err != nil {
		return nil, err
	}
	// Earliest target event per identity.
	firstConversion := make(map[string]time.Time)
	for _, e := range events {
		id := e.Identity()
		if id == "" {
			continue
		}
		if cur, ok := firstConversion[id]; !ok || e.Timestamp.Before(cur) {
			firstConversion[id] = e.Timestamp
		}
	}

	users := make(map[string]int)
	conversions := make(map[string]int)
	for _, a := range assignments {
		users[a.VariantID]++
		if ts, ok := firstConversion[a.UserID]; ok && !ts.Before(a.AssignedAt) {
			conversions[a.VariantID]++
		}
	}

	analysis := &models.ABTestAnalysis{
		TestID:     testID,
		AnalyzedAt: s.now().UTC(),
	}
	for _, v := range t.Variants {
		r := models.VariantResult{
			VariantID:   v.ID,
			VariantName: v.Name,
			Users:       users[v.ID],
			Conversions: conversions[v.ID],
		}
		if r.Users > 0 {
			r.ConversionRate = float64(r.Conversions) / float64(r.Users)
		}
		analysis.Variants = append(analysis.Variants, r)
	}

	if len(analysis.Variants) == 2 {
		a, b := analysis.Variants[0], analysis.Variants[1]
		z := twoProportionZ(a.Conversions, a.Users, b.Conversions, b.Users)
		analysis.ZScore = z
		analysis.Confidence = 1 - math.Exp(-z*z/2)
		if analysis.Confidence > winnerConfidence {
			analysis.Significant = true
			if b.ConversionRate > a.ConversionRate {
				analysis.Winner = b.VariantID
			} else {
				analysis.Winner = a.VariantID
			}
		}
	}

	if err := s.repo.SaveABTestResults(ctx, testID, analysis.Variants); err != nil {
		s.logger.WarnContext(ctx, "saving test results failed",
			logging.TestID(testID), logging.Error(err))
	}
	return analysis, nil
}

// twoProportionZ returns the absolute z statistic of a pooled
// two-proportion test. Zero-sample or zero-variance inputs yield zero.
func twoProportionZ(c1, n1, c2, n2 int) float64 {
	if n1 == 0 || n2 == 0 {
		return 0
	}
	p1 := float64(c1) / float64(n1)
	p2 := float64(c2) / float64(n2)
	pooled := float64(c1+c2) / float64(n1+n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(n1) + 1/float64(n2)))
	if se == 0 {
		return 0
	}
	return math.Abs(p2-p1) / se
}
