// Package service implements the analytics engine's query and analysis
// operations on top of the repository: event queries, cohort snapshots,
// funnel analysis, A/B tests, and LLM-backed insights.
package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lovendo/analytics-service/common/logging"
	"github.com/lovendo/analytics-service/internal/repository"
)

var (
	ErrInvalidWeights      = errors.New("variant weights must sum to 1.0")
	ErrTooFewVariants      = errors.New("ab test requires at least two variants")
	ErrEmptyDefinition     = errors.New("cohort definition has no conditions")
	ErrTooFewSteps         = errors.New("funnel requires at least two steps")
	ErrTestNotRunning      = errors.New("ab test is not running")
	ErrInvalidTransition   = errors.New("invalid test status transition")
	ErrInsightsUnavailable = errors.New("insight generation is not configured")
)

// LLMClient produces a completion for a prompt. Used by insight generation.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Service holds the analytics operations. The redis cache and LLM client
// are optional; when absent the service falls back to the repository alone
// (assignments uncached, insights unavailable).
type Service struct {
	repo     repository.Repository
	logger   *logging.Logger
	cache    *redis.Client
	cacheTTL time.Duration
	llm      LLMClient
	// topEvents bounds the event breakdown fed to the insight prompt.
	topEvents int

	randFloat func() float64
	now       func() time.Time
}

type Option func(*Service)

// WithCache enables the variant assignment cache.
func WithCache(client *redis.Client, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = client
		s.cacheTTL = ttl
	}
}

// WithLLM enables insight generation.
func WithLLM(client LLMClient, topEvents int) Option {
	return func(s *Service) {
		s.llm = client
		if topEvents > 0 {
			s.topEvents = topEvents
		}
	}
}

// WithRand overrides the variant assignment randomness source.
func WithRand(f func() float64) Option {
	return func(s *Service) { s.randFloat = f }
}

func New(repo repository.Repository, logger *logging.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		logger:    logger,
		topEvents: 10,
		randFloat: rand.Float64,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
