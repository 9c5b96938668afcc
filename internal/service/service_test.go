package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lovendo/analytics-service/common/logging"
	"github.com/lovendo/analytics-service/internal/models"
	"github.com/lovendo/analytics-service/internal/repository"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *repository.InMemoryRepository) {
	t.Helper()
	repo := repository.NewInMemoryRepository()
	svc := New(repo, logging.New(slog.LevelError, "text"), opts...)
	return svc, repo
}

func seedEvent(t *testing.T, repo *repository.InMemoryRepository, name, userID string, props map[string]interface{}, ts time.Time) {
	t.Helper()
	seedEvents(t, repo, &models.Event{Name: name, UserID: userID, Properties: props, Timestamp: ts})
}

func seedEvents(t *testing.T, repo *repository.InMemoryRepository, events ...*models.Event) {
	t.Helper()
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
	}
	require.NoError(t, repo.InsertEvents(context.Background(), events))
}
