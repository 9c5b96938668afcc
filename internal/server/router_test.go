package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lovendo/analytics-service/common/logging"
	"github.com/lovendo/analytics-service/internal/handlers"
	"github.com/lovendo/analytics-service/internal/models"
	"github.com/lovendo/analytics-service/internal/repository"
	"github.com/lovendo/analytics-service/internal/service"
	"github.com/lovendo/analytics-service/internal/tracker"
)

type testEnv struct {
	router http.Handler
	repo   *repository.InMemoryRepository
	track  *tracker.Tracker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logging.New(slog.LevelError, "text")
	repo := repository.NewInMemoryRepository()
	tr := tracker.New(repo, nil, time.Minute, 3, logger)
	svc := service.New(repo, logger)
	h := handlers.NewHandler(tr, svc, repo, logger)
	return &testEnv{router: NewRouter(h), repo: repo, track: tr}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// flushAndWait flushes the buffer until the store holds at least n
// events. Critical events flush in the background, so a single explicit
// flush can land mid-flight and be skipped.
func (e *testEnv) flushAndWait(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		e.do(t, http.MethodPost, "/api/v1/flush", nil)
		events, err := e.repo.QueryEvents(context.Background(), &models.EventFilter{})
		return err == nil && len(events) >= n
	}, 2*time.Second, 10*time.Millisecond)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestTrackFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/track", map[string]interface{}{
		"event":      "view_gift",
		"user_id":    "u1",
		"properties": map[string]interface{}{"category": "flowers"},
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// Buffered, not yet queryable.
	rec = env.do(t, http.MethodPost, "/api/v1/events/query", map[string]interface{}{})
	var before struct {
		Count int `json:"count"`
	}
	decode(t, rec, &before)
	assert.Zero(t, before.Count)

	rec = env.do(t, http.MethodPost, "/api/v1/flush", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/events/query", map[string]interface{}{
		"names": []string{"view_gift"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	var after struct {
		Count  int             `json:"count"`
		Events []*models.Event `json:"events"`
	}
	decode(t, rec, &after)
	require.Equal(t, 1, after.Count)
	assert.Equal(t, "u1", after.Events[0].UserID)
	assert.Equal(t, "flowers", after.Events[0].Properties["category"])
}

func TestTrackValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/track", map[string]interface{}{
		"user_id": "u1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/track", map[string]interface{}{
		"event": "view_gift",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdentifyAndGetUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/identify", map[string]interface{}{
		"user_id": "u1",
		"traits":  map[string]interface{}{"plan": "pro"},
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/users/u1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var profile models.UserProfile
	decode(t, rec, &profile)
	assert.Equal(t, "pro", profile.Traits["plan"])
	assert.Equal(t, 1, profile.SessionCount)

	rec = env.do(t, http.MethodGet, "/api/v1/users/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGroupEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/group", map[string]interface{}{
		"user_id":  "u1",
		"group_id": "acme",
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/group", map[string]interface{}{
		"user_id": "u1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCohortEndpoints(t *testing.T) {
	env := newTestEnv(t)

	// Seed one purchase through the tracking pipeline.
	env.do(t, http.MethodPost, "/api/v1/track", map[string]interface{}{
		"event": "purchase", "user_id": "u1",
	})
	env.flushAndWait(t, 1)

	rec := env.do(t, http.MethodPost, "/api/v1/cohorts", map[string]interface{}{
		"name": "buyers",
		"definition": map[string]interface{}{
			"event_conditions": []map[string]interface{}{{"event": "purchase"}},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cohort models.Cohort
	decode(t, rec, &cohort)
	assert.Equal(t, 1, cohort.UserCount)

	rec = env.do(t, http.MethodGet, "/api/v1/cohorts/"+cohort.ID+"/members", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var members struct {
		Members []string `json:"members"`
	}
	decode(t, rec, &members)
	assert.Equal(t, []string{"u1"}, members.Members)

	// Empty definitions are rejected.
	rec = env.do(t, http.MethodPost, "/api/v1/cohorts", map[string]interface{}{
		"name": "empty", "definition": map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/cohorts/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFunnelEndpoint(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 10; i++ {
		userID := fmt.Sprintf("u%d", i)
		env.do(t, http.MethodPost, "/api/v1/track", map[string]interface{}{
			"event": "view_gift", "user_id": userID,
		})
		if i < 4 {
			env.do(t, http.MethodPost, "/api/v1/track", map[string]interface{}{
				"event": "purchase", "user_id": userID,
				"timestamp": time.Now().UTC().Add(time.Minute).Format(time.RFC3339),
			})
		}
	}
	env.flushAndWait(t, 14)

	rec := env.do(t, http.MethodPost, "/api/v1/funnels/analyze", map[string]interface{}{
		"steps": []map[string]interface{}{
			{"event": "view_gift"},
			{"event": "purchase"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result models.FunnelResult
	decode(t, rec, &result)
	assert.Equal(t, 10, result.TotalUsers)
	assert.Equal(t, 4, result.Steps[1].Users)
	assert.InDelta(t, 0.4, result.OverallConversion, 1e-9)

	rec = env.do(t, http.MethodPost, "/api/v1/funnels/analyze", map[string]interface{}{
		"steps": []map[string]interface{}{{"event": "view_gift"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestABTestEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/abtests", map[string]interface{}{
		"name":         "button color",
		"target_event": "purchase",
		"variants": []map[string]interface{}{
			{"id": "control", "name": "Blue", "weight": 0.5},
			{"id": "treatment", "name": "Green", "weight": 0.5},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var test models.ABTest
	decode(t, rec, &test)
	assert.Equal(t, models.TestStatusDraft, test.Status)

	// Variants are only handed out once running.
	rec = env.do(t, http.MethodGet, "/api/v1/abtests/"+test.ID+"/variant?user_id=u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/abtests/"+test.ID+"/start", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/abtests/"+test.ID+"/variant?user_id=u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var variant models.Variant
	decode(t, rec, &variant)
	assert.Contains(t, []string{"control", "treatment"}, variant.ID)

	rec = env.do(t, http.MethodPost, "/api/v1/abtests/"+test.ID+"/analyze", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var analysis models.ABTestAnalysis
	decode(t, rec, &analysis)
	assert.Len(t, analysis.Variants, 2)

	rec = env.do(t, http.MethodPost, "/api/v1/abtests/"+test.ID+"/complete", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Bad weights are rejected.
	rec = env.do(t, http.MethodPost, "/api/v1/abtests", map[string]interface{}{
		"name":         "bad",
		"target_event": "purchase",
		"variants": []map[string]interface{}{
			{"id": "a", "name": "A", "weight": 0.9},
			{"id": "b", "name": "B", "weight": 0.3},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInsightsUnconfigured(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/insights", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/v1/track", map[string]interface{}{
		"event": "view_gift", "user_id": "u1",
	})
	env.do(t, http.MethodPost, "/api/v1/flush", nil)

	rec := env.do(t, http.MethodGet, "/api/v1/events/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		TotalEvents   int `json:"total_events"`
		DistinctUsers int `json:"distinct_users"`
	}
	decode(t, rec, &stats)
	assert.Equal(t, 1, stats.TotalEvents)
	assert.Equal(t, 1, stats.DistinctUsers)

	rec = env.do(t, http.MethodGet, "/api/v1/events/stats?since=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
