package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lovendo/analytics-service/common/middleware"
	"github.com/lovendo/analytics-service/internal/handlers"
)

// NewRouter constructs the analytics API router with request-ID and CORS
// middleware applied.
func NewRouter(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Ingestion
	mux.HandleFunc("POST /api/v1/track", h.Track)
	mux.HandleFunc("POST /api/v1/identify", h.Identify)
	mux.HandleFunc("POST /api/v1/group", h.Group)
	mux.HandleFunc("POST /api/v1/flush", h.Flush)

	// Events and profiles
	mux.HandleFunc("POST /api/v1/events/query", h.QueryEvents)
	mux.HandleFunc("GET /api/v1/events/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/users/{id}", h.GetUser)

	// Cohorts and funnels
	mux.HandleFunc("POST /api/v1/cohorts", h.CreateCohort)
	mux.HandleFunc("GET /api/v1/cohorts", h.ListCohorts)
	mux.HandleFunc("GET /api/v1/cohorts/{id}", h.GetCohort)
	mux.HandleFunc("GET /api/v1/cohorts/{id}/members", h.GetCohortMembers)
	mux.HandleFunc("POST /api/v1/funnels/analyze", h.AnalyzeFunnel)

	// A/B tests
	mux.HandleFunc("POST /api/v1/abtests", h.CreateABTest)
	mux.HandleFunc("GET /api/v1/abtests", h.ListABTests)
	mux.HandleFunc("GET /api/v1/abtests/{id}", h.GetABTest)
	mux.HandleFunc("POST /api/v1/abtests/{id}/start", h.StartABTest)
	mux.HandleFunc("POST /api/v1/abtests/{id}/pause", h.PauseABTest)
	mux.HandleFunc("POST /api/v1/abtests/{id}/complete", h.CompleteABTest)
	mux.HandleFunc("GET /api/v1/abtests/{id}/variant", h.GetVariant)
	mux.HandleFunc("POST /api/v1/abtests/{id}/analyze", h.AnalyzeABTest)

	// Insights
	mux.HandleFunc("POST /api/v1/insights", h.GenerateInsights)

	return middleware.RequestID(middleware.CORS(middleware.DefaultCORSConfig())(mux))
}
