// Package handlers exposes the analytics engine over HTTP.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/lovendo/analytics-service/common/httputil"
	"github.com/lovendo/analytics-service/common/logging"
	"github.com/lovendo/analytics-service/internal/repository"
	"github.com/lovendo/analytics-service/internal/service"
	"github.com/lovendo/analytics-service/internal/tracker"
)

type Handler struct {
	tracker *tracker.Tracker
	service *service.Service
	repo    repository.Repository
	logger  *logging.Logger
}

func NewHandler(tr *tracker.Tracker, svc *service.Service, repo repository.Repository, logger *logging.Logger) *Handler {
	return &Handler{
		tracker: tr,
		service: svc,
		repo:    repo,
		logger:  logger,
	}
}

// HealthCheck handles GET /healthz.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// writeServiceError maps service and repository errors onto HTTP statuses.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrProfileNotFound),
		errors.Is(err, repository.ErrCohortNotFound),
		errors.Is(err, repository.ErrTestNotFound):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidWeights),
		errors.Is(err, service.ErrTooFewVariants),
		errors.Is(err, service.ErrEmptyDefinition),
		errors.Is(err, service.ErrTooFewSteps):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrTestNotRunning):
		httputil.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInsightsUnavailable):
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.ErrorContext(ctx, "request failed", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
