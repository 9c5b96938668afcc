package handlers

import (
	"net/http"
	"time"

	"github.com/lovendo/analytics-service/common/httputil"
	"github.com/lovendo/analytics-service/internal/models"
)

type trackRequest struct {
	Event       string                 `json:"event"`
	UserID      string                 `json:"user_id,omitempty"`
	AnonymousID string                 `json:"anonymous_id,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Timestamp   *time.Time             `json:"timestamp,omitempty"`
}

type identifyRequest struct {
	UserID string                 `json:"user_id"`
	Traits map[string]interface{} `json:"traits,omitempty"`
}

type groupRequest struct {
	UserID  string                 `json:"user_id"`
	GroupID string                 `json:"group_id"`
	Traits  map[string]interface{} `json:"traits,omitempty"`
}

// Track handles POST /api/v1/track. Events are buffered, not written
// synchronously; the 202 means "accepted", not "stored".
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Event == "" {
		httputil.WriteError(w, http.StatusBadRequest, "event name is required")
		return
	}
	if req.UserID == "" && req.AnonymousID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "user_id or anonymous_id is required")
		return
	}

	event := &models.Event{
		Name:        req.Event,
		UserID:      req.UserID,
		AnonymousID: req.AnonymousID,
		Properties:  req.Properties,
		Context:     req.Context,
	}
	if req.Timestamp != nil {
		event.Timestamp = req.Timestamp.UTC()
	}
	h.tracker.Track(r.Context(), event)

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Identify handles POST /api/v1/identify.
func (h *Handler) Identify(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	h.tracker.Identify(r.Context(), req.UserID, req.Traits)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Group handles POST /api/v1/group.
func (h *Handler) Group(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.GroupID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "user_id and group_id are required")
		return
	}

	h.tracker.Group(r.Context(), req.UserID, req.GroupID, req.Traits)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Flush handles POST /api/v1/flush: force a buffer flush, mainly for
// tests and shutdown hooks.
func (h *Handler) Flush(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.Flush(r.Context()); err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}
