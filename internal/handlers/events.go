package handlers

import (
	"net/http"
	"time"

	"github.com/lovendo/analytics-service/common/httputil"
	"github.com/lovendo/analytics-service/internal/models"
)

// QueryEvents handles POST /api/v1/events/query.
func (h *Handler) QueryEvents(w http.ResponseWriter, r *http.Request) {
	var filter models.EventFilter
	if err := httputil.DecodeJSON(r, &filter); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	events, err := h.service.QueryEvents(r.Context(), &filter)
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	if events == nil {
		events = []*models.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// Stats handles GET /api/v1/events/stats. The optional "since" query
// parameter takes RFC 3339; the default window is 24 hours.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	since := time.Now().UTC().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
		since = parsed.UTC()
	}

	summary, err := h.service.Summarize(r.Context(), since)
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

// GetUser handles GET /api/v1/users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "user id is required")
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}
