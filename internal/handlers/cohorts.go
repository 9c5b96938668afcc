package handlers

import (
	"net/http"

	"github.com/lovendo/analytics-service/common/httputil"
	"github.com/lovendo/analytics-service/internal/models"
)

type createCohortRequest struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	Definition  models.CohortDefinition `json:"definition"`
}

// CreateCohort handles POST /api/v1/cohorts. The definition is evaluated
// immediately and the membership snapshot frozen.
func (h *Handler) CreateCohort(w http.ResponseWriter, r *http.Request) {
	var req createCohortRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		httputil.WriteError(w, http.StatusBadRequest, "cohort name is required")
		return
	}

	cohort, err := h.service.CreateCohort(r.Context(), req.Name, req.Description, req.Definition)
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cohort)
}

// ListCohorts handles GET /api/v1/cohorts.
func (h *Handler) ListCohorts(w http.ResponseWriter, r *http.Request) {
	cohorts, err := h.service.ListCohorts(r.Context())
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	if cohorts == nil {
		cohorts = []*models.Cohort{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"cohorts": cohorts})
}

// GetCohort handles GET /api/v1/cohorts/{id}.
func (h *Handler) GetCohort(w http.ResponseWriter, r *http.Request) {
	cohort, err := h.service.GetCohort(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cohort)
}

// GetCohortMembers handles GET /api/v1/cohorts/{id}/members.
func (h *Handler) GetCohortMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.GetCohortMembers(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	if members == nil {
		members = []string{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"members": members,
		"count":   len(members),
	})
}

// AnalyzeFunnel handles POST /api/v1/funnels/analyze.
func (h *Handler) AnalyzeFunnel(w http.ResponseWriter, r *http.Request) {
	var req models.FunnelRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.AnalyzeFunnel(r.Context(), &req)
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
