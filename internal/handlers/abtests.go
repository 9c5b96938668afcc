package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/lovendo/analytics-service/common/httputil"
	"github.com/lovendo/analytics-service/internal/models"
)

type createABTestRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Hypothesis  string           `json:"hypothesis,omitempty"`
	Variants    []models.Variant `json:"variants"`
	TargetEvent string           `json:"target_event"`
	StartDate   *time.Time       `json:"start_date,omitempty"`
}

// CreateABTest handles POST /api/v1/abtests.
func (h *Handler) CreateABTest(w http.ResponseWriter, r *http.Request) {
	var req createABTestRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.TargetEvent == "" {
		httputil.WriteError(w, http.StatusBadRequest, "name and target_event are required")
		return
	}

	test := &models.ABTest{
		Name:        req.Name,
		Description: req.Description,
		Hypothesis:  req.Hypothesis,
		Variants:    req.Variants,
		TargetEvent: req.TargetEvent,
	}
	if req.StartDate != nil {
		test.StartDate = req.StartDate.UTC()
	}

	created, err := h.service.CreateABTest(r.Context(), test)
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

// ListABTests handles GET /api/v1/abtests.
func (h *Handler) ListABTests(w http.ResponseWriter, r *http.Request) {
	tests, err := h.service.ListABTests(r.Context())
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	if tests == nil {
		tests = []*models.ABTest{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"tests": tests})
}

// GetABTest handles GET /api/v1/abtests/{id}.
func (h *Handler) GetABTest(w http.ResponseWriter, r *http.Request) {
	test, err := h.service.GetABTest(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, test)
}

// StartABTest handles POST /api/v1/abtests/{id}/start.
func (h *Handler) StartABTest(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.service.StartTest)
}

// PauseABTest handles POST /api/v1/abtests/{id}/pause.
func (h *Handler) PauseABTest(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.service.PauseTest)
}

// CompleteABTest handles POST /api/v1/abtests/{id}/complete.
func (h *Handler) CompleteABTest(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.service.CompleteTest)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) error) {
	id := r.PathValue("id")
	if err := fn(r.Context(), id); err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	test, err := h.service.GetABTest(r.Context(), id)
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, test)
}

// GetVariant handles GET /api/v1/abtests/{id}/variant?user_id=...
// assigning the user a variant on first call.
func (h *Handler) GetVariant(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	variant, err := h.service.GetVariant(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, variant)
}

// AnalyzeABTest handles POST /api/v1/abtests/{id}/analyze.
func (h *Handler) AnalyzeABTest(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.service.AnalyzeTest(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, analysis)
}
