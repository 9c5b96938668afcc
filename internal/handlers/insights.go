package handlers

import (
	"net/http"

	"github.com/lovendo/analytics-service/common/httputil"
)

// GenerateInsights handles POST /api/v1/insights. Returns 503 when no
// LLM backend is configured.
func (h *Handler) GenerateInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := h.service.GenerateInsights(r.Context())
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"insights": insights})
}
