package handlers

import (
	"net/http"
	"strconv"

	"github.com/isdelr/ender-accounts/internal/auth"
	"github.com/isdelr/ender-accounts/internal/services"
)

// AuditHandler handles HTTP requests related to the audit trail.
type AuditHandler struct {
	service services.AuditServiceProvider
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(service services.AuditServiceProvider) *AuditHandler {
	return &AuditHandler{service: service}
}

// GetRecent handles the request to get recent audit events.
func (h *AuditHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20 // Default limit
	}

	events, err := h.service.ListEvents(r.Context(), auth.PrincipalFromContext(r.Context()), limit)
	if err != nil {
		respondWithServiceError(w, err, "Failed to retrieve events")
		return
	}
	respondJSON(w, http.StatusOK, events)
}
