package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/casetrail/casetrail/services"
)

// GDPRController handles data-subject requests. Erasure removes case data
// but never audit entries; see services.GDPRService.
type GDPRController struct {
	gdpr services.GDPRService
}

// NewGDPRController creates a new GDPR controller
func NewGDPRController(services *services.Services) *GDPRController {
	return &GDPRController{gdpr: services.GDPR}
}

// Erase handles POST /gdpr/{userId}/erase
func (c *GDPRController) Erase(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "userId")

	deleted, err := c.gdpr.EraseUserData(r.Context(), subjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subject_id":    subjectID,
		"cases_deleted": deleted,
	})
}

// Export handles GET /gdpr/{userId}/export
func (c *GDPRController) Export(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "userId")

	w.Header().Set("Content-Type", "application/json")
	if err := c.gdpr.ExportUserData(r.Context(), subjectID, w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
