package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/casetrail/casetrail/services"
)

// writeJSON renders a JSON response with the given status code
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response: "+err.Error(), http.StatusInternalServerError)
	}
}

// writeError renders a JSON error response
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// Controllers holds all controller instances
type Controllers struct {
	Audit *AuditController
	Case  *CaseController
	GDPR  *GDPRController
}

// NewControllers creates and initializes all controller instances
func NewControllers(services *services.Services) *Controllers {
	return &Controllers{
		Audit: NewAuditController(services),
		Case:  NewCaseController(services),
		GDPR:  NewGDPRController(services),
	}
}
