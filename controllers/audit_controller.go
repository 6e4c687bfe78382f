package controllers

import (
	"net/http"
	"strconv"

	"github.com/casetrail/casetrail/models"
	"github.com/casetrail/casetrail/services"
)

// AuditController exposes the audit review and integrity surfaces.
// Everything here is read-only: entries can only be created through the
// services performing the audited operations.
type AuditController struct {
	query    services.AuditQueryService
	verifier services.AuditVerifier
}

// NewAuditController creates a new audit controller
func NewAuditController(services *services.Services) *AuditController {
	return &AuditController{
		query:    services.AuditQuery,
		verifier: services.AuditVerifier,
	}
}

// Index handles GET /audit - filtered, paginated audit review
func (c *AuditController) Index(w http.ResponseWriter, r *http.Request) {
	filters, err := parseQueryFilters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := c.query.Search(r.Context(), filters)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	total, err := c.query.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count audit entries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
		"limit":   filters.Limit,
		"offset":  filters.Offset,
	})
}

// Verify handles GET /audit/verify - runs the integrity verifier.
// Query params timestamp, id and hash select bounded verification from a
// previously-verified checkpoint; otherwise the full chain is walked.
func (c *AuditController) Verify(w http.ResponseWriter, r *http.Request) {
	var report *models.IntegrityReport
	var err error

	q := r.URL.Query()
	if q.Get("hash") != "" {
		checkpoint := models.Checkpoint{
			Timestamp: q.Get("timestamp"),
			ID:        q.Get("id"),
			Hash:      q.Get("hash"),
		}
		if checkpoint.Timestamp == "" || checkpoint.ID == "" {
			writeError(w, http.StatusBadRequest, "checkpoint requires timestamp, id and hash")
			return
		}
		report, err = c.verifier.VerifyFrom(r.Context(), checkpoint)
	} else {
		report, err = c.verifier.VerifyChain(r.Context())
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Export handles GET /audit/export?format=jsonl|json|csv
func (c *AuditController) Export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "jsonl"
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
	case "json":
		w.Header().Set("Content-Type", "application/json")
	default:
		w.Header().Set("Content-Type", "application/x-ndjson")
	}

	if err := c.query.Export(r.Context(), w, format); err != nil {
		// Headers may already be written; log-style error body is the best
		// we can do mid-stream.
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// parseQueryFilters builds AuditQueryFilters from URL query parameters
func parseQueryFilters(r *http.Request) (*models.AuditQueryFilters, error) {
	q := r.URL.Query()
	filters := &models.AuditQueryFilters{
		From:         q.Get("from"),
		To:           q.Get("to"),
		EventType:    models.EventType(q.Get("event_type")),
		UserID:       q.Get("user_id"),
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
	}

	if v := q.Get("success"); v != "" {
		success, err := strconv.ParseBool(v)
		if err != nil {
			return nil, err
		}
		filters.Success = &success
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		filters.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		filters.Offset = offset
	}

	return filters, nil
}
