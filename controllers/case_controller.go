package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/casetrail/casetrail/models"
	"github.com/casetrail/casetrail/services"
)

// CaseController handles the case CRUD API
type CaseController struct {
	cases services.CaseService
}

// NewCaseController creates a new case controller
func NewCaseController(services *services.Services) *CaseController {
	return &CaseController{cases: services.Case}
}

// Index handles GET /cases
func (c *CaseController) Index(w http.ResponseWriter, r *http.Request) {
	cases, err := c.cases.GetAllCases(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load cases")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cases": cases})
}

// Create handles POST /cases
func (c *CaseController) Create(w http.ResponseWriter, r *http.Request) {
	form, ok := decodeCaseForm(w, r)
	if !ok {
		return
	}

	created, err := c.cases.CreateCase(r.Context(), form)
	if err != nil {
		writeError(w, statusForServiceError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Show handles GET /cases/{id}
func (c *CaseController) Show(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, err := c.cases.GetCase(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// Update handles PUT /cases/{id}
func (c *CaseController) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	form, ok := decodeCaseForm(w, r)
	if !ok {
		return
	}

	updated, err := c.cases.UpdateCase(r.Context(), id, form)
	if err != nil {
		writeError(w, statusForServiceError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /cases/{id}
func (c *CaseController) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.cases.DeleteCase(r.Context(), id); err != nil {
		writeError(w, statusForServiceError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func decodeCaseForm(w http.ResponseWriter, r *http.Request) (*models.CaseForm, bool) {
	var form models.CaseForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return &form, true
}

func statusForServiceError(err error) int {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "validation failed"):
		return http.StatusBadRequest
	case strings.Contains(msg, "not found"):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
