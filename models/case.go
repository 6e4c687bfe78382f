package models

import (
	"time"
)

// Case statuses form a small closed set; anything else is a form error.
const (
	CaseStatusOpen     = "open"
	CaseStatusClosed   = "closed"
	CaseStatusArchived = "archived"
)

// Case represents a case file in the case-management host application.
// Cases are ordinary mutable CRUD records — the audit trail they emit is
// what carries the integrity guarantees, not the rows themselves.
type Case struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Status      string    `json:"status" db:"status"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// CaseForm represents form data for creating/updating cases
type CaseForm struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Validate validates the case form data
func (f *CaseForm) Validate() []string {
	var errors []string

	if f.Title == "" {
		errors = append(errors, "Title is required")
	}

	if len(f.Title) > 200 {
		errors = append(errors, "Title must be less than 200 characters")
	}

	if len(f.Description) > 10000 {
		errors = append(errors, "Description must be less than 10000 characters")
	}

	switch f.Status {
	case "", CaseStatusOpen, CaseStatusClosed, CaseStatusArchived:
	default:
		errors = append(errors, "Status must be one of open, closed, archived")
	}

	return errors
}
