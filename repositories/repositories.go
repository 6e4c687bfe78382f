package repositories

import (
	"database/sql"
)

// Repositories struct holds all repository interfaces
type Repositories struct {
	Audit AuditRepository
	Case  CaseRepository
}

// NewRepositories creates and initializes all repositories
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Audit: NewAuditRepository(db),
		Case:  NewCaseRepository(db),
	}
}
