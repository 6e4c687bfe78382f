package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/casetrail/casetrail/models"
)

// CaseRepository handles case persistence
type CaseRepository interface {
	Create(ctx context.Context, c *models.Case) error
	GetByID(ctx context.Context, id string) (*models.Case, error)
	GetAll(ctx context.Context) ([]models.Case, error)
	GetByOwner(ctx context.Context, ownerID string) ([]models.Case, error)
	Update(ctx context.Context, c *models.Case) error
	Delete(ctx context.Context, id string) error
	DeleteByOwner(ctx context.Context, ownerID string) (int, error)
}

type sqliteCaseRepository struct {
	db *sql.DB
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *sql.DB) CaseRepository {
	return &sqliteCaseRepository{db: db}
}

// Create inserts a new case
func (r *sqliteCaseRepository) Create(ctx context.Context, c *models.Case) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cases (id, title, description, status, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Title, c.Description, c.Status, c.OwnerID, c.CreatedAt, c.UpdatedAt)

	return err
}

// GetByID retrieves a case by ID
func (r *sqliteCaseRepository) GetByID(ctx context.Context, id string) (*models.Case, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, description, status, owner_id, created_at, updated_at
		FROM cases WHERE id = ?
	`, id)

	var c models.Case
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Status, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("case not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetAll retrieves all cases
func (r *sqliteCaseRepository) GetAll(ctx context.Context) ([]models.Case, error) {
	return r.queryCases(ctx, `
		SELECT id, title, description, status, owner_id, created_at, updated_at
		FROM cases ORDER BY created_at DESC
	`)
}

// GetByOwner retrieves all cases owned by a user
func (r *sqliteCaseRepository) GetByOwner(ctx context.Context, ownerID string) ([]models.Case, error) {
	return r.queryCases(ctx, `
		SELECT id, title, description, status, owner_id, created_at, updated_at
		FROM cases WHERE owner_id = ? ORDER BY created_at DESC
	`, ownerID)
}

// Update updates an existing case
func (r *sqliteCaseRepository) Update(ctx context.Context, c *models.Case) error {
	c.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE cases SET title = ?, description = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, c.Title, c.Description, c.Status, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("case not found: %s", c.ID)
	}
	return nil
}

// Delete removes a case
func (r *sqliteCaseRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM cases WHERE id = ?", id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("case not found: %s", id)
	}
	return nil
}

// DeleteByOwner removes all cases owned by a user and returns the count.
// Used by the GDPR erasure flow; audit entries are never removed.
func (r *sqliteCaseRepository) DeleteByOwner(ctx context.Context, ownerID string) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM cases WHERE owner_id = ?", ownerID)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *sqliteCaseRepository) queryCases(ctx context.Context, query string, args ...any) ([]models.Case, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []models.Case
	for rows.Next() {
		var c models.Case
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Status, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}
