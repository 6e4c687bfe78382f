package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/casetrail/casetrail/models"
)

// AuditRepository is the append-only sequential store behind the audit
// ledger. Entries are ordered by (timestamp, id); there are deliberately no
// update or delete methods, and the schema's triggers reject both at the SQL
// layer.
type AuditRepository interface {
	// Append persists a fully-formed entry as one atomic unit. Inside a
	// single immediate transaction it reads the current chain tail, hands the
	// tail's integrity hash to seal (empty string when the store is empty),
	// and inserts the entry that seal finished. If seal returns an error the
	// transaction rolls back and nothing becomes visible.
	Append(ctx context.Context, entry *models.AuditLogEntry, seal func(tailHash string) error) error

	// Tail returns the most recently persisted entry in (timestamp, id)
	// order, or nil when the store is empty.
	Tail(ctx context.Context) (*models.AuditLogEntry, error)

	// Count returns the total number of entries.
	Count(ctx context.Context) (int, error)

	// Scan returns up to limit entries in ascending (timestamp, id) order,
	// strictly after the given position. A nil position starts at the
	// beginning.
	Scan(ctx context.Context, after *models.Checkpoint, limit int) ([]models.AuditLogEntry, error)

	// Query returns entries matching the filters, most recent first.
	Query(ctx context.Context, filters *models.AuditQueryFilters) ([]models.AuditLogEntry, error)
}

type sqliteAuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB) AuditRepository {
	return &sqliteAuditRepository{db: db}
}

const auditColumns = `id, timestamp, event_type, user_id, resource_type, resource_id,
		action, details, ip_address, user_agent, success, error_message,
		integrity_hash, previous_log_hash`

// Append implements the read-tail, seal, insert critical section as one
// transaction. The connection opens with _txlock=immediate, so the write
// lock is held for the whole read-modify-write even across processes.
func (r *sqliteAuditRepository) Append(ctx context.Context, entry *models.AuditLogEntry, seal func(tailHash string) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append transaction: %w", err)
	}
	defer tx.Rollback()

	var tailHash string
	row := tx.QueryRowContext(ctx,
		`SELECT integrity_hash FROM audit_log ORDER BY timestamp DESC, id DESC LIMIT 1`)
	if err := row.Scan(&tailHash); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to read chain tail: %w", err)
	}

	if err := seal(tailHash); err != nil {
		return err
	}

	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to encode details: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_log (`+auditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.Timestamp,
		entry.EventType,
		entry.UserID,
		entry.ResourceType,
		entry.ResourceID,
		entry.Action,
		string(detailsJSON),
		entry.IPAddress,
		entry.UserAgent,
		entry.Success,
		entry.ErrorMessage,
		entry.IntegrityHash,
		entry.PreviousLogHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return tx.Commit()
}

// Tail returns the most recent entry, or nil when the ledger is empty
func (r *sqliteAuditRepository) Tail(ctx context.Context) (*models.AuditLogEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+auditColumns+`
		FROM audit_log ORDER BY timestamp DESC, id DESC LIMIT 1
	`)

	entry, err := scanAuditEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read chain tail: %w", err)
	}
	return entry, nil
}

// Count returns the total number of audit entries
func (r *sqliteAuditRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log").Scan(&count)
	return count, err
}

// Scan pages through the ledger in chain order using keyset pagination, so
// verification cost does not grow with offset depth.
func (r *sqliteAuditRepository) Scan(ctx context.Context, after *models.Checkpoint, limit int) ([]models.AuditLogEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_log`
	var args []any

	if after != nil {
		query += ` WHERE (timestamp, id) > (?, ?)`
		args = append(args, after.Timestamp, after.ID)
	}
	query += ` ORDER BY timestamp ASC, id ASC LIMIT ?`
	args = append(args, limit)

	return r.queryEntries(ctx, query, args)
}

// Query applies the review filters, most recent entries first.
func (r *sqliteAuditRepository) Query(ctx context.Context, filters *models.AuditQueryFilters) ([]models.AuditLogEntry, error) {
	var conditions []string
	var args []any

	if filters.From != "" {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filters.From)
	}
	if filters.To != "" {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, filters.To)
	}
	if filters.EventType != "" {
		conditions = append(conditions, "event_type = ?")
		args = append(args, filters.EventType)
	}
	if filters.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filters.UserID)
	}
	if filters.ResourceType != "" {
		conditions = append(conditions, "resource_type = ?")
		args = append(args, filters.ResourceType)
	}
	if filters.ResourceID != "" {
		conditions = append(conditions, "resource_id = ?")
		args = append(args, filters.ResourceID)
	}
	if filters.Success != nil {
		conditions = append(conditions, "success = ?")
		args = append(args, *filters.Success)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_log`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, filters.Limit, filters.Offset)

	return r.queryEntries(ctx, query, args)
}

func (r *sqliteAuditRepository) queryEntries(ctx context.Context, query string, args []any) ([]models.AuditLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditLogEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scanAuditEntry reads one audit row. Details are decoded with UseNumber so
// numeric values keep the exact textual form they were written with — the
// canonical serializer depends on that for hash stability across re-reads.
func scanAuditEntry(row rowScanner) (*models.AuditLogEntry, error) {
	var entry models.AuditLogEntry
	var detailsJSON string

	err := row.Scan(
		&entry.ID,
		&entry.Timestamp,
		&entry.EventType,
		&entry.UserID,
		&entry.ResourceType,
		&entry.ResourceID,
		&entry.Action,
		&detailsJSON,
		&entry.IPAddress,
		&entry.UserAgent,
		&entry.Success,
		&entry.ErrorMessage,
		&entry.IntegrityHash,
		&entry.PreviousLogHash,
	)
	if err != nil {
		return nil, err
	}

	if detailsJSON != "" && detailsJSON != "null" {
		dec := json.NewDecoder(strings.NewReader(detailsJSON))
		dec.UseNumber()
		if err := dec.Decode(&entry.Details); err != nil {
			return nil, fmt.Errorf("failed to decode details for entry %s: %w", entry.ID, err)
		}
	}

	return &entry, nil
}
