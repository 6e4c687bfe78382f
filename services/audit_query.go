package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/casetrail/casetrail/models"
	"github.com/casetrail/casetrail/repositories"
)

// AuditQueryService is the read side of the ledger for audit review. It can
// never mutate entries: the repository it wraps has no mutating methods.
type AuditQueryService interface {
	Search(ctx context.Context, filters *models.AuditQueryFilters) ([]models.AuditLogEntry, error)
	Count(ctx context.Context) (int, error)
	// Export streams all entries in chain order. Supported formats:
	// "jsonl" (default), "json", "csv".
	Export(ctx context.Context, w io.Writer, format string) error
}

type auditQueryService struct {
	repo repositories.AuditRepository
}

// NewAuditQueryService creates a new audit query service
func NewAuditQueryService(repo repositories.AuditRepository) AuditQueryService {
	return &auditQueryService{repo: repo}
}

// Search returns entries matching the filters, most recent first.
func (s *auditQueryService) Search(ctx context.Context, filters *models.AuditQueryFilters) ([]models.AuditLogEntry, error) {
	if errs := filters.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid audit query: %s", strings.Join(errs, ", "))
	}
	return s.repo.Query(ctx, filters)
}

// Count returns the total number of ledger entries.
func (s *auditQueryService) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Export writes every entry to w in ascending (timestamp, id) order.
func (s *auditQueryService) Export(ctx context.Context, w io.Writer, format string) error {
	switch format {
	case "jsonl", "":
		return s.exportScan(ctx, func(entry *models.AuditLogEntry) error {
			return json.NewEncoder(w).Encode(entry)
		})

	case "json":
		var all []models.AuditLogEntry
		err := s.exportScan(ctx, func(entry *models.AuditLogEntry) error {
			all = append(all, *entry)
			return nil
		})
		if err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(all)

	case "csv":
		cw := csv.NewWriter(w)
		defer cw.Flush()
		header := []string{"id", "timestamp", "event_type", "user_id", "resource_type",
			"resource_id", "action", "success", "error_message", "integrity_hash", "previous_log_hash"}
		if err := cw.Write(header); err != nil {
			return err
		}
		return s.exportScan(ctx, func(entry *models.AuditLogEntry) error {
			return cw.Write([]string{
				entry.ID,
				entry.Timestamp,
				string(entry.EventType),
				derefOr(entry.UserID, ""),
				entry.ResourceType,
				entry.ResourceID,
				string(entry.Action),
				strconv.FormatBool(entry.Success),
				derefOr(entry.ErrorMessage, ""),
				entry.IntegrityHash,
				entry.PreviousLogHash,
			})
		})

	default:
		return fmt.Errorf("unsupported export format: %s (use json, jsonl, or csv)", format)
	}
}

// exportScan pages through the whole ledger in chain order.
func (s *auditQueryService) exportScan(ctx context.Context, emit func(*models.AuditLogEntry) error) error {
	var cursor *models.Checkpoint
	for {
		entries, err := s.repo.Scan(ctx, cursor, verifyBatchSize)
		if err != nil {
			return fmt.Errorf("failed to scan audit entries: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		for i := range entries {
			if err := emit(&entries[i]); err != nil {
				return err
			}
		}
		last := entries[len(entries)-1]
		cursor = &models.Checkpoint{Timestamp: last.Timestamp, ID: last.ID}
	}
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
