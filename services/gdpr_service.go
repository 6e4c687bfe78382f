package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/casetrail/casetrail/models"
	"github.com/casetrail/casetrail/repositories"
	"github.com/casetrail/casetrail/userctx"
)

// GDPRService implements the data-subject flows of the host application.
//
// Erasure removes the subject's case data but leaves every audit entry that
// references their user ID in place: the ledger is the legal-compliance
// record of what happened, and erasing it would defeat its purpose. This is
// a deliberate, documented exception to "delete everything" — enforced by
// the store's append-only triggers, not just by convention.
type GDPRService interface {
	// EraseUserData deletes the subject's cases and records a gdpr.erasure
	// event. Returns the number of cases removed.
	EraseUserData(ctx context.Context, subjectID string) (int, error)

	// ExportUserData writes the subject's cases to w as JSON and records a
	// gdpr.export event.
	ExportUserData(ctx context.Context, subjectID string, w io.Writer) error
}

type gdprService struct {
	caseRepo repositories.CaseRepository
	auditLog AuditLogger
}

// NewGDPRService creates a new GDPR service
func NewGDPRService(caseRepo repositories.CaseRepository, auditLog AuditLogger) GDPRService {
	return &gdprService{
		caseRepo: caseRepo,
		auditLog: auditLog,
	}
}

// EraseUserData deletes all case data for the subject. The gdpr class is
// blocking by default: if the erasure cannot be audited, the operation is
// reported as failed even though the rows are gone, so an operator has to
// reconcile rather than the gap passing silently.
func (s *gdprService) EraseUserData(ctx context.Context, subjectID string) (int, error) {
	if subjectID == "" {
		return 0, fmt.Errorf("subject ID is required")
	}

	deleted, err := s.caseRepo.DeleteByOwner(ctx, subjectID)
	if err != nil {
		return 0, fmt.Errorf("failed to erase user data: %w", err)
	}

	event := &models.AuditEvent{
		EventType:    models.EventGDPRErasure,
		UserID:       userctx.UserIDPtr(ctx),
		ResourceType: "user",
		ResourceID:   subjectID,
		Action:       models.ActionDelete,
		Details:      map[string]any{"cases_deleted": deleted},
		IPAddress:    userctx.ClientIPPtr(ctx),
		UserAgent:    userctx.UserAgentPtr(ctx),
	}

	if _, err := s.auditLog.Log(ctx, event); err != nil {
		if s.auditLog.Blocking(event.EventType) {
			return deleted, fmt.Errorf("erasure completed but its audit record failed: %w", err)
		}
	}

	return deleted, nil
}

// ExportUserData writes the subject's case data as a JSON document.
func (s *gdprService) ExportUserData(ctx context.Context, subjectID string, w io.Writer) error {
	if subjectID == "" {
		return fmt.Errorf("subject ID is required")
	}

	cases, err := s.caseRepo.GetByOwner(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("failed to collect user data: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"subject_id": subjectID,
		"cases":      cases,
	}); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	event := &models.AuditEvent{
		EventType:    models.EventGDPRExport,
		UserID:       userctx.UserIDPtr(ctx),
		ResourceType: "user",
		ResourceID:   subjectID,
		Action:       models.ActionExport,
		Details:      map[string]any{"cases_exported": len(cases)},
		IPAddress:    userctx.ClientIPPtr(ctx),
		UserAgent:    userctx.UserAgentPtr(ctx),
	}

	if _, err := s.auditLog.Log(ctx, event); err != nil {
		if s.auditLog.Blocking(event.EventType) {
			return fmt.Errorf("export completed but its audit record failed: %w", err)
		}
	}

	return nil
}
