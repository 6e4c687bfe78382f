package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/casetrail/casetrail/models"
	"github.com/casetrail/casetrail/repositories"
	"github.com/casetrail/casetrail/userctx"
)

// CaseService interface defines case management business logic.
// Every operation emits an audit event through the injected AuditLogger —
// success and failure alike — immediately after the underlying operation.
type CaseService interface {
	CreateCase(ctx context.Context, form *models.CaseForm) (*models.Case, error)
	GetCase(ctx context.Context, id string) (*models.Case, error)
	GetAllCases(ctx context.Context) ([]models.Case, error)
	UpdateCase(ctx context.Context, id string, form *models.CaseForm) (*models.Case, error)
	DeleteCase(ctx context.Context, id string) error
}

// caseService implements CaseService interface
type caseService struct {
	caseRepo repositories.CaseRepository
	auditLog AuditLogger
}

// NewCaseService creates a new case service
func NewCaseService(caseRepo repositories.CaseRepository, auditLog AuditLogger) CaseService {
	return &caseService{
		caseRepo: caseRepo,
		auditLog: auditLog,
	}
}

// CreateCase creates a new case with validation
func (s *caseService) CreateCase(ctx context.Context, form *models.CaseForm) (*models.Case, error) {
	if errors := form.Validate(); len(errors) > 0 {
		return nil, fmt.Errorf("validation failed: %s", strings.Join(errors, ", "))
	}

	ownerID := userctx.GetUserID(ctx)
	if ownerID == "" {
		return nil, fmt.Errorf("case owner is required")
	}

	status := form.Status
	if status == "" {
		status = models.CaseStatusOpen
	}

	c := &models.Case{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(form.Title),
		Description: strings.TrimSpace(form.Description),
		Status:      status,
		OwnerID:     ownerID,
	}

	if err := s.caseRepo.Create(ctx, c); err != nil {
		s.recordFailure(ctx, models.EventCaseCreate, models.ActionCreate, "", err)
		return nil, fmt.Errorf("failed to create case: %w", err)
	}

	if err := s.record(ctx, &models.AuditEvent{
		EventType:    models.EventCaseCreate,
		ResourceType: "case",
		ResourceID:   c.ID,
		Action:       models.ActionCreate,
		Details:      map[string]any{"title": c.Title, "status": c.Status},
	}); err != nil {
		return nil, err
	}

	return c, nil
}

// GetCase retrieves a case by ID and records the data access
func (s *caseService) GetCase(ctx context.Context, id string) (*models.Case, error) {
	c, err := s.caseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.record(ctx, &models.AuditEvent{
		EventType:    models.EventCaseRead,
		ResourceType: "case",
		ResourceID:   c.ID,
		Action:       models.ActionRead,
	}); err != nil {
		return nil, err
	}

	return c, nil
}

// GetAllCases retrieves all cases
func (s *caseService) GetAllCases(ctx context.Context) ([]models.Case, error) {
	return s.caseRepo.GetAll(ctx)
}

// UpdateCase updates an existing case
func (s *caseService) UpdateCase(ctx context.Context, id string, form *models.CaseForm) (*models.Case, error) {
	if errors := form.Validate(); len(errors) > 0 {
		return nil, fmt.Errorf("validation failed: %s", strings.Join(errors, ", "))
	}

	c, err := s.caseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("case not found: %w", err)
	}

	c.Title = strings.TrimSpace(form.Title)
	c.Description = strings.TrimSpace(form.Description)
	if form.Status != "" {
		c.Status = form.Status
	}

	if err := s.caseRepo.Update(ctx, c); err != nil {
		s.recordFailure(ctx, models.EventCaseUpdate, models.ActionUpdate, id, err)
		return nil, fmt.Errorf("failed to update case: %w", err)
	}

	if err := s.record(ctx, &models.AuditEvent{
		EventType:    models.EventCaseUpdate,
		ResourceType: "case",
		ResourceID:   c.ID,
		Action:       models.ActionUpdate,
		Details:      map[string]any{"title": c.Title, "status": c.Status},
	}); err != nil {
		return nil, err
	}

	return c, nil
}

// DeleteCase permanently deletes a case
func (s *caseService) DeleteCase(ctx context.Context, id string) error {
	// Confirm existence first so a failed delete is distinguishable from a
	// missing case in the trail.
	if _, err := s.caseRepo.GetByID(ctx, id); err != nil {
		return err
	}

	if err := s.caseRepo.Delete(ctx, id); err != nil {
		s.recordFailure(ctx, models.EventCaseDelete, models.ActionDelete, id, err)
		return fmt.Errorf("failed to delete case: %w", err)
	}

	return s.record(ctx, &models.AuditEvent{
		EventType:    models.EventCaseDelete,
		ResourceType: "case",
		ResourceID:   id,
		Action:       models.ActionDelete,
	})
}

// record fills actor context into the event and applies the failure policy:
// blocking event classes propagate an audit-write error to the caller,
// best-effort classes log it operationally and proceed.
func (s *caseService) record(ctx context.Context, event *models.AuditEvent) error {
	event.UserID = userctx.UserIDPtr(ctx)
	event.IPAddress = userctx.ClientIPPtr(ctx)
	event.UserAgent = userctx.UserAgentPtr(ctx)

	if _, err := s.auditLog.Log(ctx, event); err != nil {
		if s.auditLog.Blocking(event.EventType) {
			return fmt.Errorf("operation completed but its audit record failed: %w", err)
		}
		slog.Warn("audit write failed (best-effort)",
			"event_type", event.EventType, "error", err)
	}
	return nil
}

// recordFailure logs the failed operation itself to the trail.
func (s *caseService) recordFailure(ctx context.Context, et models.EventType, action models.Action, resourceID string, opErr error) {
	success := false
	msg := opErr.Error()
	_ = s.record(ctx, &models.AuditEvent{
		EventType:    et,
		ResourceType: "case",
		ResourceID:   resourceID,
		Action:       action,
		Success:      &success,
		ErrorMessage: &msg,
	})
}
