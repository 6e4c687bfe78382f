package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/casetrail/casetrail/models"
	"github.com/casetrail/casetrail/repositories"
)

// ErrInvalidEvent marks an event rejected by validation before any hashing
// or persistence happened. The chain is untouched.
var ErrInvalidEvent = errors.New("invalid audit event")

// ErrAuditWriteFailed marks an append that reached the store and failed
// there. Callers decide via the failure policy whether their primary
// operation proceeds without the audit record.
var ErrAuditWriteFailed = errors.New("audit write failed")

// FailurePolicy says what a caller should do when an audit append fails.
type FailurePolicy string

const (
	// PolicyBlock: the primary operation must fail if its audit record could
	// not be written. Used for security-relevant event classes where audit
	// completeness is the point.
	PolicyBlock FailurePolicy = "block"
	// PolicyBestEffort: log the failure operationally and let the primary
	// operation proceed.
	PolicyBestEffort FailurePolicy = "best-effort"
)

// DefaultFailurePolicies maps event classes to policies. Authentication,
// consent, GDPR and decryption events block their primary operation on audit
// failure; routine CRUD classes are best-effort.
func DefaultFailurePolicies() map[string]FailurePolicy {
	return map[string]FailurePolicy{
		"session":    PolicyBlock,
		"consent":    PolicyBlock,
		"gdpr":       PolicyBlock,
		"encryption": PolicyBlock,
		"case":       PolicyBestEffort,
		"evidence":   PolicyBestEffort,
		"note":       PolicyBestEffort,
		"document":   PolicyBestEffort,
		"system":     PolicyBestEffort,
	}
}

// AuditLogger is the append engine of the tamper-evident ledger. It is the
// only code path that creates entries, and it is handed to collaborators by
// constructor injection — there is no package-level instance.
type AuditLogger interface {
	// Log assigns id and timestamp to the event, links it to the current
	// chain tail, and persists it atomically. The returned entry is fully
	// sealed. Errors wrap ErrInvalidEvent or ErrAuditWriteFailed.
	Log(ctx context.Context, event *models.AuditEvent) (*models.AuditLogEntry, error)

	// Blocking reports whether the event type's class requires callers to
	// fail their primary operation when Log returns an error.
	Blocking(et models.EventType) bool
}

// AuditLoggerOptions configures the append engine.
type AuditLoggerOptions struct {
	// AppendTimeout bounds each append. Zero means DefaultAppendTimeout.
	AppendTimeout time.Duration
	// FailurePolicies maps event class to policy. Nil means defaults;
	// unlisted classes are best-effort.
	FailurePolicies map[string]FailurePolicy
}

// DefaultAppendTimeout bounds a single append against a wedged store.
const DefaultAppendTimeout = 5 * time.Second

type auditLogger struct {
	repo     repositories.AuditRepository
	policies map[string]FailurePolicy
	timeout  time.Duration

	// mu serializes the read-tail/hash/insert critical section for all
	// writers in this process; the store's immediate transaction extends the
	// guarantee across processes. Without this, two interleaved appends
	// would both claim the same previous hash and fork the chain.
	mu sync.Mutex

	// lastClock is the timestamp of the previous append. Clock readings that
	// do not advance are bumped by a nanosecond so store order always equals
	// chain-construction order, even at coarse clock resolution.
	lastClock time.Time
}

// NewAuditLogger creates the append engine over the given store.
func NewAuditLogger(repo repositories.AuditRepository, opts AuditLoggerOptions) AuditLogger {
	policies := opts.FailurePolicies
	if policies == nil {
		policies = DefaultFailurePolicies()
	}
	timeout := opts.AppendTimeout
	if timeout <= 0 {
		timeout = DefaultAppendTimeout
	}
	return &auditLogger{
		repo:     repo,
		policies: policies,
		timeout:  timeout,
	}
}

// Log validates, seals and persists one entry. It never emits audit events
// about itself, so a failing append cannot recurse.
func (l *auditLogger) Log(ctx context.Context, event *models.AuditEvent) (*models.AuditLogEntry, error) {
	if errs := event.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEvent, strings.Join(errs, ", "))
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := &models.AuditLogEntry{
		ID:           uuid.NewString(),
		Timestamp:    models.FormatTimestamp(l.nextClock()),
		EventType:    event.EventType,
		UserID:       event.UserID,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		Action:       event.Action,
		Details:      event.Details,
		IPAddress:    event.IPAddress,
		UserAgent:    event.UserAgent,
		Success:      event.Succeeded(),
		ErrorMessage: event.ErrorMessage,
	}

	// The repository runs seal inside the same transaction that read the
	// tail, so read-tail, hash and insert commit as one atomic unit. A
	// timeout or storage error rolls back; no half-written entry is ever
	// visible to readers, and there is no retry at this layer.
	err := l.repo.Append(ctx, entry, func(tailHash string) error {
		if tailHash == "" {
			tailHash = GenesisHash
		}
		entry.PreviousLogHash = tailHash

		hash, err := ComputeEntryHash(entry)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		entry.IntegrityHash = hash
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidEvent) {
			return nil, err
		}
		slog.Error("audit append failed",
			"event_type", event.EventType,
			"resource_type", event.ResourceType,
			"error", err)
		return nil, fmt.Errorf("%w: %v", ErrAuditWriteFailed, err)
	}

	return entry, nil
}

// Blocking reports whether a failed append for this event type must fail
// the caller's primary operation.
func (l *auditLogger) Blocking(et models.EventType) bool {
	return l.policies[et.Class()] == PolicyBlock
}

// nextClock returns a strictly increasing UTC timestamp. Callers must hold mu.
func (l *auditLogger) nextClock() time.Time {
	now := time.Now().UTC()
	if !now.After(l.lastClock) {
		now = l.lastClock.Add(time.Nanosecond)
	}
	l.lastClock = now
	return now
}
