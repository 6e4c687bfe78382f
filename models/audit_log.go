package models

// EventType identifies what kind of operation an audit entry records.
// The set is closed: unknown values fail AuditEvent validation instead of
// being accepted as free-form strings. Types are grouped by subsystem via
// their prefix (case, evidence, note, document, session, consent, gdpr,
// encryption, system), which is also the granularity of the audit failure
// policy.
type EventType string

const (
	EventCaseCreate EventType = "case.create"
	EventCaseRead   EventType = "case.read"
	EventCaseUpdate EventType = "case.update"
	EventCaseDelete EventType = "case.delete"
	EventCaseExport EventType = "case.export"

	EventEvidenceAdd    EventType = "evidence.add"
	EventEvidenceView   EventType = "evidence.view"
	EventEvidenceDelete EventType = "evidence.delete"

	EventNoteCreate EventType = "note.create"
	EventNoteUpdate EventType = "note.update"
	EventNoteDelete EventType = "note.delete"

	EventDocumentUpload   EventType = "document.upload"
	EventDocumentDownload EventType = "document.download"
	EventDocumentDelete   EventType = "document.delete"

	EventSessionLogin       EventType = "session.login"
	EventSessionLoginFailed EventType = "session.login_failed"
	EventSessionLogout      EventType = "session.logout"

	EventConsentGrant  EventType = "consent.grant"
	EventConsentRevoke EventType = "consent.revoke"

	EventGDPRExport  EventType = "gdpr.export"
	EventGDPRErasure EventType = "gdpr.erasure"

	EventEncryptionDecrypt EventType = "encryption.decrypt"
	EventEncryptionRotate  EventType = "encryption.rotate"

	EventSystemStart          EventType = "system.start"
	EventSystemMigration      EventType = "system.migration"
	EventSystemRetentionPurge EventType = "system.retention_purge"
)

var knownEventTypes = map[EventType]bool{
	EventCaseCreate: true, EventCaseRead: true, EventCaseUpdate: true,
	EventCaseDelete: true, EventCaseExport: true,
	EventEvidenceAdd: true, EventEvidenceView: true, EventEvidenceDelete: true,
	EventNoteCreate: true, EventNoteUpdate: true, EventNoteDelete: true,
	EventDocumentUpload: true, EventDocumentDownload: true, EventDocumentDelete: true,
	EventSessionLogin: true, EventSessionLoginFailed: true, EventSessionLogout: true,
	EventConsentGrant: true, EventConsentRevoke: true,
	EventGDPRExport: true, EventGDPRErasure: true,
	EventEncryptionDecrypt: true, EventEncryptionRotate: true,
	EventSystemStart: true, EventSystemMigration: true, EventSystemRetentionPurge: true,
}

// Valid reports whether the event type is one of the known kinds.
func (et EventType) Valid() bool {
	return knownEventTypes[et]
}

// Class returns the subsystem prefix of the event type, e.g. "case" for
// "case.create". Used to look up the audit failure policy.
func (et EventType) Class() string {
	s := string(et)
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return s[:i]
		}
	}
	return s
}

// Action is the closed set of operations an audit entry can describe.
type Action string

const (
	ActionCreate   Action = "create"
	ActionRead     Action = "read"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionExport   Action = "export"
	ActionDecrypt  Action = "decrypt"
	ActionEvict    Action = "evict"
	ActionComplete Action = "complete"
)

var knownActions = map[Action]bool{
	ActionCreate: true, ActionRead: true, ActionUpdate: true,
	ActionDelete: true, ActionExport: true, ActionDecrypt: true,
	ActionEvict: true, ActionComplete: true,
}

// Valid reports whether the action is one of the known kinds.
func (a Action) Valid() bool {
	return knownActions[a]
}

// AuditLogEntry is a single row of the tamper-evident ledger.
//
// Entries are immutable once written: they are created only by the append
// engine, never updated, and never deleted by any application code path.
// GDPR erasure deliberately preserves entries referencing the erased user —
// a documented legal-compliance exception to "delete everything".
//
// IntegrityHash covers every other field plus PreviousLogHash, chaining each
// entry to its predecessor in (Timestamp, ID) order. Modifying, removing or
// reordering any written entry breaks the chain from that point forward.
type AuditLogEntry struct {
	ID              string         `json:"id" db:"id"`
	Timestamp       string         `json:"timestamp" db:"timestamp"`
	EventType       EventType      `json:"event_type" db:"event_type"`
	UserID          *string        `json:"user_id" db:"user_id"`
	ResourceType    string         `json:"resource_type" db:"resource_type"`
	ResourceID      string         `json:"resource_id" db:"resource_id"`
	Action          Action         `json:"action" db:"action"`
	Details         map[string]any `json:"details" db:"details"`
	IPAddress       *string        `json:"ip_address" db:"ip_address"`
	UserAgent       *string        `json:"user_agent" db:"user_agent"`
	Success         bool           `json:"success" db:"success"`
	ErrorMessage    *string        `json:"error_message" db:"error_message"`
	IntegrityHash   string         `json:"integrity_hash" db:"integrity_hash"`
	PreviousLogHash string         `json:"previous_log_hash" db:"previous_log_hash"`
}

// AuditEvent is the request submitted to the append engine. ID, Timestamp
// and the hash fields are assigned at write time by the engine, not by the
// caller, so callers cannot forge ordering.
type AuditEvent struct {
	EventType    EventType      `json:"event_type"`
	UserID       *string        `json:"user_id"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Action       Action         `json:"action"`
	Details      map[string]any `json:"details"`
	IPAddress    *string        `json:"ip_address"`
	UserAgent    *string        `json:"user_agent"`
	Success      *bool          `json:"success"` // nil means true
	ErrorMessage *string        `json:"error_message"`
}

// Succeeded resolves the Success flag, defaulting to true when unset.
func (e *AuditEvent) Succeeded() bool {
	return e.Success == nil || *e.Success
}

// Validate checks the event before it is hashed or persisted.
// Details payloads must be flat maps of scalars; nested structures are
// rejected here so a bad payload can never corrupt the chain.
func (e *AuditEvent) Validate() []string {
	var errors []string

	if e.EventType == "" {
		errors = append(errors, "event type is required")
	} else if !e.EventType.Valid() {
		errors = append(errors, "unknown event type: "+string(e.EventType))
	}

	if e.Action == "" {
		errors = append(errors, "action is required")
	} else if !e.Action.Valid() {
		errors = append(errors, "unknown action: "+string(e.Action))
	}

	for key, value := range e.Details {
		if !IsScalarDetail(value) {
			errors = append(errors, "details value for key "+key+" is not a scalar")
		}
	}

	if e.ErrorMessage != nil && e.Succeeded() {
		errors = append(errors, "error message is only allowed when success is false")
	}

	return errors
}

// IsScalarDetail reports whether a details value is one of the scalar kinds
// the canonical serializer can encode. json.Number is included because
// details read back from storage decode numbers that way.
func IsScalarDetail(v any) bool {
	switch v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	if _, ok := v.(interface{ Int64() (int64, error) }); ok {
		return true
	}
	return false
}

// AuditQueryFilters narrows an audit review query. Zero values mean
// "no filter". From/To are compared against the canonical timestamp format,
// which orders lexicographically.
type AuditQueryFilters struct {
	From         string    `json:"from"`
	To           string    `json:"to"`
	EventType    EventType `json:"event_type"`
	UserID       string    `json:"user_id"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Success      *bool     `json:"success"`
	Limit        int       `json:"limit"`
	Offset       int       `json:"offset"`
}

// DefaultQueryLimit caps unbounded audit review queries.
const DefaultQueryLimit = 100

// MaxQueryLimit is the hard ceiling for a single page of results.
const MaxQueryLimit = 1000

// Validate checks filter values and applies pagination defaults.
func (f *AuditQueryFilters) Validate() []string {
	var errors []string

	if f.EventType != "" && !f.EventType.Valid() {
		errors = append(errors, "unknown event type: "+string(f.EventType))
	}
	if f.Limit < 0 {
		errors = append(errors, "limit must not be negative")
	}
	if f.Offset < 0 {
		errors = append(errors, "offset must not be negative")
	}
	if f.Limit == 0 {
		f.Limit = DefaultQueryLimit
	}
	if f.Limit > MaxQueryLimit {
		f.Limit = MaxQueryLimit
	}

	return errors
}

// BreakReason classifies why verification stopped at an entry.
type BreakReason string

const (
	// BreakHashMismatch: the entry's stored integrity hash does not match a
	// recomputation over its fields — the entry itself was altered.
	BreakHashMismatch BreakReason = "hash_mismatch"
	// BreakLinkMismatch: the entry's previous-hash pointer does not match its
	// predecessor — entries were reordered, removed, or a link was forged.
	BreakLinkMismatch BreakReason = "link_mismatch"
	// BreakFork: the entry claims a previous hash already claimed by an
	// earlier entry. Two writers appended against the same tail, which is a
	// concurrency-control failure rather than tampering.
	BreakFork BreakReason = "fork"
)

// IntegrityReport is the result of walking the chain and recomputing every
// hash. A broken chain is never auto-repaired; the report is surfaced to an
// administrative process.
type IntegrityReport struct {
	Valid     bool           `json:"valid"`
	TotalLogs int            `json:"total_logs"`
	BrokenAt  *int           `json:"broken_at,omitempty"`
	BrokenLog *AuditLogEntry `json:"broken_log,omitempty"`
	Reason    BreakReason    `json:"reason,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Checkpoint seeds bounded verification with a previously-verified position:
// entries strictly after (Timestamp, ID) are checked against Hash.
type Checkpoint struct {
	Timestamp string `json:"timestamp"`
	ID        string `json:"id"`
	Hash      string `json:"hash"`
}
