package services

import (
	"context"
	"fmt"

	"github.com/casetrail/casetrail/models"
	"github.com/casetrail/casetrail/repositories"
)

// AuditVerifier proves, or disproves, that the ledger has not been altered
// since it was written. Verification is read-only and idempotent: running it
// twice on an unmodified store yields identical reports. It is O(n) hash
// recomputations and meant for a periodic job or an administrative action,
// not the request hot path.
type AuditVerifier interface {
	// VerifyChain walks the full chain from the genesis sentinel and reports
	// the first point of divergence, if any.
	VerifyChain(ctx context.Context) (*models.IntegrityReport, error)

	// VerifyFrom walks only the entries after a previously-verified
	// checkpoint, trusting the prefix. TotalLogs in the report counts the
	// entries actually checked.
	VerifyFrom(ctx context.Context, checkpoint models.Checkpoint) (*models.IntegrityReport, error)
}

type auditVerifier struct {
	repo repositories.AuditRepository
}

// NewAuditVerifier creates a verifier over the given store.
func NewAuditVerifier(repo repositories.AuditRepository) AuditVerifier {
	return &auditVerifier{repo: repo}
}

// verifyBatchSize is how many entries each store scan fetches.
const verifyBatchSize = 500

func (v *auditVerifier) VerifyChain(ctx context.Context) (*models.IntegrityReport, error) {
	total, err := v.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return v.walk(ctx, nil, GenesisHash, total)
}

func (v *auditVerifier) VerifyFrom(ctx context.Context, checkpoint models.Checkpoint) (*models.IntegrityReport, error) {
	return v.walk(ctx, &checkpoint, checkpoint.Hash, -1)
}

// walk iterates entries in ascending (timestamp, id) order, carrying the
// expected previous hash forward. For each entry it first checks the stored
// link against the predecessor, then recomputes the integrity hash from the
// entry's own fields. The first mismatch stops the walk: everything after a
// broken entry is reachable only through a broken link and is untrusted
// regardless of its own internal consistency.
//
// total < 0 means "count while walking" (bounded mode).
func (v *auditVerifier) walk(ctx context.Context, after *models.Checkpoint, expectedPrev string, total int) (*models.IntegrityReport, error) {
	// Previous hashes already claimed by earlier entries. A broken link that
	// points at one of these is a fork — two appends against the same tail —
	// which indicates a concurrency-control failure rather than tampering
	// and is reported as such.
	seenPrev := map[string]bool{}

	cursor := after
	index := 0

	for {
		entries, err := v.repo.Scan(ctx, cursor, verifyBatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entries: %w", err)
		}
		if len(entries) == 0 {
			break
		}

		for i := range entries {
			entry := &entries[i]

			if entry.PreviousLogHash != expectedPrev {
				reason := models.BreakLinkMismatch
				if seenPrev[entry.PreviousLogHash] {
					reason = models.BreakFork
				}
				return brokenReport(total, index, entry, reason, ""), nil
			}

			recomputed, err := ComputeEntryHash(entry)
			if err != nil {
				return brokenReport(total, index, entry, models.BreakHashMismatch,
					fmt.Sprintf("entry %s cannot be canonically serialized: %v", entry.ID, err)), nil
			}
			if recomputed != entry.IntegrityHash {
				return brokenReport(total, index, entry, models.BreakHashMismatch, ""), nil
			}

			seenPrev[entry.PreviousLogHash] = true
			expectedPrev = entry.IntegrityHash
			index++
		}

		last := entries[len(entries)-1]
		cursor = &models.Checkpoint{Timestamp: last.Timestamp, ID: last.ID}
	}

	if total < 0 {
		total = index
	}
	return &models.IntegrityReport{Valid: true, TotalLogs: total}, nil
}

func brokenReport(total, index int, entry *models.AuditLogEntry, reason models.BreakReason, errMsg string) *models.IntegrityReport {
	if total < 0 {
		total = index + 1
	}
	brokenAt := index
	return &models.IntegrityReport{
		Valid:     false,
		TotalLogs: total,
		BrokenAt:  &brokenAt,
		BrokenLog: entry,
		Reason:    reason,
		Error:     errMsg,
	}
}
