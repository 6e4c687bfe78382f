package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casetrail/casetrail/database"
	"github.com/casetrail/casetrail/models"
	"github.com/casetrail/casetrail/repositories"
)

func setupTestDB(t *testing.T) *sql.DB {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	// Initialize test database using the actual migration system
	if err := database.InitializeDatabase(dbPath); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	db := database.GetDB()
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestLogger(t *testing.T) (AuditLogger, repositories.AuditRepository) {
	repo := repositories.NewAuditRepository(setupTestDB(t))
	return NewAuditLogger(repo, AuditLoggerOptions{}), repo
}

func TestAuditLogger_GenesisProperty(t *testing.T) {
	logger, repo := newTestLogger(t)
	ctx := context.Background()

	entry, err := logger.Log(ctx, &models.AuditEvent{
		EventType:    models.EventCaseCreate,
		ResourceType: "case",
		ResourceID:   "c1",
		Action:       models.ActionCreate,
	})
	require.NoError(t, err)

	assert.Equal(t, GenesisHash, entry.PreviousLogHash, "first entry links to the genesis sentinel")
	assert.NotEmpty(t, entry.ID)
	assert.NotEmpty(t, entry.Timestamp)
	assert.True(t, entry.Success, "success defaults to true")

	// A single-entry chain verifies.
	report, err := NewAuditVerifier(repo).VerifyChain(ctx)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, 1, report.TotalLogs)
}

func TestAuditLogger_ChainsSequentialAppends(t *testing.T) {
	logger, repo := newTestLogger(t)
	ctx := context.Background()

	var entries []*models.AuditLogEntry
	for i := 0; i < 5; i++ {
		entry, err := logger.Log(ctx, &models.AuditEvent{
			EventType:    models.EventNoteCreate,
			ResourceType: "note",
			Action:       models.ActionCreate,
		})
		require.NoError(t, err)
		entries = append(entries, entry)
	}

	for i := 1; i < len(entries); i++ {
		assert.Equal(t, entries[i-1].IntegrityHash, entries[i].PreviousLogHash,
			"entry %d must link to its predecessor", i)
		assert.Less(t, entries[i-1].Timestamp, entries[i].Timestamp,
			"timestamps must be strictly increasing")
	}

	report, err := NewAuditVerifier(repo).VerifyChain(ctx)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, 5, report.TotalLogs)
}

func TestAuditLogger_RejectsInvalidEvents(t *testing.T) {
	logger, repo := newTestLogger(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		event *models.AuditEvent
	}{
		{"unknown event type", &models.AuditEvent{
			EventType: "banana.peel", Action: models.ActionCreate,
		}},
		{"missing action", &models.AuditEvent{
			EventType: models.EventCaseCreate,
		}},
		{"nested details", &models.AuditEvent{
			EventType: models.EventCaseCreate, Action: models.ActionCreate,
			Details: map[string]any{"inner": map[string]any{"x": 1}},
		}},
		{"error message on success", &models.AuditEvent{
			EventType: models.EventCaseCreate, Action: models.ActionCreate,
			ErrorMessage: strPtr("should not be here"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := logger.Log(ctx, tt.event)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidEvent)
		})
	}

	// Rejected events never reach the store.
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestAuditLogger_StorageFailureIsAuditWriteFailed(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewAuditRepository(db)
	logger := NewAuditLogger(repo, AuditLoggerOptions{})

	require.NoError(t, db.Close())

	_, err := logger.Log(context.Background(), &models.AuditEvent{
		EventType:    models.EventCaseCreate,
		ResourceType: "case",
		Action:       models.ActionCreate,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuditWriteFailed)
}

func TestAuditLogger_Blocking(t *testing.T) {
	logger, _ := newTestLogger(t)

	assert.True(t, logger.Blocking(models.EventSessionLogin))
	assert.True(t, logger.Blocking(models.EventGDPRErasure))
	assert.True(t, logger.Blocking(models.EventConsentRevoke))
	assert.True(t, logger.Blocking(models.EventEncryptionDecrypt))
	assert.False(t, logger.Blocking(models.EventCaseCreate))
	assert.False(t, logger.Blocking(models.EventNoteUpdate))
}

func TestAuditLogger_CustomFailurePolicies(t *testing.T) {
	repo := repositories.NewAuditRepository(setupTestDB(t))
	logger := NewAuditLogger(repo, AuditLoggerOptions{
		FailurePolicies: map[string]FailurePolicy{"case": PolicyBlock},
	})

	assert.True(t, logger.Blocking(models.EventCaseDelete))
	assert.False(t, logger.Blocking(models.EventSessionLogin), "unlisted classes are best-effort")
}

// Concurrent appends must produce exactly N linear entries: unique previous
// hashes, one chain, no forks.
func TestAuditLogger_ConcurrentAppendsStayLinear(t *testing.T) {
	logger, repo := newTestLogger(t)
	ctx := context.Background()

	const writers = 8
	const perWriter = 10

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := logger.Log(ctx, &models.AuditEvent{
					EventType:    models.EventEvidenceAdd,
					ResourceType: "evidence",
					Action:       models.ActionCreate,
				})
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, count)

	// No duplicate previous hashes anywhere in the chain.
	entries, err := repo.Scan(ctx, nil, writers*perWriter+1)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, entry := range entries {
		assert.False(t, seen[entry.PreviousLogHash],
			"duplicate previous hash %s indicates a fork", entry.PreviousLogHash)
		seen[entry.PreviousLogHash] = true
	}

	report, err := NewAuditVerifier(repo).VerifyChain(ctx)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, writers*perWriter, report.TotalLogs)
}

func strPtr(s string) *string { return &s }
