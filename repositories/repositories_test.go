package repositories

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/casetrail/casetrail/database"
	"github.com/casetrail/casetrail/models"
	_ "github.com/mattn/go-sqlite3"
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

// testEntry builds a sealed entry for direct repository tests. Hash fields
// are synthetic; chain semantics live in the services layer.
func testEntry(id, timestamp string, et models.EventType, prevHash string) *models.AuditLogEntry {
	return &models.AuditLogEntry{
		ID:              id,
		Timestamp:       timestamp,
		EventType:       et,
		ResourceType:    "case",
		ResourceID:      "c1",
		Action:          models.ActionCreate,
		Details:         map[string]any{"k": "v"},
		Success:         true,
		IntegrityHash:   "hash-" + id,
		PreviousLogHash: prevHash,
	}
}

func TestAuditRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	// Empty store: no tail, zero count.
	tail, err := repo.Tail(ctx)
	if err != nil {
		t.Fatalf("Failed to read tail of empty store: %v", err)
	}
	if tail != nil {
		t.Errorf("Expected nil tail for empty store, got %+v", tail)
	}

	// Append hands the seal callback the current tail hash.
	e1 := testEntry("id-1", "2026-08-30T10:00:00.000000000Z", models.EventCaseCreate, "genesis")
	err = repo.Append(ctx, e1, func(tailHash string) error {
		if tailHash != "" {
			t.Errorf("Expected empty tail hash for first append, got %s", tailHash)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to append first entry: %v", err)
	}

	e2 := testEntry("id-2", "2026-08-30T10:00:01.000000000Z", models.EventCaseRead, "hash-id-1")
	err = repo.Append(ctx, e2, func(tailHash string) error {
		if tailHash != "hash-id-1" {
			t.Errorf("Expected tail hash hash-id-1, got %s", tailHash)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to append second entry: %v", err)
	}

	// Tail is the most recent entry in (timestamp, id) order.
	tail, err = repo.Tail(ctx)
	if err != nil {
		t.Fatalf("Failed to read tail: %v", err)
	}
	if tail.ID != "id-2" {
		t.Errorf("Expected tail id-2, got %s", tail.ID)
	}
	if tail.Details["k"] != "v" {
		t.Errorf("Expected details round trip, got %+v", tail.Details)
	}

	// Count
	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected count 2, got %d", count)
	}

	// Scan in chain order
	entries, err := repo.Scan(ctx, nil, 10)
	if err != nil {
		t.Fatalf("Failed to scan: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "id-1" || entries[1].ID != "id-2" {
		t.Errorf("Expected ascending scan [id-1 id-2], got %+v", entries)
	}

	// Keyset scan resumes strictly after the cursor
	entries, err = repo.Scan(ctx, &models.Checkpoint{
		Timestamp: e1.Timestamp, ID: e1.ID,
	}, 10)
	if err != nil {
		t.Fatalf("Failed to scan after cursor: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "id-2" {
		t.Errorf("Expected [id-2] after cursor, got %+v", entries)
	}

	// A failing seal rolls back the whole append.
	e3 := testEntry("id-3", "2026-08-30T10:00:02.000000000Z", models.EventCaseDelete, "hash-id-2")
	sealErr := context.DeadlineExceeded
	err = repo.Append(ctx, e3, func(string) error { return sealErr })
	if err != sealErr {
		t.Errorf("Expected seal error to propagate, got %v", err)
	}
	count, _ = repo.Count(ctx)
	if count != 2 {
		t.Errorf("Expected rolled-back append to leave count 2, got %d", count)
	}
}

func TestAuditRepositoryQueryFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	alice := "alice"
	failMsg := "denied"
	seed := []*models.AuditLogEntry{
		testEntry("id-1", "2026-08-30T10:00:00.000000000Z", models.EventCaseCreate, "genesis"),
		testEntry("id-2", "2026-08-30T11:00:00.000000000Z", models.EventCaseRead, "hash-id-1"),
		testEntry("id-3", "2026-08-30T12:00:00.000000000Z", models.EventSessionLoginFailed, "hash-id-2"),
	}
	seed[1].UserID = &alice
	seed[2].UserID = &alice
	seed[2].ResourceType = "session"
	seed[2].ResourceID = ""
	seed[2].Success = false
	seed[2].ErrorMessage = &failMsg

	for _, entry := range seed {
		if err := repo.Append(ctx, entry, func(string) error { return nil }); err != nil {
			t.Fatalf("Failed to seed entry %s: %v", entry.ID, err)
		}
	}

	run := func(f models.AuditQueryFilters, wantIDs ...string) {
		t.Helper()
		f.Limit = 10
		got, err := repo.Query(ctx, &f)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(got) != len(wantIDs) {
			t.Fatalf("Expected %d entries, got %d: %+v", len(wantIDs), len(got), got)
		}
		for i, id := range wantIDs {
			if got[i].ID != id {
				t.Errorf("Expected entry %d to be %s, got %s", i, id, got[i].ID)
			}
		}
	}

	// Most recent first with no filters.
	run(models.AuditQueryFilters{}, "id-3", "id-2", "id-1")

	run(models.AuditQueryFilters{EventType: models.EventCaseRead}, "id-2")
	run(models.AuditQueryFilters{UserID: "alice"}, "id-3", "id-2")
	run(models.AuditQueryFilters{ResourceType: "case", ResourceID: "c1"}, "id-2", "id-1")

	failed := false
	run(models.AuditQueryFilters{Success: &failed}, "id-3")

	run(models.AuditQueryFilters{
		From: "2026-08-30T10:30:00.000000000Z",
		To:   "2026-08-30T11:30:00.000000000Z",
	}, "id-2")

	// Pagination
	paged, err := repo.Query(ctx, &models.AuditQueryFilters{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Paged query failed: %v", err)
	}
	if len(paged) != 1 || paged[0].ID != "id-2" {
		t.Errorf("Expected page [id-2], got %+v", paged)
	}
}

func TestAuditRepositoryRowsAreImmutable(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	entry := testEntry("id-1", "2026-08-30T10:00:00.000000000Z", models.EventCaseCreate, "genesis")
	if err := repo.Append(ctx, entry, func(string) error { return nil }); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	if _, err := db.Exec("UPDATE audit_log SET success = 0 WHERE id = 'id-1'"); err == nil {
		t.Error("Expected UPDATE on audit_log to be rejected by trigger")
	}
	if _, err := db.Exec("DELETE FROM audit_log WHERE id = 'id-1'"); err == nil {
		t.Error("Expected DELETE on audit_log to be rejected by trigger")
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected entry to survive, got count %d", count)
	}
}

func TestCaseRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCaseRepository(db)
	ctx := context.Background()

	c := &models.Case{
		ID:      "case-1",
		Title:   "Test Case",
		Status:  models.CaseStatusOpen,
		OwnerID: "owner-1",
	}

	// Test Create
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Failed to create case: %v", err)
	}
	if c.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set after creation")
	}

	// Test GetByID
	retrieved, err := repo.GetByID(ctx, "case-1")
	if err != nil {
		t.Fatalf("Failed to get case by ID: %v", err)
	}
	if retrieved.Title != c.Title {
		t.Errorf("Expected title %s, got %s", c.Title, retrieved.Title)
	}

	// Test Update
	c.Title = "Updated Title"
	c.Status = models.CaseStatusClosed
	if err := repo.Update(ctx, c); err != nil {
		t.Fatalf("Failed to update case: %v", err)
	}
	updated, err := repo.GetByID(ctx, "case-1")
	if err != nil {
		t.Fatalf("Failed to get updated case: %v", err)
	}
	if updated.Title != "Updated Title" || updated.Status != models.CaseStatusClosed {
		t.Errorf("Expected updated case, got %+v", updated)
	}

	// Test GetByOwner
	owned, err := repo.GetByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Failed to get cases by owner: %v", err)
	}
	if len(owned) != 1 {
		t.Errorf("Expected 1 owned case, got %d", len(owned))
	}

	// Test DeleteByOwner
	deleted, err := repo.DeleteByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Failed to delete cases by owner: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted case, got %d", deleted)
	}

	// Verify deletion
	if _, err := repo.GetByID(ctx, "case-1"); err == nil {
		t.Error("Expected error when getting deleted case")
	}
}
