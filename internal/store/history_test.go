package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/yahel-nav/yahel/internal/database"
	"github.com/yahel-nav/yahel/internal/model"
)

func setupHistoryTestDB(t *testing.T) *HistoryStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewHistoryStore(db)
}

func entry(id, userID string, at time.Time) model.HistoryEntry {
	return model.HistoryEntry{
		ID:                id,
		UserID:            userID,
		Title:             "title " + id,
		Body:              "body",
		Category:          model.CategoryGeneral,
		DeliveryTimestamp: at,
	}
}

func TestRecordAndListNewestFirst(t *testing.T) {
	hs := setupHistoryTestDB(t)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := hs.Record(entry(fmt.Sprintf("e%d", i), "alice", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	entries, err := hs.ListByUser("alice", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].ID != "e2" || entries[2].ID != "e0" {
		t.Errorf("order = [%s %s %s], want newest first", entries[0].ID, entries[1].ID, entries[2].ID)
	}
}

func TestRecordTrimsToBound(t *testing.T) {
	hs := setupHistoryTestDB(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < maxHistoryPerUser+5; i++ {
		if err := hs.Record(entry(fmt.Sprintf("e%d", i), "alice", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	entries, err := hs.ListByUser("alice", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != maxHistoryPerUser {
		t.Errorf("entries = %d, want trim to %d", len(entries), maxHistoryPerUser)
	}
	// The oldest rows are the ones trimmed.
	if entries[len(entries)-1].ID != "e5" {
		t.Errorf("oldest surviving = %s, want e5", entries[len(entries)-1].ID)
	}
}

func TestListRespectsLimit(t *testing.T) {
	hs := setupHistoryTestDB(t)
	base := time.Now().UTC()

	for i := 0; i < 10; i++ {
		hs.Record(entry(fmt.Sprintf("e%d", i), "alice", base.Add(time.Duration(i)*time.Second)))
	}

	entries, _ := hs.ListByUser("alice", 4)
	if len(entries) != 4 {
		t.Errorf("entries = %d, want 4", len(entries))
	}
}

func TestHistoryIsPerUser(t *testing.T) {
	hs := setupHistoryTestDB(t)
	now := time.Now().UTC()

	hs.Record(entry("a1", "alice", now))
	hs.Record(entry("b1", "bob", now))

	entries, _ := hs.ListByUser("alice", 10)
	if len(entries) != 1 || entries[0].ID != "a1" {
		t.Errorf("alice entries = %+v", entries)
	}
}

func TestCleanupRemovesOldEntries(t *testing.T) {
	hs := setupHistoryTestDB(t)
	now := time.Now().UTC()

	hs.Record(entry("old", "alice", now.Add(-48*time.Hour)))
	hs.Record(entry("new", "alice", now))

	if err := hs.Cleanup(now.Add(-24 * time.Hour)); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	entries, _ := hs.ListByUser("alice", 10)
	if len(entries) != 1 || entries[0].ID != "new" {
		t.Errorf("entries = %+v, want only the new one", entries)
	}
}
