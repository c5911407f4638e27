package collection

import (
	"os"
	"path/filepath"
	"testing"
)

func tempPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "people.jsonl")
}

func TestInsertMintsSequentialIntegerIDs(t *testing.T) {
	c := New("people", tempPath(t))

	if err := c.Insert(`{"name":"Alice"}`); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := c.Insert(`{"name":"Bob"}`); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	jsonArray, count, err := c.Find("{}")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if jsonArray == "[]" {
		t.Fatal("expected non-empty result array")
	}
}

func TestInsertRejectsNonObjectPayload(t *testing.T) {
	c := New("people", tempPath(t))
	if err := c.Insert(`["not", "an", "object"]`); err == nil {
		t.Error("expected error inserting a non-object payload")
	}
}

func TestInsertManyInsertsEachTopLevelObject(t *testing.T) {
	c := New("people", tempPath(t))

	n, err := c.InsertMany(`[{"name":"Alice"},{"name":"Bob","tags":{"a":1}}]`)
	if err != nil {
		t.Fatalf("InsertMany() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("InsertMany() = %d, want 2", n)
	}

	_, count, _ := c.Find("{}")
	if count != 2 {
		t.Errorf("count after InsertMany = %d, want 2", count)
	}
}

func TestFindWithFilter(t *testing.T) {
	c := New("people", tempPath(t))
	c.Insert(`{"name":"Alice","city":"London"}`)
	c.Insert(`{"name":"Bob","city":"Paris"}`)

	_, count, err := c.Find(`{"city":"Paris"}`)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestDeleteRemovesMatchingDocuments(t *testing.T) {
	c := New("people", tempPath(t))
	c.Insert(`{"name":"Alice","city":"London"}`)
	c.Insert(`{"name":"Bob","city":"London"}`)
	c.Insert(`{"name":"Carol","city":"Paris"}`)

	removed, err := c.Delete(`{"city":"London"}`)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	_, count, _ := c.Find("{}")
	if count != 1 {
		t.Errorf("remaining count = %d, want 1", count)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := tempPath(t)
	c := New("people", path)
	c.Insert(`{"name":"Alice"}`)
	c.Insert(`{"name":"Bob"}`)

	reloaded, err := Load("people", path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	_, count, _ := reloaded.Find("{}")
	if count != 2 {
		t.Errorf("reloaded count = %d, want 2", count)
	}
}

func TestLoadMissingFileIsEmptyNotError(t *testing.T) {
	c, err := Load("people", filepath.Join(t.TempDir(), "nope.jsonl"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	_, count, _ := c.Find("{}")
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestLoadResumesNextIDPastHighestIntegerID(t *testing.T) {
	path := tempPath(t)
	if err := os.WriteFile(path, []byte("{\"_id\":\"3\"}\n{\"_id\":\"7\"}\n{\"_id\":\"abc\"}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load("people", path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := c.Insert(`{"name":"New"}`); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	jsonArray, _, _ := c.Find(`{"name":"New"}`)
	if jsonArray == "[]" {
		t.Fatal("expected the new document to be findable")
	}
	// the minted id must be 8 (one past the highest integer _id, 7)
	found, _, _ := c.Find(`{"_id":"8"}`)
	if found == "[]" {
		t.Error("expected new document to have id 8")
	}
}

func TestStatsTrackCumulativeOperationCounts(t *testing.T) {
	c := New("people", tempPath(t))
	c.Insert(`{"name":"Alice"}`)
	c.Insert(`{"name":"Bob"}`)
	c.Find("{}")
	c.Delete(`{"name":"Alice"}`)

	stats := c.Stats()
	if stats.Inserts != 2 {
		t.Errorf("Inserts = %d, want 2", stats.Inserts)
	}
	if stats.Finds != 1 {
		t.Errorf("Finds = %d, want 1", stats.Finds)
	}
	if stats.Deletes != 1 {
		t.Errorf("Deletes = %d, want 1", stats.Deletes)
	}
	if stats.Scanned == 0 {
		t.Error("Scanned = 0, want > 0")
	}
}

func TestDeleteTwoPhaseDoesNotSkipEntries(t *testing.T) {
	c := New("people", tempPath(t))
	for i := 0; i < 20; i++ {
		c.Insert(`{"group":"a"}`)
	}

	removed, err := c.Delete(`{"group":"a"}`)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if removed != 20 {
		t.Errorf("removed = %d, want 20", removed)
	}
	_, count, _ := c.Find("{}")
	if count != 0 {
		t.Errorf("count after delete = %d, want 0", count)
	}
}
