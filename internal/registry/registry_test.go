package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetCreatesCollectionLazily(t *testing.T) {
	r := New(t.TempDir())

	c, err := r.Get("people")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if c.Name() != "people" {
		t.Errorf("Name() = %q, want people", c.Name())
	}
}

func TestGetReturnsSameSlotOnRepeatedCalls(t *testing.T) {
	r := New(t.TempDir())

	first, err := r.Get("people")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	first.Insert(`{"name":"Alice"}`)

	second, err := r.Get("people")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if first != second {
		t.Fatal("Get() returned a different Collection instance for the same name")
	}

	_, count, _ := second.Find("{}")
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestGetLoadsExistingFileOnFirstReference(t *testing.T) {
	folder := t.TempDir()
	path := filepath.Join(folder, "people.json")
	if err := os.WriteFile(path, []byte(`{"_id":"1","name":"Alice"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New(folder)
	c, err := r.Get("people")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	_, count, _ := c.Find("{}")
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestNamesAndCollectionsReflectMaterializedSlots(t *testing.T) {
	r := New(t.TempDir())
	r.Get("people")
	r.Get("orders")

	names := r.Names()
	if len(names) != 2 {
		t.Fatalf("Names() = %v, want 2 entries", names)
	}

	cols := r.Collections()
	if len(cols) != 2 {
		t.Fatalf("Collections() returned %d entries, want 2", len(cols))
	}
}

func TestSeparateDatabasesGetSeparateFiles(t *testing.T) {
	folder := t.TempDir()
	r := New(folder)

	people, _ := r.Get("people")
	orders, _ := r.Get("orders")
	people.Insert(`{"name":"Alice"}`)
	orders.Insert(`{"item":"widget"}`)

	if _, err := os.Stat(filepath.Join(folder, "people.json")); err != nil {
		t.Errorf("people.json not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(folder, "orders.json")); err != nil {
		t.Errorf("orders.json not created: %v", err)
	}
}
