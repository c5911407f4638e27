// Package collection implements the unit of storage the registry hands out
// to the request handler: one named document set backed by a store.Store
// and a single on-disk file, serialized end to end by one lock so that a
// find can never observe a document mid-insert and a delete's two-phase
// scan-then-remove can never race against a concurrent insert.
//
// Collections materialize lazily. A collection named in a request that has
// never been touched before is created empty in memory on first reference;
// its backing file is only created on the first Save.
package collection

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dreamware/linedb/internal/applog"
	"github.com/dreamware/linedb/internal/document"
	"github.com/dreamware/linedb/internal/jsonscan"
	"github.com/dreamware/linedb/internal/query"
	"github.com/dreamware/linedb/internal/store"
)

// Stats holds cumulative operation counters for a collection. All fields are
// updated atomically and are safe to read without holding the collection's
// lock.
type Stats struct {
	Inserts uint64
	Finds   uint64
	Deletes uint64
	Scanned uint64
}

// Collection is one named document set. Insert, InsertMany, Find, Delete and
// Save take the collection's lock — a find holds it for the scan, a delete
// holds it across both the collect and the remove phase, so the store is
// never observed in a half-completed mutation. Find and Delete parse their
// filter before taking the lock. Stats, DocumentCount, StoreCapacity and Name
// do not take it.
//
// The zero value is not usable; construct one with New or Load.
type Collection struct {
	mu     sync.Mutex
	name   string
	path   string
	store  *store.Store
	nextID int64

	inserts uint64
	finds   uint64
	deletes uint64
	scanned uint64
}

// New creates an empty, not-yet-persisted collection. path is the file it
// will be written to and read from on Load/Save.
func New(name, path string) *Collection {
	return &Collection{name: name, path: path, store: store.New(), nextID: 1}
}

// Stats returns a snapshot of the collection's cumulative operation
// counters.
func (c *Collection) Stats() Stats {
	return Stats{
		Inserts: atomic.LoadUint64(&c.inserts),
		Finds:   atomic.LoadUint64(&c.finds),
		Deletes: atomic.LoadUint64(&c.deletes),
		Scanned: atomic.LoadUint64(&c.scanned),
	}
}

// DocumentCount returns the number of documents currently stored. Safe to
// call without holding the collection's lock; delegates to the store's own
// synchronization.
func (c *Collection) DocumentCount() int {
	return c.store.Size()
}

// StoreCapacity returns the current bucket array capacity of the
// underlying store, useful for observing rehash events from outside.
func (c *Collection) StoreCapacity() int {
	return c.store.Capacity()
}

// Load populates c from its backing file, one document per line. A missing
// file is not an error — it means the collection has never been saved, and
// Load leaves c empty with nextID starting at 1. nextID is set to one past
// the largest integer-valued _id encountered; documents whose _id does not
// parse as an integer do not influence it.
func Load(name, path string) (*Collection, error) {
	c := New(name, path)

	data, err := os.ReadFile(path)
	if err != nil {
		// A missing file means the collection has never been saved; any
		// other read failure (permissions, a transient I/O error) is
		// treated the same way rather than surfaced to the caller — the
		// collection simply starts empty with nextID at 1.
		return c, nil
	}

	var maxID int64
	haveMaxID := false
	for _, line := range strings.Split(string(data), "\n") {
		line = jsonscan.Trim(line)
		if line == "" {
			continue
		}
		doc, err := document.Deserialize(line)
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", name, err)
		}
		c.store.Put(doc.ID(), doc)
		if jsonscan.IsInteger(doc.ID()) {
			n := jsonscan.ParseInt(doc.ID())
			if !haveMaxID || n > maxID {
				maxID = n
				haveMaxID = true
			}
		}
	}
	if haveMaxID {
		c.nextID = maxID + 1
	}
	return c, nil
}

// Name returns the collection's name.
func (c *Collection) Name() string {
	return c.name
}

// Insert mints a new integer id, splices it into docJSON as the document's
// _id, deserializes the result, stores it, and persists the collection.
// docJSON must be a single JSON object; use InsertMany for an array.
func (c *Collection) Insert(docJSON string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertLocked(docJSON)
}

// InsertMany inserts every top-level object in a JSON array, in order,
// persisting once after all of them have been applied. It returns the
// number of documents inserted. A parse failure partway through the array (an
// element that is not a well-formed object, or a document that does not
// deserialize) is returned as an error; documents already inserted before the
// failing element keep their place in the store and are persisted anyway
// (the source commits whatever it parsed — there is no rollback).
func (c *Collection) InsertMany(arrayJSON string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	objTexts, splitErr := splitTopLevelObjects(arrayJSON)
	if splitErr != nil && len(objTexts) == 0 {
		return 0, splitErr
	}
	for i, objText := range objTexts {
		if err := c.insertOneLocked(objText); err != nil {
			c.saveLoggedLocked()
			return i, err
		}
	}
	c.saveLoggedLocked()
	return len(objTexts), splitErr
}

// insertLocked mints an id, splices it in, stores the document, and saves.
// A save failure is logged and does not fail the insert — the document is
// already durably applied to the in-memory store. Callers must hold c.mu.
func (c *Collection) insertLocked(docJSON string) error {
	if err := c.insertOneLocked(docJSON); err != nil {
		return err
	}
	c.saveLoggedLocked()
	return nil
}

// insertOneLocked mints an id, splices it into docJSON, deserializes, and
// stores the resulting document, without persisting. Callers must hold c.mu.
func (c *Collection) insertOneLocked(docJSON string) error {
	id := c.nextID

	s := jsonscan.Trim(docJSON)
	if len(s) < 1 || s[0] != '{' {
		return fmt.Errorf("collection %s: insert payload is not an object: %q", c.name, docJSON)
	}
	withID := `{"_id":"` + strconv.FormatInt(id, 10) + `",` + s[1:]

	doc, err := document.Deserialize(withID)
	if err != nil {
		return fmt.Errorf("collection %s: %w", c.name, err)
	}
	c.nextID++
	c.store.Put(doc.ID(), doc)
	atomic.AddUint64(&c.inserts, 1)
	return nil
}

// saveLoggedLocked persists the collection, logging (not returning) any
// I/O failure: a save that fails leaves the in-memory state as the only
// copy of the mutation, but the caller's operation is still reported as a
// success, matching the documented recovery behaviour for this error kind.
// Callers must hold c.mu.
func (c *Collection) saveLoggedLocked() {
	if err := c.saveLocked(); err != nil {
		applog.WithComponent("collection").Warn().Err(err).Str("database", c.name).Msg("save failed, in-memory state retained")
	}
}

// Find evaluates filterJSON against every document and returns the matches
// serialized as a JSON array, plus the match count.
func (c *Collection) Find(filterJSON string) (jsonArray string, count int, err error) {
	pred, err := query.Parse(filterJSON)
	if err != nil {
		return "", 0, fmt.Errorf("collection %s: %w", c.name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	b.WriteByte('[')
	first := true
	var scanned int
	c.store.Scan(func(doc *document.Document) {
		scanned++
		if !pred.Match(doc) {
			return
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(doc.Serialize())
		count++
	})
	b.WriteByte(']')
	atomic.AddUint64(&c.finds, 1)
	atomic.AddUint64(&c.scanned, uint64(scanned))
	return b.String(), count, nil
}

// Delete removes every document matching filterJSON and persists the
// collection, returning the number removed. Matching runs as a full scan
// collecting ids first, then a second pass removes each one — the store is
// never mutated while Scan is iterating it.
func (c *Collection) Delete(filterJSON string) (int, error) {
	pred, err := query.Parse(filterJSON)
	if err != nil {
		return 0, fmt.Errorf("collection %s: %w", c.name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var matched []string
	c.store.Scan(func(doc *document.Document) {
		if pred.Match(doc) {
			matched = append(matched, doc.ID())
		}
	})
	for _, id := range matched {
		c.store.Remove(id)
	}
	atomic.AddUint64(&c.deletes, uint64(len(matched)))
	c.saveLoggedLocked()
	return len(matched), nil
}

// Save rewrites the collection's backing file from the current store
// contents, creating the containing folder if it does not exist.
func (c *Collection) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

func (c *Collection) saveLocked() error {
	dir := filepath.Dir(c.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("collection %s: %w", c.name, err)
		}
	}

	var b strings.Builder
	c.store.Scan(func(doc *document.Document) {
		b.WriteString(doc.Serialize())
		b.WriteByte('\n')
	})

	if err := os.WriteFile(c.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("collection %s: %w", c.name, err)
	}
	return nil
}

// splitTopLevelObjects extracts the raw text of each top-level object in a
// JSON array, using brace matching so a nested array or object inside one
// element never confuses the boundary of the next. When an element is not an
// object or is unbalanced, the objects before it are returned together with
// the error.
func splitTopLevelObjects(arrayJSON string) ([]string, error) {
	s := jsonscan.Trim(arrayJSON)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("insert payload is not an array: %q", arrayJSON)
	}

	var out []string
	i, end := 1, len(s)-1
	for i < end {
		for i < end && isSkip(s[i]) {
			i++
		}
		if i >= end {
			break
		}
		if s[i] != '{' {
			return out, fmt.Errorf("expected object in insert array at position %d", i)
		}
		close, ok := jsonscan.FindMatchingClose(s, i)
		if !ok {
			return out, fmt.Errorf("unbalanced object in insert array")
		}
		out = append(out, s[i:close+1])
		i = close + 1
	}
	return out, nil
}

func isSkip(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == ','
}
