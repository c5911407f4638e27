// Package registry implements the process-wide mapping from database name
// to collection, materializing each collection lazily the first time its
// name is referenced by a request.
//
// The registry's own lock covers only the lookup-or-create step. Once a
// collection slot has been returned to a caller, all further serialization
// for that collection happens inside collection.Collection itself — the
// registry is never held while a find, insert, or delete runs, so two
// requests against different databases never contend on the registry lock.
package registry

import (
	"path/filepath"
	"sync"

	"github.com/dreamware/linedb/internal/collection"
)

// Registry holds one collection per database name for the lifetime of the
// process. A name, once materialized, is never evicted.
type Registry struct {
	mu     sync.Mutex
	folder string
	slots  map[string]*collection.Collection
}

// New creates a registry that stores each collection's backing file under
// folder, named "<name>.json".
func New(folder string) *Registry {
	return &Registry{
		folder: folder,
		slots:  make(map[string]*collection.Collection),
	}
}

// Get returns the collection for name, creating and loading it from disk on
// first reference. Concurrent first-references to the same unseen name are
// serialized by the registry lock, so exactly one Collection is ever
// created for a given name.
func (r *Registry) Get(name string) (*collection.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.slots[name]; ok {
		return c, nil
	}

	c, err := collection.Load(name, r.pathFor(name))
	if err != nil {
		return nil, err
	}
	r.slots[name] = c
	return c, nil
}

// Names returns the names of every collection materialized so far, in no
// particular order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.slots))
	for name := range r.slots {
		names = append(names, name)
	}
	return names
}

// Collections returns a snapshot of every materialized collection, in no
// particular order, taken under one acquisition of the registry lock.
func (r *Registry) Collections() []*collection.Collection {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*collection.Collection, 0, len(r.slots))
	for _, c := range r.slots {
		out = append(out, c)
	}
	return out
}

func (r *Registry) pathFor(name string) string {
	return filepath.Join(r.folder, name+".json")
}
