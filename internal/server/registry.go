package server

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ahinestrog/mypos/internal/checkout"
)

// entry serialises access to one session. busy is set for the whole of a
// checkout so a second submit is refused instead of queued.
type entry struct {
	mu   sync.Mutex
	busy atomic.Bool
	sess *checkout.Session
}

type registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	catalog checkout.Catalog
}

func newRegistry(catalog checkout.Catalog) *registry {
	return &registry{entries: make(map[string]*entry), catalog: catalog}
}

func (r *registry) create(employeeID int64) *entry {
	e := &entry{sess: checkout.NewSession(uuid.NewString(), employeeID, r.catalog)}
	r.mu.Lock()
	r.entries[e.sess.ID] = e
	r.mu.Unlock()
	return e
}

func (r *registry) get(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
