package api

import (
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/canopysoft/atrium/pkg/roles"
)

// sessionEntry binds an open edit session to the user who opened it. Only
// that user may drive or save the session.
type sessionEntry struct {
	session *roles.EditSession
	ownerID int64
}

// EditSessionRegistry holds open role edit sessions server-side, keyed by an
// opaque session id handed to the client. Entries expire after the TTL so
// abandoned edits do not accumulate.
type EditSessionRegistry struct {
	entries *lru.LRU[string, *sessionEntry]
}

// NewEditSessionRegistry creates a registry holding at most size sessions,
// each expiring after ttl of inactivity since creation.
func NewEditSessionRegistry(size int, ttl time.Duration) *EditSessionRegistry {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &EditSessionRegistry{
		entries: lru.NewLRU[string, *sessionEntry](size, nil, ttl),
	}
}

// Put registers an edit session for the given owner and returns its id.
func (r *EditSessionRegistry) Put(session *roles.EditSession, ownerID int64) string {
	id := uuid.New().String()
	r.entries.Add(id, &sessionEntry{session: session, ownerID: ownerID})
	return id
}

// Get returns the session for id if it exists and belongs to ownerID.
func (r *EditSessionRegistry) Get(id string, ownerID int64) (*roles.EditSession, bool) {
	entry, ok := r.entries.Get(id)
	if !ok || entry.ownerID != ownerID {
		return nil, false
	}
	return entry.session, true
}

// Remove drops the session for id, if present.
func (r *EditSessionRegistry) Remove(id string) {
	r.entries.Remove(id)
}

// Len reports how many sessions are currently open.
func (r *EditSessionRegistry) Len() int {
	return r.entries.Len()
}
