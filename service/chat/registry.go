package chat

import (
	"sort"
	"sync"
)

// Registry is the authoritative in-memory map from user id to the single
// live connection for that user. Admitting a connection for a user who
// already holds one evicts the prior connection first.
//
// The onChange hook fires synchronously inside the registry lock for every
// effective mutation, so presence broadcasts are strictly ordered relative to
// the mutation that produced them. The hook must not block; delivery goes
// through non-blocking Client.Enqueue.
type Registry struct {
	mu       sync.Mutex
	byUser   map[string]*Client
	onChange func(snapshot []UserRef, conns []*Client)
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]*Client)}
}

// OnChange sets the presence broadcast hook. Call before the registry is
// shared across goroutines.
func (r *Registry) OnChange(fn func(snapshot []UserRef, conns []*Client)) {
	r.onChange = fn
}

// Admit registers c as the connection for its user, returning the evicted
// previous connection if one existed. The caller is responsible for closing
// the evicted connection; it is already removed from the registry and absent
// from the broadcast snapshot by the time Admit returns.
func (r *Registry) Admit(c *Client) (evicted *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byUser[c.UserID]; ok && prev != c {
		evicted = prev
	}
	r.byUser[c.UserID] = c
	r.notifyLocked()
	return evicted
}

// Evict removes the registry entry for userID only when c is still the
// connection on record, guarding against a stale disconnect racing a newer
// connection for the same user. Reports whether an entry was removed.
func (r *Registry) Evict(userID string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byUser[userID]
	if !ok || cur != c {
		return false
	}
	delete(r.byUser, userID)
	r.notifyLocked()
	return true
}

func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byUser[userID]
	return c, ok
}

// Snapshot returns the presence list: every registered user, sorted by
// display name then id for stable output.
func (r *Registry) Snapshot() []UserRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// All returns every live connection.
func (r *Registry) All() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connsLocked()
}

func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}

func (r *Registry) snapshotLocked() []UserRef {
	out := make([]UserRef, 0, len(r.byUser))
	for _, c := range r.byUser {
		out = append(out, UserRef{ID: c.UserID, DisplayName: c.DisplayName})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Registry) connsLocked() []*Client {
	out := make([]*Client, 0, len(r.byUser))
	for _, c := range r.byUser {
		out = append(out, c)
	}
	return out
}

func (r *Registry) notifyLocked() {
	if r.onChange == nil {
		return
	}
	r.onChange(r.snapshotLocked(), r.connsLocked())
}
