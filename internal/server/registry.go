package server

import "sync"

// registry is the only mutable state shared between connections. All
// operations are guarded by a single mutex; callers get snapshots, never the
// internal maps.
//
// The identity index holds at most one connection per user. A new
// registration for an already-registered identity replaces the prior entry;
// the replaced connection stays in the all-connections set but is no longer
// addressable by identity.
type registry struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	byUser  map[int64]*Client
}

func newRegistry() *registry {
	return &registry{
		clients: make(map[*Client]struct{}),
		byUser:  make(map[int64]*Client),
	}
}

// add installs a connection in the all-connections set at connect time.
func (r *registry) add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.closed = false
	r.clients[c] = struct{}{}
}

// register installs or overwrites the identity mapping for userID.
func (r *registry) register(userID int64, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = c
}

// unregister removes the connection from the all-connections set and from
// any identity slot it occupies. It reports whether the connection was still
// present; the send channel must only be closed when it was.
func (r *registry) unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c]; !ok {
		return false
	}
	delete(r.clients, c)
	c.closed = true
	// A connection that re-authenticated under a new identity can occupy
	// more than one slot; clear them all.
	for userID, registered := range r.byUser {
		if registered == c {
			delete(r.byUser, userID)
		}
	}
	return true
}

// lookup returns the current live connection for a user, if any.
func (r *registry) lookup(userID int64) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

// allAuthenticated returns a snapshot of every connection that has an
// identity attached, including connections orphaned from the identity index
// by a later registration.
func (r *registry) allAuthenticated() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	authenticated := make([]*Client, 0, len(r.byUser))
	for c := range r.clients {
		if c.Authenticated() {
			authenticated = append(authenticated, c)
		}
	}
	return authenticated
}

// snapshot returns every live connection regardless of auth state.
func (r *registry) snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// trySend enqueues a payload for a registered connection without blocking.
// It returns false when the connection is gone, closing, or its send buffer
// is full; the caller treats all three as "recipient unreachable".
//
// The read lock is held across the membership check and the channel send so
// a concurrent unregister cannot close the channel in between.
func (r *registry) trySend(c *Client, payload []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.clients[c]; !ok || c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}
