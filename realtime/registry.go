// Package realtime holds the live-delivery core: the connection registry,
// the presence broadcaster and the message relay.
package realtime

import (
	"chatwire/contract"
	"sync"

	"github.com/samber/lo"
)

// Registry is the authoritative mapping from identity to its live
// connections. An identity is present iff it owns at least one connection;
// removing the last connection removes the entry entirely.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]map[string]contract.Connection
	changes     chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]map[string]contract.Connection),
		changes:     make(chan struct{}, 1),
	}
}

// Register adds a connection to its identity's set, creating the entry if
// absent. Registering the same connection twice is a no-op.
func (r *Registry) Register(conn contract.Connection) {
	r.mu.Lock()
	set, ok := r.connections[conn.IdentityID()]
	if !ok {
		set = make(map[string]contract.Connection)
		r.connections[conn.IdentityID()] = set
	}
	set[conn.ID()] = conn
	r.mu.Unlock()

	r.notify()
}

// Unregister drops one connection. When the set becomes empty the identity
// entry is removed entirely to keep onlineIdentities honest. Unregistering
// an absent connection is a no-op, duplicate close events are expected.
func (r *Registry) Unregister(identityID string, connID string) {
	r.mu.Lock()
	if set, ok := r.connections[identityID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.connections, identityID)
		}
	}
	r.mu.Unlock()

	r.notify()
}

// ConnectionsFor returns a snapshot of the live connections owned by one
// identity. The result may be empty and is safe to range over without
// holding any lock.
func (r *Registry) ConnectionsFor(identityID string) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.connections[identityID])
}

// OnlineIdentities returns the identities that currently own at least one
// live connection.
func (r *Registry) OnlineIdentities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.connections)
}

// AllConnections returns every live connection across all identities.
func (r *Registry) AllConnections() []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []contract.Connection
	for _, set := range r.connections {
		conns = append(conns, lo.Values(set)...)
	}
	return conns
}

// Changes exposes the wake-up channel consumed by the presence broadcaster.
// Notifications coalesce; consumers recompute the full state on wake-up.
func (r *Registry) Changes() <-chan struct{} {
	return r.changes
}

// notify wakes the broadcaster without blocking the transport callback.
// A pending wake-up already covers this change since the broadcaster
// reads the current state, never the event.
func (r *Registry) notify() {
	select {
	case r.changes <- struct{}{}:
	default:
	}
}
