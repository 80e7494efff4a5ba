// Package registry tracks every open push connection in this process.
//
// The registry is the only structure mutated by independent connection
// lifecycles, so register/unregister/list are guarded by a single mutex.
// Entries are never persisted: a process restart loses them all and clients
// reconnect, triggering fresh registration.
package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/signcast/internal/metrics"
)

// Scope classifies a connection for event routing.
type Scope string

const (
	ScopeConsole Scope = "console"
	ScopeDisplay Scope = "display"
)

// Sender is the write side of a push connection. TrySend must never block;
// it reports false when the connection's buffer is full. StopGraceful sends
// a close frame with reason before closing, Stop tears down without one.
type Sender interface {
	TrySend(data []byte) bool
	Stop()
	StopGraceful(reason string)
}

// Connection is a registered push connection. Fields other than the
// counters are immutable after registration.
type Connection struct {
	ID       uuid.UUID
	Scope    Scope
	Display  string // display identity, empty for console connections
	OpenedAt time.Time
	Sender   Sender

	eventsSent   atomic.Int64
	lastActivity atomic.Int64 // unix nanos
}

// EventsSent returns how many events have been enqueued on this connection.
func (c *Connection) EventsSent() int64 { return c.eventsSent.Load() }

// LastActivityAt returns the time of the last enqueued event, or OpenedAt
// if nothing has been sent yet.
func (c *Connection) LastActivityAt() time.Time {
	if ns := c.lastActivity.Load(); ns != 0 {
		return time.Unix(0, ns)
	}
	return c.OpenedAt
}

// MarkSent records a successful enqueue at the given time.
func (c *Connection) MarkSent(at time.Time) {
	c.eventsSent.Add(1)
	c.lastActivity.Store(at.UnixNano())
}

// Counts is the stats contract consumed by the monitoring surface. The
// JSON field names are part of the contract and must not be renamed
// without a contract version bump.
type Counts struct {
	Console int `json:"console"`
	Display int `json:"display"`
}

// Filter selects a subset of connections. Zero values match everything;
// Display implies ScopeDisplay.
type Filter struct {
	Scope   Scope
	Display string
}

// Registry is a process-local table of open push connections, indexed by
// id and by display identity so common routing lookups avoid linear scans.
type Registry struct {
	clock clockwork.Clock

	mu        sync.RWMutex
	byID      map[uuid.UUID]*Connection
	byDisplay map[string]map[uuid.UUID]*Connection
	consoles  map[uuid.UUID]*Connection
}

func New(clock clockwork.Clock) *Registry {
	return &Registry{
		clock:     clock,
		byID:      make(map[uuid.UUID]*Connection),
		byDisplay: make(map[string]map[uuid.UUID]*Connection),
		consoles:  make(map[uuid.UUID]*Connection),
	}
}

// Register adds a connection and returns its registry entry. display is
// ignored for console connections.
func (r *Registry) Register(scope Scope, display string, sender Sender) *Connection {
	conn := &Connection{
		ID:       uuid.New(),
		Scope:    scope,
		OpenedAt: r.clock.Now(),
		Sender:   sender,
	}
	if scope == ScopeDisplay {
		conn.Display = display
	}

	r.mu.Lock()
	r.byID[conn.ID] = conn
	switch scope {
	case ScopeConsole:
		r.consoles[conn.ID] = conn
	case ScopeDisplay:
		conns, ok := r.byDisplay[conn.Display]
		if !ok {
			conns = make(map[uuid.UUID]*Connection)
			r.byDisplay[conn.Display] = conns
		}
		conns[conn.ID] = conn
	}
	r.mu.Unlock()

	metrics.ConnectionsOpen.WithLabelValues(string(scope)).Inc()
	metrics.ConnectionsTotal.WithLabelValues(string(scope)).Inc()
	return conn
}

// Unregister removes a connection. Unknown ids are a no-op: races between
// client-initiated disconnect and server-initiated cleanup are expected.
func (r *Registry) Unregister(id uuid.UUID) {
	r.mu.Lock()
	conn, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.byID, id)
	switch conn.Scope {
	case ScopeConsole:
		delete(r.consoles, id)
	case ScopeDisplay:
		if conns, ok := r.byDisplay[conn.Display]; ok {
			delete(conns, id)
			if len(conns) == 0 {
				delete(r.byDisplay, conn.Display)
			}
		}
	}
	r.mu.Unlock()

	metrics.ConnectionsOpen.WithLabelValues(string(conn.Scope)).Dec()
}

// Get returns a connection by id.
func (r *Registry) Get(id uuid.UUID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byID[id]
	return conn, ok
}

// List returns a snapshot of connections matching the filter. The snapshot
// reflects every registration completed before the call and none removed
// before it.
func (r *Registry) List(f Filter) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if f.Display != "" {
		conns := r.byDisplay[f.Display]
		out := make([]*Connection, 0, len(conns))
		for _, c := range conns {
			out = append(out, c)
		}
		return out
	}

	switch f.Scope {
	case ScopeConsole:
		out := make([]*Connection, 0, len(r.consoles))
		for _, c := range r.consoles {
			out = append(out, c)
		}
		return out
	case ScopeDisplay:
		var out []*Connection
		for _, conns := range r.byDisplay {
			for _, c := range conns {
				out = append(out, c)
			}
		}
		return out
	default:
		out := make([]*Connection, 0, len(r.byID))
		for _, c := range r.byID {
			out = append(out, c)
		}
		return out
	}
}

// CountByScope returns exact open-connection counts partitioned by scope.
func (r *Registry) CountByScope() Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Counts{
		Console: len(r.consoles),
		Display: len(r.byID) - len(r.consoles),
	}
}

// CloseAll stops every sender and empties the registry.
func (r *Registry) CloseAll() {
	for _, c := range r.drain() {
		c.Sender.Stop()
		metrics.ConnectionsOpen.WithLabelValues(string(c.Scope)).Dec()
	}
}

// CloseAllGraceful empties the registry and stops every sender with a close
// frame carrying reason. Used during server shutdown so clients can tell a
// restart from a network drop.
func (r *Registry) CloseAllGraceful(reason string) {
	for _, c := range r.drain() {
		c.Sender.StopGraceful(reason)
		metrics.ConnectionsOpen.WithLabelValues(string(c.Scope)).Dec()
	}
}

func (r *Registry) drain() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]*Connection, 0, len(r.byID))
	for _, c := range r.byID {
		conns = append(conns, c)
	}
	r.byID = make(map[uuid.UUID]*Connection)
	r.byDisplay = make(map[string]map[uuid.UUID]*Connection)
	r.consoles = make(map[uuid.UUID]*Connection)
	return conns
}
