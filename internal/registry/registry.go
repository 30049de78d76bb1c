package registry

import (
	"sync"
	"time"

	"github.com/arc-self/eventcore/internal/envelope"
)

// Limits caps session admission per §5.
type Limits struct {
	MaxPerUser   int
	MaxPerTenant int
}

// Registry is C7: a single in-process owner for live sessions. Mutating
// operations (Add, Remove, SetSubscriptions, ReapStale) serialize on one
// writer lock; lookups run as concurrent readers. No shared mutable map is
// exposed across components — callers only ever see copied slices of
// *Connection.
type Registry struct {
	mu sync.RWMutex

	limits Limits

	bySession map[string]*Connection
	byTenant  map[string]map[string]*Connection // tenant -> session -> conn
	byUser    map[string]map[string]*Connection // user -> session -> conn
}

func New(limits Limits) *Registry {
	return &Registry{
		limits:    limits,
		bySession: make(map[string]*Connection),
		byTenant:  make(map[string]map[string]*Connection),
		byUser:    make(map[string]map[string]*Connection),
	}
}

// Add admits conn, rejecting it if the per-user or per-tenant cap would be
// exceeded. Returns false when the connection was rejected; the caller
// (transport adapter) is responsible for closing the underlying socket.
func (r *Registry) Add(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.limits.MaxPerUser > 0 && len(r.byUser[conn.UserID]) >= r.limits.MaxPerUser {
		return false
	}
	if r.limits.MaxPerTenant > 0 && len(r.byTenant[conn.TenantID]) >= r.limits.MaxPerTenant {
		return false
	}

	r.bySession[conn.SessionID] = conn

	if r.byTenant[conn.TenantID] == nil {
		r.byTenant[conn.TenantID] = make(map[string]*Connection)
	}
	r.byTenant[conn.TenantID][conn.SessionID] = conn

	if r.byUser[conn.UserID] == nil {
		r.byUser[conn.UserID] = make(map[string]*Connection)
	}
	r.byUser[conn.UserID][conn.SessionID] = conn

	return true
}

// Remove drops a session from every index. Safe to call more than once.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(sessionID)
}

func (r *Registry) removeLocked(sessionID string) {
	conn, ok := r.bySession[sessionID]
	if !ok {
		return
	}
	delete(r.bySession, sessionID)
	if m := r.byTenant[conn.TenantID]; m != nil {
		delete(m, sessionID)
		if len(m) == 0 {
			delete(r.byTenant, conn.TenantID)
		}
	}
	if m := r.byUser[conn.UserID]; m != nil {
		delete(m, sessionID)
		if len(m) == 0 {
			delete(r.byUser, conn.UserID)
		}
	}
}

// LookupByTenant returns a snapshot of all sessions for tenantID.
func (r *Registry) LookupByTenant(tenantID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.byTenant[tenantID])
}

// LookupByUser returns a snapshot of all sessions for userID.
func (r *Registry) LookupByUser(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.byUser[userID])
}

func snapshot(m map[string]*Connection) []*Connection {
	out := make([]*Connection, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

// SelectRecipients returns every connection eligible to receive e: the
// tenant gate is mandatory (only sessions whose TenantID matches e.TenantID
// are considered), and within that set a connection is a recipient iff it
// subscribes to e.Event or the wildcard "all".
func (r *Registry) SelectRecipients(e *envelope.Envelope) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tenantConns := r.byTenant[e.TenantID]
	out := make([]*Connection, 0, len(tenantConns))
	for _, c := range tenantConns {
		if c.Subscribes(string(e.Event)) {
			out = append(out, c)
		}
	}
	return out
}

// SetSubscriptions replaces a session's subscription set.
func (r *Registry) SetSubscriptions(sessionID string, subscriptions []string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.bySession[sessionID]
	if !ok {
		return false
	}
	conn.SetSubscriptions(subscriptions)
	return true
}

// MarkUnhealthy removes sessionID if it has missed too many heartbeats,
// returning the closed connection (for the caller to invoke Close on,
// outside the lock) or nil if the session was healthy or absent.
func (r *Registry) MarkUnhealthy(sessionID string) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.bySession[sessionID]
	if !ok || !conn.Unhealthy() {
		return nil
	}
	r.removeLocked(sessionID)
	return conn
}

// ReapStale drops and returns every session idle longer than maxIdle or
// already unhealthy, so the caller can close their sockets.
func (r *Registry) ReapStale(maxIdle time.Duration) []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []*Connection
	for id, c := range r.bySession {
		if c.Idle(maxIdle) || c.Unhealthy() {
			stale = append(stale, c)
			r.removeLocked(id)
		}
	}
	return stale
}

// Len reports the total number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySession)
}
