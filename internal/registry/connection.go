// Package registry implements C7: the in-process index of live client
// sessions, keyed by session id with secondary indexes by tenant and user,
// grounded on the filipexyz-notif Hub/Client pattern
// (other_examples/e5bb7340_filipexyz-notif__internal-websocket-client.go.go)
// generalized from a single NATS-subscription client into a
// transport-agnostic session record shared by the SSE and WebSocket
// adapters.
package registry

import (
	"sync"
	"time"
)

// Transport identifies which adapter owns a session's wire framing.
type Transport string

const (
	TransportSSE       Transport = "sse"
	TransportWebSocket Transport = "websocket"
)

const wildcardSubscription = "all"

// Sender is the half of a transport adapter the registry needs: enough to
// push a frame and tear a session down. SSE and WebSocket each implement
// this against their own connection.
type Sender interface {
	Send(frame []byte) error
	Close(reason string)
}

// Connection is one live client session (C3.5).
type Connection struct {
	SessionID   string
	UserID      string
	TenantID    string
	Transport   Transport
	ConnectedAt time.Time

	// mu guards every field below: a session can be subscribed to more than
	// one topic, so two notifier topic goroutines may dispatch to the same
	// *Connection concurrently, alongside the registry's own reap/health
	// reads. This is the per-connection slice of the §5 single-writer
	// discipline; the registry-wide RWMutex only protects the index maps.
	mu              sync.Mutex
	lastActivityAt  time.Time
	missedHeartbeat int
	subscriptions   map[string]struct{}
	sender          Sender
}

// NewConnection constructs a Connection ready to be admitted by Add.
func NewConnection(sessionID, userID, tenantID string, transport Transport, subscriptions []string, sender Sender) *Connection {
	now := time.Now().UTC()
	subs := make(map[string]struct{}, len(subscriptions))
	for _, s := range subscriptions {
		subs[s] = struct{}{}
	}
	return &Connection{
		SessionID:      sessionID,
		UserID:         userID,
		TenantID:       tenantID,
		Transport:      transport,
		ConnectedAt:    now,
		lastActivityAt: now,
		subscriptions:  subs,
		sender:         sender,
	}
}

// Subscribes reports whether this connection wants eventType, either
// directly or via the wildcard "all" subscription.
func (c *Connection) Subscribes(eventType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subscriptions[wildcardSubscription]; ok {
		return true
	}
	_, ok := c.subscriptions[eventType]
	return ok
}

// SetSubscriptions replaces the subscription set wholesale (the WebSocket
// "subscribe" control message semantics: it replaces, not merges).
func (c *Connection) SetSubscriptions(subscriptions []string) {
	subs := make(map[string]struct{}, len(subscriptions))
	for _, s := range subscriptions {
		subs[s] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions = subs
}

// Touch resets the idle clock and missed-heartbeat counter: receipt of any
// frame (event, ping/pong, client control message) counts as activity.
func (c *Connection) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivityAt = time.Now().UTC()
	c.missedHeartbeat = 0
}

// MissHeartbeat increments the missed-heartbeat counter; at 3 the
// connection is unhealthy.
func (c *Connection) MissHeartbeat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.missedHeartbeat++
}

// Unhealthy reports whether the connection has missed too many heartbeats.
func (c *Connection) Unhealthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.missedHeartbeat >= 3
}

// Idle reports whether the connection has been silent longer than maxIdle.
func (c *Connection) Idle(maxIdle time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastActivityAt) > maxIdle
}

// Send writes one frame through the owning transport adapter.
func (c *Connection) Send(frame []byte) error {
	return c.sender.Send(frame)
}

// Close tears down the underlying transport with reason.
func (c *Connection) Close(reason string) {
	c.sender.Close(reason)
}
