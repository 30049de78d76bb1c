// Package transport implements C9: the SSE and WebSocket framing adapters
// that share the registry.Sender contract, grounded on the teacher's
// chi-handler style for the HTTP side and the filipexyz-notif
// read/write-pump pattern
// (other_examples/e5bb7340_filipexyz-notif__internal-websocket-client.go.go)
// for the WebSocket side.
package transport

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/arc-self/eventcore/internal/envelope"
)

// SSEConn adapts an http.ResponseWriter/http.Flusher pair to the
// registry.Sender contract. Send is called both from the handler's request
// goroutine (connected and heartbeat frames) and from the notifier's
// dispatch tasks, so a mutex serializes the writes.
type SSEConn struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	done    chan struct{}
	once    sync.Once
}

// NewSSEConn prepares an SSE response: sets the streaming headers and
// disables proxy buffering. Callers must have already verified
// authentication before calling this — it does not do so itself.
func NewSSEConn(w http.ResponseWriter) (*SSEConn, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("transport: response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx proxy buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEConn{w: w, flusher: flusher, done: make(chan struct{})}, nil
}

// Send writes one `event: <type>\ndata: <json>\n\n` frame.
func (c *SSEConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return fmt.Errorf("transport: sse connection closed")
	default:
	}
	if _, err := c.w.Write(frame); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

// Close marks the connection done; the handler goroutine observes Done()
// and returns, ending the HTTP response.
func (c *SSEConn) Close(reason string) {
	c.once.Do(func() { close(c.done) })
}

// Done is closed once the connection should terminate.
func (c *SSEConn) Done() <-chan struct{} { return c.done }

// EncodeEventFrame renders payload as the wire frame format `event: <type>\ndata:
// <payload>\n\n` (§4.7).
func EncodeEventFrame(eventType string, payload []byte) []byte {
	buf := make([]byte, 0, len(payload)+len(eventType)+16)
	buf = append(buf, "event: "...)
	buf = append(buf, eventType...)
	buf = append(buf, "\ndata: "...)
	buf = append(buf, payload...)
	buf = append(buf, "\n\n"...)
	return buf
}

// EncodeEnvelopeFrame strips internal-only fields and renders e as an SSE
// frame named by its event type.
func EncodeEnvelopeFrame(e *envelope.Envelope) ([]byte, error) {
	stripped := e.Strip()
	payload, err := envelope.Serialize(&stripped)
	if err != nil {
		return nil, err
	}
	return EncodeEventFrame(string(e.Event), payload), nil
}

// EncodeControlFrame renders a reserved control event (connected, heartbeat,
// error) whose payload is an arbitrary JSON-able value rather than an
// envelope.
func EncodeControlFrame(name string, payload []byte) []byte {
	return EncodeEventFrame(name, payload)
}

// HeartbeatInterval resolves the per-topic SSE heartbeat cadence (§4.7):
// 45s for orders, 60s for notifications, 30s for everything else.
func HeartbeatInterval(topic string, main, orders, notifications time.Duration) time.Duration {
	switch topic {
	case "orders":
		return orders
	case "notifications":
		return notifications
	default:
		return main
	}
}
