package transport

import "encoding/json"

// WSFrame is the envelope every server->client WebSocket message shares,
// keyed by type per §4.7: connected | event | heartbeat | pong | stats | error.
type WSFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func frame(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSFrame{Type: typ, Data: raw})
}

// ConnectedFrame is sent once immediately after a successful upgrade.
func ConnectedFrame(sessionID string) ([]byte, error) {
	return frame("connected", map[string]string{"session_id": sessionID})
}

// HeartbeatFrame is sent on the WS ping cadence.
func HeartbeatFrame() ([]byte, error) {
	return frame("heartbeat", map[string]string{})
}

// PongFrame answers a client "ping" control message.
func PongFrame() ([]byte, error) {
	return frame("pong", map[string]string{})
}

// StatsFrame answers a client "get_stats" control message.
func StatsFrame(stats any) ([]byte, error) {
	return frame("stats", stats)
}

// ErrorFrame reports a malformed or unknown client control message; the
// connection is kept open after sending it.
func ErrorFrame(code, message string) ([]byte, error) {
	return frame("error", map[string]string{"code": code, "message": message})
}

// EventFrame wraps a stripped envelope for WebSocket delivery.
func EventFrame(payload []byte) ([]byte, error) {
	return json.Marshal(WSFrame{Type: "event", Data: payload})
}

// ClientMessage is the shape of an inbound client->server control message.
type ClientMessage struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics,omitempty"`
}

const (
	ClientMsgSubscribe = "subscribe"
	ClientMsgPing      = "ping"
	ClientMsgGetStats  = "get_stats"
)
