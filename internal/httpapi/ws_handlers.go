package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/arc-self/eventcore/internal/auth"
	"github.com/arc-self/eventcore/internal/config"
	"github.com/arc-self/eventcore/internal/logging"
	"github.com/arc-self/eventcore/internal/metrics"
	"github.com/arc-self/eventcore/internal/registry"
	"github.com/arc-self/eventcore/internal/transport"
)

// WSHandler implements the WebSocket side of C9, sharing the same
// registry and auth verifier as StreamHandler but framing with
// transport.WSConn's read/write-pump pair instead of a single response
// writer.
type WSHandler struct {
	verifier *auth.Verifier
	reg      *registry.Registry
	session  config.Session
}

func NewWSHandler(verifier *auth.Verifier, reg *registry.Registry, session config.Session) *WSHandler {
	return &WSHandler{verifier: verifier, reg: reg, session: session}
}

// ServeTopic handles GET /v1/events/ws[/{topic}]. The token is always a
// query parameter here: the browser WebSocket API cannot set request
// headers on the handshake. The close code/reason contract only exists on
// an established WS connection, so a failed check still upgrades and then
// immediately closes with 1008, matching the original service's
// accept-then-close handling of the same verify-before-upgrade tension.
func (h *WSHandler) ServeTopic(topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, authErr := h.verifier.Verify(r.URL.Query().Get("token"))

		wsConn, err := transport.Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		if authErr != nil {
			reason := "Invalid token"
			if errors.Is(authErr, auth.ErrMissingToken) {
				reason = "Authentication required"
			}
			_ = wsConn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
				time.Now().Add(5*time.Second))
			_ = wsConn.Close()
			return
		}

		conn := transport.NewWSConn(wsConn, 64)

		subs := []string{"all"}
		if topic != "" {
			subs = []string{topic}
		}

		sessionID := uuid.NewString()
		registryConn := registry.NewConnection(sessionID, claims.UserID, claims.TenantID, registry.TransportWebSocket, subs, conn)
		if !h.reg.Add(registryConn) {
			conn.Close("session limit exceeded")
			return
		}
		metrics.SetActiveSessions(h.reg.Len())

		log := logging.WithCtx(r.Context())
		log.Info().Str("session_id", sessionID).Str("topic", topic).Msg("websocket connection established")

		if frame, err := transport.ConnectedFrame(sessionID); err == nil {
			_ = conn.Send(frame)
		}

		onMessage := func(msg transport.ClientMessage, _ []byte) {
			switch msg.Type {
			case transport.ClientMsgSubscribe:
				h.reg.SetSubscriptions(sessionID, msg.Topics)
			case transport.ClientMsgPing:
				if frame, err := transport.PongFrame(); err == nil {
					_ = conn.Send(frame)
				}
			case transport.ClientMsgGetStats:
				if frame, err := transport.StatsFrame(map[string]int{"active_sessions": h.reg.Len()}); err == nil {
					_ = conn.Send(frame)
				}
			default:
				if frame, err := transport.ErrorFrame("unknown_type", "unrecognized message type"); err == nil {
					_ = conn.Send(frame)
				}
			}
		}
		onActivity := func() { registryConn.Touch() }

		conn.ReadPump(onMessage, onActivity)

		h.reg.Remove(sessionID)
		metrics.SetActiveSessions(h.reg.Len())
	}
}
