package httpapi

import (
	"time"

	"net/http"

	"github.com/google/uuid"

	"github.com/arc-self/eventcore/internal/apperr"
	"github.com/arc-self/eventcore/internal/auth"
	"github.com/arc-self/eventcore/internal/config"
	"github.com/arc-self/eventcore/internal/logging"
	"github.com/arc-self/eventcore/internal/metrics"
	"github.com/arc-self/eventcore/internal/registry"
	"github.com/arc-self/eventcore/internal/transport"
)

// StreamHandler implements the SSE side of C9: one handler per deployment
// topic plus the unscoped "all topics" stream, each following the
// teacher's handshake-then-loop shape but framing with transport.SSEConn
// instead of the teacher's JSON response writer.
type StreamHandler struct {
	verifier  *auth.Verifier
	reg       *registry.Registry
	session   config.Session
	heartbeat config.Heartbeat
}

func NewStreamHandler(verifier *auth.Verifier, reg *registry.Registry, session config.Session, heartbeat config.Heartbeat) *StreamHandler {
	return &StreamHandler{verifier: verifier, reg: reg, session: session, heartbeat: heartbeat}
}

// ServeTopic handles GET /v1/events/stream[/{topic}]. topic == "" subscribes
// to every event type via the wildcard subscription.
func (h *StreamHandler) ServeTopic(topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.authenticate(r)
		if err != nil {
			Err(w, r, apperr.AuthFailed(err.Error()))
			return
		}

		conn, err := transport.NewSSEConn(w)
		if err != nil {
			Err(w, r, apperr.Validation(err.Error()))
			return
		}

		subs := []string{"all"}
		if topic != "" {
			subs = []string{topic}
		}

		sessionID := uuid.NewString()
		registryConn := registry.NewConnection(sessionID, claims.UserID, claims.TenantID, registry.TransportSSE, subs, conn)
		if !h.reg.Add(registryConn) {
			conn.Close("session limit exceeded")
			Err(w, r, apperr.Validation("session limit exceeded"))
			return
		}
		defer h.reg.Remove(sessionID)
		metrics.SetActiveSessions(h.reg.Len())
		defer metrics.SetActiveSessions(h.reg.Len())

		interval := transport.HeartbeatInterval(topic, h.heartbeat.SSEMain, h.heartbeat.SSEOrder, h.heartbeat.SSENotif)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log := logging.WithCtx(r.Context())
		log.Info().Str("session_id", sessionID).Str("topic", topic).Msg("sse connection established")

		if err := conn.Send(transport.EncodeControlFrame("connected", []byte(`{"session_id":"`+sessionID+`"}`))); err != nil {
			return
		}

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-conn.Done():
				return
			case <-ticker.C:
				if err := conn.Send(transport.EncodeControlFrame("heartbeat", []byte(`{}`))); err != nil {
					registryConn.MissHeartbeat()
					if registryConn.Unhealthy() {
						return
					}
				} else {
					registryConn.Touch()
				}
			}
		}
	}
}

func (h *StreamHandler) authenticate(r *http.Request) (auth.Claims, error) {
	token := auth.FromAuthorizationHeader(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return h.verifier.Verify(token)
}
