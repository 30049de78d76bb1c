package httpapi

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"

	"github.com/arc-self/eventcore/internal/auth"
	"github.com/arc-self/eventcore/internal/config"
	"github.com/arc-self/eventcore/internal/dlq"
	"github.com/arc-self/eventcore/internal/httpmw"
	"github.com/arc-self/eventcore/internal/metrics"
	"github.com/arc-self/eventcore/internal/registry"
)

// New builds the notifier's HTTP surface: stream upgrade endpoints, the DLQ
// admin API, and the operational endpoints, following the event-service
// router's middleware chain and route grouping.
func New(
	cfg *config.Config,
	db *sql.DB,
	rdb *redis.Client,
	reg *registry.Registry,
	dlqMgr *dlq.Manager,
) http.Handler {
	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	streamH := NewStreamHandler(verifier, reg, cfg.Session, cfg.Heartbeat)
	wsH := NewWSHandler(verifier, reg, cfg.Session)
	dlqH := NewDLQHandler(dlqMgr)
	healthH := NewHealthHandler(db, rdb, reg, dlqMgr)

	r := chi.NewRouter()

	r.Use(httpmw.RequestID)
	r.Use(httpmw.Metrics)
	r.Use(httpmw.SecurityHeaders)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmw.AccessLog)

	if cfg.RLEnabled {
		if rdb == nil {
			r.Use(httprate.LimitByIP(cfg.RLLimit, cfg.RLWindow))
		} else {
			r.Use(httprate.Limit(
				cfg.RLLimit,
				cfg.RLWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
			))
		}
	}

	r.Get("/health", healthH.Health)
	r.Get("/healthz", healthH.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1/events", func(r chi.Router) {
		r.Get("/stream", streamH.ServeTopic(""))
		r.Get("/stream/orders", streamH.ServeTopic("orders"))
		r.Get("/stream/notifications", streamH.ServeTopic("notifications"))
		r.Get("/stream/{topic}", streamRouteTopic(streamH))

		r.Get("/ws", wsH.ServeTopic(""))
		r.Get("/ws/orders", wsH.ServeTopic("orders"))
		r.Get("/ws/{topic}", wsRouteTopic(wsH))
	})

	r.Route("/v1/dlq", func(r chi.Router) {
		r.Use(RequireOperator(verifier))
		r.Get("/stats", dlqH.Stats)
		r.Get("/alerts", dlqH.Alerts)
		r.Get("/events/manual-intervention", dlqH.ManualIntervention)
		r.Post("/reprocess", dlqH.BatchReprocess)
		r.Post("/events/resolve", dlqH.ResolveEvent)
		r.Post("/cleanup", dlqH.Cleanup)
		r.Get("/health", healthH.Health)
		r.Get("/monitoring/dashboard", healthH.Dashboard)
	})

	return r
}

// streamRouteTopic resolves the {topic} URL param at request time, since
// chi routes are registered once but the topic name is dynamic.
func streamRouteTopic(h *StreamHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic := chi.URLParam(r, "topic")
		h.ServeTopic(topic)(w, r)
	}
}

func wsRouteTopic(h *WSHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic := chi.URLParam(r, "topic")
		h.ServeTopic(topic)(w, r)
	}
}
