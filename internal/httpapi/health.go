package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arc-self/eventcore/internal/dlq"
	"github.com/arc-self/eventcore/internal/registry"
)

// HealthHandler implements GET /health and GET /monitoring/dashboard.
type HealthHandler struct {
	db     *sql.DB
	rdb    *redis.Client
	reg    *registry.Registry
	dlqMgr *dlq.Manager
}

func NewHealthHandler(db *sql.DB, rdb *redis.Client, reg *registry.Registry, dlqMgr *dlq.Manager) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb, reg: reg, dlqMgr: dlqMgr}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		healthy = false
	} else {
		checks["database"] = "healthy"
	}

	if h.rdb != nil {
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			checks["stream"] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			checks["stream"] = "healthy"
		}
	}

	checks["status"] = "ok"
	status := http.StatusOK
	if !healthy {
		checks["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	Data(w, status, checks)
}

func (h *HealthHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dlqMgr.Stats(r.Context())
	if err != nil {
		Err(w, r, err)
		return
	}
	alerts, err := h.dlqMgr.Alerts(r.Context())
	if err != nil {
		Err(w, r, err)
		return
	}
	Data(w, http.StatusOK, map[string]any{
		"dlq_stats":       stats,
		"dlq_alerts":      alerts,
		"active_sessions": h.reg.Len(),
	})
}
