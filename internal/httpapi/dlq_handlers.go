package httpapi

import (
	"net/http"
	"strconv"

	"github.com/arc-self/eventcore/internal/apperr"
	"github.com/arc-self/eventcore/internal/dlq"
)

// DLQHandler implements the /v1/dlq management surface (§6.5).
type DLQHandler struct {
	manager *dlq.Manager
}

func NewDLQHandler(manager *dlq.Manager) *DLQHandler {
	return &DLQHandler{manager: manager}
}

func (h *DLQHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.manager.Stats(r.Context())
	if err != nil {
		Err(w, r, err)
		return
	}
	Data(w, http.StatusOK, stats)
}

func (h *DLQHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.manager.Alerts(r.Context())
	if err != nil {
		Err(w, r, err)
		return
	}
	Data(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// ManualIntervention lists parked rows whose attempt count exceeds a
// threshold — the operator queue for events that have already failed at
// least one reprocess attempt.
func (h *DLQHandler) ManualIntervention(w http.ResponseWriter, r *http.Request) {
	const attemptThreshold = 1
	page, err := h.manager.List(r.Context(), dlq.Filters{Status: dlq.StatusParked, Page: 1, PageSize: 200})
	if err != nil {
		Err(w, r, err)
		return
	}
	var needsIntervention []dlq.Record
	for _, rec := range page.Records {
		if rec.Attempts >= attemptThreshold {
			needsIntervention = append(needsIntervention, rec)
		}
	}
	Data(w, http.StatusOK, map[string]any{"events": needsIntervention})
}

func (h *DLQHandler) BatchReprocess(w http.ResponseWriter, r *http.Request) {
	aggregateType := r.URL.Query().Get("aggregate_type")
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			Err(w, r, apperr.Validation("limit must be a positive integer"))
			return
		}
		if n > 50 {
			n = 50
		}
		limit = n
	}

	result, err := h.manager.BatchReprocess(r.Context(), aggregateType, limit)
	if err != nil {
		Err(w, r, err)
		return
	}
	Data(w, http.StatusOK, result)
}

type resolveRequest struct {
	EventID       int64  `json:"event_id"`
	AggregateType string `json:"aggregate_type"`
	OperatorID    string `json:"operator_id"`
	Reason        string `json:"reason"`
}

func (h *DLQHandler) ResolveEvent(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		Err(w, r, apperr.Validation(err.Error()))
		return
	}
	if req.EventID == 0 {
		Err(w, r, apperr.Validation("event_id is required"))
		return
	}
	operatorID := req.OperatorID
	if operatorID == "" {
		operatorID = "unknown-operator"
	}

	if err := h.manager.ManualResolve(r.Context(), req.EventID, operatorID); err != nil {
		Err(w, r, err)
		return
	}
	Data(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (h *DLQHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	daysToKeep := 30
	if raw := r.URL.Query().Get("days_to_keep"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			Err(w, r, apperr.Validation("days_to_keep must be a non-negative integer"))
			return
		}
		daysToKeep = n
	}

	expired, err := h.manager.Expire(r.Context(), daysToKeep)
	if err != nil {
		Err(w, r, err)
		return
	}
	Data(w, http.StatusOK, map[string]int64{"expired": expired})
}
