package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ignite/mailroom/internal/notify"
	"github.com/ignite/mailroom/internal/pkg/logger"
)

// HandleTriggerNotification runs one event through the notification gate.
// Gate decisions (condition not met, preference disabled, throttled) are
// successful responses carrying the reason; only validation failures and
// send errors map to error statuses.
func (h *Handlers) HandleTriggerNotification(w http.ResponseWriter, r *http.Request) {
	var ev notify.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := h.gate.Trigger(r.Context(), ev)
	if err != nil {
		switch {
		case errors.Is(err, notify.ErrUnknownEvent):
			respondError(w, http.StatusUnprocessableEntity, "unknown event type")
		case errors.Is(err, notify.ErrNoRecipient):
			respondError(w, http.StatusBadRequest, "recipient is required")
		default:
			logger.Error("trigger notification", "event", ev.Type, "error", err)
			respondError(w, http.StatusBadGateway, "notification send failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, res)
}

// HandleListAudits serves the filterable notification audit trail.
func (h *Handlers) HandleListAudits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := notify.AuditFilter{
		Recipient: q.Get("recipient"),
		EventType: q.Get("event_type"),
		Status:    q.Get("status"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		f.Offset = n
	}

	audits, total, err := h.gate.Audit(r.Context(), f)
	if err != nil {
		logger.Error("list audits", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list audits")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"audits": audits,
		"total":  total,
	})
}
