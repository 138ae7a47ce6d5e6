// Package api exposes the HTTP surface: campaign dispatch, notification
// triggers, the audit query, and the tracking endpoints.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ignite/mailroom/internal/dispatch"
	"github.com/ignite/mailroom/internal/notify"
	"github.com/ignite/mailroom/internal/pkg/logger"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	dispatcher *dispatch.Dispatcher
	gate       *notify.Gate
	startTime  time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(dispatcher *dispatch.Dispatcher, gate *notify.Gate) *Handlers {
	return &Handlers{
		dispatcher: dispatcher,
		gate:       gate,
		startTime:  time.Now(),
	}
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
