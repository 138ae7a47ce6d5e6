package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailroom/internal/dispatch"
	"github.com/ignite/mailroom/internal/pkg/logger"
)

// HandleSendCampaign validates and claims a campaign, then dispatches it in
// the background. The response reports only how many recipients were
// targeted; progress lands on the campaign record as the run completes.
func (h *Handlers) HandleSendCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := h.dispatcher.Begin(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrNotFound):
			respondError(w, http.StatusNotFound, "campaign not found")
		case errors.Is(err, dispatch.ErrAlreadySending):
			respondError(w, http.StatusConflict, "campaign is already sending")
		case errors.Is(err, dispatch.ErrAlreadySent):
			respondError(w, http.StatusConflict, "campaign has already been sent")
		case errors.Is(err, dispatch.ErrNotSendable):
			respondError(w, http.StatusConflict, "campaign cannot be sent in its current state")
		case errors.Is(err, dispatch.ErrNoRecipients):
			respondError(w, http.StatusUnprocessableEntity, "campaign has no recipients")
		default:
			logger.Error("begin campaign send", "campaign_id", id, "error", err)
			respondError(w, http.StatusInternalServerError, "failed to start campaign send")
		}
		return
	}

	// The request context dies with the response; the run gets its own.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()
		if _, err := h.dispatcher.Run(ctx, job); err != nil {
			logger.Error("campaign run", "campaign_id", id, "error", err)
		}
	}()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": id,
		"status":      "sending",
		"targeted":    job.Targeted(),
	})
}

// HandleResendFailed retries recently failed sends for a campaign. The
// lookback window defaults to 24h and can be narrowed via ?max_age_hours.
func (h *Handlers) HandleResendFailed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	maxAge := 24 * time.Hour
	if v := r.URL.Query().Get("max_age_hours"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			respondError(w, http.StatusBadRequest, "max_age_hours must be a positive integer")
			return
		}
		maxAge = time.Duration(hours) * time.Hour
	}

	summary, err := h.dispatcher.ResendFailed(r.Context(), id, maxAge)
	if err != nil {
		if errors.Is(err, dispatch.ErrNotFound) {
			respondError(w, http.StatusNotFound, "campaign not found")
			return
		}
		logger.Error("resend failed", "campaign_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "resend failed")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}
