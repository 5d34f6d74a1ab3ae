package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"server/internal/callback"
	"server/internal/domain"
)

const maxCallbackBody = 1 << 20

type previewCallbackPayload struct {
	PreviewURL string `json:"preview_url"`
}

type completeCallbackPayload struct {
	FinalURLs  []string `json:"final_urls"`
	ActualCost int      `json:"actual_cost"`
	Provider   string   `json:"provider"`
	SizeBytes  int64    `json:"size_bytes"`
}

type failCallbackPayload struct {
	Message string `json:"message"`
}

// CallbackPreview handles the worker's preview_ready transition.
func (a *App) CallbackPreview(w http.ResponseWriter, r *http.Request) {
	env, ok := a.verifyCallback(w, r)
	if !ok {
		return
	}
	var payload previewCallbackPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil || strings.TrimSpace(payload.PreviewURL) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "preview_url is required")
		return
	}
	job, err := a.Jobs.MarkPreviewReady(r.Context(), env.JobID, payload.PreviewURL)
	if err != nil {
		a.callbackError(w, env.JobID, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"job_id": job.ID, "status": job.Status})
}

// CallbackComplete handles the worker's completed transition. The settlement
// it triggers is atomic, so a retried callback lands here as a no-op.
func (a *App) CallbackComplete(w http.ResponseWriter, r *http.Request) {
	env, ok := a.verifyCallback(w, r)
	if !ok {
		return
	}
	var payload completeCallbackPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	job, err := a.Jobs.Complete(r.Context(), env.JobID, payload.FinalURLs, payload.ActualCost)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.callbackError(w, env.JobID, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"job_id": job.ID, "status": job.Status})
}

// CallbackFail handles the worker's failed transition. No credits move.
func (a *App) CallbackFail(w http.ResponseWriter, r *http.Request) {
	env, ok := a.verifyCallback(w, r)
	if !ok {
		return
	}
	var payload failCallbackPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	job, err := a.Jobs.Fail(r.Context(), env.JobID, payload.Message)
	if err != nil {
		a.callbackError(w, env.JobID, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"job_id": job.ID, "status": job.Status})
}

// verifyCallback reads and authenticates the envelope. On failure it writes
// the rejection and returns ok=false; nothing downstream may run.
func (a *App) verifyCallback(w http.ResponseWriter, r *http.Request) (callback.Envelope, bool) {
	jobID := chi.URLParam(r, "job_id")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return callback.Envelope{}, false
	}
	ts, err := strconv.ParseInt(r.Header.Get("X-Callback-Timestamp"), 10, 64)
	if err != nil {
		a.error(w, http.StatusUnauthorized, "invalid_signature", "missing or malformed timestamp")
		return callback.Envelope{}, false
	}
	env := callback.Envelope{
		JobID:     jobID,
		Timestamp: ts,
		Payload:   body,
		Signature: r.Header.Get("X-Callback-Signature"),
	}
	if _, err := a.Verifier.Verify(r.Context(), env); err != nil {
		a.callbackError(w, jobID, err)
		return callback.Envelope{}, false
	}
	return env, true
}

func (a *App) callbackError(w http.ResponseWriter, jobID string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		a.error(w, http.StatusUnauthorized, "invalid_signature", "signature verification failed")
	case errors.Is(err, domain.ErrStaleTimestamp):
		a.error(w, http.StatusUnauthorized, "stale_timestamp", "timestamp outside tolerance")
	case errors.Is(err, domain.ErrTerminalJob):
		a.error(w, http.StatusConflict, "terminal_job", "job is unknown or already settled")
	case errors.Is(err, domain.ErrInvalidTransition):
		a.error(w, http.StatusConflict, "invalid_transition", "transition not legal from current status")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	default:
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("callback handling")
		a.error(w, http.StatusInternalServerError, "internal", "callback processing failed")
	}
}
