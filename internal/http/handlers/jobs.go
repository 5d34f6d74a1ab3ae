package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/middleware"
	"server/internal/notify"
)

type jobCreateRequest struct {
	ClientJobID string          `json:"client_job_id"`
	Module      string          `json:"module"`
	Params      json.RawMessage `json:"params"`
}

func (a *App) JobsCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	var req jobCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	if a.Geo != nil {
		if country, err := a.Geo.CountryCode(clientIP(r)); err == nil && country != "" {
			a.Logger.Debug().Str("user_id", userID).Str("country", country).Msg("job submission")
		}
	}

	job, created, err := a.Jobs.CreateJob(r.Context(), userID, req.ClientJobID, domain.Module(req.Module), req.Params)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUnknownModule):
		a.error(w, http.StatusBadRequest, "unknown_module", "unsupported module")
		return
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	case errors.Is(err, domain.ErrInsufficientCredits):
		a.publishLowBalance(r, userID)
		a.error(w, http.StatusPaymentRequired, "insufficient_credits", "balance does not cover the estimated cost")
		return
	default:
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("create job")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}

	status := http.StatusAccepted
	if !created {
		// Idempotent replay returns the job created by the first submission.
		status = http.StatusOK
	}
	a.json(w, status, jobJSON(job))
}

func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	jobID := chi.URLParam(r, "job_id")

	job, err := a.Jobs.GetStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("job status")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	if job.UserID != userID {
		// A foreign job id is indistinguishable from a missing one.
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, jobJSON(job))
}

// publishLowBalance warns the notification collaborator that a submission was
// rejected for lack of credits. Delivery is best effort.
func (a *App) publishLowBalance(r *http.Request, userID string) {
	if a.Notifier == nil {
		return
	}
	balance := 0
	if a.Credits != nil {
		if b, err := a.Credits.Balance(r.Context(), userID); err == nil {
			balance = b
		}
	}
	event := notify.Event{
		Type:       notify.EventLowBalance,
		UserID:     userID,
		Balance:    balance,
		Message:    "submission rejected: balance below estimated cost",
		Locale:     middleware.LocaleFromContext(r.Context()),
		OccurredAt: time.Now().UTC(),
	}
	if err := a.Notifier.Publish(r.Context(), event); err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("publish low balance event")
	}
}

func jobJSON(job *domain.Job) map[string]any {
	out := map[string]any{
		"job_id":         job.ID,
		"client_job_id":  job.ClientJobID,
		"module":         job.Module,
		"status":         job.Status,
		"estimated_cost": job.EstimatedCost,
		"created_at":     job.CreatedAt,
		"updated_at":     job.UpdatedAt,
	}
	if job.PreviewURL != "" {
		out["preview_url"] = job.PreviewURL
	}
	if len(job.FinalURLs) > 0 {
		out["final_urls"] = job.FinalURLs
		out["actual_cost"] = job.ActualCost
	}
	if job.ErrorMessage != "" {
		out["error"] = job.ErrorMessage
	}
	return out
}
