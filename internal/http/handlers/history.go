package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

func (a *App) HistoryList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	module := domain.Module(r.URL.Query().Get("module"))
	if module != "" && !domain.KnownModule(module) {
		a.error(w, http.StatusBadRequest, "unknown_module", "unsupported module filter")
		return
	}

	entries, err := a.History.List(r.Context(), userID, limit, module)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("list history")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load history")
		return
	}
	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		item := map[string]any{
			"job_id":      entry.JobID,
			"module":      entry.Module,
			"final_urls":  entry.FinalURLs,
			"credit_cost": entry.CreditCost,
			"created_at":  entry.CreatedAt,
		}
		if entry.PreviewURL != "" {
			item["preview_url"] = entry.PreviewURL
		}
		items = append(items, item)
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) HistoryDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	jobID := chi.URLParam(r, "job_id")

	err := a.History.Delete(r.Context(), userID, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "not_found", "history entry not found")
		return
	}
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Str("job_id", jobID).Msg("delete history entry")
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete history entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
