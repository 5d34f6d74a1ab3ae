package handlers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/callback"
	"server/internal/domain"
	"server/internal/infra/geoip"
	"server/internal/middleware"
	"server/internal/notify"
)

// JobService is the orchestrator surface the handlers drive.
type JobService interface {
	CreateJob(ctx context.Context, userID, clientJobID string, module domain.Module, params json.RawMessage) (*domain.Job, bool, error)
	GetStatus(ctx context.Context, jobID string) (*domain.Job, error)
	MarkPreviewReady(ctx context.Context, jobID, previewURL string) (*domain.Job, error)
	Complete(ctx context.Context, jobID string, finalURLs []string, actualCost int) (*domain.Job, error)
	Fail(ctx context.Context, jobID, errorMessage string) (*domain.Job, error)
}

// HistoryService lists and prunes a user's completed generations.
type HistoryService interface {
	List(ctx context.Context, userID string, limit int, module domain.Module) ([]domain.HistoryEntry, error)
	Delete(ctx context.Context, userID, jobID string) error
}

// CreditService exposes the ledger balance to the presentation layer.
type CreditService interface {
	Balance(ctx context.Context, userID string) (int, error)
}

// CallbackVerifier authenticates inbound worker callbacks.
type CallbackVerifier interface {
	Verify(ctx context.Context, env callback.Envelope) (*domain.Job, error)
}

type App struct {
	Jobs     JobService
	History  HistoryService
	Credits  CreditService
	Verifier CallbackVerifier
	Notifier notify.Notifier
	Geo      geoip.CountryResolver
	Logger   zerolog.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// clientIP assumes the RealIP middleware already rewrote RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
