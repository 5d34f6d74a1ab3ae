package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"server/internal/callback"
	"server/internal/domain"
	"server/internal/middleware"
	"server/internal/notify"
)

const testUserID = "f3d0a8be-21c7-4f11-9b0d-5a6c8e1d2f30"

type fakeJobService struct {
	createJob    *domain.Job
	createFresh  bool
	createErr    error
	statusJob    *domain.Job
	statusErr    error
	completeJob  *domain.Job
	completeErr  error
	previewJob   *domain.Job
	previewErr   error
	failJob      *domain.Job
	failErr      error
	lastComplete struct {
		jobID      string
		finalURLs  []string
		actualCost int
	}
}

func (f *fakeJobService) CreateJob(_ context.Context, userID, clientJobID string, module domain.Module, params json.RawMessage) (*domain.Job, bool, error) {
	return f.createJob, f.createFresh, f.createErr
}

func (f *fakeJobService) GetStatus(_ context.Context, jobID string) (*domain.Job, error) {
	return f.statusJob, f.statusErr
}

func (f *fakeJobService) MarkPreviewReady(_ context.Context, jobID, previewURL string) (*domain.Job, error) {
	return f.previewJob, f.previewErr
}

func (f *fakeJobService) Complete(_ context.Context, jobID string, finalURLs []string, actualCost int) (*domain.Job, error) {
	f.lastComplete.jobID = jobID
	f.lastComplete.finalURLs = finalURLs
	f.lastComplete.actualCost = actualCost
	return f.completeJob, f.completeErr
}

func (f *fakeJobService) Fail(_ context.Context, jobID, errorMessage string) (*domain.Job, error) {
	return f.failJob, f.failErr
}

type fakeHistoryService struct {
	entries   []domain.HistoryEntry
	listErr   error
	deleteErr error
}

func (f *fakeHistoryService) List(context.Context, string, int, domain.Module) ([]domain.HistoryEntry, error) {
	return f.entries, f.listErr
}

func (f *fakeHistoryService) Delete(context.Context, string, string) error {
	return f.deleteErr
}

type fakeCreditService struct {
	balance int
	err     error
}

func (f *fakeCreditService) Balance(context.Context, string) (int, error) {
	return f.balance, f.err
}

type fakeVerifier struct {
	job *domain.Job
	err error
}

func (f *fakeVerifier) Verify(_ context.Context, env callback.Envelope) (*domain.Job, error) {
	return f.job, f.err
}

type eventRecorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *eventRecorder) Publish(_ context.Context, event notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// withUser simulates the identity and locale middleware for direct handler calls.
func withUser(req *http.Request, userID string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
	return req.WithContext(ctx)
}

// withURLParam injects a chi route parameter the way the router would.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func newTestApp(jobs *fakeJobService) (*App, *eventRecorder) {
	recorder := &eventRecorder{}
	return &App{
		Jobs:     jobs,
		History:  &fakeHistoryService{},
		Credits:  &fakeCreditService{},
		Verifier: &fakeVerifier{},
		Notifier: recorder,
		Logger:   zerolog.Nop(),
	}, recorder
}

func decodeBody(rr *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.NewDecoder(rr.Body).Decode(&out)
	return out
}
