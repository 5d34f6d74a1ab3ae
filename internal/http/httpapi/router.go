package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

// Options carries the router knobs sourced from config.
type Options struct {
	Logger        zerolog.Logger
	RateLimit     int
	DefaultLocale string
}

func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.RequestID, middleware.Logger(opts.Logger))
	r.Use(middleware.Locale(opts.DefaultLocale))

	r.Get("/v1/healthz", app.Health)

	// User-facing surface. Identity arrives from the gateway. The rate
	// limit stays inside this group so worker callbacks are never
	// throttled; a rejected complete would strand the job.
	r.Group(func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(middleware.RateLimit(opts.RateLimit, time.Minute))
		}
		r.Use(middleware.Identity)
		r.Route("/v1/jobs", func(r chi.Router) {
			r.Post("/", app.JobsCreate)
			r.Get("/{job_id}", app.JobStatus)
		})
		r.Route("/v1/history", func(r chi.Router) {
			r.Get("/", app.HistoryList)
			r.Delete("/{job_id}", app.HistoryDelete)
		})
		r.Get("/v1/credits", app.CreditsBalance)
	})

	// Worker-facing callbacks authenticate by signature, not identity.
	r.Route("/v1/internal/callbacks/{job_id}", func(r chi.Router) {
		r.Post("/preview", app.CallbackPreview)
		r.Post("/complete", app.CallbackComplete)
		r.Post("/fail", app.CallbackFail)
	})

	return r
}
