package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers"
	"server/internal/sqlinline"
	"server/internal/storage"
)

// Callbacks reports phase outcomes back to the API with signed requests.
type Callbacks interface {
	Preview(ctx context.Context, jobID string, p PreviewPayload) error
	Complete(ctx context.Context, jobID string, p CompletePayload) error
	Fail(ctx context.Context, jobID string, p FailPayload) error
}

// ClaimedJob is the slice of a job row a worker needs to run it.
type ClaimedJob struct {
	ID            string
	UserID        string
	Module        domain.Module
	Params        domain.JobParams
	Raw           json.RawMessage
	EstimatedCost int
}

// Dispatcher claims queued jobs and runs them through their provider's
// preview and final phases, reporting each outcome via signed callbacks.
// A job that fails in any phase gets exactly one fail callback and no
// further phases.
type Dispatcher struct {
	SQL          infra.SQLExecutor
	Providers    providers.Registry
	Store        storage.ObjectStore
	Callbacks    Callbacks
	Logger       infra.Logger
	Concurrency  int
	PollInterval time.Duration
}

// Run starts the claim loops and blocks until ctx is canceled. Each loop
// claims one job at a time so a slow generation never starves the queue
// beyond the configured concurrency.
func (d *Dispatcher) Run(ctx context.Context) error {
	concurrency := d.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	poll := d.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			for {
				job, err := d.claim(ctx)
				if err != nil {
					d.Logger.Error().Err(err).Msg("claim job")
				}
				if job != nil {
					d.process(ctx, job)
					continue
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(poll):
				}
			}
		})
	}
	return g.Wait()
}

// claim pulls the oldest queued job and marks it processing. Returns nil
// without error when the queue is empty.
func (d *Dispatcher) claim(ctx context.Context) (*ClaimedJob, error) {
	row := d.SQL.QueryRow(ctx, sqlinline.QWorkerClaimJob)
	var (
		job    ClaimedJob
		module string
		raw    []byte
	)
	err := row.Scan(&job.ID, &job.UserID, &module, &raw, &job.EstimatedCost)
	if infra.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	job.Module = domain.Module(module)
	job.Raw = json.RawMessage(raw)
	params, err := domain.ParseParams(job.Module, job.Raw)
	if err != nil {
		// Params were validated at submission; a parse failure here means
		// the row was corrupted. Fail the job rather than keeping it claimed.
		d.fail(ctx, job.ID, fmt.Sprintf("invalid stored params: %v", err))
		return nil, nil
	}
	job.Params = params
	return &job, nil
}

// process runs the two-phase generation for one claimed job.
func (d *Dispatcher) process(ctx context.Context, job *ClaimedJob) {
	logger := d.Logger.With().Str("job_id", job.ID).Str("module", string(job.Module)).Logger()

	adapter, ok := d.Providers.Resolve(job.Module)
	if !ok {
		d.fail(ctx, job.ID, "no provider registered for module")
		return
	}
	req := providers.GenerateRequest{
		JobID:  job.ID,
		Module: job.Module,
		Params: job.Params,
		Raw:    job.Raw,
	}

	if job.Module.HasPreview() {
		preview, err := adapter.GeneratePreview(ctx, req)
		switch {
		case errors.Is(err, providers.ErrNoPreview):
			// Adapter opted out, go straight to the final phase.
		case err != nil:
			logger.Error().Err(err).Msg("preview generation failed")
			d.fail(ctx, job.ID, "preview generation failed")
			return
		default:
			url, err := d.persist(ctx, job.ID, "preview", 0, preview)
			if err != nil {
				logger.Error().Err(err).Msg("store preview artifact")
				d.fail(ctx, job.ID, "could not store preview artifact")
				return
			}
			if err := d.Callbacks.Preview(ctx, job.ID, PreviewPayload{PreviewURL: url}); err != nil {
				// The preview callback is best effort. Verification rejections
				// and transient API errors must not abort the final phase.
				logger.Warn().Err(err).Msg("preview callback rejected")
			}
		}
	}

	artifacts, err := adapter.GenerateFinal(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("final generation failed")
		d.fail(ctx, job.ID, "generation failed")
		return
	}
	if len(artifacts) == 0 {
		d.fail(ctx, job.ID, "provider returned no artifacts")
		return
	}

	urls := make([]string, 0, len(artifacts))
	var totalSize int64
	for i, artifact := range artifacts {
		url, err := d.persist(ctx, job.ID, "final", i, &artifact)
		if err != nil {
			logger.Error().Err(err).Msg("store final artifact")
			d.fail(ctx, job.ID, "could not store artifacts")
			return
		}
		urls = append(urls, url)
		totalSize += artifact.SizeBytes
	}

	// The authoritative cost reflects what was actually produced, which can
	// be fewer outputs than requested.
	billed := job.Params
	billed.Quantity = len(artifacts)
	actualCost := domain.EstimateCost(job.Module, billed)

	err = d.Callbacks.Complete(ctx, job.ID, CompletePayload{
		FinalURLs:  urls,
		ActualCost: actualCost,
		Provider:   adapter.Name(),
		SizeBytes:  totalSize,
	})
	if err != nil {
		logger.Error().Err(err).Msg("complete callback failed")
		return
	}
	logger.Info().Int("outputs", len(urls)).Int("actual_cost", actualCost).Msg("job completed")
}

// persist writes one artifact to object storage. Artifacts that already live
// at a hosted URL are passed through untouched.
func (d *Dispatcher) persist(ctx context.Context, jobID, phase string, index int, artifact *providers.Artifact) (string, error) {
	if artifact.URL != "" {
		return artifact.URL, nil
	}
	key := fmt.Sprintf("jobs/%s/%s-%d%s", jobID, phase, index, extensionFor(artifact.ContentType))
	return d.Store.Put(ctx, key, artifact.Data, artifact.ContentType)
}

func (d *Dispatcher) fail(ctx context.Context, jobID, message string) {
	if err := d.Callbacks.Fail(ctx, jobID, FailPayload{Message: message}); err != nil {
		d.Logger.Error().Err(err).Str("job_id", jobID).Msg("fail callback failed")
	}
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "audio/mpeg":
		return ".mp3"
	case "video/mp4":
		return ".mp4"
	case "text/plain":
		return ".txt"
	}
	return ".bin"
}
