package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/history"
	"server/internal/infra"
	"server/internal/ledger"
	"server/internal/notify"
	"server/internal/sqlinline"
)

// LowBalanceThreshold is the remaining balance below which a debit emits a
// low-balance event.
const LowBalanceThreshold = 50

// Orchestrator owns job rows and coordinates the credit ledger and history
// store under transactional discipline. All mutating operations on a job are
// compare-and-swap updates against its row, so concurrent at-least-once
// callbacks serialize there and losers observe idempotent no-ops.
type Orchestrator struct {
	SQL      infra.SQLExecutor
	DB       infra.TxStarter
	Credits  *ledger.Ledger
	Notifier notify.Notifier
	Logger   zerolog.Logger
}

func NewOrchestrator(sq infra.SQLExecutor, db infra.TxStarter, notifier notify.Notifier, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		SQL:      sq,
		DB:       db,
		Credits:  ledger.New(sq),
		Notifier: notifier,
		Logger:   logger,
	}
}

// CreateJob inserts a queued job, or returns the existing one unchanged when
// the (user, client_job_id) pair was already submitted. The balance check here
// is advisory; the authoritative one happens at debit time.
func (o *Orchestrator) CreateJob(ctx context.Context, userID, clientJobID string, module domain.Module, params json.RawMessage) (*domain.Job, bool, error) {
	if clientJobID == "" {
		return nil, false, fmt.Errorf("%w: client_job_id is required", domain.ErrValidation)
	}
	if !domain.KnownModule(module) {
		return nil, false, domain.ErrUnknownModule
	}
	parsed, err := domain.ParseParams(module, params)
	if err != nil {
		return nil, false, err
	}
	estimate := domain.EstimateCost(module, parsed)

	balance, err := o.Credits.Balance(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if balance < estimate {
		return nil, false, domain.ErrInsufficientCredits
	}

	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	row := o.SQL.QueryRow(ctx, sqlinline.QInsertJob,
		uuid.NewString(), userID, clientJobID, string(module), params, estimate)
	job, err := scanJob(row)
	if err == nil {
		o.Logger.Info().Str("job_id", job.ID).Str("module", string(module)).Int("estimated_cost", estimate).Msg("job created")
		return job, true, nil
	}
	if !infra.IsNoRows(err) {
		return nil, false, fmt.Errorf("jobs: insert: %w", err)
	}

	// Insert hit the (user_id, client_job_id) unique key: a concurrent or
	// earlier submission won. Return that job unchanged.
	job, err = scanJob(o.SQL.QueryRow(ctx, sqlinline.QSelectJobByClientID, userID, clientJobID))
	if err != nil {
		return nil, false, fmt.Errorf("jobs: fetch existing: %w", err)
	}
	return job, false, nil
}

// GetStatus is a pure read, safe to poll at any frequency.
func (o *Orchestrator) GetStatus(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := scanJob(o.SQL.QueryRow(ctx, sqlinline.QSelectJob, jobID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("jobs: get: %w", err)
	}
	return job, nil
}

// MarkPreviewReady transitions queued/processing to preview_ready. Duplicate
// or out-of-order deliveries are absorbed as no-ops.
func (o *Orchestrator) MarkPreviewReady(ctx context.Context, jobID, previewURL string) (*domain.Job, error) {
	if previewURL == "" {
		return nil, fmt.Errorf("%w: preview_url is required", domain.ErrValidation)
	}
	job, err := scanJob(o.SQL.QueryRow(ctx, sqlinline.QMarkPreviewReady, jobID, previewURL))
	if err == nil {
		o.Logger.Info().Str("job_id", jobID).Msg("job preview ready")
		return job, nil
	}
	if !infra.IsNoRows(err) {
		return nil, fmt.Errorf("jobs: mark preview: %w", err)
	}

	// CAS missed: the job is already preview_ready or beyond, or unknown.
	job, err = o.GetStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	o.Logger.Debug().Str("job_id", jobID).Str("status", string(job.Status)).Msg("preview callback absorbed as no-op")
	return job, nil
}

// Complete settles a job: terminal status, exactly-once debit of the actual
// cost, and history append happen in one transaction. If the debit fails the
// whole transition rolls back and the job stays non-terminal for retry.
func (o *Orchestrator) Complete(ctx context.Context, jobID string, finalURLs []string, actualCost int) (*domain.Job, error) {
	if len(finalURLs) == 0 {
		return nil, fmt.Errorf("%w: final_urls must be non-empty", domain.ErrValidation)
	}
	if actualCost < 0 {
		return nil, fmt.Errorf("%w: actual_cost must be non-negative", domain.ErrValidation)
	}
	urlsJSON, err := json.Marshal(finalURLs)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode final urls: %w", err)
	}

	tx, err := o.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("jobs: begin: %w", err)
	}
	defer tx.Rollback(ctx)
	sq := infra.NewSQLRunner(tx, o.Logger)

	job, err := scanJob(sq.QueryRow(ctx, sqlinline.QCompleteJob, jobID, urlsJSON, actualCost))
	if err != nil {
		if !infra.IsNoRows(err) {
			return nil, fmt.Errorf("jobs: complete: %w", err)
		}
		existing, err := scanJob(sq.QueryRow(ctx, sqlinline.QSelectJob, jobID))
		if err != nil {
			if infra.IsNoRows(err) {
				return nil, domain.ErrNotFound
			}
			return nil, fmt.Errorf("jobs: get: %w", err)
		}
		if !domain.CanTransition(existing.Status, domain.JobStatusCompleted) {
			if existing.Status == domain.JobStatusCompleted {
				// At-least-once delivery: the job already settled, nothing to redo.
				o.Logger.Debug().Str("job_id", jobID).Msg("complete callback absorbed as no-op")
				return existing, nil
			}
			return nil, fmt.Errorf("%w: cannot complete job in status %s", domain.ErrInvalidTransition, existing.Status)
		}
		// The move is legal but the guarded update missed it. The worker
		// retries the callback.
		return nil, fmt.Errorf("jobs: complete: job %s changed concurrently", jobID)
	}

	debit, err := ledger.New(sq).Debit(ctx, job.UserID, job.ID, actualCost)
	if err != nil {
		return nil, err
	}
	evicted, err := history.New(sq).Append(ctx, domain.HistoryEntry{
		UserID:     job.UserID,
		JobID:      job.ID,
		Module:     job.Module,
		PreviewURL: job.PreviewURL,
		FinalURLs:  finalURLs,
		CreditCost: actualCost,
	})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("jobs: commit: %w", err)
	}

	o.Logger.Info().Str("job_id", job.ID).Int("actual_cost", actualCost).Int("balance", debit.Balance).Msg("job completed")
	o.publish(ctx, notify.Event{Type: notify.EventJobCompleted, UserID: job.UserID, JobID: job.ID, Module: string(job.Module)})
	if evicted > 0 {
		o.publish(ctx, notify.Event{Type: notify.EventHistoryEvicted, UserID: job.UserID, Evicted: evicted})
	}
	if debit.Applied && debit.Balance < LowBalanceThreshold {
		o.publish(ctx, notify.Event{Type: notify.EventLowBalance, UserID: job.UserID, Balance: debit.Balance})
	}
	return job, nil
}

// Fail marks a non-terminal job failed. No credits are charged; a job already
// failed absorbs the duplicate as a no-op.
func (o *Orchestrator) Fail(ctx context.Context, jobID, errorMessage string) (*domain.Job, error) {
	if errorMessage == "" {
		errorMessage = "generation failed"
	}
	job, err := scanJob(o.SQL.QueryRow(ctx, sqlinline.QFailJob, jobID, errorMessage))
	if err == nil {
		o.Logger.Info().Str("job_id", jobID).Str("error", errorMessage).Msg("job failed")
		o.publish(ctx, notify.Event{Type: notify.EventJobFailed, UserID: job.UserID, JobID: job.ID, Module: string(job.Module), Message: errorMessage})
		return job, nil
	}
	if !infra.IsNoRows(err) {
		return nil, fmt.Errorf("jobs: fail: %w", err)
	}

	existing, err := o.GetStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(existing.Status, domain.JobStatusFailed) {
		if existing.Status == domain.JobStatusFailed {
			o.Logger.Debug().Str("job_id", jobID).Msg("fail callback absorbed as no-op")
			return existing, nil
		}
		return nil, fmt.Errorf("%w: cannot fail job in status %s", domain.ErrInvalidTransition, existing.Status)
	}
	return nil, fmt.Errorf("jobs: fail: job %s changed concurrently", jobID)
}

func (o *Orchestrator) publish(ctx context.Context, event notify.Event) {
	if o.Notifier == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := o.Notifier.Publish(ctx, event); err != nil {
		o.Logger.Error().Err(err).Str("event", string(event.Type)).Msg("jobs: publish event failed")
	}
}

// scanJob reads a row in the sqlinline.jobColumns order.
func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var module string
	var finalURLs []byte
	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.ClientJobID,
		&module,
		&job.Params,
		&job.Status,
		&job.EstimatedCost,
		&job.ActualCost,
		&job.PreviewURL,
		&finalURLs,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Module = domain.Module(module)
	if len(finalURLs) > 0 {
		if err := json.Unmarshal(finalURLs, &job.FinalURLs); err != nil {
			return nil, fmt.Errorf("decode final urls: %w", err)
		}
	}
	return &job, nil
}
