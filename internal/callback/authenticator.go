package callback

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// JobReader looks up the job a callback claims to belong to.
type JobReader interface {
	GetStatus(ctx context.Context, jobID string) (*domain.Job, error)
}

// Authenticator verifies that an inbound transition request originates from an
// authorized worker and has not been replayed. The signature and timestamp
// checks are pure; the job liveness check is the only stateful step and runs
// last so the two concerns stay independently testable.
type Authenticator struct {
	secret    string
	tolerance time.Duration
	jobs      JobReader
	logger    zerolog.Logger
	now       func() time.Time
}

func NewAuthenticator(secret string, tolerance time.Duration, jobs JobReader, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		secret:    secret,
		tolerance: tolerance,
		jobs:      jobs,
		logger:    logger,
		now:       time.Now,
	}
}

// Verify runs the three checks in order: signature, timestamp window, job
// liveness. A passing envelope references an existing non-terminal job, so a
// replayed callback against settled work is dropped here.
func (a *Authenticator) Verify(ctx context.Context, env Envelope) (*domain.Job, error) {
	if !VerifySignature(a.secret, env) {
		a.logger.Warn().Str("job_id", env.JobID).Msg("callback: signature mismatch")
		return nil, domain.ErrInvalidSignature
	}

	sent := time.Unix(env.Timestamp, 0)
	if drift := a.now().Sub(sent); drift > a.tolerance || drift < -a.tolerance {
		a.logger.Warn().Str("job_id", env.JobID).Int64("timestamp", env.Timestamp).Msg("callback: timestamp outside tolerance")
		return nil, domain.ErrStaleTimestamp
	}

	job, err := a.jobs.GetStatus(ctx, env.JobID)
	if err != nil {
		if err == domain.ErrNotFound {
			a.logger.Warn().Str("job_id", env.JobID).Msg("callback: unknown job")
			return nil, domain.ErrTerminalJob
		}
		return nil, fmt.Errorf("callback: load job: %w", err)
	}
	if job.Status.Terminal() {
		a.logger.Warn().Str("job_id", env.JobID).Str("status", string(job.Status)).Msg("callback: job already terminal")
		return nil, domain.ErrTerminalJob
	}
	return job, nil
}
