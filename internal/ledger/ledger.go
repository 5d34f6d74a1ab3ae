package ledger

import (
	"context"
	"fmt"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// Ledger realizes exactly-once debit and refundless grants against credit
// accounts. Construct it over the pool for standalone reads, or over an open
// transaction when a debit must commit atomically with a job transition.
type Ledger struct {
	SQL infra.SQLExecutor
}

func New(sq infra.SQLExecutor) *Ledger {
	return &Ledger{SQL: sq}
}

// DebitResult reports the outcome of a settle attempt.
type DebitResult struct {
	Balance int
	// Applied is false when the job already had a ledger entry and the call
	// was absorbed as a no-op.
	Applied bool
}

// Debit settles a job's actual cost exactly once, keyed by jobID. The account
// row is locked first; within one transaction that lock also serializes the
// caller's follow-up effects per user. A second debit for the same job is
// detected and treated as already applied.
func (l *Ledger) Debit(ctx context.Context, userID, jobID string, amount int) (DebitResult, error) {
	if amount < 0 {
		return DebitResult{}, fmt.Errorf("%w: negative debit", domain.ErrValidation)
	}

	var balance int
	err := l.SQL.QueryRow(ctx, sqlinline.QSelectBalanceForUpdate, userID).Scan(&balance)
	if err != nil {
		if infra.IsNoRows(err) {
			return DebitResult{}, domain.ErrInsufficientBalance
		}
		return DebitResult{}, fmt.Errorf("ledger: lock account: %w", err)
	}

	var prior int
	err = l.SQL.QueryRow(ctx, sqlinline.QSelectDebitForJob, jobID).Scan(&prior)
	if err == nil {
		return DebitResult{Balance: balance, Applied: false}, nil
	}
	if !infra.IsNoRows(err) {
		return DebitResult{}, fmt.Errorf("ledger: check entry: %w", err)
	}

	if balance < amount {
		return DebitResult{}, domain.ErrInsufficientBalance
	}

	var remaining int
	err = l.SQL.QueryRow(ctx, sqlinline.QDebitForJob, userID, jobID, amount).Scan(&remaining)
	if err != nil {
		if infra.IsNoRows(err) {
			// Raced with another debit for the same job; the unique index on
			// job_id absorbed ours.
			return DebitResult{Balance: balance, Applied: false}, nil
		}
		if infra.IsCheckViolation(err) {
			return DebitResult{}, domain.ErrInsufficientBalance
		}
		return DebitResult{}, fmt.Errorf("ledger: debit: %w", err)
	}
	return DebitResult{Balance: remaining, Applied: true}, nil
}

// Balance returns the user's current balance. Users without an account read as zero.
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	if err := l.SQL.QueryRow(ctx, sqlinline.QSelectBalance, userID).Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("ledger: balance: %w", err)
	}
	return balance, nil
}

// Grant adds credits to an account, creating it on first grant. Used by
// top-up flows; the pipeline itself only debits.
func (l *Ledger) Grant(ctx context.Context, userID string, amount int, reason string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: grant must be positive", domain.ErrValidation)
	}
	var balance int
	if err := l.SQL.QueryRow(ctx, sqlinline.QGrantCredits, userID, amount, reason).Scan(&balance); err != nil {
		return 0, fmt.Errorf("ledger: grant: %w", err)
	}
	return balance, nil
}
