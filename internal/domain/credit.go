package domain

import "time"

// CreditEntryType enumerates ledger entry kinds.
type CreditEntryType string

const (
	CreditEntryDebit CreditEntryType = "debit"
	CreditEntryGrant CreditEntryType = "grant"
)

// CreditEntry is one ledger row. Debits reference the job they settle; the
// unique index on job_id is what makes a replayed debit a no-op.
type CreditEntry struct {
	ID        string
	UserID    string
	JobID     string
	EntryType CreditEntryType
	Amount    int
	Reason    string
	CreatedAt time.Time
}
