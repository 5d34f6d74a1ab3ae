package domain

import "time"

// HistoryCapacity bounds live history entries per user. Enforced at insertion
// time, never by a background sweep.
const HistoryCapacity = 30

// HistoryEntry is an immutable record of a completed generation.
type HistoryEntry struct {
	UserID     string
	JobID      string
	Module     Module
	PreviewURL string
	FinalURLs  []string
	CreditCost int
	CreatedAt  time.Time
}
