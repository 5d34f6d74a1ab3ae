package domain

import (
	"encoding/json"
	"time"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued       JobStatus = "queued"
	JobStatusProcessing   JobStatus = "processing"
	JobStatusPreviewReady JobStatus = "preview_ready"
	JobStatusCompleted    JobStatus = "completed"
	JobStatusFailed       JobStatus = "failed"
)

// Terminal reports whether no further transitions are legal from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job encapsulates one unit of asynchronous generation work.
type Job struct {
	ID            string
	UserID        string
	ClientJobID   string
	Module        Module
	Params        json.RawMessage
	Status        JobStatus
	EstimatedCost int
	ActualCost    int
	PreviewURL    string
	FinalURLs     []string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var transitions = map[JobStatus]map[JobStatus]bool{
	JobStatusQueued: {
		JobStatusProcessing:   true,
		JobStatusPreviewReady: true,
		JobStatusCompleted:    true,
		JobStatusFailed:       true,
	},
	JobStatusProcessing: {
		JobStatusPreviewReady: true,
		JobStatusCompleted:    true,
		JobStatusFailed:       true,
	},
	JobStatusPreviewReady: {
		JobStatusCompleted: true,
		JobStatusFailed:    true,
	},
}

// CanTransition reports whether moving from one status to another is legal.
// Some modules skip preview_ready and go straight to completed.
func CanTransition(from, to JobStatus) bool {
	return transitions[from][to]
}
