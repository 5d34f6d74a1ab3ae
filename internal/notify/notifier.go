package notify

import (
	"context"
	"time"
)

// EventType enumerates the events this subsystem emits. Rendering and delivery
// belong to the downstream consumer.
type EventType string

const (
	EventJobCompleted   EventType = "job.completed"
	EventJobFailed      EventType = "job.failed"
	EventLowBalance     EventType = "credits.low_balance"
	EventHistoryEvicted EventType = "history.evicted"
)

// Event is one notification message.
type Event struct {
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id"`
	JobID      string    `json:"job_id,omitempty"`
	Module     string    `json:"module,omitempty"`
	Balance    int       `json:"balance,omitempty"`
	Evicted    int       `json:"evicted,omitempty"`
	Message    string    `json:"message,omitempty"`
	Locale     string    `json:"locale,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier publishes events to the notification collaborator.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// Noop drops all events. Used when no AMQP broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
