package notify

import (
	"context"
	"log/slog"
	"time"
)

// Event is emitted on every terminal status transition. Delivery is
// fire-and-forget: a failing notifier must never roll back the transition
// that produced the event.
type Event struct {
	EntityType string    `json:"entity_type"` // booking|payment|verification
	EntityID   string    `json:"entity_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Timestamp  time.Time `json:"timestamp"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// LogNotifier writes events to structured logs. The real notification
// subsystem (push/SMS) consumes these downstream; the core only emits.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, ev Event) {
	n.logger.InfoContext(ctx, "lifecycle_event",
		"entity_type", ev.EntityType,
		"entity_id", ev.EntityID,
		"from_status", ev.FromStatus,
		"to_status", ev.ToStatus,
		"timestamp", ev.Timestamp,
	)
}

// Noop is used where a notifier is required but events are not wanted,
// e.g. backfill tools.
type Noop struct{}

func (Noop) Notify(context.Context, Event) {}
