package prefs

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// SettingsUpdatedEvent is emitted after a preference write takes effect.
const SettingsUpdatedEvent = "notifications.settings_updated"

// Event is an analytics/audit record for a settings change. Delivery is
// fire-and-forget: a failing recorder never blocks or fails the write.
type Event struct {
	ID            string
	Name          string
	RecipientKind RecipientKind
	RecipientID   int64
	Provider      Provider
	Type          AlertType
	Value         Value
	OccurredAt    time.Time
}

// Recorder receives analytics events about settings changes.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// NoOpRecorder discards all events. Used when no analytics sink is wired.
type NoOpRecorder struct{}

// Record does nothing and returns nil.
func (NoOpRecorder) Record(ctx context.Context, event Event) error {
	return nil
}

// LogRecorder writes events to a structured logger, useful in development
// and as a bare-bones audit trail.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder creates a recorder backed by the given logger.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger}
}

// Record logs the event at Info level.
func (r *LogRecorder) Record(ctx context.Context, event Event) error {
	r.logger.LogAttrs(ctx, slog.LevelInfo, event.Name,
		slog.String("event_id", event.ID),
		slog.String("recipient_kind", string(event.RecipientKind)),
		slog.Int64("recipient_id", event.RecipientID),
		slog.String("provider", string(event.Provider)),
		slog.String("alert_type", string(event.Type)),
		slog.String("value", string(event.Value)),
		slog.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

// newEvent stamps identity and time onto a settings-updated event.
func newEvent(recipient Recipient, provider Provider, t AlertType, value Value) Event {
	return Event{
		ID:            uuid.New().String(),
		Name:          SettingsUpdatedEvent,
		RecipientKind: recipient.Kind,
		RecipientID:   recipient.ID,
		Provider:      provider,
		Type:          t,
		Value:         value,
		OccurredAt:    time.Now(),
	}
}
