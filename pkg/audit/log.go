package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRecorder writes audit events as structured log entries. This is the
// default sink: no extra infrastructure, events land in the same stream
// as the rest of the logs.
type LogRecorder struct {
	log zerolog.Logger
}

// NewLogRecorder creates a recorder writing through the given logger.
func NewLogRecorder(log zerolog.Logger) *LogRecorder {
	return &LogRecorder{log: log}
}

func (r *LogRecorder) Record(_ context.Context, event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	entry := r.log.Info().
		Time("event_time", event.Time).
		Str("action", string(event.Action))
	if event.ActorID != "" {
		entry = entry.Str("actor_id", event.ActorID)
	}
	if event.ActorEmail != "" {
		entry = entry.Str("actor_email", event.ActorEmail)
	}
	if event.ObjectID != "" {
		entry = entry.Str("object_id", event.ObjectID)
	}
	if len(event.Detail) > 0 {
		entry = entry.Interface("detail", event.Detail)
	}
	entry.Msg("audit")
}

func (r *LogRecorder) Close() error { return nil }
