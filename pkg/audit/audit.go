// Package audit records who did what to which object.
//
// Events are advisory: recorders must never fail the request that
// produced them, which is why Record returns nothing. Delivery problems
// are logged and dropped.
package audit

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Action identifies the kind of event.
type Action string

const (
	ActionUserRegister    Action = "user.register"
	ActionUserLogin       Action = "user.login"
	ActionUserLoginFailed Action = "user.login_failed"

	ActionFileUpload   Action = "file.upload"
	ActionFileDownload Action = "file.download"
	ActionFileDelete   Action = "file.delete"

	ActionShareCreate Action = "share.create"
	ActionShareUpdate Action = "share.update"
	ActionShareCancel Action = "share.cancel"

	// ActionShareAccess is a successful public download through a
	// share link; the actor fields stay empty.
	ActionShareAccess Action = "share.access"
)

// Event is one audit record.
type Event struct {
	// Time the event happened; recorders fill in time.Now() when zero
	Time time.Time `json:"time"`

	// Action names what happened
	Action Action `json:"action"`

	// ActorID and ActorEmail identify the authenticated user, when
	// there is one
	ActorID    string `json:"actor_id,omitempty"`
	ActorEmail string `json:"actor_email,omitempty"`

	// ObjectID is the file, share or user the action touched
	ObjectID string `json:"object_id,omitempty"`

	// Detail carries action-specific context (filename, share type,
	// client IP)
	Detail map[string]string `json:"detail,omitempty"`
}

// Recorder is an audit event sink.
//
// Thread safety: implementations must be safe for concurrent use.
type Recorder interface {
	// Record submits one event. It must not block the request path
	// beyond local queueing and must swallow delivery errors.
	Record(ctx context.Context, event Event)

	// Close flushes and releases the sink.
	Close() error
}

// NoopRecorder discards every event.
type NoopRecorder struct{}

// NewNoopRecorder returns a recorder that does nothing.
func NewNoopRecorder() *NoopRecorder {
	return &NoopRecorder{}
}

func (*NoopRecorder) Record(context.Context, Event) {}

func (*NoopRecorder) Close() error { return nil }

// FanoutRecorder duplicates every event to several sinks.
type FanoutRecorder struct {
	recorders []Recorder
}

// NewFanoutRecorder composes recorders into one.
func NewFanoutRecorder(recorders ...Recorder) *FanoutRecorder {
	return &FanoutRecorder{recorders: recorders}
}

func (r *FanoutRecorder) Record(ctx context.Context, event Event) {
	for _, rec := range r.recorders {
		rec.Record(ctx, event)
	}
}

func (r *FanoutRecorder) Close() error {
	var errs *multierror.Error
	for _, rec := range r.recorders {
		if err := rec.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
