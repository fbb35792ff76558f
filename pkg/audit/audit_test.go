package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filedepot/pkg/audit"
)

// captureRecorder remembers what it saw, for fanout tests.
type captureRecorder struct {
	mu       sync.Mutex
	events   []audit.Event
	closed   bool
	closeErr error
}

func (r *captureRecorder) Record(_ context.Context, event audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *captureRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return r.closeErr
}

func TestNoopRecorder(t *testing.T) {
	r := audit.NewNoopRecorder()
	r.Record(context.Background(), audit.Event{Action: audit.ActionUserLogin})
	assert.NoError(t, r.Close())
}

func TestFanoutRecorder(t *testing.T) {
	first := &captureRecorder{}
	second := &captureRecorder{}
	fanout := audit.NewFanoutRecorder(first, second)

	event := audit.Event{
		Action:   audit.ActionFileUpload,
		ActorID:  "f47ac10b-58cc-4372-a567-0e02b2c3d479",
		ObjectID: "file-1",
	}
	fanout.Record(context.Background(), event)

	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	assert.Equal(t, event, first.events[0])

	require.NoError(t, fanout.Close())
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}

func TestFanoutRecorder_CollectsCloseErrors(t *testing.T) {
	first := &captureRecorder{closeErr: errors.New("first failed")}
	second := &captureRecorder{}
	third := &captureRecorder{closeErr: errors.New("third failed")}

	err := audit.NewFanoutRecorder(first, second, third).Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first failed")
	assert.Contains(t, err.Error(), "third failed")
	assert.True(t, second.closed, "a failing sibling must not skip close")
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	r := audit.NewLogRecorder(zerolog.New(&buf))

	r.Record(context.Background(), audit.Event{
		Time:       time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
		Action:     audit.ActionShareAccess,
		ObjectID:   "share-1",
		Detail:     map[string]string{"client_ip": "203.0.113.9"},
		ActorEmail: "alice@example.com",
	})
	require.NoError(t, r.Close())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "share.access", entry["action"])
	assert.Equal(t, "share-1", entry["object_id"])
	assert.Equal(t, "alice@example.com", entry["actor_email"])
	assert.Equal(t, "audit", entry["message"])

	detail, ok := entry["detail"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "203.0.113.9", detail["client_ip"])
}

func TestLogRecorder_FillsZeroTime(t *testing.T) {
	var buf bytes.Buffer
	r := audit.NewLogRecorder(zerolog.New(&buf))

	r.Record(context.Background(), audit.Event{Action: audit.ActionUserLogin})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotEmpty(t, entry["event_time"])
}

func TestNewKafkaRecorder_RequiresBrokers(t *testing.T) {
	_, err := audit.NewKafkaRecorder(audit.KafkaConfig{})
	assert.Error(t, err)
}
