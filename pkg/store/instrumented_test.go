package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filedepot/pkg/depot"
	"github.com/marmos91/filedepot/pkg/store"
	"github.com/marmos91/filedepot/pkg/store/memory"
	storetesting "github.com/marmos91/filedepot/pkg/store/testing"
)

// recordingMetrics captures every query reported to it.
type recordingMetrics struct {
	mu      sync.Mutex
	queries []recordedQuery
}

type recordedQuery struct {
	op       string
	duration time.Duration
	err      error
}

func (r *recordingMetrics) RecordQuery(op string, duration time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, recordedQuery{op: op, duration: duration, err: err})
}

func (r *recordingMetrics) ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.queries))
	for i, q := range r.queries {
		out[i] = q.op
	}
	return out
}

func newInstrumented(t *testing.T) (*store.InstrumentedStore, *recordingMetrics) {
	t.Helper()
	inner, err := memory.NewMemoryStore(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = inner.Close() })
	rec := &recordingMetrics{}
	return store.WithMetrics(inner, rec), rec
}

func TestInstrumentedStore_RecordsOps(t *testing.T) {
	ctx := context.Background()
	s, rec := newInstrumented(t)

	user := &depot.User{ID: "u1", Email: "a@b.c", Role: depot.RoleUser, Active: true}
	require.NoError(t, s.CreateUser(ctx, user))
	_, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	_, _, err = s.ListFiles(ctx, store.FileFilter{OwnerID: "u1"}, store.Page{})
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))

	assert.Equal(t, []string{"create_user", "get_user", "list_files", "ping"}, rec.ops())
}

func TestInstrumentedStore_RecordsFailures(t *testing.T) {
	ctx := context.Background()
	s, rec := newInstrumented(t)

	_, err := s.GetFile(ctx, "no-such-file")
	require.Error(t, err)
	assert.True(t, depot.IsNotFound(err))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.queries, 1)
	assert.Equal(t, "get_file", rec.queries[0].op)
	assert.Error(t, rec.queries[0].err)
	assert.GreaterOrEqual(t, rec.queries[0].duration, time.Duration(0))
}

// Close is lifecycle, not a query, and must not show up in the stream.
func TestInstrumentedStore_CloseNotRecorded(t *testing.T) {
	inner, err := memory.NewMemoryStore(context.Background())
	require.NoError(t, err)
	rec := &recordingMetrics{}
	s := store.WithMetrics(inner, rec)

	require.NoError(t, s.Close())
	assert.Empty(t, rec.ops())
}

func TestInstrumentedStore_NilRecorder(t *testing.T) {
	ctx := context.Background()
	inner, err := memory.NewMemoryStore(ctx)
	require.NoError(t, err)
	defer inner.Close()

	s := store.WithMetrics(inner, nil)
	user := &depot.User{ID: "u1", Email: "a@b.c", Role: depot.RoleUser, Active: true}
	require.NoError(t, s.CreateUser(ctx, user))
}

// The wrapper must be transparent: a decorated store passes the same
// conformance suite as the store it wraps.
func TestInstrumentedStore_Conformance(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) store.Store {
			inner, err := memory.NewMemoryStore(context.Background())
			require.NoError(t, err)
			return store.WithMetrics(inner, &recordingMetrics{})
		},
	}
	suite.Run(t)
}
