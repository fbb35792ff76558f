package gc

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/marmos91/filedepot/pkg/blob"
	blobmem "github.com/marmos91/filedepot/pkg/blob/memory"
	"github.com/marmos91/filedepot/pkg/depot"
	"github.com/marmos91/filedepot/pkg/store"
	storemem "github.com/marmos91/filedepot/pkg/store/memory"
)

func newHarness(t *testing.T) (store.Store, *blobmem.MemoryBlobStore) {
	t.Helper()

	st, err := storemem.NewMemoryStore(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	blobs := blobmem.NewMemoryBlobStore()
	t.Cleanup(func() { _ = blobs.Close() })

	return st, blobs
}

func seedUser(t *testing.T, st store.Store) *depot.User {
	t.Helper()
	ts := time.Now().UTC()
	user := &depot.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@example.com",
		Username:     "tester",
		PasswordHash: "$2a$10$fakehashfakehashfakehash",
		Role:         depot.RoleUser,
		QuotaBytes:   1 << 30,
		Active:       true,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	require.NoError(t, st.CreateUser(context.Background(), user))
	return user
}

func seedFile(t *testing.T, st store.Store, ownerID, objectKey string) *depot.File {
	t.Helper()
	ts := time.Now().UTC()
	file := &depot.File{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Filename:    "report.txt",
		Folder:      "/",
		Size:        int64(len("live bytes")),
		ContentType: "text/plain",
		MD5:         "9e107d9d372bb6826bd81d3542a419d6",
		ObjectKey:   objectKey,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	require.NoError(t, st.CreateFile(context.Background(), file))
	return file
}

func seedShare(t *testing.T, st store.Store, file *depot.File, expiresAt *time.Time) *depot.Share {
	t.Helper()
	ts := time.Now().UTC()
	share := &depot.Share{
		ID:        uuid.NewString(),
		FileID:    file.ID,
		OwnerID:   file.OwnerID,
		Type:      depot.SharePublic,
		ExpiresAt: expiresAt,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	require.NoError(t, st.CreateShare(context.Background(), share))
	return share
}

// putObject stores content under key and backdates it by age so the
// collector sees it as old.
func putObject(t *testing.T, blobs *blobmem.MemoryBlobStore, key, content string, age time.Duration) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, blobs.Put(ctx, key, strings.NewReader(content), int64(len(content)), "text/plain"))
	if age > 0 {
		blobs.SetModTime(key, time.Now().Add(-age))
	}
}

func TestCollector_DeletesOrphanedObjects(t *testing.T) {
	st, blobs := newHarness(t)
	ctx := context.Background()

	user := seedUser(t, st)
	seedFile(t, st, user.ID, "2026/01/02/abcd1234/live.txt")

	putObject(t, blobs, "2026/01/02/abcd1234/live.txt", "live bytes", 2*time.Hour)
	putObject(t, blobs, "2026/01/02/abcd1234/orphan-1.txt", "orphan one", 2*time.Hour)
	putObject(t, blobs, "2026/01/02/abcd1234/orphan-2.txt", "orphan two", 2*time.Hour)
	putObject(t, blobs, "2026/01/02/abcd1234/fresh.txt", "fresh upload", 0)

	// BatchSize 1 exercises the batching loop
	collector := NewCollector(st, blobs, Config{
		Enabled:     true,
		GracePeriod: time.Hour,
		BatchSize:   1,
	})

	stats, err := collector.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.ReferencedObjects)
	assert.Equal(t, uint64(4), stats.ScannedObjects)
	assert.Equal(t, uint64(2), stats.OrphanedObjects)
	assert.Equal(t, uint64(2), stats.DeletedObjects)
	assert.Equal(t, uint64(0), stats.FailedObjects)
	assert.Equal(t, uint64(len("orphan one")+len("orphan two")), stats.DeletedBytes)

	// The referenced object and the fresh one survive
	_, err = blobs.Stat(ctx, "2026/01/02/abcd1234/live.txt")
	assert.NoError(t, err)
	_, err = blobs.Stat(ctx, "2026/01/02/abcd1234/fresh.txt")
	assert.NoError(t, err)

	_, err = blobs.Stat(ctx, "2026/01/02/abcd1234/orphan-1.txt")
	assert.True(t, depot.IsNotFound(err))
	assert.Equal(t, 2, blobs.Len())
}

func TestCollector_PurgesExpiredShares(t *testing.T) {
	st, blobs := newHarness(t)
	ctx := context.Background()

	user := seedUser(t, st)
	fileOld := seedFile(t, st, user.ID, "k/old")
	fileRecent := seedFile(t, st, user.ID, "k/recent")
	filePermanent := seedFile(t, st, user.ID, "k/permanent")

	longGone := time.Now().Add(-2 * time.Hour)
	justNow := time.Now().Add(-10 * time.Minute)

	expired := seedShare(t, st, fileOld, &longGone)
	recent := seedShare(t, st, fileRecent, &justNow)
	permanent := seedShare(t, st, filePermanent, nil)

	collector := NewCollector(st, blobs, Config{Enabled: true, GracePeriod: time.Hour})

	stats, err := collector.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.PurgedShares)

	_, err = st.GetShare(ctx, expired.ID)
	assert.True(t, depot.IsNotFound(err))

	// Still inside the grace period, and permanent shares never go
	_, err = st.GetShare(ctx, recent.ID)
	assert.NoError(t, err)
	_, err = st.GetShare(ctx, permanent.ID)
	assert.NoError(t, err)
}

func TestCollector_DryRunDeletesNothing(t *testing.T) {
	st, blobs := newHarness(t)
	ctx := context.Background()

	user := seedUser(t, st)
	file := seedFile(t, st, user.ID, "k/live")
	longGone := time.Now().Add(-2 * time.Hour)
	share := seedShare(t, st, file, &longGone)

	putObject(t, blobs, "k/orphan", "doomed but spared", 2*time.Hour)

	collector := NewCollector(st, blobs, Config{
		Enabled:     true,
		GracePeriod: time.Hour,
		DryRun:      true,
	})

	stats, err := collector.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.OrphanedObjects)
	assert.Equal(t, uint64(0), stats.DeletedObjects)
	assert.Equal(t, uint64(0), stats.PurgedShares)

	_, err = blobs.Stat(ctx, "k/orphan")
	assert.NoError(t, err)
	_, err = st.GetShare(ctx, share.ID)
	assert.NoError(t, err)
}

// listlessStore hides the Lister capability of the wrapped store.
type listlessStore struct {
	blob.Store
}

func TestCollector_SkipsOrphanSweepWithoutLister(t *testing.T) {
	st, blobs := newHarness(t)
	ctx := context.Background()

	putObject(t, blobs, "k/orphan", "unreachable", 2*time.Hour)

	collector := NewCollector(st, listlessStore{blobs}, Config{Enabled: true, GracePeriod: time.Hour})

	stats, err := collector.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), stats.ScannedObjects)
	assert.Equal(t, uint64(0), stats.DeletedObjects)

	_, err = blobs.Stat(ctx, "k/orphan")
	assert.NoError(t, err)
}

func TestCollector_RunOnceHonorsCancellation(t *testing.T) {
	st, blobs := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	collector := NewCollector(st, blobs, Config{Enabled: true})
	_, err := collector.RunOnce(ctx)
	assert.Error(t, err)
}

func TestCollector_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	st, blobs := newHarness(t)

	collector := NewCollector(st, blobs, Config{Enabled: true, Interval: time.Hour})
	collector.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, collector.Stop(ctx))
}

func TestCollector_DisabledIsNoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	st, blobs := newHarness(t)

	collector := NewCollector(st, blobs, Config{Enabled: false})
	collector.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, collector.Stop(ctx))
}

func TestCollector_ServeUnblocksOnStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	st, blobs := newHarness(t)

	collector := NewCollector(st, blobs, Config{Enabled: true, Interval: time.Hour})

	done := make(chan error, 1)
	go func() {
		done <- collector.Serve(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, collector.Stop(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after Stop")
	}

	// Stop is idempotent
	require.NoError(t, collector.Stop(ctx))
}

func TestStats_Summary(t *testing.T) {
	s := &Stats{
		StartTime:      time.Now().Add(-time.Second),
		EndTime:        time.Now(),
		PurgedShares:   1,
		DeletedObjects: 3,
		DeletedBytes:   2048,
	}

	summary := s.Summary()
	assert.Contains(t, summary, "shares_purged=1")
	assert.Contains(t, summary, "deleted=3")
	assert.Contains(t, summary, "reclaimed=")

	// Zero EndTime means a run in progress; Duration counts from the start
	running := &Stats{StartTime: time.Now().Add(-time.Minute)}
	assert.Greater(t, running.Duration(), 30*time.Second)
}
