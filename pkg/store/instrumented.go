package store

import (
	"context"
	"time"

	"github.com/marmos91/filedepot/pkg/depot"
	"github.com/marmos91/filedepot/pkg/metrics"
)

// InstrumentedStore decorates another Store with per-query metrics.
//
// It adds no behavior of its own: arguments, results, and errors pass
// through untouched. Every operation is reported to the recorder with
// its snake_case name ("create_user", "list_files", ...), duration,
// and outcome. Close is lifecycle, not a query, and is not recorded.
type InstrumentedStore struct {
	inner Store
	rec   metrics.StoreMetrics
}

// WithMetrics wraps a store so every query is reported to rec. A nil
// recorder degrades to a noop, so callers can wrap unconditionally.
func WithMetrics(inner Store, rec metrics.StoreMetrics) *InstrumentedStore {
	if rec == nil {
		rec = metrics.NewNoopStoreMetrics()
	}
	return &InstrumentedStore{inner: inner, rec: rec}
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	s.rec.RecordQuery(op, time.Since(start), err)
}

// ============================================================================
// Users
// ============================================================================

func (s *InstrumentedStore) CreateUser(ctx context.Context, user *depot.User) error {
	start := time.Now()
	err := s.inner.CreateUser(ctx, user)
	s.observe("create_user", start, err)
	return err
}

func (s *InstrumentedStore) GetUser(ctx context.Context, id string) (*depot.User, error) {
	start := time.Now()
	user, err := s.inner.GetUser(ctx, id)
	s.observe("get_user", start, err)
	return user, err
}

func (s *InstrumentedStore) GetUserByEmail(ctx context.Context, email string) (*depot.User, error) {
	start := time.Now()
	user, err := s.inner.GetUserByEmail(ctx, email)
	s.observe("get_user_by_email", start, err)
	return user, err
}

func (s *InstrumentedStore) UpdateUser(ctx context.Context, user *depot.User) error {
	start := time.Now()
	err := s.inner.UpdateUser(ctx, user)
	s.observe("update_user", start, err)
	return err
}

func (s *InstrumentedStore) DeleteUser(ctx context.Context, id string) error {
	start := time.Now()
	err := s.inner.DeleteUser(ctx, id)
	s.observe("delete_user", start, err)
	return err
}

func (s *InstrumentedStore) ListUsers(ctx context.Context, page Page) ([]*depot.User, int, error) {
	start := time.Now()
	users, total, err := s.inner.ListUsers(ctx, page)
	s.observe("list_users", start, err)
	return users, total, err
}

// ============================================================================
// Files
// ============================================================================

func (s *InstrumentedStore) CreateFile(ctx context.Context, file *depot.File) error {
	start := time.Now()
	err := s.inner.CreateFile(ctx, file)
	s.observe("create_file", start, err)
	return err
}

func (s *InstrumentedStore) GetFile(ctx context.Context, id string) (*depot.File, error) {
	start := time.Now()
	file, err := s.inner.GetFile(ctx, id)
	s.observe("get_file", start, err)
	return file, err
}

func (s *InstrumentedStore) UpdateFile(ctx context.Context, file *depot.File) error {
	start := time.Now()
	err := s.inner.UpdateFile(ctx, file)
	s.observe("update_file", start, err)
	return err
}

func (s *InstrumentedStore) DeleteFile(ctx context.Context, id string) error {
	start := time.Now()
	err := s.inner.DeleteFile(ctx, id)
	s.observe("delete_file", start, err)
	return err
}

func (s *InstrumentedStore) ListFiles(ctx context.Context, filter FileFilter, page Page) ([]*depot.File, int, error) {
	start := time.Now()
	files, total, err := s.inner.ListFiles(ctx, filter, page)
	s.observe("list_files", start, err)
	return files, total, err
}

func (s *InstrumentedStore) ListFolders(ctx context.Context, ownerID string) ([]string, error) {
	start := time.Now()
	folders, err := s.inner.ListFolders(ctx, ownerID)
	s.observe("list_folders", start, err)
	return folders, err
}

func (s *InstrumentedStore) IncrementDownloadCount(ctx context.Context, id string) error {
	start := time.Now()
	err := s.inner.IncrementDownloadCount(ctx, id)
	s.observe("increment_download_count", start, err)
	return err
}

func (s *InstrumentedStore) Stats(ctx context.Context, ownerID string) (FileStats, error) {
	start := time.Now()
	stats, err := s.inner.Stats(ctx, ownerID)
	s.observe("stats", start, err)
	return stats, err
}

func (s *InstrumentedStore) ForEachObjectKey(ctx context.Context, fn func(key string) error) error {
	start := time.Now()
	err := s.inner.ForEachObjectKey(ctx, fn)
	s.observe("for_each_object_key", start, err)
	return err
}

// ============================================================================
// Shares
// ============================================================================

func (s *InstrumentedStore) CreateShare(ctx context.Context, share *depot.Share) error {
	start := time.Now()
	err := s.inner.CreateShare(ctx, share)
	s.observe("create_share", start, err)
	return err
}

func (s *InstrumentedStore) GetShare(ctx context.Context, id string) (*depot.Share, error) {
	start := time.Now()
	share, err := s.inner.GetShare(ctx, id)
	s.observe("get_share", start, err)
	return share, err
}

func (s *InstrumentedStore) GetShareByFileID(ctx context.Context, fileID string) (*depot.Share, error) {
	start := time.Now()
	share, err := s.inner.GetShareByFileID(ctx, fileID)
	s.observe("get_share_by_file_id", start, err)
	return share, err
}

func (s *InstrumentedStore) UpdateShare(ctx context.Context, share *depot.Share) error {
	start := time.Now()
	err := s.inner.UpdateShare(ctx, share)
	s.observe("update_share", start, err)
	return err
}

func (s *InstrumentedStore) DeleteShare(ctx context.Context, id string) error {
	start := time.Now()
	err := s.inner.DeleteShare(ctx, id)
	s.observe("delete_share", start, err)
	return err
}

func (s *InstrumentedStore) DeleteShareByFileID(ctx context.Context, fileID string) error {
	start := time.Now()
	err := s.inner.DeleteShareByFileID(ctx, fileID)
	s.observe("delete_share_by_file_id", start, err)
	return err
}

func (s *InstrumentedStore) ListSharesByOwner(ctx context.Context, ownerID string, page Page) ([]*depot.Share, int, error) {
	start := time.Now()
	shares, total, err := s.inner.ListSharesByOwner(ctx, ownerID, page)
	s.observe("list_shares_by_owner", start, err)
	return shares, total, err
}

func (s *InstrumentedStore) IncrementAccessCount(ctx context.Context, id string) error {
	start := time.Now()
	err := s.inner.IncrementAccessCount(ctx, id)
	s.observe("increment_access_count", start, err)
	return err
}

func (s *InstrumentedStore) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	start := time.Now()
	purged, err := s.inner.PurgeExpired(ctx, before)
	s.observe("purge_expired", start, err)
	return purged, err
}

// ============================================================================
// Lifecycle
// ============================================================================

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.observe("ping", start, err)
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
