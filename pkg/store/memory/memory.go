// Package memory provides an in-memory metadata store.
//
// It backs unit tests and the e2e suite; nothing is persisted. The
// implementation mirrors the sqlite store's behavior exactly (including
// relational constraints) so the two stay interchangeable under the
// conformance suite.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/filedepot/pkg/depot"
	"github.com/marmos91/filedepot/pkg/store"
)

// MemoryStore implements store.Store using mutex-guarded maps.
//
// Thread safety: all operations are protected by a sync.RWMutex. Records
// are copied on the way in and out so callers can never alias internal
// state.
type MemoryStore struct {
	mu sync.RWMutex

	users        map[string]*depot.User
	usersByEmail map[string]string

	files map[string]*depot.File

	shares       map[string]*depot.Share
	sharesByFile map[string]string

	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(ctx context.Context) (*MemoryStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &MemoryStore{
		users:        make(map[string]*depot.User),
		usersByEmail: make(map[string]string),
		files:        make(map[string]*depot.File),
		shares:       make(map[string]*depot.Share),
		sharesByFile: make(map[string]string),
	}, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkOpen()
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// checkOpen must be called with the lock held.
func (s *MemoryStore) checkOpen() error {
	if s.closed {
		return &depot.StoreError{Code: depot.ErrIOError, Message: "store is closed"}
	}
	return nil
}

// ============================================================================
// Users
// ============================================================================

func (s *MemoryStore) CreateUser(ctx context.Context, user *depot.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	if _, ok := s.users[user.ID]; ok {
		return &depot.StoreError{Code: depot.ErrExists, Message: "user already exists", Key: user.ID}
	}
	if _, ok := s.usersByEmail[user.Email]; ok {
		return &depot.StoreError{Code: depot.ErrExists, Message: "email already registered", Key: user.Email}
	}

	s.users[user.ID] = cloneUser(user)
	s.usersByEmail[user.Email] = user.ID
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*depot.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	user, ok := s.users[id]
	if !ok {
		return nil, &depot.StoreError{Code: depot.ErrNotFound, Message: "user not found", Key: id}
	}
	return cloneUser(user), nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*depot.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, &depot.StoreError{Code: depot.ErrNotFound, Message: "user not found", Key: email}
	}
	return cloneUser(s.users[id]), nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, user *depot.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	current, ok := s.users[user.ID]
	if !ok {
		return &depot.StoreError{Code: depot.ErrNotFound, Message: "user not found", Key: user.ID}
	}
	if other, ok := s.usersByEmail[user.Email]; ok && other != user.ID {
		return &depot.StoreError{Code: depot.ErrExists, Message: "email already registered", Key: user.Email}
	}

	delete(s.usersByEmail, current.Email)
	s.users[user.ID] = cloneUser(user)
	s.usersByEmail[user.Email] = user.ID
	return nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	user, ok := s.users[id]
	if !ok {
		return &depot.StoreError{Code: depot.ErrNotFound, Message: "user not found", Key: id}
	}
	for _, f := range s.files {
		if f.OwnerID == id {
			return &depot.StoreError{Code: depot.ErrConstraint, Message: "user still owns files", Key: id}
		}
	}

	delete(s.usersByEmail, user.Email)
	delete(s.users, id)
	return nil
}

func (s *MemoryStore) ListUsers(ctx context.Context, page store.Page) ([]*depot.User, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, 0, err
	}

	all := make([]*depot.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	sortNewestFirst(all, func(u *depot.User) (time.Time, string) { return u.CreatedAt, u.ID })

	total := len(all)
	out := make([]*depot.User, 0, page.Normalize().Size)
	for _, u := range paginate(all, page) {
		out = append(out, cloneUser(u))
	}
	return out, total, nil
}

// ============================================================================
// Files
// ============================================================================

func (s *MemoryStore) CreateFile(ctx context.Context, file *depot.File) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	if _, ok := s.files[file.ID]; ok {
		return &depot.StoreError{Code: depot.ErrExists, Message: "file already exists", Key: file.ID}
	}
	if _, ok := s.users[file.OwnerID]; !ok {
		return &depot.StoreError{Code: depot.ErrConstraint, Message: "owner does not exist", Key: file.OwnerID}
	}

	s.files[file.ID] = cloneFile(file)
	return nil
}

func (s *MemoryStore) GetFile(ctx context.Context, id string) (*depot.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	file, ok := s.files[id]
	if !ok {
		return nil, &depot.StoreError{Code: depot.ErrNotFound, Message: "file not found", Key: id}
	}
	return cloneFile(file), nil
}

func (s *MemoryStore) UpdateFile(ctx context.Context, file *depot.File) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	if _, ok := s.files[file.ID]; !ok {
		return &depot.StoreError{Code: depot.ErrNotFound, Message: "file not found", Key: file.ID}
	}
	s.files[file.ID] = cloneFile(file)
	return nil
}

func (s *MemoryStore) DeleteFile(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	if _, ok := s.files[id]; !ok {
		return &depot.StoreError{Code: depot.ErrNotFound, Message: "file not found", Key: id}
	}
	if shareID, ok := s.sharesByFile[id]; ok {
		// Mirrors the sqlite foreign key: shares must go first
		return &depot.StoreError{Code: depot.ErrConstraint, Message: "file is still shared", Key: shareID}
	}
	delete(s.files, id)
	return nil
}

func (s *MemoryStore) ListFiles(ctx context.Context, filter store.FileFilter, page store.Page) ([]*depot.File, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, 0, err
	}

	search := strings.ToLower(filter.Search)
	matched := make([]*depot.File, 0, len(s.files))
	for _, f := range s.files {
		if filter.OwnerID != "" && f.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Folder != "" && f.Folder != filter.Folder {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(f.Filename), search) {
			continue
		}
		matched = append(matched, f)
	}
	sortNewestFirst(matched, func(f *depot.File) (time.Time, string) { return f.CreatedAt, f.ID })

	total := len(matched)
	out := make([]*depot.File, 0, page.Normalize().Size)
	for _, f := range paginate(matched, page) {
		out = append(out, cloneFile(f))
	}
	return out, total, nil
}

func (s *MemoryStore) ListFolders(ctx context.Context, ownerID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, f := range s.files {
		if f.OwnerID == ownerID {
			seen[f.Folder] = struct{}{}
		}
	}
	folders := make([]string, 0, len(seen))
	for folder := range seen {
		folders = append(folders, folder)
	}
	sort.Strings(folders)
	return folders, nil
}

func (s *MemoryStore) IncrementDownloadCount(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	file, ok := s.files[id]
	if !ok {
		return &depot.StoreError{Code: depot.ErrNotFound, Message: "file not found", Key: id}
	}
	file.DownloadCount++
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context, ownerID string) (store.FileStats, error) {
	if err := ctx.Err(); err != nil {
		return store.FileStats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return store.FileStats{}, err
	}

	var stats store.FileStats
	for _, f := range s.files {
		if f.OwnerID == ownerID {
			stats.Count++
			stats.TotalBytes += f.Size
		}
	}
	return stats, nil
}

func (s *MemoryStore) ForEachObjectKey(ctx context.Context, fn func(key string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Snapshot the keys so fn runs without the lock held
	s.mu.RLock()
	if err := s.checkOpen(); err != nil {
		s.mu.RUnlock()
		return err
	}
	keys := make([]string, 0, len(s.files))
	for _, f := range s.files {
		keys = append(keys, f.ObjectKey)
	}
	s.mu.RUnlock()

	for _, key := range keys {
		if err := fn(key); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Shares
// ============================================================================

func (s *MemoryStore) CreateShare(ctx context.Context, share *depot.Share) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	if _, ok := s.shares[share.ID]; ok {
		return &depot.StoreError{Code: depot.ErrExists, Message: "share already exists", Key: share.ID}
	}
	if _, ok := s.sharesByFile[share.FileID]; ok {
		return &depot.StoreError{Code: depot.ErrExists, Message: "file is already shared", Key: share.FileID}
	}
	if _, ok := s.files[share.FileID]; !ok {
		return &depot.StoreError{Code: depot.ErrConstraint, Message: "shared file does not exist", Key: share.FileID}
	}

	s.shares[share.ID] = cloneShare(share)
	s.sharesByFile[share.FileID] = share.ID
	return nil
}

func (s *MemoryStore) GetShare(ctx context.Context, id string) (*depot.Share, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	share, ok := s.shares[id]
	if !ok {
		return nil, &depot.StoreError{Code: depot.ErrNotFound, Message: "share not found", Key: id}
	}
	return cloneShare(share), nil
}

func (s *MemoryStore) GetShareByFileID(ctx context.Context, fileID string) (*depot.Share, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	id, ok := s.sharesByFile[fileID]
	if !ok {
		return nil, &depot.StoreError{Code: depot.ErrNotFound, Message: "file is not shared", Key: fileID}
	}
	return cloneShare(s.shares[id]), nil
}

func (s *MemoryStore) UpdateShare(ctx context.Context, share *depot.Share) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	current, ok := s.shares[share.ID]
	if !ok {
		return &depot.StoreError{Code: depot.ErrNotFound, Message: "share not found", Key: share.ID}
	}
	if current.FileID != share.FileID {
		if _, taken := s.sharesByFile[share.FileID]; taken {
			return &depot.StoreError{Code: depot.ErrExists, Message: "file is already shared", Key: share.FileID}
		}
		delete(s.sharesByFile, current.FileID)
		s.sharesByFile[share.FileID] = share.ID
	}
	s.shares[share.ID] = cloneShare(share)
	return nil
}

func (s *MemoryStore) DeleteShare(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	share, ok := s.shares[id]
	if !ok {
		return &depot.StoreError{Code: depot.ErrNotFound, Message: "share not found", Key: id}
	}
	delete(s.sharesByFile, share.FileID)
	delete(s.shares, id)
	return nil
}

func (s *MemoryStore) DeleteShareByFileID(ctx context.Context, fileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	if id, ok := s.sharesByFile[fileID]; ok {
		delete(s.shares, id)
		delete(s.sharesByFile, fileID)
	}
	return nil
}

func (s *MemoryStore) ListSharesByOwner(ctx context.Context, ownerID string, page store.Page) ([]*depot.Share, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, 0, err
	}

	matched := make([]*depot.Share, 0, len(s.shares))
	for _, sh := range s.shares {
		if sh.OwnerID == ownerID {
			matched = append(matched, sh)
		}
	}
	sortNewestFirst(matched, func(sh *depot.Share) (time.Time, string) { return sh.CreatedAt, sh.ID })

	total := len(matched)
	out := make([]*depot.Share, 0, page.Normalize().Size)
	for _, sh := range paginate(matched, page) {
		out = append(out, cloneShare(sh))
	}
	return out, total, nil
}

func (s *MemoryStore) IncrementAccessCount(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	share, ok := s.shares[id]
	if !ok {
		return &depot.StoreError{Code: depot.ErrNotFound, Message: "share not found", Key: id}
	}
	share.AccessCount++
	return nil
}

func (s *MemoryStore) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	purged := 0
	for id, sh := range s.shares {
		if sh.ExpiresAt != nil && !sh.ExpiresAt.After(before) {
			delete(s.sharesByFile, sh.FileID)
			delete(s.shares, id)
			purged++
		}
	}
	return purged, nil
}

// ============================================================================
// Helpers
// ============================================================================

func cloneUser(u *depot.User) *depot.User {
	c := *u
	return &c
}

func cloneFile(f *depot.File) *depot.File {
	c := *f
	return &c
}

func cloneShare(sh *depot.Share) *depot.Share {
	c := *sh
	if sh.ExpiresAt != nil {
		t := *sh.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

// sortNewestFirst orders records by creation time descending, breaking
// ties by ID so pagination is stable.
func sortNewestFirst[T any](items []T, key func(T) (time.Time, string)) {
	sort.Slice(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return idi > idj
	})
}

func paginate[T any](items []T, page store.Page) []T {
	page = page.Normalize()
	start := page.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
