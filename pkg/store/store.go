// Package store defines the metadata store interface: persistence for
// users, file records, and share links.
//
// Implementations live in subpackages (sqlite, memory) and must pass the
// conformance suite in pkg/store/testing.
package store

import (
	"context"
	"time"

	"github.com/marmos91/filedepot/pkg/depot"
)

// DefaultPageSize is used when a listing request does not specify one.
const DefaultPageSize = 20

// MaxPageSize caps listing requests regardless of what the caller asks for.
const MaxPageSize = 200

// Page bounds a listing request. Numbering starts at 1.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page to sane bounds: number >= 1, size in
// [1, MaxPageSize], defaulting to DefaultPageSize.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the number of rows to skip for this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// FileFilter narrows a ListFiles call. Zero values match everything.
type FileFilter struct {
	// OwnerID restricts results to one owner. Empty matches all owners
	// (admin listings).
	OwnerID string

	// Folder restricts results to one logical folder (exact match).
	Folder string

	// Search keeps only filenames containing this substring,
	// case-insensitively.
	Search string
}

// FileStats summarizes one owner's stored files.
type FileStats struct {
	Count      int64
	TotalBytes int64
}

// ============================================================================
// Store Interface
// ============================================================================

// Store provides persistence for users, file records, and shares.
//
// Design principles, shared by all implementations:
//   - Callers own timestamps: Create/Update persist CreatedAt/UpdatedAt
//     verbatim; stores never touch the clock. This keeps behavior
//     deterministic under test.
//   - Consistent error handling: business-rule failures are returned as
//     *depot.StoreError so the HTTP layer can translate them uniformly.
//   - Context-aware: all operations respect cancellation and deadlines.
//   - Listings return the page requested plus the total match count so
//     the API can paginate.
//
// Thread safety: implementations must be safe for concurrent use by
// multiple goroutines.
type Store interface {
	UserStore
	FileStore
	ShareStore

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying database. The store is unusable
	// afterwards.
	Close() error
}

// ============================================================================
// Users
// ============================================================================

// UserStore persists accounts.
type UserStore interface {
	// CreateUser inserts a new account.
	//
	// Returns:
	//   - ErrExists if the email is already registered (emails are
	//     stored lowercase; callers normalize before calling)
	CreateUser(ctx context.Context, user *depot.User) error

	// GetUser fetches an account by ID. Returns ErrNotFound if absent.
	GetUser(ctx context.Context, id string) (*depot.User, error)

	// GetUserByEmail fetches an account by its lowercase email.
	// Returns ErrNotFound if absent.
	GetUserByEmail(ctx context.Context, email string) (*depot.User, error)

	// UpdateUser rewrites every mutable field of the account.
	//
	// Returns:
	//   - ErrNotFound if the ID does not exist
	//   - ErrExists if the new email collides with another account
	UpdateUser(ctx context.Context, user *depot.User) error

	// DeleteUser removes an account.
	//
	// Returns:
	//   - ErrNotFound if the ID does not exist
	//   - ErrConstraint while the account still owns files; callers
	//     deactivate instead of force-deleting
	DeleteUser(ctx context.Context, id string) error

	// ListUsers returns one page of accounts ordered by creation time
	// (newest first), plus the total account count.
	ListUsers(ctx context.Context, page Page) ([]*depot.User, int, error)
}

// ============================================================================
// Files
// ============================================================================

// FileStore persists file metadata records.
type FileStore interface {
	// CreateFile inserts a new record. Returns ErrExists on ID collision.
	CreateFile(ctx context.Context, file *depot.File) error

	// GetFile fetches a record by ID. Returns ErrNotFound if absent.
	GetFile(ctx context.Context, id string) (*depot.File, error)

	// UpdateFile rewrites every mutable field of the record.
	// Returns ErrNotFound if the ID does not exist.
	UpdateFile(ctx context.Context, file *depot.File) error

	// DeleteFile removes a record. Share rows referencing it must be
	// deleted first (DeleteShareByFileID). Returns ErrNotFound if the
	// ID does not exist.
	DeleteFile(ctx context.Context, id string) error

	// ListFiles returns one page of records matching the filter,
	// ordered by creation time (newest first), plus the total match
	// count.
	ListFiles(ctx context.Context, filter FileFilter, page Page) ([]*depot.File, int, error)

	// ListFolders returns the distinct folder paths containing at
	// least one of the owner's files, sorted ascending.
	ListFolders(ctx context.Context, ownerID string) ([]string, error)

	// IncrementDownloadCount bumps the record's download counter by
	// one. Returns ErrNotFound if the ID does not exist.
	IncrementDownloadCount(ctx context.Context, id string) error

	// Stats aggregates count and total size of one owner's files.
	// An owner with no files gets zeroes, not an error.
	Stats(ctx context.Context, ownerID string) (FileStats, error)

	// ForEachObjectKey streams every object key referenced by any file
	// record. The garbage collector uses this to distinguish live
	// objects from orphans. Iteration stops on the first fn error,
	// which is returned.
	ForEachObjectKey(ctx context.Context, fn func(key string) error) error
}

// ============================================================================
// Shares
// ============================================================================

// ShareStore persists share links.
type ShareStore interface {
	// CreateShare inserts a new share.
	//
	// Returns:
	//   - ErrExists if the ID collides or the file already has a share
	//     (one share row per file)
	CreateShare(ctx context.Context, share *depot.Share) error

	// GetShare fetches a share by its UUID. Returns ErrNotFound if
	// absent. Expiry is not checked here; callers decide what expired
	// means for them.
	GetShare(ctx context.Context, id string) (*depot.Share, error)

	// GetShareByFileID fetches the share row for a file.
	// Returns ErrNotFound if the file is not shared.
	GetShareByFileID(ctx context.Context, fileID string) (*depot.Share, error)

	// UpdateShare rewrites every mutable field of the share.
	// Returns ErrNotFound if the ID does not exist.
	UpdateShare(ctx context.Context, share *depot.Share) error

	// DeleteShare removes a share by its UUID. Returns ErrNotFound if
	// the ID does not exist.
	DeleteShare(ctx context.Context, id string) error

	// DeleteShareByFileID removes the share row for a file, if any.
	// Deleting a file that was never shared is not an error.
	DeleteShareByFileID(ctx context.Context, fileID string) error

	// ListSharesByOwner returns one page of the owner's shares ordered
	// by creation time (newest first), plus the total count.
	ListSharesByOwner(ctx context.Context, ownerID string, page Page) ([]*depot.Share, int, error)

	// IncrementAccessCount bumps the share's access counter by one.
	// Returns ErrNotFound if the ID does not exist.
	IncrementAccessCount(ctx context.Context, id string) error

	// PurgeExpired deletes shares whose expiry is at or before the
	// given instant and returns how many were removed.
	PurgeExpired(ctx context.Context, before time.Time) (int, error)
}
