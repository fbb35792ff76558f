// Package blob defines the object-store interface holding file bytes.
//
// Metadata lives in pkg/store; the blob store only ever sees opaque keys
// (see depot.ObjectKey for the layout). Implementations live in
// subpackages (minio, s3, fs, memory) and must pass the conformance suite
// in pkg/blob/testing.
//
// Business-rule failures are reported as *depot.StoreError (ErrNotFound,
// ErrIOError) so the HTTP layer translates storage and metadata errors
// through a single path.
package blob

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	// Key is the object's location in the store
	Key string

	// Size is the content length in bytes
	Size int64

	// ETag is the backend's entity tag, if it has one (empty otherwise)
	ETag string

	// ModTime is when the object was last written
	ModTime time.Time
}

// Store reads and writes objects.
//
// Thread safety: implementations must be safe for concurrent use by
// multiple goroutines.
type Store interface {
	// Put stores the reader's content under key, overwriting any
	// previous object. Size is the exact content length (backends use
	// it to avoid buffering); contentType may be empty.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Get opens the object for reading. The caller must close the
	// returned reader. Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// GetRange opens a byte range [offset, offset+length) of the
	// object. A negative length means "to the end". Returns
	// ErrNotFound if the key does not exist.
	GetRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)

	// Stat describes the object without opening it. Returns
	// ErrNotFound if the key does not exist.
	Stat(ctx context.Context, key string) (ObjectInfo, error)

	// Delete removes the object. Deleting a missing key is not an
	// error (deletes are retried by the janitor).
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// PresignOptions controls a presigned GET URL.
type PresignOptions struct {
	// Expiry is how long the URL stays valid
	Expiry time.Duration

	// Filename, when set, is propagated as the download filename via
	// a response content-disposition override
	Filename string

	// Inline selects an inline disposition (browser preview) instead
	// of attachment
	Inline bool
}

// Presigner is implemented by stores that can mint presigned GET URLs,
// letting clients fetch bytes without proxying through the API.
//
// Checked with a type assertion; handlers fall back to streaming when
// the store does not implement it.
type Presigner interface {
	PresignGet(ctx context.Context, key string, opts PresignOptions) (string, error)
}

// Lister is implemented by stores that can enumerate their objects.
// The garbage collector needs it to find orphaned objects; a store
// without it is skipped by the orphan sweep.
//
// List calls fn for every object whose key starts with prefix (empty
// prefix lists everything). Iteration stops on the first fn error,
// which is returned.
type Lister interface {
	List(ctx context.Context, prefix string, fn func(ObjectInfo) error) error
}
