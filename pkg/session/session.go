// Package session defines the server-side refresh token registry.
//
// Access tokens are stateless JWTs; refresh tokens are opaque values the
// client holds while the server keeps only their SHA-256 hashes here.
// Revoking a session (logout, password change, admin deactivation) is
// simply deleting rows, which is the reason refresh state is server-side
// at all.
package session

import (
	"context"
	"time"
)

// Store persists refresh token sessions.
//
// Implementations must treat expired sessions as absent: a Lookup past
// expiresAt returns ErrNotFound whether or not the backend has already
// physically dropped the entry.
//
// Thread safety: implementations must be safe for concurrent use.
type Store interface {
	// Save registers a refresh token hash for a user until expiresAt.
	// Saving a hash that already exists overwrites it.
	Save(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error

	// Lookup resolves a token hash to its user ID. Returns ErrNotFound
	// for unknown and expired hashes alike.
	Lookup(ctx context.Context, tokenHash string) (string, error)

	// Delete revokes one session. Deleting a missing hash is not an
	// error (logout is idempotent).
	Delete(ctx context.Context, tokenHash string) error

	// DeleteForUser revokes every session of one user, used on password
	// change and account deactivation.
	DeleteForUser(ctx context.Context, userID string) error

	// Close releases backend resources.
	Close() error
}
