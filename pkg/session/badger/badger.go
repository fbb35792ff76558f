// Package badger implements the session store on BadgerDB.
//
// Sessions are a natural fit for Badger's native entry TTLs: expired
// refresh tokens vanish without a reaper goroutine. Two key namespaces
// are used:
//
//	r:<tokenHash>            → userID        (the session itself)
//	u:<userID>:<tokenHash>   → empty         (index for DeleteForUser)
//
// Both entries carry the same TTL, so the index never outlives the
// session it points at.
package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/filedepot/pkg/depot"
)

const (
	// prefixToken is the key prefix for sessions (tokenHash → userID)
	prefixToken = "r:"

	// prefixUser is the key prefix for the per-user session index
	prefixUser = "u:"
)

func keyToken(tokenHash string) []byte {
	return []byte(prefixToken + tokenHash)
}

func keyUser(userID, tokenHash string) []byte {
	return []byte(prefixUser + userID + ":" + tokenHash)
}

func keyUserPrefix(userID string) []byte {
	return []byte(prefixUser + userID + ":")
}

// Config contains configuration for the Badger session store.
type Config struct {
	// Path is the directory Badger stores its files in
	Path string `mapstructure:"path"`

	// SyncWrites makes every write fsync before returning. Slower but
	// sessions survive a power loss. Default off: losing refresh
	// tokens only forces re-login.
	SyncWrites bool `mapstructure:"sync_writes"`
}

// BadgerSessionStore implements session.Store on a BadgerDB instance.
//
// Thread safety: BadgerDB transactions handle concurrent access.
type BadgerSessionStore struct {
	db *badger.DB
}

// NewBadgerSessionStore opens (or creates) the database at cfg.Path.
func NewBadgerSessionStore(ctx context.Context, cfg Config) (*BadgerSessionStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("badger session store: path is required")
	}

	// Session entries are tiny; compression overhead is not worth it
	opts := badger.DefaultOptions(cfg.Path).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None).
		WithSyncWrites(cfg.SyncWrites)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %s: %w", cfg.Path, err)
	}
	return &BadgerSessionStore{db: db}, nil
}

func (s *BadgerSessionStore) Save(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tokenHash == "" || userID == "" {
		return &depot.StoreError{Code: depot.ErrInvalidArgument, Message: "token hash and user id are required"}
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return &depot.StoreError{Code: depot.ErrInvalidArgument, Message: "session already expired", Key: tokenHash}
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(keyToken(tokenHash), []byte(userID)).WithTTL(ttl)
		if err := txn.SetEntry(entry); err != nil {
			return err
		}
		index := badger.NewEntry(keyUser(userID, tokenHash), nil).WithTTL(ttl)
		return txn.SetEntry(index)
	})
	if err != nil {
		return &depot.StoreError{Code: depot.ErrIOError, Message: "save session: " + err.Error(), Key: tokenHash}
	}
	return nil
}

func (s *BadgerSessionStore) Lookup(ctx context.Context, tokenHash string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var userID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyToken(tokenHash))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			userID = string(val)
			return nil
		})
	})
	if err != nil {
		// Expired entries are reported as missing by Badger itself
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", &depot.StoreError{Code: depot.ErrNotFound, Message: "session not found", Key: tokenHash}
		}
		return "", &depot.StoreError{Code: depot.ErrIOError, Message: "lookup session: " + err.Error(), Key: tokenHash}
	}
	return userID, nil
}

func (s *BadgerSessionStore) Delete(ctx context.Context, tokenHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keyToken(tokenHash))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		userID, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Delete(keyToken(tokenHash)); err != nil {
			return err
		}
		return txn.Delete(keyUser(string(userID), tokenHash))
	})
	if err != nil {
		return &depot.StoreError{Code: depot.ErrIOError, Message: "delete session: " + err.Error(), Key: tokenHash}
	}
	return nil
}

func (s *BadgerSessionStore) DeleteForUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		prefix := keyUserPrefix(userID)

		// Collect first: deleting under a live iterator is not allowed
		var indexKeys [][]byte
		var tokenHashes []string

		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			indexKeys = append(indexKeys, key)
			tokenHashes = append(tokenHashes, string(key[len(prefix):]))
		}
		it.Close()

		for i, key := range indexKeys {
			if err := txn.Delete(key); err != nil {
				return err
			}
			if err := txn.Delete(keyToken(tokenHashes[i])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &depot.StoreError{Code: depot.ErrIOError, Message: "delete user sessions: " + err.Error(), Key: userID}
	}
	return nil
}

func (s *BadgerSessionStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger: %w", err)
	}
	return nil
}
