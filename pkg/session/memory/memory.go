// Package memory implements an in-memory session store for tests and
// single-process development setups. Sessions do not survive restarts.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/filedepot/pkg/depot"
)

type entry struct {
	userID    string
	expiresAt time.Time
}

// MemorySessionStore implements session.Store with a mutex-guarded map.
// Expired entries are dropped lazily on Lookup.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]entry
}

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]entry),
	}
}

func (s *MemorySessionStore) Save(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tokenHash == "" || userID == "" {
		return &depot.StoreError{Code: depot.ErrInvalidArgument, Message: "token hash and user id are required"}
	}
	if !expiresAt.After(time.Now()) {
		return &depot.StoreError{Code: depot.ErrInvalidArgument, Message: "session already expired", Key: tokenHash}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[tokenHash] = entry{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *MemorySessionStore) Lookup(ctx context.Context, tokenHash string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[tokenHash]
	if ok && !e.expiresAt.After(time.Now()) {
		delete(s.sessions, tokenHash)
		ok = false
	}
	if !ok {
		return "", &depot.StoreError{Code: depot.ErrNotFound, Message: "session not found", Key: tokenHash}
	}
	return e.userID, nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, tokenHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

func (s *MemorySessionStore) DeleteForUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, e := range s.sessions {
		if e.userID == userID {
			delete(s.sessions, hash)
		}
	}
	return nil
}

func (s *MemorySessionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]entry)
	return nil
}
