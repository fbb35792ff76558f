package config

import (
	"context"
	"fmt"

	"github.com/marmos91/filedepot/internal/logger"
	"github.com/marmos91/filedepot/pkg/audit"
	"github.com/marmos91/filedepot/pkg/blob"
	"github.com/marmos91/filedepot/pkg/session"
	"github.com/marmos91/filedepot/pkg/store"
)

// Backends bundles the storage-layer collaborators created from
// configuration: the metadata store, the blob store, the session store
// and the audit recorder.
type Backends struct {
	Store    store.Store
	Blobs    blob.Store
	Sessions session.Store
	Audit    audit.Recorder
}

// InitializeBackends creates every storage backend the server needs from
// the provided configuration.
//
// This function orchestrates the complete initialization process:
//  1. Creates the metadata store from cfg.Store
//  2. Creates the blob store from cfg.Blob
//  3. Creates the session store from cfg.Session
//  4. Creates the audit recorder from cfg.Audit
//
// On any failure the backends created so far are closed before the error
// is returned, so callers never hold a half-initialized set.
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	backends, err := config.InitializeBackends(ctx, cfg)
//	if err != nil {
//	    log.Fatalf("Failed to initialize backends: %v", err)
//	}
//	defer backends.Close()
func InitializeBackends(ctx context.Context, cfg *Config) (*Backends, error) {
	logger.Debug("Initializing storage backends from configuration")

	b := &Backends{}

	st, err := NewStoreFromConfig(ctx, &cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metadata store: %w", err)
	}
	b.Store = st
	logger.Debug("Metadata store ready (type: %s)", cfg.Store.Type)

	blobs, err := NewBlobStoreFromConfig(ctx, &cfg.Blob)
	if err != nil {
		b.closeAll()
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}
	b.Blobs = blobs
	logger.Debug("Blob store ready (type: %s)", cfg.Blob.Type)

	sessions, err := NewSessionStoreFromConfig(ctx, &cfg.Session)
	if err != nil {
		b.closeAll()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	b.Sessions = sessions
	logger.Debug("Session store ready (type: %s)", cfg.Session.Type)

	recorder, err := NewRecorderFromConfig(&cfg.Audit)
	if err != nil {
		b.closeAll()
		return nil, fmt.Errorf("failed to initialize audit recorder: %w", err)
	}
	b.Audit = recorder
	logger.Debug("Audit recorder ready (sinks: %v)", cfg.Audit.Sinks)

	return b, nil
}

// Close releases all backends in reverse creation order. Every backend
// is closed even when an earlier one fails; the first error wins.
func (b *Backends) Close() error {
	return b.closeAll()
}

func (b *Backends) closeAll() error {
	var firstErr error

	record := func(name string, err error) {
		if err == nil {
			return
		}
		logger.Error("Failed to close %s: %v", name, err)
		if firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s: %w", name, err)
		}
	}

	if b.Audit != nil {
		record("audit recorder", b.Audit.Close())
		b.Audit = nil
	}
	if b.Sessions != nil {
		record("session store", b.Sessions.Close())
		b.Sessions = nil
	}
	if b.Blobs != nil {
		record("blob store", b.Blobs.Close())
		b.Blobs = nil
	}
	if b.Store != nil {
		record("metadata store", b.Store.Close())
		b.Store = nil
	}

	return firstErr
}
