// Package api implements the FileDepot REST interface.
//
// The package wires the domain packages together behind a gorilla/mux
// router: pkg/store for metadata, pkg/blob for file bytes, pkg/auth and
// pkg/session for credentials, pkg/audit for the event trail. Every
// response uses the envelope {code, message, data}; errors are translated
// from *depot.StoreError codes by a single translator in respond.go.
//
// Server (server.go) is the lifecycle component handed to pkg/server's
// Depot runner. Handlers live in auth.go, users.go, files.go, shares.go
// and public.go; the middleware chain is assembled in router.go.
package api

import (
	"fmt"

	"github.com/marmos91/filedepot/internal/ratelimiter"
	"github.com/marmos91/filedepot/pkg/audit"
	"github.com/marmos91/filedepot/pkg/auth"
	"github.com/marmos91/filedepot/pkg/blob"
	"github.com/marmos91/filedepot/pkg/metrics"
	"github.com/marmos91/filedepot/pkg/session"
	"github.com/marmos91/filedepot/pkg/store"
)

// Deps bundles the collaborators the API serves requests with.
//
// Store, Blobs, Sessions and Tokens are required. Audit, Metrics and
// Limiter are optional: a nil Audit records nothing, a nil Metrics
// observes nothing, and a nil Limiter disables rate limiting.
type Deps struct {
	// Store persists users, file records, and shares
	Store store.Store

	// Blobs holds the file bytes
	Blobs blob.Store

	// Sessions persists refresh token hashes
	Sessions session.Store

	// Tokens issues and verifies access tokens
	Tokens *auth.Manager

	// Audit receives the event trail (nil = discard)
	Audit audit.Recorder

	// Metrics receives observations (nil = discard)
	Metrics *metrics.Registry

	// Limiter throttles the unauthenticated endpoints per client IP
	// (nil = no limiting)
	Limiter *ratelimiter.KeyedLimiter
}

// validate checks the required collaborators are present and fills in
// the optional ones with no-ops.
func (d *Deps) validate() error {
	if d.Store == nil {
		return fmt.Errorf("api: metadata store is required")
	}
	if d.Blobs == nil {
		return fmt.Errorf("api: blob store is required")
	}
	if d.Sessions == nil {
		return fmt.Errorf("api: session store is required")
	}
	if d.Tokens == nil {
		return fmt.Errorf("api: token manager is required")
	}
	if d.Audit == nil {
		d.Audit = audit.NewNoopRecorder()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewNoopRegistry()
	}
	return nil
}
