package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/marmos91/filedepot/internal/ratelimiter"
	"github.com/marmos91/filedepot/pkg/audit"
	"github.com/marmos91/filedepot/pkg/auth"
	"github.com/marmos91/filedepot/pkg/blob"
	"github.com/marmos91/filedepot/pkg/depot"
	"github.com/marmos91/filedepot/pkg/metrics"
	"github.com/marmos91/filedepot/pkg/session"
	"github.com/marmos91/filedepot/pkg/store"
)

// handlers carries the dependencies every endpoint needs. One instance
// serves all requests; all fields are set at construction and never
// mutated afterwards.
type handlers struct {
	cfg      Config
	store    store.Store
	blobs    blob.Store
	sessions session.Store
	tokens   *auth.Manager
	audit    audit.Recorder
	metrics  *metrics.Registry
	limiter  *ratelimiter.KeyedLimiter
}

// newRouter assembles the route table.
//
// Middleware placement: recovery, request logging and metrics wrap
// everything; rate limiting covers only the unauthenticated surfaces
// (/api/auth, /api/public); token auth covers the rest of /api.
func newRouter(cfg Config, deps Deps) *mux.Router {
	h := &handlers{
		cfg:      cfg,
		store:    deps.Store,
		blobs:    deps.Blobs,
		sessions: deps.Sessions,
		tokens:   deps.Tokens,
		audit:    deps.Audit,
		metrics:  deps.Metrics,
		limiter:  deps.Limiter,
	}

	r := mux.NewRouter()
	r.Use(withRecovery, withRequestLog, h.withMetrics)

	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)

	// Credential endpoints: no token, rate limited per IP
	authRouter := r.PathPrefix("/api/auth").Subrouter()
	authRouter.Use(h.withRateLimit)
	authRouter.HandleFunc("/register", h.handleRegister).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", h.handleLogin).Methods(http.MethodPost)
	authRouter.HandleFunc("/refresh", h.handleRefresh).Methods(http.MethodPost)
	authRouter.HandleFunc("/logout", h.handleLogout).Methods(http.MethodPost)

	// Share link endpoints: no token, rate limited per IP
	publicRouter := r.PathPrefix("/api/public").Subrouter()
	publicRouter.Use(h.withRateLimit)
	publicRouter.HandleFunc("/shares/{uuid}/check", h.handleShareCheck).Methods(http.MethodGet)
	publicRouter.HandleFunc("/shares/{uuid}/download", h.handleShareDownload).Methods(http.MethodPost)

	// Everything else needs a bearer token
	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(h.requireAuth)

	apiRouter.HandleFunc("/users/me", h.handleMe).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/me", h.handleUpdateMe).Methods(http.MethodPatch)
	apiRouter.HandleFunc("/users", h.requireAdmin(h.handleListUsers)).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/{id}", h.requireAdmin(h.handleUpdateUser)).Methods(http.MethodPatch)
	apiRouter.HandleFunc("/users/{id}", h.requireAdmin(h.handleDeleteUser)).Methods(http.MethodDelete)

	apiRouter.HandleFunc("/files", h.handleUpload).Methods(http.MethodPost)
	apiRouter.HandleFunc("/files", h.handleListFiles).Methods(http.MethodGet)
	// /files/stats before /files/{id} so "stats" is not taken for an id
	apiRouter.HandleFunc("/files/stats", h.handleFileStats).Methods(http.MethodGet)
	apiRouter.HandleFunc("/files/{id}", h.handleGetFile).Methods(http.MethodGet)
	apiRouter.HandleFunc("/files/{id}", h.handleUpdateFile).Methods(http.MethodPatch)
	apiRouter.HandleFunc("/files/{id}", h.handleDeleteFile).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/files/{id}/download", h.handleDownload).Methods(http.MethodGet)
	apiRouter.HandleFunc("/files/{id}/preview", h.handlePreview).Methods(http.MethodGet)
	apiRouter.HandleFunc("/folders", h.handleListFolders).Methods(http.MethodGet)

	apiRouter.HandleFunc("/shares", h.handleCreateShare).Methods(http.MethodPost)
	apiRouter.HandleFunc("/shares", h.handleListShares).Methods(http.MethodGet)
	apiRouter.HandleFunc("/shares/{uuid}", h.handleGetShare).Methods(http.MethodGet)
	apiRouter.HandleFunc("/shares/{uuid}", h.handleUpdateShare).Methods(http.MethodPatch)
	apiRouter.HandleFunc("/shares/{uuid}", h.handleDeleteShare).Methods(http.MethodDelete)

	// Unmatched requests bypass middleware in gorilla/mux, so these
	// write the envelope directly
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Code: http.StatusNotFound, Message: "route not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Code: http.StatusMethodNotAllowed, Message: "method not allowed"})
	})

	return r
}

// handleHealth reports liveness: the metadata store answers a ping and
// the blob backend answers a stat. The probe key never exists; a clean
// not-found still proves the backend is reachable.
func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.store.Ping(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("health: store ping failed")
		respond(w, http.StatusServiceUnavailable, "degraded", map[string]string{"store": "unreachable"})
		return
	}

	if _, err := h.blobs.Stat(ctx, "healthz/probe"); err != nil && !depot.IsNotFound(err) {
		zerolog.Ctx(ctx).Error().Err(err).Msg("health: blob stat failed")
		respond(w, http.StatusServiceUnavailable, "degraded", map[string]string{"blob": "unreachable"})
		return
	}

	respond(w, http.StatusOK, "ok", map[string]string{"status": "ok"})
}
