package config

import (
	"fmt"

	"github.com/marmos91/filedepot/internal/api"
	"github.com/marmos91/filedepot/internal/ratelimiter"
	"github.com/marmos91/filedepot/pkg/auth"
)

// CreateAPIServer creates the REST API server from the configuration.
//
// This factory function centralizes API assembly: the caller supplies the
// storage collaborators in deps (Store, Blobs, Sessions, plus optional
// Audit and Metrics) and this function fills in the pieces derived purely
// from configuration:
//   - The token manager, signed with cfg.Auth.JWTSecret
//   - The per-IP rate limiter, when cfg.RateLimit.Enabled is set
//
// Members already present in deps are left alone, so tests can inject
// their own token manager or limiter.
//
// Returns:
//   - *api.Server: API server ready to be added to the depot runner
//   - error: Any error during assembly
func CreateAPIServer(cfg *Config, deps api.Deps) (*api.Server, error) {
	if deps.Tokens == nil {
		tokens, err := auth.NewManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.AccessTokenTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to create token manager: %w", err)
		}
		deps.Tokens = tokens
	}

	if deps.Limiter == nil && cfg.RateLimit.Enabled {
		deps.Limiter = ratelimiter.NewKeyed(
			cfg.RateLimit.RequestsPerSecond,
			cfg.RateLimit.Burst,
			cfg.RateLimit.IdleTTL,
		)
	}

	server, err := api.New(api.Config{
		ListenAddr:        cfg.Server.ListenAddr,
		BaseURL:           cfg.Server.BaseURL,
		MaxUploadBytes:    cfg.Server.MaxUploadBytes,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		BcryptCost:        cfg.Auth.BcryptCost,
		RefreshTokenTTL:   cfg.Auth.RefreshTokenTTL,
		DefaultQuotaBytes: cfg.Quota.DefaultUserBytes,
		DefaultShareDays:  cfg.Share.DefaultExpireDays,
		MaxShareDays:      cfg.Share.MaxExpireDays,
	}, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create API server: %w", err)
	}

	return server, nil
}
