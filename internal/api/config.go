package api

import "time"

// Config holds the HTTP layer's settings. The zero value works for
// tests; production values come from pkg/config.
type Config struct {
	// ListenAddr is the host:port to listen on (default ":8080")
	ListenAddr string

	// BaseURL is the public URL clients reach the service through;
	// share links are built against it (default "http://localhost:8080")
	BaseURL string

	// MaxUploadBytes caps a single uploaded file (default 1 GiB)
	MaxUploadBytes int64

	// ReadTimeout, WriteTimeout and IdleTimeout are handed to the
	// http.Server. Download and upload handlers clear their per-request
	// deadlines so large transfers are not cut off mid-stream.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// BcryptCost tunes password hashing (0 = bcrypt default)
	BcryptCost int

	// RefreshTokenTTL is how long a refresh token stays valid
	// (default 30 days)
	RefreshTokenTTL time.Duration

	// DefaultQuotaBytes is assigned to new accounts (0 = unlimited)
	DefaultQuotaBytes int64

	// DefaultShareDays applies when a share request does not specify
	// expire_days (default 7)
	DefaultShareDays int

	// MaxShareDays caps requested share expiry; zero means uncapped
	MaxShareDays int
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 1 << 30
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 15 * time.Minute
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 15 * time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.DefaultShareDays <= 0 {
		c.DefaultShareDays = 7
	}
}
