package config

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/filedepot/pkg/audit"
	"github.com/marmos91/filedepot/pkg/auth"
	"github.com/marmos91/filedepot/pkg/gc"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
//
// The one field with no default is auth.jwt_secret: guessing a signing
// key would be worse than failing validation.
func ApplyDefaults(cfg *Config) {
	applyLogDefaults(&cfg.Log)
	applyServerDefaults(&cfg.Server)
	applyAuthDefaults(&cfg.Auth)
	applyStoreDefaults(&cfg.Store)
	applyBlobDefaults(&cfg.Blob)
	applySessionDefaults(&cfg.Session)
	applyRateLimitDefaults(&cfg.RateLimit)
	applyMetricsDefaults(&cfg.Metrics)
	applyAuditDefaults(&cfg.Audit)
	applyQuotaDefaults(&cfg.Quota)
	applyShareDefaults(&cfg.Share)
}

// applyLogDefaults sets logging defaults and normalizes values.
func applyLogDefaults(cfg *LogConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
}

// applyServerDefaults sets HTTP server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 1 << 30 // 1 GiB
	}

	// Read and write timeouts must cover a full upload or download on a
	// slow link, not just a quick API exchange
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyAuthDefaults sets token and credential defaults.
func applyAuthDefaults(cfg *AuthConfig) {
	// JWTSecret deliberately has no default

	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL == 0 {
		cfg.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.BootstrapAdmin.Email != "" && cfg.BootstrapAdmin.Username == "" {
		cfg.BootstrapAdmin.Username = "admin"
	}
}

// applyStoreDefaults sets metadata store defaults.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "sqlite"
	}

	// Initialize maps if nil
	if cfg.SQLite == nil {
		cfg.SQLite = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}

	// Apply defaults for all store types (for config file generation)
	if _, ok := cfg.SQLite["path"]; !ok {
		cfg.SQLite["path"] = "./data/filedepot.db"
	}
}

// applyBlobDefaults sets blob store defaults.
func applyBlobDefaults(cfg *BlobConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	// Initialize maps if nil
	if cfg.Minio == nil {
		cfg.Minio = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}

	// Apply defaults for all store types (for config file generation)
	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = "./data/blobs"
	}
	if _, ok := cfg.Minio["endpoint"]; !ok {
		cfg.Minio["endpoint"] = "localhost:9000"
	}
	if _, ok := cfg.Minio["bucket"]; !ok {
		cfg.Minio["bucket"] = "filedepot"
	}
}

// applySessionDefaults sets session store defaults.
func applySessionDefaults(cfg *SessionConfig) {
	if cfg.Type == "" {
		cfg.Type = "badger"
	}

	// Initialize maps if nil
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}

	if _, ok := cfg.Badger["path"]; !ok {
		cfg.Badger["path"] = "./data/sessions"
	}
}

// applyRateLimitDefaults sets rate limiting defaults.
func applyRateLimitDefaults(cfg *RateLimitConfig) {
	// Enabled defaults to false; zero values never silently throttle

	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Burst == 0 {
		cfg.Burst = 20
	}
	if cfg.IdleTTL == 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false

	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyAuditDefaults sets audit defaults.
func applyAuditDefaults(cfg *AuditConfig) {
	if cfg.Sinks == nil {
		cfg.Sinks = []string{"log"}
	}

	if cfg.Kafka == nil {
		cfg.Kafka = make(map[string]any)
	}
	if _, ok := cfg.Kafka["topic"]; !ok {
		cfg.Kafka["topic"] = audit.DefaultKafkaTopic
	}
}

// applyQuotaDefaults sets quota defaults.
func applyQuotaDefaults(cfg *QuotaConfig) {
	if cfg.DefaultUserBytes == 0 {
		cfg.DefaultUserBytes = 10 << 30 // 10 GiB
	}
}

// applyShareDefaults sets share expiry defaults.
func applyShareDefaults(cfg *ShareConfig) {
	if cfg.DefaultExpireDays == 0 {
		cfg.DefaultExpireDays = 7
	}
	if cfg.MaxExpireDays == 0 {
		cfg.MaxExpireDays = 365
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
//
// The JWT secret is left empty; a generated sample must not ship a
// signing key.
func GetDefaultConfig() *Config {
	cfg := &Config{
		GC: gc.Config{Enabled: true},
	}
	ApplyDefaults(cfg)
	return cfg
}
