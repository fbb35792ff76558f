package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/marmos91/filedepot/pkg/gc"
)

// Config represents the complete FileDepot configuration.
//
// This structure captures all configurable aspects of the server including:
//   - Logging behavior
//   - HTTP server settings (listen address, public base URL, upload cap)
//   - Authentication (JWT secret, token lifetimes, bootstrap admin)
//   - Metadata store selection and configuration (store-specific)
//   - Blob store selection and configuration (store-specific)
//   - Session store, rate limiting, metrics, audit sinks, garbage
//     collection, and quota defaults
//
// Configuration sources (in order of precedence):
//  1. Environment variables (FILEDEPOT_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type. The Config
// struct contains type-specific sections (e.g., blob.minio, blob.s3) and
// only the section matching the selected type is used.
type Config struct {
	// Log controls log output behavior
	Log LogConfig `mapstructure:"log" json:"log"`

	// Server contains HTTP server settings
	Server ServerConfig `mapstructure:"server" json:"server"`

	// Auth contains token and credential settings
	Auth AuthConfig `mapstructure:"auth" json:"auth"`

	// Store specifies the metadata store type and type-specific configuration
	Store StoreConfig `mapstructure:"store" json:"store"`

	// Blob specifies the blob store type and type-specific configuration
	Blob BlobConfig `mapstructure:"blob" json:"blob"`

	// Session specifies the refresh-token store type and configuration
	Session SessionConfig `mapstructure:"session" json:"session"`

	// RateLimit throttles unauthenticated endpoints per client IP
	RateLimit RateLimitConfig `mapstructure:"rate_limit" json:"rate_limit"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`

	// Audit selects where audit events go
	Audit AuditConfig `mapstructure:"audit" json:"audit"`

	// GC configures the background janitor
	GC gc.Config `mapstructure:"gc" json:"gc"`

	// Quota contains per-user storage defaults
	Quota QuotaConfig `mapstructure:"quota" json:"quota"`

	// Share bounds share link expiry
	Share ShareConfig `mapstructure:"share" json:"share"`
}

// LogConfig controls logging behavior.
type LogConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" json:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" json:"format" validate:"required,oneof=text json"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ListenAddr is the host:port the API listens on (e.g. ":8080")
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr" validate:"required"`

	// BaseURL is the public URL clients reach the service through.
	// Share links are built against it.
	BaseURL string `mapstructure:"base_url" json:"base_url" validate:"required,url"`

	// MaxUploadBytes caps a single upload request body
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" json:"max_upload_bytes" validate:"gt=0"`

	// ReadTimeout covers reading a full request, including an upload body
	ReadTimeout time.Duration `mapstructure:"read_timeout" json:"read_timeout" validate:"gt=0"`

	// WriteTimeout covers writing a full response, including a streamed
	// download
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" validate:"gt=0"`

	// IdleTimeout closes idle keep-alive connections
	IdleTimeout time.Duration `mapstructure:"idle_timeout" json:"idle_timeout" validate:"gt=0"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" validate:"required,gt=0"`
}

// AuthConfig contains token and credential settings.
type AuthConfig struct {
	// JWTSecret signs access tokens. Must be at least 32 bytes; there
	// is deliberately no default.
	JWTSecret string `mapstructure:"jwt_secret" json:"jwt_secret" validate:"required,min=32"`

	// AccessTokenTTL is how long an access token stays valid
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl" json:"access_token_ttl" validate:"gt=0"`

	// RefreshTokenTTL is how long a refresh token stays valid
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl" json:"refresh_token_ttl" validate:"gt=0"`

	// BcryptCost tunes password hashing. Zero uses the bcrypt default.
	BcryptCost int `mapstructure:"bcrypt_cost" json:"bcrypt_cost" validate:"omitempty,gte=4,lte=31"`

	// BootstrapAdmin, when set, is created (or promoted) at startup so
	// a fresh deployment has a way in
	BootstrapAdmin BootstrapAdminConfig `mapstructure:"bootstrap_admin" json:"bootstrap_admin"`
}

// BootstrapAdminConfig describes the admin account ensured at startup.
// An empty email disables bootstrapping.
type BootstrapAdminConfig struct {
	Email    string `mapstructure:"email" json:"email" validate:"omitempty,email"`
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"`
}

// StoreConfig specifies metadata store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type StoreConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: sqlite, memory
	Type string `mapstructure:"type" json:"type" validate:"required,oneof=sqlite memory"`

	// SQLite contains SQLite-specific configuration
	// Only used when Type = "sqlite"
	SQLite map[string]any `mapstructure:"sqlite" json:"sqlite"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" json:"memory"`
}

// BlobConfig specifies blob store configuration.
type BlobConfig struct {
	// Type specifies which blob store implementation to use
	// Valid values: minio, s3, filesystem, memory
	Type string `mapstructure:"type" json:"type" validate:"required,oneof=minio s3 filesystem memory"`

	// Minio contains MinIO-specific configuration
	// Only used when Type = "minio"
	Minio map[string]any `mapstructure:"minio" json:"minio"`

	// S3 contains AWS S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" json:"s3"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem" json:"filesystem"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" json:"memory"`
}

// SessionConfig specifies refresh-token store configuration.
type SessionConfig struct {
	// Type specifies which session store implementation to use
	// Valid values: badger, memory
	Type string `mapstructure:"type" json:"type" validate:"required,oneof=badger memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" json:"badger"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" json:"memory"`
}

// RateLimitConfig throttles the unauthenticated endpoints (login,
// registration, public share access) per client IP.
type RateLimitConfig struct {
	// Enabled turns rate limiting on
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// RequestsPerSecond is the sustained rate allowed per client
	RequestsPerSecond uint `mapstructure:"requests_per_second" json:"requests_per_second"`

	// Burst is how far a client may briefly exceed the sustained rate
	Burst uint `mapstructure:"burst" json:"burst"`

	// IdleTTL is how long an idle client's bucket is remembered
	IdleTTL time.Duration `mapstructure:"idle_ttl" json:"idle_ttl"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns metrics collection and the metrics server on
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// Port is where the metrics server listens (default 9090)
	Port int `mapstructure:"port" json:"port" validate:"omitempty,min=1,max=65535"`
}

// AuditConfig selects where audit events go.
type AuditConfig struct {
	// Sinks lists the enabled audit sinks. Empty disables auditing.
	// Valid values: log, kafka
	Sinks []string `mapstructure:"sinks" json:"sinks" validate:"dive,oneof=log kafka"`

	// Kafka contains Kafka sink configuration
	// Only used when "kafka" is among the sinks
	Kafka map[string]any `mapstructure:"kafka" json:"kafka"`
}

// QuotaConfig contains per-user storage defaults.
type QuotaConfig struct {
	// DefaultUserBytes is the storage quota assigned to new accounts.
	// Zero means unlimited.
	DefaultUserBytes int64 `mapstructure:"default_user_bytes" json:"default_user_bytes" validate:"gte=0"`
}

// ShareConfig bounds share link expiry.
type ShareConfig struct {
	// DefaultExpireDays applies when a share request does not specify
	// expire_days (default 7)
	DefaultExpireDays int `mapstructure:"default_expire_days" json:"default_expire_days" validate:"gte=0"`

	// MaxExpireDays caps requested expiry (default 365). Zero means
	// uncapped. The cap applies to timed shares only; permanent shares
	// are always allowed.
	MaxExpireDays int `mapstructure:"max_expire_days" json:"max_expire_days" validate:"gte=0"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FILEDEPOT_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string searches the default
//     locations: /etc/filedepot, $HOME/.filedepot, the working directory)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the FILEDEPOT_ prefix and underscores
	// Example: FILEDEPOT_LOG_LEVEL=DEBUG
	v.SetEnvPrefix("FILEDEPOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets routinely arrive via environment only, with no config file
	// at all, and AutomaticEnv does not surface keys viper has never
	// seen. Bind them explicitly.
	for _, key := range []string{
		"auth.jwt_secret",
		"auth.bootstrap_admin.password",
		"blob.minio.access_key",
		"blob.minio.secret_key",
		"blob.s3.access_key_id",
		"blob.s3.secret_access_key",
	} {
		_ = v.BindEnv(key)
	}

	// The janitor runs unless explicitly disabled
	v.SetDefault("gc.enabled", true)

	if configPath != "" {
		// Use explicitly specified config file
		v.SetConfigFile(configPath)
		return
	}

	// Search the default locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/filedepot")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".filedepot"))
	}
	v.AddConfigPath(".")
}

// readConfigFile reads the configuration file if it exists. A missing
// file is fine; the defaults carry a working single-node setup.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		// An explicitly specified file that does not exist is also
		// tolerated; everything else is a problem
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}
