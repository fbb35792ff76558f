package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// InitConfig creates a starter configuration file at the default
// location ($HOME/.filedepot/config.yaml), which is on Load's search
// path.
//
// Returns the path of the created file. Fails if the file already
// exists, unless force is set.
func InitConfig(force bool) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}

	configPath := filepath.Join(home, ".filedepot", "config.yaml")
	if err := InitConfigToPath(configPath, force); err != nil {
		return "", err
	}

	return configPath, nil
}

// InitConfigToPath creates a starter configuration file at the given
// path, creating parent directories as needed. Fails if the file
// already exists, unless force is set.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (re-run with force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	// The file may later receive credentials, keep it private
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders the configuration as a commented
// YAML document suitable as a starting point for operators.
//
// The document is hand-assembled rather than marshalled so every
// section can carry an explanation; a final yaml parse guards against
// template mistakes.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var b strings.Builder

	b.WriteString("# FileDepot Configuration File\n")
	b.WriteString("#\n")
	b.WriteString("# Every value shown is the default. Settings may also be provided as\n")
	b.WriteString("# environment variables with the FILEDEPOT_ prefix and underscores for\n")
	b.WriteString("# dots (FILEDEPOT_LOG_LEVEL, FILEDEPOT_AUTH_JWT_SECRET, ...); the\n")
	b.WriteString("# environment wins over this file.\n\n")

	fmt.Fprintf(&b, "log:\n")
	fmt.Fprintf(&b, "  # Minimum level to output: DEBUG, INFO, WARN, ERROR\n")
	fmt.Fprintf(&b, "  level: %q\n", cfg.Log.Level)
	fmt.Fprintf(&b, "  # Output format: text, json\n")
	fmt.Fprintf(&b, "  format: %q\n\n", cfg.Log.Format)

	fmt.Fprintf(&b, "server:\n")
	fmt.Fprintf(&b, "  # Address the API listens on\n")
	fmt.Fprintf(&b, "  listen_addr: %q\n", cfg.Server.ListenAddr)
	fmt.Fprintf(&b, "  # Public URL clients reach the service through; share links are\n")
	fmt.Fprintf(&b, "  # built against it\n")
	fmt.Fprintf(&b, "  base_url: %q\n", cfg.Server.BaseURL)
	fmt.Fprintf(&b, "  # Largest accepted upload in bytes\n")
	fmt.Fprintf(&b, "  max_upload_bytes: %d\n", cfg.Server.MaxUploadBytes)
	fmt.Fprintf(&b, "  # Read and write timeouts must cover full transfers on slow links\n")
	fmt.Fprintf(&b, "  read_timeout: %q\n", cfg.Server.ReadTimeout.String())
	fmt.Fprintf(&b, "  write_timeout: %q\n", cfg.Server.WriteTimeout.String())
	fmt.Fprintf(&b, "  idle_timeout: %q\n", cfg.Server.IdleTimeout.String())
	fmt.Fprintf(&b, "  shutdown_timeout: %q\n\n", cfg.Server.ShutdownTimeout.String())

	fmt.Fprintf(&b, "auth:\n")
	fmt.Fprintf(&b, "  # REQUIRED: at least 32 bytes, used to sign access tokens. Prefer\n")
	fmt.Fprintf(&b, "  # the FILEDEPOT_AUTH_JWT_SECRET environment variable over this file.\n")
	fmt.Fprintf(&b, "  # jwt_secret: \"\"\n")
	fmt.Fprintf(&b, "  access_token_ttl: %q\n", cfg.Auth.AccessTokenTTL.String())
	fmt.Fprintf(&b, "  refresh_token_ttl: %q\n", cfg.Auth.RefreshTokenTTL.String())
	fmt.Fprintf(&b, "  # bcrypt work factor for password hashing\n")
	fmt.Fprintf(&b, "  bcrypt_cost: %d\n", cfg.Auth.BcryptCost)
	fmt.Fprintf(&b, "  # Admin account ensured at startup; empty email disables it\n")
	fmt.Fprintf(&b, "  bootstrap_admin:\n")
	fmt.Fprintf(&b, "    email: \"\"\n")
	fmt.Fprintf(&b, "    username: %q\n", "admin")
	fmt.Fprintf(&b, "    # password: \"\"\n\n")

	fmt.Fprintf(&b, "store:\n")
	fmt.Fprintf(&b, "  # Metadata store: sqlite, memory\n")
	fmt.Fprintf(&b, "  type: %q\n", cfg.Store.Type)
	fmt.Fprintf(&b, "  sqlite:\n")
	fmt.Fprintf(&b, "    path: %q\n\n", cfg.Store.SQLite["path"])

	fmt.Fprintf(&b, "blob:\n")
	fmt.Fprintf(&b, "  # Blob store: minio, s3, filesystem, memory\n")
	fmt.Fprintf(&b, "  type: %q\n", cfg.Blob.Type)
	fmt.Fprintf(&b, "  filesystem:\n")
	fmt.Fprintf(&b, "    path: %q\n", cfg.Blob.Filesystem["path"])
	fmt.Fprintf(&b, "  minio:\n")
	fmt.Fprintf(&b, "    endpoint: %q\n", cfg.Blob.Minio["endpoint"])
	fmt.Fprintf(&b, "    bucket: %q\n", cfg.Blob.Minio["bucket"])
	fmt.Fprintf(&b, "    use_ssl: false\n")
	fmt.Fprintf(&b, "    # access_key: \"\"\n")
	fmt.Fprintf(&b, "    # secret_key: \"\"\n\n")

	fmt.Fprintf(&b, "session:\n")
	fmt.Fprintf(&b, "  # Refresh-token store: badger, memory\n")
	fmt.Fprintf(&b, "  type: %q\n", cfg.Session.Type)
	fmt.Fprintf(&b, "  badger:\n")
	fmt.Fprintf(&b, "    path: %q\n\n", cfg.Session.Badger["path"])

	fmt.Fprintf(&b, "rate_limit:\n")
	fmt.Fprintf(&b, "  # Throttles login, registration and public share access per client IP\n")
	fmt.Fprintf(&b, "  enabled: %t\n", cfg.RateLimit.Enabled)
	fmt.Fprintf(&b, "  requests_per_second: %d\n", cfg.RateLimit.RequestsPerSecond)
	fmt.Fprintf(&b, "  burst: %d\n", cfg.RateLimit.Burst)
	fmt.Fprintf(&b, "  idle_ttl: %q\n\n", cfg.RateLimit.IdleTTL.String())

	fmt.Fprintf(&b, "metrics:\n")
	fmt.Fprintf(&b, "  enabled: %t\n", cfg.Metrics.Enabled)
	fmt.Fprintf(&b, "  port: %d\n\n", cfg.Metrics.Port)

	fmt.Fprintf(&b, "audit:\n")
	fmt.Fprintf(&b, "  # Audit sinks: log, kafka\n")
	fmt.Fprintf(&b, "  sinks:\n")
	for _, sink := range cfg.Audit.Sinks {
		fmt.Fprintf(&b, "    - %q\n", sink)
	}
	fmt.Fprintf(&b, "  # kafka:\n")
	fmt.Fprintf(&b, "  #   brokers: [\"localhost:9092\"]\n")
	fmt.Fprintf(&b, "  #   topic: %q\n\n", cfg.Audit.Kafka["topic"])

	fmt.Fprintf(&b, "gc:\n")
	fmt.Fprintf(&b, "  # Background janitor for expired shares and orphaned blobs\n")
	fmt.Fprintf(&b, "  enabled: %t\n", cfg.GC.Enabled)
	fmt.Fprintf(&b, "  # interval: \"1h0m0s\"\n")
	fmt.Fprintf(&b, "  # grace_period: \"24h0m0s\"\n")
	fmt.Fprintf(&b, "  # batch_size: 1000\n\n")

	fmt.Fprintf(&b, "quota:\n")
	fmt.Fprintf(&b, "  # Storage quota for new accounts in bytes (0 = unlimited)\n")
	fmt.Fprintf(&b, "  default_user_bytes: %d\n\n", cfg.Quota.DefaultUserBytes)

	fmt.Fprintf(&b, "share:\n")
	fmt.Fprintf(&b, "  # Days a share link lives when the request does not say\n")
	fmt.Fprintf(&b, "  default_expire_days: %d\n", cfg.Share.DefaultExpireDays)
	fmt.Fprintf(&b, "  # Upper bound on requested expiry in days (0 = uncapped)\n")
	fmt.Fprintf(&b, "  max_expire_days: %d\n", cfg.Share.MaxExpireDays)

	out := b.String()

	// A template mistake would surface as a confusing load error later;
	// catch it at generation time instead
	var probe map[string]any
	if err := yaml.Unmarshal([]byte(out), &probe); err != nil {
		return "", fmt.Errorf("generated config is not valid YAML: %w", err)
	}

	return out, nil
}
