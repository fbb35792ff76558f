package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// testSecret satisfies the 32-byte minimum for auth.jwt_secret.
const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return configPath
}

func TestLoad_DefaultConfig(t *testing.T) {
	// Minimal config: only the secret, which has no default
	configPath := writeConfigFile(t, `
auth:
  jwt_secret: "`+testSecret+`"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify defaults were applied
	if cfg.Log.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Log.Level)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Expected default listen addr ':8080', got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.BaseURL != "http://localhost:8080" {
		t.Errorf("Expected default base URL, got %q", cfg.Server.BaseURL)
	}
	if cfg.Store.Type != "sqlite" {
		t.Errorf("Expected default store type 'sqlite', got %q", cfg.Store.Type)
	}
	if cfg.Blob.Type != "filesystem" {
		t.Errorf("Expected default blob type 'filesystem', got %q", cfg.Blob.Type)
	}
	if cfg.Session.Type != "badger" {
		t.Errorf("Expected default session type 'badger', got %q", cfg.Session.Type)
	}
	if !cfg.GC.Enabled {
		t.Error("Expected GC enabled by default")
	}
	if cfg.Share.DefaultExpireDays != 7 {
		t.Errorf("Expected default share expiry 7 days, got %d", cfg.Share.DefaultExpireDays)
	}
}

func TestLoad_FileValues(t *testing.T) {
	configPath := writeConfigFile(t, `
log:
  level: "DEBUG"
  format: "json"

server:
  listen_addr: ":9000"
  base_url: "https://files.example.com"
  max_upload_bytes: 1048576
  read_timeout: "5m"

auth:
  jwt_secret: "`+testSecret+`"
  access_token_ttl: "30m"
  bcrypt_cost: 6

store:
  type: "memory"

blob:
  type: "memory"

session:
  type: "memory"

rate_limit:
  enabled: true
  requests_per_second: 5
  burst: 10

gc:
  enabled: false

quota:
  default_user_bytes: 1073741824

share:
  default_expire_days: 3
  max_expire_days: 30
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Log.Level != "DEBUG" {
		t.Errorf("Expected log level 'DEBUG', got %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Expected log format 'json', got %q", cfg.Log.Format)
	}
	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("Expected listen addr ':9000', got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.BaseURL != "https://files.example.com" {
		t.Errorf("Expected base URL from file, got %q", cfg.Server.BaseURL)
	}
	if cfg.Server.MaxUploadBytes != 1048576 {
		t.Errorf("Expected max upload 1048576, got %d", cfg.Server.MaxUploadBytes)
	}
	if cfg.Server.ReadTimeout != 5*time.Minute {
		t.Errorf("Expected read timeout 5m, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Auth.AccessTokenTTL != 30*time.Minute {
		t.Errorf("Expected access token TTL 30m, got %v", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Auth.BcryptCost != 6 {
		t.Errorf("Expected bcrypt cost 6, got %d", cfg.Auth.BcryptCost)
	}
	if cfg.Store.Type != "memory" {
		t.Errorf("Expected store type 'memory', got %q", cfg.Store.Type)
	}
	if cfg.Blob.Type != "memory" {
		t.Errorf("Expected blob type 'memory', got %q", cfg.Blob.Type)
	}
	if cfg.Session.Type != "memory" {
		t.Errorf("Expected session type 'memory', got %q", cfg.Session.Type)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("Expected rate limiting enabled")
	}
	if cfg.RateLimit.RequestsPerSecond != 5 {
		t.Errorf("Expected 5 requests per second, got %d", cfg.RateLimit.RequestsPerSecond)
	}
	if cfg.GC.Enabled {
		t.Error("Expected GC disabled when the file says so")
	}
	if cfg.Quota.DefaultUserBytes != 1073741824 {
		t.Errorf("Expected quota 1 GiB, got %d", cfg.Quota.DefaultUserBytes)
	}
	if cfg.Share.DefaultExpireDays != 3 || cfg.Share.MaxExpireDays != 30 {
		t.Errorf("Expected share expiry 3/30, got %d/%d",
			cfg.Share.DefaultExpireDays, cfg.Share.MaxExpireDays)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	configPath := writeConfigFile(t, `
log:
  level: "INFO"

auth:
  jwt_secret: "`+testSecret+`"
`)

	t.Setenv("FILEDEPOT_LOG_LEVEL", "DEBUG")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Log.Level != "DEBUG" {
		t.Errorf("Expected env var to override file, got level %q", cfg.Log.Level)
	}
}

func TestLoad_SecretFromEnvironment(t *testing.T) {
	// No config file at all: secrets routinely arrive via environment
	t.Setenv("FILEDEPOT_AUTH_JWT_SECRET", testSecret)

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Auth.JWTSecret != testSecret {
		t.Error("Expected JWT secret from environment")
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Expected defaults alongside env secret, got listen addr %q", cfg.Server.ListenAddr)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfigFile(t, "{{{ this is not yaml")

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected read error, got: %v", err)
	}
}

func TestLoad_MissingSecretFails(t *testing.T) {
	// Mask any secret in the real environment
	t.Setenv("FILEDEPOT_AUTH_JWT_SECRET", "")

	configPath := writeConfigFile(t, `
log:
  level: "INFO"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected validation error for missing JWT secret")
	}
	if !strings.Contains(err.Error(), "JWTSecret") {
		t.Errorf("Expected JWTSecret validation error, got: %v", err)
	}
}

func TestLoad_ShortSecretFails(t *testing.T) {
	configPath := writeConfigFile(t, `
auth:
  jwt_secret: "too-short"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected validation error for short JWT secret")
	}
	if !strings.Contains(err.Error(), "min") {
		t.Errorf("Expected 'min' validation error, got: %v", err)
	}
}
