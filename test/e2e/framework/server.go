package framework

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/filedepot/internal/api"
	"github.com/marmos91/filedepot/internal/logger"
	"github.com/marmos91/filedepot/pkg/config"
	"github.com/marmos91/filedepot/pkg/server"
)

// StoreType selects the backend combination the test server runs on.
type StoreType string

const (
	// StoreTypeMemory keeps metadata, blobs and sessions in memory.
	StoreTypeMemory StoreType = "memory"

	// StoreTypeDisk uses SQLite metadata, filesystem blobs and badger
	// sessions, all under a per-test temp directory.
	StoreTypeDisk StoreType = "disk"
)

// testJWTSecret is a fixed signing key for test servers. Tokens minted
// with it are only ever verified by the same process.
const testJWTSecret = "e2e-test-secret-0123456789abcdef"

// TestServerConfig holds configuration for the test server.
type TestServerConfig struct {
	Port           int
	Stores         StoreType
	LogLevel       string
	MaxUploadBytes int64
	ShareDays      int
	StartupTimeout time.Duration
}

// TestServer runs the full service stack (backends, API component, depot
// runner) on a real TCP port so tests exercise it through an http.Client
// exactly like an external caller would.
type TestServer struct {
	t        testing.TB
	config   TestServerConfig
	cfg      *config.Config
	backends *config.Backends
	runner   *server.Depot
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
	tempDir  string
}

// NewTestServer creates a new test server instance.
func NewTestServer(t testing.TB, cfg TestServerConfig) *TestServer {
	t.Helper()

	if cfg.Port == 0 {
		cfg.Port = findFreePort(t)
	}
	if cfg.Stores == "" {
		cfg.Stores = StoreTypeMemory
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "ERROR" // Keep tests quiet by default
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = 10 * time.Second
	}

	tempDir, err := os.MkdirTemp("", "filedepot-e2e-*")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &TestServer{
		t:       t,
		config:  cfg,
		ctx:     ctx,
		cancel:  cancel,
		tempDir: tempDir,
	}
}

// Start brings up the backends and the API server and waits until the
// health endpoint answers.
func (ts *TestServer) Start() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.started {
		return fmt.Errorf("server already started")
	}

	ts.t.Helper()

	logger.SetLevel(ts.config.LogLevel)

	cfg := ts.buildConfig()
	ts.cfg = cfg

	backends, err := config.InitializeBackends(ts.ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize backends: %w", err)
	}
	ts.backends = backends

	apiServer, err := config.CreateAPIServer(cfg, api.Deps{
		Store:    backends.Store,
		Blobs:    backends.Blobs,
		Sessions: backends.Sessions,
		Audit:    backends.Audit,
	})
	if err != nil {
		_ = backends.Close()
		return fmt.Errorf("failed to create API server: %w", err)
	}

	ts.runner = server.New(5 * time.Second)
	if err := ts.runner.Add(apiServer); err != nil {
		_ = backends.Close()
		return fmt.Errorf("failed to register API server: %w", err)
	}

	ts.wg.Add(1)
	go func() {
		defer ts.wg.Done()
		if err := ts.runner.Serve(ts.ctx); err != nil && err != context.Canceled {
			ts.t.Logf("Server error: %v", err)
		}
	}()

	ts.t.Logf("Waiting for server to start on port %d...", ts.config.Port)
	if err := ts.waitForServer(); err != nil {
		ts.cancel()
		ts.wg.Wait()
		_ = backends.Close()
		return fmt.Errorf("server failed to start: %w", err)
	}

	ts.started = true
	ts.t.Logf("Server started successfully on port %d", ts.config.Port)
	return nil
}

// buildConfig assembles the service configuration for the selected
// backend combination, everything rooted in the per-test temp directory.
func (ts *TestServer) buildConfig() *config.Config {
	cfg := config.GetDefaultConfig()

	cfg.Log.Level = ts.config.LogLevel
	cfg.Server.ListenAddr = fmt.Sprintf("127.0.0.1:%d", ts.config.Port)
	cfg.Server.BaseURL = ts.BaseURL()
	cfg.Server.MaxUploadBytes = ts.config.MaxUploadBytes
	cfg.Auth.JWTSecret = testJWTSecret
	cfg.Auth.BcryptCost = 4 // cheapest cost accepted by bcrypt
	cfg.RateLimit.Enabled = false
	cfg.GC.Enabled = false

	if ts.config.ShareDays > 0 {
		cfg.Share.DefaultExpireDays = ts.config.ShareDays
	}

	switch ts.config.Stores {
	case StoreTypeDisk:
		cfg.Store.Type = "sqlite"
		cfg.Store.SQLite = map[string]any{"path": filepath.Join(ts.tempDir, "meta.db")}
		cfg.Blob.Type = "filesystem"
		cfg.Blob.Filesystem = map[string]any{"path": filepath.Join(ts.tempDir, "blobs")}
		cfg.Session.Type = "badger"
		cfg.Session.Badger = map[string]any{"path": filepath.Join(ts.tempDir, "sessions")}
	default:
		cfg.Store.Type = "memory"
		cfg.Blob.Type = "memory"
		cfg.Session.Type = "memory"
	}

	return cfg
}

// Stop shuts the server down and removes the temp directory.
func (ts *TestServer) Stop() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.started {
		return nil
	}

	ts.t.Helper()
	ts.t.Logf("Stopping server...")

	ts.cancel()

	done := make(chan struct{})
	go func() {
		ts.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ts.t.Logf("Server stopped gracefully")
	case <-time.After(10 * time.Second):
		ts.t.Logf("Server stop timeout - forcing shutdown")
	}

	if ts.backends != nil {
		if err := ts.backends.Close(); err != nil {
			ts.t.Logf("Warning: failed to close backends: %v", err)
		}
	}

	if ts.tempDir != "" {
		if err := os.RemoveAll(ts.tempDir); err != nil {
			ts.t.Logf("Warning: failed to remove temp directory %s: %v", ts.tempDir, err)
		}
	}

	ts.started = false
	return nil
}

// Port returns the port the server is listening on.
func (ts *TestServer) Port() int {
	return ts.config.Port
}

// BaseURL returns the root URL of the running server.
func (ts *TestServer) BaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", ts.config.Port)
}

// Backends exposes the storage backends for direct inspection.
func (ts *TestServer) Backends() *config.Backends {
	return ts.backends
}

// waitForServer polls the health endpoint until the server answers.
func (ts *TestServer) waitForServer() error {
	client := &http.Client{Timeout: 500 * time.Millisecond}
	url := ts.BaseURL() + "/healthz"

	deadline := time.Now().Add(ts.config.StartupTimeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for server to start")
}

// findFreePort finds an available port.
func findFreePort(t testing.TB) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()
	return port
}
