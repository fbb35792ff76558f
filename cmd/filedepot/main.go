package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/filedepot/internal/api"
	"github.com/marmos91/filedepot/internal/logger"
	"github.com/marmos91/filedepot/pkg/auth"
	"github.com/marmos91/filedepot/pkg/config"
	"github.com/marmos91/filedepot/pkg/depot"
	"github.com/marmos91/filedepot/pkg/gc"
	"github.com/marmos91/filedepot/pkg/server"
	"github.com/marmos91/filedepot/pkg/store"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config file (default: search /etc/filedepot, $HOME/.filedepot, current directory)")
	logLevel := flag.String("log-level", "", "Override the configured log level (DEBUG, INFO, WARN, ERROR)")
	initConfig := flag.Bool("init", false, "Write a starter config file to $HOME/.filedepot/config.yaml and exit")
	force := flag.Bool("force", false, "Overwrite an existing config file (only with -init)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("filedepot %s\n", version)
		return
	}

	if *initConfig {
		path, err := config.InitConfig(*force)
		if err != nil {
			log.Fatalf("Failed to write config file: %v", err)
		}
		fmt.Printf("Config file written to %s\n", path)
		fmt.Println("Set FILEDEPOT_AUTH_JWT_SECRET before starting the server.")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *logLevel != "" {
		cfg.Log.Level = strings.ToUpper(*logLevel)
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)

	fmt.Printf("FileDepot %s - File Management Service\n", version)
	logger.Info("Log level set to: %s", cfg.Log.Level)

	// Shutdown is driven by signal-triggered context cancellation; every
	// component watches this context through the depot runner.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backends, err := config.InitializeBackends(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize backends: %v", err)
	}
	defer func() {
		if err := backends.Close(); err != nil {
			logger.Error("Failed to close backends: %v", err)
		}
	}()

	registry, metricsServer := config.NewMetricsFromConfig(&cfg.Metrics)

	// Store queries are timed through a wrapper; blob and auth metrics
	// are recorded in the handlers.
	meta := backends.Store
	if cfg.Metrics.Enabled {
		meta = store.WithMetrics(meta, registry.Store)
	}

	if err := bootstrapAdmin(ctx, cfg, meta); err != nil {
		log.Fatalf("Failed to bootstrap admin account: %v", err)
	}

	apiServer, err := config.CreateAPIServer(cfg, api.Deps{
		Store:    meta,
		Blobs:    backends.Blobs,
		Sessions: backends.Sessions,
		Audit:    backends.Audit,
		Metrics:  registry,
	})
	if err != nil {
		log.Fatalf("Failed to create API server: %v", err)
	}

	runner := server.New(cfg.Server.ShutdownTimeout)

	// Metrics first so it outlives the API during shutdown, collector in
	// the middle, API last so it is the first component stopped.
	if metricsServer != nil {
		if err := runner.Add(metricsServer); err != nil {
			log.Fatalf("Failed to register metrics server: %v", err)
		}
		logger.Info("Metrics enabled on port %d", cfg.Metrics.Port)
	}

	if cfg.GC.Enabled {
		collector := gc.NewCollector(meta, backends.Blobs, cfg.GC)
		if err := runner.Add(collector); err != nil {
			log.Fatalf("Failed to register garbage collector: %v", err)
		}
		logger.Info("Garbage collector enabled (interval: %v, grace period: %v)", cfg.GC.Interval, cfg.GC.GracePeriod)
	}

	if err := runner.Add(apiServer); err != nil {
		log.Fatalf("Failed to register API server: %v", err)
	}

	logger.Info("Server configuration:")
	logger.Info("  Listen address: %s", cfg.Server.ListenAddr)
	logger.Info("  Base URL: %s", cfg.Server.BaseURL)
	logger.Info("  Max upload size: %d bytes", cfg.Server.MaxUploadBytes)
	logger.Info("  Store: %s, blob: %s, session: %s", cfg.Store.Type, cfg.Blob.Type, cfg.Session.Type)
	logger.Info("Server is running on %s. Press Ctrl+C to stop.", cfg.Server.ListenAddr)

	if err := runner.Serve(ctx); err != nil && err != context.Canceled {
		logger.Error("Server error: %v", err)
		os.Exit(1)
	}

	logger.Info("Server stopped gracefully")
}

// bootstrapAdmin ensures the configured admin account exists and holds the
// admin role. Called on every startup so it must be idempotent: a missing
// account is created, an existing one is promoted and reactivated, and its
// password is never touched after creation.
func bootstrapAdmin(ctx context.Context, cfg *config.Config, st store.Store) error {
	admin := cfg.Auth.BootstrapAdmin
	if admin.Email == "" {
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(admin.Email))

	existing, err := st.GetUserByEmail(ctx, email)
	if err != nil && !depot.IsNotFound(err) {
		return fmt.Errorf("failed to look up admin account: %w", err)
	}

	if existing == nil {
		hash, err := auth.HashPasswordCost(admin.Password, cfg.Auth.BcryptCost)
		if err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}

		now := time.Now().UTC()
		user := &depot.User{
			ID:           uuid.NewString(),
			Email:        email,
			Username:     admin.Username,
			PasswordHash: hash,
			Role:         depot.RoleAdmin,
			QuotaBytes:   0, // unlimited
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := st.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to create admin account: %w", err)
		}

		logger.Info("Bootstrap admin account created: %s", email)
		return nil
	}

	if existing.Role.Admin() && existing.Active {
		return nil
	}

	existing.Role = depot.RoleAdmin
	existing.Active = true
	existing.UpdatedAt = time.Now().UTC()

	if err := st.UpdateUser(ctx, existing); err != nil {
		return fmt.Errorf("failed to promote admin account: %w", err)
	}

	logger.Info("Bootstrap admin account promoted: %s", email)
	return nil
}
