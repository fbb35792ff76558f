package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/filedepot/internal/logger"
	"github.com/marmos91/filedepot/pkg/audit"
	"github.com/marmos91/filedepot/pkg/blob"
	blobfs "github.com/marmos91/filedepot/pkg/blob/fs"
	blobmemory "github.com/marmos91/filedepot/pkg/blob/memory"
	blobminio "github.com/marmos91/filedepot/pkg/blob/minio"
	blobs3 "github.com/marmos91/filedepot/pkg/blob/s3"
	"github.com/marmos91/filedepot/pkg/metrics"
	promMetrics "github.com/marmos91/filedepot/pkg/metrics/prometheus"
	"github.com/marmos91/filedepot/pkg/session"
	sessionbadger "github.com/marmos91/filedepot/pkg/session/badger"
	sessionmemory "github.com/marmos91/filedepot/pkg/session/memory"
	"github.com/marmos91/filedepot/pkg/store"
	storememory "github.com/marmos91/filedepot/pkg/store/memory"
	"github.com/marmos91/filedepot/pkg/store/sqlite"
)

// NewStoreFromConfig creates a metadata store based on configuration.
//
// This factory function uses the Type field to determine which store
// implementation to create, then decodes the type-specific configuration
// from the corresponding map and passes it to the store's constructor.
//
// Supported types:
//   - "sqlite": Uses pkg/store/sqlite (embedded database, persistent)
//   - "memory": Uses pkg/store/memory (in-memory storage, ephemeral)
func NewStoreFromConfig(ctx context.Context, cfg *StoreConfig) (store.Store, error) {
	switch cfg.Type {
	case "sqlite":
		return createSQLiteStore(ctx, cfg.SQLite)
	case "memory":
		return storememory.NewMemoryStore(ctx)
	default:
		return nil, fmt.Errorf("unknown store type: %q (supported: sqlite, memory)", cfg.Type)
	}
}

// createSQLiteStore creates the SQLite metadata store.
func createSQLiteStore(ctx context.Context, options map[string]any) (store.Store, error) {
	type SQLiteSettings struct {
		Path          string `mapstructure:"path"`
		BusyTimeoutMS int    `mapstructure:"busy_timeout_ms"`
		MaxOpenConns  int    `mapstructure:"max_open_conns"`
	}

	var settings SQLiteSettings
	if err := mapstructure.Decode(options, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode sqlite store config: %w", err)
	}

	if settings.Path == "" {
		return nil, fmt.Errorf("sqlite store: path is required")
	}

	st, err := sqlite.NewSQLiteStore(ctx, sqlite.SQLiteStoreConfig{
		Path:          settings.Path,
		BusyTimeoutMS: settings.BusyTimeoutMS,
		MaxOpenConns:  settings.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite store: %w", err)
	}

	logger.Info("SQLite store initialized: path=%s", settings.Path)
	return st, nil
}

// NewBlobStoreFromConfig creates a blob store based on configuration.
//
// Supported types:
//   - "minio": Uses pkg/blob/minio (MinIO or any S3-compatible server)
//   - "s3": Uses pkg/blob/s3 (AWS S3 via the official SDK)
//   - "filesystem": Uses pkg/blob/fs (local directory)
//   - "memory": Uses pkg/blob/memory (ephemeral, for tests)
func NewBlobStoreFromConfig(ctx context.Context, cfg *BlobConfig) (blob.Store, error) {
	switch cfg.Type {
	case "minio":
		return createMinioBlobStore(ctx, cfg.Minio)
	case "s3":
		return createS3BlobStore(ctx, cfg.S3)
	case "filesystem":
		return createFilesystemBlobStore(ctx, cfg.Filesystem)
	case "memory":
		return blobmemory.NewMemoryBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown blob store type: %q (supported: minio, s3, filesystem, memory)", cfg.Type)
	}
}

// createFilesystemBlobStore creates a filesystem-based blob store.
func createFilesystemBlobStore(ctx context.Context, options map[string]any) (blob.Store, error) {
	type FilesystemSettings struct {
		Path string `mapstructure:"path"`
	}

	var settings FilesystemSettings
	if err := mapstructure.Decode(options, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem blob store config: %w", err)
	}

	if settings.Path == "" {
		return nil, fmt.Errorf("filesystem blob store: path is required")
	}

	bs, err := blobfs.NewFSBlobStore(ctx, settings.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem blob store: %w", err)
	}

	return bs, nil
}

// createMinioBlobStore creates a MinIO-backed blob store.
func createMinioBlobStore(ctx context.Context, options map[string]any) (blob.Store, error) {
	type MinioSettings struct {
		Endpoint     string `mapstructure:"endpoint"`
		AccessKey    string `mapstructure:"access_key"`
		SecretKey    string `mapstructure:"secret_key"`
		UseSSL       bool   `mapstructure:"use_ssl"`
		Bucket       string `mapstructure:"bucket"`
		Region       string `mapstructure:"region"`
		CreateBucket bool   `mapstructure:"create_bucket"`
		ExternalURL  string `mapstructure:"external_url"`
	}

	var settings MinioSettings
	if err := mapstructure.Decode(options, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode minio blob store config: %w", err)
	}

	if settings.Endpoint == "" {
		return nil, fmt.Errorf("minio blob store: endpoint is required")
	}
	if settings.Bucket == "" {
		return nil, fmt.Errorf("minio blob store: bucket is required")
	}

	bs, err := blobminio.NewMinioBlobStore(ctx, blobminio.Config{
		Endpoint:     settings.Endpoint,
		AccessKey:    settings.AccessKey,
		SecretKey:    settings.SecretKey,
		UseSSL:       settings.UseSSL,
		Bucket:       settings.Bucket,
		Region:       settings.Region,
		CreateBucket: settings.CreateBucket,
		ExternalURL:  settings.ExternalURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio blob store: %w", err)
	}

	logger.Info("MinIO blob store initialized: endpoint=%s bucket=%s", settings.Endpoint, settings.Bucket)
	return bs, nil
}

// createS3BlobStore creates an AWS S3-backed blob store.
func createS3BlobStore(ctx context.Context, options map[string]any) (blob.Store, error) {
	type S3Settings struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var settings S3Settings
	if err := mapstructure.Decode(options, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode S3 blob store config: %w", err)
	}

	if settings.Bucket == "" {
		return nil, fmt.Errorf("S3 blob store: bucket is required")
	}
	if settings.Region == "" {
		return nil, fmt.Errorf("S3 blob store: region is required")
	}

	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(settings.Region))

	// Set custom endpoint if provided (for MinIO, Localstack, etc.)
	if settings.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               settings.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Set credentials if provided, otherwise use default credential chain
	if settings.AccessKeyID != "" && settings.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			settings.AccessKeyID,
			settings.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// Configure retries for better resilience against temporary S3 failures
	maxRetries := settings.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries // Retry for transient errors (502, 503, timeouts, etc.)
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		// Force path-style addressing for compatibility with MinIO/Localstack
		if settings.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	// ========================================================================
	// Step 3: Create S3 Blob Store
	// ========================================================================

	bs, err := blobs3.NewS3BlobStore(ctx, blobs3.Config{
		Client: client,
		Bucket: settings.Bucket,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 blob store: %w", err)
	}

	logger.Info("S3 blob store initialized: bucket=%s region=%s", settings.Bucket, settings.Region)
	return bs, nil
}

// NewSessionStoreFromConfig creates a session store based on configuration.
//
// Supported types:
//   - "badger": Uses pkg/session/badger (persistent, entries expire via
//     native TTLs)
//   - "memory": Uses pkg/session/memory (ephemeral; restarting the server
//     logs everyone out)
func NewSessionStoreFromConfig(ctx context.Context, cfg *SessionConfig) (session.Store, error) {
	switch cfg.Type {
	case "badger":
		var badgerCfg sessionbadger.Config
		if err := mapstructure.Decode(cfg.Badger, &badgerCfg); err != nil {
			return nil, fmt.Errorf("failed to decode badger session store config: %w", err)
		}
		st, err := sessionbadger.NewBadgerSessionStore(ctx, badgerCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create badger session store: %w", err)
		}
		return st, nil
	case "memory":
		return sessionmemory.NewMemorySessionStore(), nil
	default:
		return nil, fmt.Errorf("unknown session store type: %q (supported: badger, memory)", cfg.Type)
	}
}

// NewRecorderFromConfig creates the audit recorder based on configuration.
//
// Multiple sinks are composed with a fan-out recorder; no sinks at all
// yields a noop recorder, so callers never have to nil-check.
func NewRecorderFromConfig(cfg *AuditConfig) (audit.Recorder, error) {
	if len(cfg.Sinks) == 0 {
		return audit.NewNoopRecorder(), nil
	}

	var recorders []audit.Recorder
	for _, sink := range cfg.Sinks {
		switch sink {
		case "log":
			recorders = append(recorders, audit.NewLogRecorder(logger.With().Str("component", "audit").Logger()))
		case "kafka":
			var kafkaCfg audit.KafkaConfig
			if err := mapstructure.Decode(cfg.Kafka, &kafkaCfg); err != nil {
				return nil, fmt.Errorf("failed to decode kafka audit config: %w", err)
			}
			rec, err := audit.NewKafkaRecorder(kafkaCfg)
			if err != nil {
				return nil, fmt.Errorf("failed to create kafka audit recorder: %w", err)
			}
			recorders = append(recorders, rec)
		default:
			return nil, fmt.Errorf("unknown audit sink: %q (supported: log, kafka)", sink)
		}
	}

	if len(recorders) == 1 {
		return recorders[0], nil
	}
	return audit.NewFanoutRecorder(recorders...), nil
}

// NewMetricsFromConfig creates the metrics registry and server based on
// configuration.
//
// If metrics are enabled:
//   - Creates a Prometheus-backed registry for all components
//   - Creates the metrics HTTP server exposing it
//
// If metrics are disabled:
//   - Returns no-op metrics implementations (zero overhead)
//   - Returns nil server
func NewMetricsFromConfig(cfg *MetricsConfig) (*metrics.Registry, *metrics.Server) {
	if !cfg.Enabled {
		return metrics.NewNoopRegistry(), nil
	}

	registry, promRegistry := promMetrics.New()
	server := metrics.NewServer(metrics.ServerConfig{Port: cfg.Port}, promRegistry)

	return registry, server
}
