// Package minio implements blob storage on a MinIO server (or any
// S3-compatible endpoint the minio-go client can talk to).
//
// This is the default production backend. It supports presigned GET URLs,
// so downloads of shared files can bypass the API entirely; when the
// server sits behind a proxy, a second client signed against the external
// URL keeps those presigned links valid outside the private network.
package minio

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/marmos91/filedepot/pkg/blob"
	"github.com/marmos91/filedepot/pkg/depot"
)

// presign URL bounds imposed by the S3 signature scheme
const (
	defaultPresignExpiry = 10 * time.Minute
	maxPresignExpiry     = 7 * 24 * time.Hour
)

// Config contains configuration for the MinIO blob store.
type Config struct {
	// Endpoint is the host:port of the MinIO server (no scheme)
	Endpoint string

	// AccessKey and SecretKey authenticate against the server
	AccessKey string
	SecretKey string

	// UseSSL selects https for the endpoint connection
	UseSSL bool

	// Bucket is where all objects live
	Bucket string

	// Region passed through on bucket creation (optional)
	Region string

	// CreateBucket makes the bucket on startup when it does not exist.
	// When false the bucket must already exist.
	CreateBucket bool

	// ExternalURL, when set, is the public base URL clients reach the
	// store through (e.g. "https://files.example.com"). Presigned URLs
	// are signed against this host so the signature survives the proxy
	// hop. Empty means presign against Endpoint directly.
	ExternalURL string
}

// MinioBlobStore implements blob.Store, blob.Presigner and blob.Lister
// on a MinIO bucket.
//
// Thread safety: the underlying client is safe for concurrent use.
type MinioBlobStore struct {
	client        *minio.Client
	presignClient *minio.Client // nil means presign with client
	bucket        string
}

// NewMinioBlobStore connects to the server and verifies (or creates)
// the bucket.
func NewMinioBlobStore(ctx context.Context, cfg Config) (*MinioBlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio blob store: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio blob store: bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if !cfg.CreateBucket {
			return nil, fmt.Errorf("bucket %q does not exist", cfg.Bucket)
		}
		err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region})
		if err != nil {
			// Tolerate losing the create race to another instance
			code := minio.ToErrorResponse(err).Code
			if code != "BucketAlreadyOwnedByYou" && code != "BucketAlreadyExists" {
				return nil, fmt.Errorf("failed to create bucket %q: %w", cfg.Bucket, err)
			}
		}
	}

	presignClient, err := buildPresignClient(cfg)
	if err != nil {
		return nil, err
	}

	return &MinioBlobStore{
		client:        client,
		presignClient: presignClient,
		bucket:        cfg.Bucket,
	}, nil
}

// buildPresignClient returns a client whose signatures embed the external
// host. Rewriting the host on an already-signed URL would invalidate the
// signature, so a dedicated client is the only way to presign for a
// different endpoint.
func buildPresignClient(cfg Config) (*minio.Client, error) {
	if cfg.ExternalURL == "" {
		return nil, nil
	}

	parsed, err := url.Parse(cfg.ExternalURL)
	if err != nil {
		return nil, fmt.Errorf("invalid external URL %q: %w", cfg.ExternalURL, err)
	}
	endpoint := parsed.Host
	if endpoint == "" {
		endpoint = parsed.Path
	}
	if endpoint == "" {
		return nil, fmt.Errorf("external URL %q has no host", cfg.ExternalURL)
	}

	secure := cfg.UseSSL
	if parsed.Scheme != "" {
		secure = parsed.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create presign client: %w", err)
	}
	return client, nil
}

// translateError maps minio error responses onto StoreError codes.
func translateError(err error, key, op string) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey":
		return &depot.StoreError{Code: depot.ErrNotFound, Message: "object not found", Key: key}
	case "NoSuchBucket":
		return &depot.StoreError{Code: depot.ErrIOError, Message: "bucket not found", Key: key}
	case "AccessDenied":
		return &depot.StoreError{Code: depot.ErrAccessDenied, Message: op + ": access denied", Key: key}
	}
	return &depot.StoreError{Code: depot.ErrIOError, Message: op + ": " + err.Error(), Key: key}
}

func (s *MinioBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return &depot.StoreError{Code: depot.ErrInvalidArgument, Message: "object key is required"}
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return translateError(err, key, "put object")
	}
	return nil
}

func (s *MinioBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.GetRange(ctx, key, 0, -1)
}

func (s *MinioBlobStore) GetRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := minio.GetObjectOptions{}
	switch {
	case offset == 0 && length < 0:
		// whole object, no Range header
	case length < 0:
		if err := opts.SetRange(offset, 0); err != nil {
			return nil, &depot.StoreError{Code: depot.ErrInvalidArgument, Message: "invalid range: " + err.Error(), Key: key}
		}
	default:
		if err := opts.SetRange(offset, offset+length-1); err != nil {
			return nil, &depot.StoreError{Code: depot.ErrInvalidArgument, Message: "invalid range: " + err.Error(), Key: key}
		}
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, opts)
	if err != nil {
		return nil, translateError(err, key, "get object")
	}

	// GetObject is lazy; Stat forces the request so a missing key
	// surfaces here instead of on the first Read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, translateError(err, key, "get object")
	}
	return obj, nil
}

func (s *MinioBlobStore) Stat(ctx context.Context, key string) (blob.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return blob.ObjectInfo{}, err
	}

	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return blob.ObjectInfo{}, translateError(err, key, "stat object")
	}
	return blob.ObjectInfo{
		Key:     key,
		Size:    info.Size,
		ETag:    info.ETag,
		ModTime: info.LastModified,
	}, nil
}

func (s *MinioBlobStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// RemoveObject on a missing key succeeds, matching the contract
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return translateError(err, key, "delete object")
	}
	return nil
}

func (s *MinioBlobStore) List(ctx context.Context, prefix string, fn func(blob.ObjectInfo) error) error {
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return translateError(object.Err, object.Key, "list objects")
		}
		err := fn(blob.ObjectInfo{
			Key:     object.Key,
			Size:    object.Size,
			ETag:    object.ETag,
			ModTime: object.LastModified,
		})
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}

// PresignGet mints a presigned GET URL, signed against the external URL
// when one is configured.
func (s *MinioBlobStore) PresignGet(ctx context.Context, key string, opts blob.PresignOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	expiry := opts.Expiry
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}
	if expiry > maxPresignExpiry {
		expiry = maxPresignExpiry
	}

	reqParams := make(url.Values)
	if disposition := contentDisposition(opts); disposition != "" {
		reqParams.Set("response-content-disposition", disposition)
	}

	client := s.presignClient
	if client == nil {
		client = s.client
	}
	u, err := client.PresignedGetObject(ctx, s.bucket, key, expiry, reqParams)
	if err != nil {
		return "", translateError(err, key, "presign object")
	}
	return u.String(), nil
}

// contentDisposition builds the response-content-disposition override.
func contentDisposition(opts blob.PresignOptions) string {
	kind := "attachment"
	if opts.Inline {
		kind = "inline"
	}
	if opts.Filename == "" {
		if opts.Inline {
			return "inline"
		}
		return ""
	}
	// Quotes and control characters would corrupt the header
	name := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 {
			return '_'
		}
		return r
	}, opts.Filename)
	return fmt.Sprintf("%s; filename=%q", kind, name)
}

func (s *MinioBlobStore) Close() error {
	return nil
}
