// Package s3 implements blob storage on Amazon S3 or S3-compatible
// storage through the AWS SDK.
//
// Prefer the minio backend for self-hosted deployments; this one exists
// for installs already standardized on AWS tooling and credentials. The
// bucket must exist, the store does not create it.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/filedepot/pkg/blob"
	"github.com/marmos91/filedepot/pkg/depot"
)

const (
	defaultPresignExpiry = 10 * time.Minute
	maxPresignExpiry     = 7 * 24 * time.Hour
)

// Config contains configuration for the S3 blob store.
type Config struct {
	// Client is the configured S3 client (endpoint, credentials and
	// retry policy are decided by whoever builds it)
	Client *s3.Client

	// Bucket is the S3 bucket name
	Bucket string
}

// S3BlobStore implements blob.Store, blob.Presigner and blob.Lister on
// an S3 bucket.
//
// Thread safety: the AWS client is safe for concurrent use.
type S3BlobStore struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewS3BlobStore verifies bucket access and returns the store.
func NewS3BlobStore(ctx context.Context, cfg Config) (*S3BlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("s3 blob store: client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 blob store: bucket is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3BlobStore{
		client:  cfg.Client,
		presign: s3.NewPresignClient(cfg.Client),
		bucket:  cfg.Bucket,
	}, nil
}

// translateError maps SDK errors onto StoreError codes.
func translateError(err error, key, op string) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return &depot.StoreError{Code: depot.ErrNotFound, Message: "object not found", Key: key}
	}
	return &depot.StoreError{Code: depot.ErrIOError, Message: op + ": " + err.Error(), Key: key}
}

func (s *S3BlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return &depot.StoreError{Code: depot.ErrInvalidArgument, Message: "object key is required"}
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return translateError(err, key, "put object")
	}
	return nil
}

func (s *S3BlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.GetRange(ctx, key, 0, -1)
}

func (s *S3BlobStore) GetRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if spec, ok := rangeSpec(offset, length); ok {
		input.Range = aws.String(spec)
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		return nil, translateError(err, key, "get object")
	}
	return out.Body, nil
}

// rangeSpec renders [offset, offset+length) as an HTTP Range header
// value. The second return is false when no header is needed.
func rangeSpec(offset, length int64) (string, bool) {
	switch {
	case offset == 0 && length < 0:
		return "", false
	case length < 0:
		return fmt.Sprintf("bytes=%d-", offset), true
	default:
		return fmt.Sprintf("bytes=%d-%d", offset, offset+length-1), true
	}
}

func (s *S3BlobStore) Stat(ctx context.Context, key string) (blob.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return blob.ObjectInfo{}, err
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return blob.ObjectInfo{}, translateError(err, key, "stat object")
	}
	return blob.ObjectInfo{
		Key:     key,
		Size:    aws.ToInt64(out.ContentLength),
		ETag:    strings.Trim(aws.ToString(out.ETag), `"`),
		ModTime: aws.ToTime(out.LastModified),
	}, nil
}

func (s *S3BlobStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// S3 deletes are idempotent; a missing key is not an error
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return translateError(err, key, "delete object")
	}
	return nil
}

func (s *S3BlobStore) List(ctx context.Context, prefix string, fn func(blob.ObjectInfo) error) error {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return translateError(err, prefix, "list objects")
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			err := fn(blob.ObjectInfo{
				Key:     aws.ToString(obj.Key),
				Size:    aws.ToInt64(obj.Size),
				ETag:    strings.Trim(aws.ToString(obj.ETag), `"`),
				ModTime: aws.ToTime(obj.LastModified),
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// PresignGet mints a presigned GET URL for the object.
func (s *S3BlobStore) PresignGet(ctx context.Context, key string, opts blob.PresignOptions) (string, error) {
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

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if disposition := contentDisposition(opts); disposition != "" {
		input.ResponseContentDisposition = aws.String(disposition)
	}

	out, err := s.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", translateError(err, key, "presign object")
	}
	return out.URL, nil
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
	name := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 {
			return '_'
		}
		return r
	}, opts.Filename)
	return fmt.Sprintf("%s; filename=%q", kind, name)
}

func (s *S3BlobStore) Close() error {
	return nil
}
