//go:build integration

package minio_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/filedepot/pkg/blob"
	miniostore "github.com/marmos91/filedepot/pkg/blob/minio"
	blobtesting "github.com/marmos91/filedepot/pkg/blob/testing"
)

// minioConfig builds a store config pointed at the local MinIO server.
//
// Prerequisites:
//   - MinIO running on localhost:9000 (or MINIO_ENDPOINT)
//   - Run with: go test -tags=integration ./test/integration/minio/...
//
// To start MinIO:
//
//	docker run --rm -p 9000:9000 minio/minio server /data
func minioConfig(bucket string) miniostore.Config {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	if accessKey == "" {
		accessKey = "minioadmin"
	}
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	if secretKey == "" {
		secretKey = "minioadmin"
	}

	return miniostore.Config{
		Endpoint:     endpoint,
		AccessKey:    accessKey,
		SecretKey:    secretKey,
		Bucket:       bucket,
		CreateBucket: true,
	}
}

// TestMinioBlobStore_Integration runs the complete blob store test suite
// against a real MinIO server.
func TestMinioBlobStore_Integration(t *testing.T) {
	ctx := context.Background()

	// Each test gets its own bucket for isolation
	testCounter := 0
	runID := time.Now().UnixNano()

	suite := &blobtesting.BlobTestSuite{
		NewStore: func(t *testing.T) blob.Store {
			testCounter++
			bucket := fmt.Sprintf("filedepot-test-%d-%d", runID, testCounter)
			store, err := miniostore.NewMinioBlobStore(ctx, minioConfig(bucket))
			if err != nil {
				t.Fatalf("Failed to create MinIO blob store: %v", err)
			}
			return store
		},
	}

	suite.Run(t)
}

// TestMinioBlobStore_Presign verifies a presigned URL actually serves the
// object, with the download disposition the options asked for.
func TestMinioBlobStore_Presign(t *testing.T) {
	ctx := context.Background()

	bucket := fmt.Sprintf("filedepot-presign-%d", time.Now().UnixNano())
	store, err := miniostore.NewMinioBlobStore(ctx, minioConfig(bucket))
	if err != nil {
		t.Fatalf("Failed to create MinIO blob store: %v", err)
	}
	defer store.Close()

	content := []byte("presigned object body")
	key := "2026/01/02/abcd1234/presigned.txt"

	if err := store.Put(ctx, key, bytes.NewReader(content), int64(len(content)), "text/plain"); err != nil {
		t.Fatalf("Failed to put object: %v", err)
	}

	// ========================================================================
	// Presign and fetch without credentials
	// ========================================================================

	url, err := store.PresignGet(ctx, key, blob.PresignOptions{
		Expiry:   time.Minute,
		Filename: "renamed.txt",
	})
	if err != nil {
		t.Fatalf("Failed to presign: %v", err)
	}

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Failed to fetch presigned URL: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from presigned URL, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read presigned body: %v", err)
	}
	if !bytes.Equal(body, content) {
		t.Fatalf("Presigned content mismatch:\nExpected: %q\nGot: %q", content, body)
	}

	disposition := resp.Header.Get("Content-Disposition")
	if !strings.Contains(disposition, "renamed.txt") {
		t.Errorf("Expected the download filename in the disposition, got %q", disposition)
	}

	// ========================================================================
	// An expired URL must stop working
	// ========================================================================

	shortURL, err := store.PresignGet(ctx, key, blob.PresignOptions{Expiry: time.Second})
	if err != nil {
		t.Fatalf("Failed to presign short URL: %v", err)
	}

	time.Sleep(2 * time.Second)

	resp, err = http.Get(shortURL)
	if err != nil {
		t.Fatalf("Failed to fetch expired URL: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Error("Expected an expired presigned URL to be rejected")
	}
}

// TestMinioBlobStore_List verifies object listing, which the garbage
// collector's orphan sweep depends on.
func TestMinioBlobStore_List(t *testing.T) {
	ctx := context.Background()

	bucket := fmt.Sprintf("filedepot-list-%d", time.Now().UnixNano())
	store, err := miniostore.NewMinioBlobStore(ctx, minioConfig(bucket))
	if err != nil {
		t.Fatalf("Failed to create MinIO blob store: %v", err)
	}
	defer store.Close()

	keys := []string{
		"2026/01/01/aaaa/one.txt",
		"2026/01/01/aaaa/two.txt",
		"2026/01/02/bbbb/three.txt",
	}
	for _, key := range keys {
		if err := store.Put(ctx, key, strings.NewReader(key), int64(len(key)), "text/plain"); err != nil {
			t.Fatalf("Failed to put %s: %v", key, err)
		}
	}

	seen := map[string]bool{}
	err = store.List(ctx, "", func(info blob.ObjectInfo) error {
		seen[info.Key] = true
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to list objects: %v", err)
	}

	for _, key := range keys {
		if !seen[key] {
			t.Errorf("Expected key %s in listing", key)
		}
	}

	// Prefix listing narrows to one day
	count := 0
	err = store.List(ctx, "2026/01/01/", func(info blob.ObjectInfo) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to list prefix: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 objects under the prefix, got %d", count)
	}
}
