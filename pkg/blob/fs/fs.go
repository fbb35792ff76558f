// Package fs implements filesystem-backed blob storage.
//
// Object keys map directly onto paths under the base directory, so the
// on-disk layout mirrors the key layout (YYYY/MM/DD/owner/uuid) and stays
// inspectable with ordinary shell tools. Presigning is not supported;
// handlers stream bytes through the API instead.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/filedepot/pkg/blob"
	"github.com/marmos91/filedepot/pkg/depot"
)

// FSBlobStore implements blob.Store and blob.Lister on a local directory.
//
// Thread safety: writes are atomic (temp file + rename), so concurrent
// readers of an overwritten key see either the old or the new content,
// never a torn mix. Concurrent writes to the same key are last-write-wins.
type FSBlobStore struct {
	basePath string
}

// NewFSBlobStore creates the base directory if needed and returns the store.
func NewFSBlobStore(ctx context.Context, basePath string) (*FSBlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if basePath == "" {
		return nil, fmt.Errorf("base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSBlobStore{basePath: basePath}, nil
}

// objectPath maps a key onto a path under basePath, refusing keys that
// would escape it.
func (s *FSBlobStore) objectPath(key string) (string, error) {
	if key == "" || strings.Contains(key, "\x00") {
		return "", &depot.StoreError{Code: depot.ErrInvalidArgument, Message: "invalid object key", Key: key}
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", &depot.StoreError{Code: depot.ErrInvalidArgument, Message: "object key escapes base directory", Key: key}
	}
	return filepath.Join(s.basePath, clean), nil
}

func (s *FSBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &depot.StoreError{Code: depot.ErrIOError, Message: "create object directory: " + err.Error(), Key: key}
	}

	// Write to a temp file in the same directory, then rename into
	// place so readers never observe partial content.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return &depot.StoreError{Code: depot.ErrIOError, Message: "create temp file: " + err.Error(), Key: key}
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && size >= 0 && written != size {
		err = fmt.Errorf("content length mismatch: wrote %d, expected %d", written, size)
	}
	if err != nil {
		os.Remove(tmpName)
		return &depot.StoreError{Code: depot.ErrIOError, Message: "write object: " + err.Error(), Key: key}
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &depot.StoreError{Code: depot.ErrIOError, Message: "publish object: " + err.Error(), Key: key}
	}
	return nil
}

func (s *FSBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.GetRange(ctx, key, 0, -1)
}

func (s *FSBlobStore) GetRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.objectPath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &depot.StoreError{Code: depot.ErrNotFound, Message: "object not found", Key: key}
		}
		return nil, &depot.StoreError{Code: depot.ErrIOError, Message: "open object: " + err.Error(), Key: key}
	}

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, &depot.StoreError{Code: depot.ErrIOError, Message: "seek object: " + err.Error(), Key: key}
		}
	}
	if length < 0 {
		return f, nil
	}
	return &limitedFile{Reader: io.LimitReader(f, length), f: f}, nil
}

// limitedFile bounds reads to the requested range while keeping the
// underlying file closable.
type limitedFile struct {
	io.Reader
	f *os.File
}

func (l *limitedFile) Close() error {
	return l.f.Close()
}

func (s *FSBlobStore) Stat(ctx context.Context, key string) (blob.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return blob.ObjectInfo{}, err
	}

	path, err := s.objectPath(key)
	if err != nil {
		return blob.ObjectInfo{}, err
	}

	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return blob.ObjectInfo{}, &depot.StoreError{Code: depot.ErrNotFound, Message: "object not found", Key: key}
		}
		return blob.ObjectInfo{}, &depot.StoreError{Code: depot.ErrIOError, Message: "stat object: " + err.Error(), Key: key}
	}
	if fi.IsDir() {
		return blob.ObjectInfo{}, &depot.StoreError{Code: depot.ErrNotFound, Message: "object not found", Key: key}
	}
	return blob.ObjectInfo{Key: key, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (s *FSBlobStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &depot.StoreError{Code: depot.ErrIOError, Message: "delete object: " + err.Error(), Key: key}
	}
	return nil
}

func (s *FSBlobStore) List(ctx context.Context, prefix string, fn func(blob.ObjectInfo) error) error {
	return filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}

		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		return fn(blob.ObjectInfo{Key: key, Size: fi.Size(), ModTime: fi.ModTime()})
	})
}

func (s *FSBlobStore) Close() error {
	return nil
}
