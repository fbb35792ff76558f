// Package memory provides an in-memory blob store for tests.
package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/filedepot/pkg/blob"
	"github.com/marmos91/filedepot/pkg/depot"
)

// MemoryBlobStore implements blob.Store and blob.Lister on a map.
//
// Thread safety: protected by a sync.RWMutex. Content is copied on the
// way in and out so callers can never alias internal buffers.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	objects map[string]object
}

type object struct {
	data    []byte
	ctype   string
	modTime time.Time
}

// NewMemoryBlobStore creates an empty in-memory blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: make(map[string]object)}
}

func (s *MemoryBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return &depot.StoreError{Code: depot.ErrIOError, Message: "read upload content: " + err.Error(), Key: key}
	}
	if size >= 0 && int64(len(data)) != size {
		return &depot.StoreError{Code: depot.ErrIOError, Message: "content length mismatch", Key: key}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: data, ctype: contentType, modTime: time.Now().UTC()}
	return nil
}

func (s *MemoryBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.GetRange(ctx, key, 0, -1)
}

func (s *MemoryBlobStore) GetRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, &depot.StoreError{Code: depot.ErrNotFound, Message: "object not found", Key: key}
	}

	if offset < 0 || offset > int64(len(obj.data)) {
		return nil, &depot.StoreError{Code: depot.ErrInvalidArgument, Message: "range out of bounds", Key: key}
	}
	end := int64(len(obj.data))
	if length >= 0 && offset+length < end {
		end = offset + length
	}

	// Copy so the caller cannot see later writes
	data := make([]byte, end-offset)
	copy(data, obj.data[offset:end])
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryBlobStore) Stat(ctx context.Context, key string) (blob.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return blob.ObjectInfo{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return blob.ObjectInfo{}, &depot.StoreError{Code: depot.ErrNotFound, Message: "object not found", Key: key}
	}
	return blob.ObjectInfo{Key: key, Size: int64(len(obj.data)), ModTime: obj.modTime}, nil
}

func (s *MemoryBlobStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryBlobStore) List(ctx context.Context, prefix string, fn func(blob.ObjectInfo) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	infos := make([]blob.ObjectInfo, 0, len(s.objects))
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, blob.ObjectInfo{Key: key, Size: int64(len(obj.data)), ModTime: obj.modTime})
		}
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	for _, info := range infos {
		if err := fn(info); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryBlobStore) Close() error {
	return nil
}

// SetModTime backdates an object, letting janitor tests age objects
// without sleeping.
func (s *MemoryBlobStore) SetModTime(key string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obj, ok := s.objects[key]; ok {
		obj.modTime = t
		s.objects[key] = obj
	}
}

// Len reports how many objects are stored.
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
