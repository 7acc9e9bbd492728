// Package memory implements an in-memory resource store.
//
// It is used in tests and for ephemeral deployments. Reads and writes are
// counted so tests can assert which requests reached the store (for example,
// that path-traversal requests are rejected before any store call).
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/marmos91/dittoweb/pkg/store"
)

// MemoryResourceStore stores resources in a map guarded by an RWMutex.
// Content is copied on both read and write so callers can never alias the
// store's internal buffers.
type MemoryResourceStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	reads  atomic.Int64
	writes atomic.Int64
}

// NewMemoryResourceStore creates an empty in-memory store.
func NewMemoryResourceStore() *MemoryResourceStore {
	return &MemoryResourceStore{
		data: make(map[string][]byte),
	}
}

// Seed inserts a resource without counting it as a write. Test helper.
func (s *MemoryResourceStore) Seed(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = append([]byte(nil), data...)
}

// ReadResource returns a copy of the named resource.
func (s *MemoryResourceStore) ReadResource(ctx context.Context, name string) ([]byte, error) {
	s.reads.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[name]
	if !ok {
		return nil, fmt.Errorf("resource %s: %w", name, store.ErrResourceNotFound)
	}

	return append([]byte(nil), data...), nil
}

// WriteUpload stores a copy of data under name.
func (s *MemoryResourceStore) WriteUpload(ctx context.Context, name string, data []byte) error {
	s.writes.Add(1)

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = append([]byte(nil), data...)

	return nil
}

// ReadCalls returns how many times ReadResource has been invoked.
func (s *MemoryResourceStore) ReadCalls() int64 {
	return s.reads.Load()
}

// WriteCalls returns how many times WriteUpload has been invoked.
func (s *MemoryResourceStore) WriteCalls() int64 {
	return s.writes.Load()
}

// Len returns the number of stored resources.
func (s *MemoryResourceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
