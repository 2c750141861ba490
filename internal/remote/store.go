// Package remote implements the repository the upload engine talks to:
// classification against the committed tree, content-addressed staging of
// large objects, and atomic commits. Bytes live in an ObjectStore.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrNotFound is returned by ObjectStore.Get for a missing key.
var ErrNotFound = errors.New("object not found")

// ObjectStore is a flat key/value blob store. Keys are slash-separated.
type ObjectStore interface {
	// Put stores the content of r under key, replacing any previous value.
	// A reader error aborts the write and leaves the previous value intact.
	// size is the expected byte count, or -1 if unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get writes the content stored under key to w.
	Get(ctx context.Context, key string, w io.Writer) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Validate checks that the store is reachable and usable.
	Validate(ctx context.Context) error
}

// MemoryStore is an in-memory ObjectStore, useful for tests and dry runs.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	puts    map[string]int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		puts:    make(map[string]int),
	}
}

func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.puts[key]++
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	_, err := io.Copy(w, bytes.NewReader(data))
	return err
}

func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryStore) Validate(ctx context.Context) error {
	return nil
}

// Puts returns how many times key was written.
func (m *MemoryStore) Puts(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts[key]
}

// Raw returns the bytes stored under key.
func (m *MemoryStore) Raw(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}

var _ ObjectStore = (*MemoryStore)(nil)
