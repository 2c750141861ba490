package metadata

import (
	"io/fs"
	"sync"

	"lfu-go/internal/lfu"
	"lfu-go/internal/model"
)

// MemoryStore keeps records in memory. Progress does not survive the
// process, which suits tests and dry runs. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	clock   lfu.Clock
	records map[string]*model.FileMetadata
	writes  int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(clock lfu.Clock) *MemoryStore {
	return &MemoryStore{
		clock:   clock,
		records: make(map[string]*model.FileMetadata),
	}
}

func (s *MemoryStore) Read(relPath string, info fs.FileInfo) (*model.FileMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.records[relPath]
	if !ok || !usable(meta, info) {
		return fresh(info), nil
	}
	return meta.Clone(), nil
}

func (s *MemoryStore) Write(relPath string, meta *model.FileMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	meta.Timestamp = &now
	s.records[relPath] = meta.Clone()
	s.writes++
	return nil
}

// Get returns a copy of the stored record for relPath, ignoring staleness.
func (s *MemoryStore) Get(relPath string) (*model.FileMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.records[relPath]
	if !ok {
		return nil, false
	}
	return meta.Clone(), true
}

// Put stores meta for relPath as-is, keeping its Timestamp.
func (s *MemoryStore) Put(relPath string, meta *model.FileMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[relPath] = meta.Clone()
}

// Writes returns how many times Write was called.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

var _ lfu.MetadataStore = (*MemoryStore)(nil)
