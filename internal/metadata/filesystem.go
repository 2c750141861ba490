package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"lfu-go/internal/lfu"
	"lfu-go/internal/model"
)

// CacheDir is where metadata lives, relative to the upload root.
const CacheDir = ".cache/lfu/upload"

// FileSystemStore keeps one record per file beside the uploaded tree:
//
//	<root>/.cache/lfu/upload/
//	  <relpath>.metadata
//	  <relpath>.lock
//
// Writes take an exclusive lock on the file's .lock sibling and replace the
// record atomically, so two processes uploading the same tree never
// interleave writes to one record.
type FileSystemStore struct {
	dir    string
	clock  lfu.Clock
	logger lfu.Logger
}

// NewFileSystemStore creates a store for the tree rooted at root.
func NewFileSystemStore(root string, clock lfu.Clock, logger lfu.Logger) (*FileSystemStore, error) {
	dir := filepath.Join(root, filepath.FromSlash(CacheDir))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}
	return &FileSystemStore{dir: dir, clock: clock, logger: logger}, nil
}

func (s *FileSystemStore) paths(relPath string) (record, lock string) {
	base := filepath.Join(s.dir, filepath.FromSlash(relPath))
	return base + ".metadata", base + ".lock"
}

// Read returns the stored record for relPath, or a fresh one if the record
// is missing, unreadable or older than the file.
func (s *FileSystemStore) Read(relPath string, info fs.FileInfo) (*model.FileMetadata, error) {
	recordPath, _ := s.paths(relPath)
	data, err := os.ReadFile(recordPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fresh(info), nil
		}
		return nil, fmt.Errorf("reading metadata: %w", err)
	}

	meta, err := decode(bytes.NewReader(data))
	if err != nil {
		s.logger.Warn("ignoring corrupt metadata", "path", relPath, "error", err)
		return fresh(info), nil
	}
	if !usable(meta, info) {
		s.logger.Debug("metadata outdated, file modified since", "path", relPath)
		return fresh(info), nil
	}
	return meta, nil
}

// Write persists meta for relPath and sets meta.Timestamp.
func (s *FileSystemStore) Write(relPath string, meta *model.FileMetadata) error {
	recordPath, lockPath := s.paths(relPath)
	if err := os.MkdirAll(filepath.Dir(recordPath), 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	unlock, err := lockFile(lockPath)
	if err != nil {
		return fmt.Errorf("locking metadata: %w", err)
	}
	defer unlock()

	now := s.clock.Now()
	meta.Timestamp = &now
	return writeFileAtomic(recordPath, encode(meta))
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over destPath.
func writeFileAtomic(destPath string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

var _ lfu.MetadataStore = (*FileSystemStore)(nil)
