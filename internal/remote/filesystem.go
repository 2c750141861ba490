package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileSystemStore is an ObjectStore backed by a local directory. Each key
// maps to a file below root.
type FileSystemStore struct {
	root string
}

// NewFileSystemStore creates a store rooted at root, creating the directory
// if needed.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create remote root: %w", err)
	}
	return &FileSystemStore{root: root}, nil
}

func (s *FileSystemStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Put writes r to key using an atomic write (temp file + rename).
func (s *FileSystemStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	destPath := s.path(key)
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Temp file in the same directory so the rename stays on one filesystem
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
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

	written, err := io.Copy(tmpFile, r)
	if err != nil {
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

	if size >= 0 && written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func (s *FileSystemStore) Get(ctx context.Context, key string, w io.Writer) error {
	f, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

func (s *FileSystemStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", key, err)
}

// Validate verifies that the root exists, is a directory, and accepts writes.
func (s *FileSystemStore) Validate(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("remote root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("remote root is not a directory: %s", s.root)
	}

	f, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("remote root not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

var _ ObjectStore = (*FileSystemStore)(nil)
