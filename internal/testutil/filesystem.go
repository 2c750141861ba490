package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"lfu-go/internal/lfu"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing.
// Safe for concurrent use.
type MockFilesystemManager struct {
	mu       sync.RWMutex
	files    map[string]*MockFile
	failOpen map[string]int
	opens    map[string]int
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:    make(map[string]*MockFile),
		failOpen: make(map[string]int),
		opens:    make(map[string]int),
	}
}

// AddFile adds a file to the mock filesystem, modified at a fixed time in the past.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.AddFileModified(path, content, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

// AddFileModified adds a file with an explicit modification time.
func (m *MockFilesystemManager) AddFileModified(path string, content []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &MockFile{
		Content:     content,
		Permissions: 0644,
		ModTime:     modTime,
	}
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &MockFile{
		Permissions: 0755,
		ModTime:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		IsDirectory: true,
	}
}

// FailOpen makes the next n opens of path fail.
func (m *MockFilesystemManager) FailOpen(path string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOpen[path] = n
}

// Opens returns how many times path was opened successfully.
func (m *MockFilesystemManager) Opens(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.opens[path]
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*lfu.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	file, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", absPath)
	}
	return lfu.NewPath(absPath, file.IsDirectory, newMockFileInfo(absPath, file)), nil
}

func (m *MockFilesystemManager) Open(path *lfu.Path) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path.String())
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path.String())
	}
	if m.failOpen[path.String()] > 0 {
		m.failOpen[path.String()]--
		return nil, fmt.Errorf("file locked: %s", path.String())
	}
	m.opens[path.String()]++
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

func (m *MockFilesystemManager) Stat(path *lfu.Path) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path.String())
	}
	return newMockFileInfo(path.String(), file), nil
}

// FindFiles returns every file below root in lexical order.
func (m *MockFilesystemManager) FindFiles(root *lfu.Path) ([]*lfu.Path, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := strings.TrimSuffix(root.String(), "/") + "/"
	var names []string
	for name, file := range m.files {
		if !file.IsDirectory && strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	paths := make([]*lfu.Path, len(names))
	for i, name := range names {
		paths[i] = lfu.NewPath(name, false, newMockFileInfo(name, m.files[name]))
	}
	return paths, nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func newMockFileInfo(path string, file *MockFile) *mockFileInfo {
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(file.Content)),
		mode:    file.Permissions,
		modTime: file.ModTime,
		isDir:   file.IsDirectory,
	}
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check
var _ lfu.FilesystemManager = (*MockFilesystemManager)(nil)
