package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"lfu-go/internal/lfu"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// It performs actual filesystem operations using the os package.
type OSFilesystemManager struct {
	ignore []string
}

// NewOSFilesystemManager creates a new filesystem manager that operates on
// the real filesystem. ignore holds extra patterns applied to every walk on
// top of DefaultIgnorePatterns and the tree's own .lfuignore.
func NewOSFilesystemManager(ignore []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignore: ignore}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*lfu.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	// Check for special file types we don't support
	mode := info.Mode()
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return lfu.NewPath(absPath, info.IsDir(), info), nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path *lfu.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path.String())
	}
	return os.Open(path.String())
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path *lfu.Path) (fs.FileInfo, error) {
	return os.Stat(path.String())
}

// Matcher builds the ignore matcher for a walk of root.
func (m *OSFilesystemManager) Matcher(root string) (*IgnoreMatcher, error) {
	local, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	return NewIgnoreMatcher(DefaultIgnorePatterns).Append(m.ignore).Append(local), nil
}

// FindFiles walks root and returns every regular file not excluded by the
// ignore rules. Ignored directories are not descended into. Symlinks and
// other special files are skipped.
func (m *OSFilesystemManager) FindFiles(root *lfu.Path) ([]*lfu.Path, error) {
	if !root.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root.String())
	}

	matcher, err := m.Matcher(root.String())
	if err != nil {
		return nil, err
	}

	var paths []*lfu.Path
	err = filepath.WalkDir(root.String(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root.String() {
			return nil
		}
		rel, err := filepath.Rel(root.String(), p)
		if err != nil {
			return fmt.Errorf("calculating relative path: %w", err)
		}
		if matcher.Match(filepath.ToSlash(rel), d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		paths = append(paths, lfu.NewPath(p, false, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return paths, nil
}

// Compile-time check that OSFilesystemManager implements lfu.FilesystemManager interface
var _ lfu.FilesystemManager = (*OSFilesystemManager)(nil)
