package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestFileSystemStore(t *testing.T) {
	ctx := context.Background()

	t.Run("put and get nested key", func(t *testing.T) {
		root := t.TempDir()
		s, err := NewFileSystemStore(root)
		if err != nil {
			t.Fatalf("NewFileSystemStore() error = %v", err)
		}

		if err := s.Put(ctx, "objects/abc", strings.NewReader("data"), 4); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(root, "objects", "abc")); err != nil {
			t.Errorf("object file not created: %v", err)
		}

		var buf bytes.Buffer
		if err := s.Get(ctx, "objects/abc", &buf); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if buf.String() != "data" {
			t.Errorf("Get() = %q, want %q", buf.String(), "data")
		}

		ok, err := s.Exists(ctx, "objects/abc")
		if err != nil || !ok {
			t.Errorf("Exists() = %v, %v, want true", ok, err)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		s, err := NewFileSystemStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemStore() error = %v", err)
		}
		if err := s.Get(ctx, "nope", io.Discard); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
		if ok, err := s.Exists(ctx, "nope"); err != nil || ok {
			t.Errorf("Exists() = %v, %v, want false", ok, err)
		}
	})

	t.Run("size mismatch leaves nothing behind", func(t *testing.T) {
		root := t.TempDir()
		s, err := NewFileSystemStore(root)
		if err != nil {
			t.Fatalf("NewFileSystemStore() error = %v", err)
		}
		if err := s.Put(ctx, "k", strings.NewReader("abc"), 10); err == nil {
			t.Fatal("Put() expected size mismatch error")
		}
		entries, _ := os.ReadDir(root)
		if len(entries) != 0 {
			t.Errorf("root contains %d entries after failed put, want 0", len(entries))
		}
	})

	t.Run("reader error keeps previous value", func(t *testing.T) {
		s, err := NewFileSystemStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemStore() error = %v", err)
		}
		if err := s.Put(ctx, "k", strings.NewReader("v1"), -1); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if err := s.Put(ctx, "k", failingReader{}, -1); err == nil {
			t.Fatal("Put() expected reader error")
		}

		var buf bytes.Buffer
		if err := s.Get(ctx, "k", &buf); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if buf.String() != "v1" {
			t.Errorf("Get() = %q, want %q", buf.String(), "v1")
		}
	})

	t.Run("validate", func(t *testing.T) {
		s, err := NewFileSystemStore(filepath.Join(t.TempDir(), "remote"))
		if err != nil {
			t.Fatalf("NewFileSystemStore() error = %v", err)
		}
		if err := s.Validate(ctx); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("validate rejects a file root", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "f")
		if err := os.WriteFile(file, nil, 0644); err != nil {
			t.Fatal(err)
		}
		s := &FileSystemStore{root: file}
		if err := s.Validate(ctx); err == nil {
			t.Error("Validate() expected error for a file root")
		}
	})
}
