package fs

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"lfu-go/internal/testutil"
)

func findRel(t *testing.T, m *OSFilesystemManager, root string) []string {
	t.Helper()
	rootPath, err := m.Resolve(root)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	paths, err := m.FindFiles(rootPath)
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}
	var rels []string
	for _, p := range paths {
		rel, err := filepath.Rel(rootPath.String(), p.String())
		if err != nil {
			t.Fatalf("Rel() error = %v", err)
		}
		rels = append(rels, filepath.ToSlash(rel))
	}
	slices.Sort(rels)
	return rels
}

func TestOSFilesystemManager_FindFiles(t *testing.T) {
	t.Run("walks nested directories", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		testutil.WriteTree(t, root, map[string]string{
			"a.txt":       "a",
			"sub/b.bin":   "b",
			"sub/c/d.csv": "d",
		})

		got := findRel(t, NewOSFilesystemManager(nil), root)
		want := []string{"a.txt", "sub/b.bin", "sub/c/d.csv"}
		if !slices.Equal(got, want) {
			t.Errorf("FindFiles() = %v, want %v", got, want)
		}
	})

	t.Run("skips default ignored directories", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		testutil.WriteTree(t, root, map[string]string{
			"keep.txt":                     "k",
			".git/HEAD":                    "ref",
			".cache/lfu/upload/x.metadata": "m",
			".cache/other/y":               "y",
		})

		got := findRel(t, NewOSFilesystemManager(nil), root)
		want := []string{".cache/other/y", "keep.txt"}
		if !slices.Equal(got, want) {
			t.Errorf("FindFiles() = %v, want %v", got, want)
		}
	})

	t.Run("applies configured and local patterns", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		testutil.WriteTree(t, root, map[string]string{
			IgnoreFileName: "tmp/\n!important.log\n",
			"app.log":       "l",
			"important.log": "i",
			"tmp/scratch":   "s",
			"data.bin":      "d",
		})

		got := findRel(t, NewOSFilesystemManager([]string{"*.log"}), root)
		want := []string{IgnoreFileName, "data.bin", "important.log"}
		if !slices.Equal(got, want) {
			t.Errorf("FindFiles() = %v, want %v", got, want)
		}
	})

	t.Run("skips symlinks", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		testutil.WriteTree(t, root, map[string]string{"real.txt": "r"})
		if err := os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "link.txt")); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}

		got := findRel(t, NewOSFilesystemManager(nil), root)
		if !slices.Equal(got, []string{"real.txt"}) {
			t.Errorf("FindFiles() = %v, want [real.txt]", got)
		}
	})

	t.Run("rejects a file root", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		testutil.WriteTree(t, root, map[string]string{"f": "x"})
		m := NewOSFilesystemManager(nil)
		p, err := m.Resolve(filepath.Join(root, "f"))
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if _, err := m.FindFiles(p); err == nil {
			t.Error("FindFiles() expected error for a file root")
		}
	})
}

func TestOSFilesystemManager_Open(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"f.txt": "hello"})
	m := NewOSFilesystemManager(nil)

	p, err := m.Resolve(filepath.Join(root, "f.txt"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.IsDir() || p.Info().Size() != 5 {
		t.Fatalf("Resolve() = dir %v size %d", p.IsDir(), p.Info().Size())
	}

	rc, err := m.Open(p)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("content = %q, want %q", data, "hello")
	}

	dir, err := m.Resolve(root)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if _, err := m.Open(dir); err == nil {
		t.Error("Open() expected error for a directory")
	}
}

func TestOSFilesystemManager_ResolveMissing(t *testing.T) {
	t.Parallel()
	m := NewOSFilesystemManager(nil)
	if _, err := m.Resolve(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Resolve() expected error for a missing path")
	}
}
