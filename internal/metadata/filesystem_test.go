package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"lfu-go/internal/lfu"
	"lfu-go/internal/model"
	"lfu-go/internal/testutil"
)

func newTestFileSystemStore(t *testing.T) (*FileSystemStore, string, *testutil.StubClock) {
	t.Helper()
	root := t.TempDir()
	clock := testutil.NewStubClock(time.Now().Add(time.Hour))
	s, err := NewFileSystemStore(root, clock, lfu.NewNopLogger())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	return s, root, clock
}

func writeFile(t *testing.T, root, rel, content string) os.FileInfo {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(p)
	if err != nil {
		t.Fatal(err)
	}
	return info
}

func TestFileSystemStore_ReadMissing(t *testing.T) {
	s, root, _ := newTestFileSystemStore(t)
	info := writeFile(t, root, "a.txt", "hello")

	got, err := s.Read("a.txt", info)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Size != 5 || got.SHA256 != "" || got.Timestamp != nil {
		t.Errorf("Read() = %+v, want fresh record of size 5", got)
	}
}

func TestFileSystemStore_WriteThenRead(t *testing.T) {
	s, root, clock := newTestFileSystemStore(t)
	info := writeFile(t, root, "dir/sub/b.bin", "content")

	meta := model.NewFileMetadata(info.Size())
	meta.SHA256 = testutil.SHA256Hex([]byte("content"))
	meta.UploadMode = model.UploadModeRegular
	meta.ShouldIgnore = model.Bool(false)
	if err := s.Write("dir/sub/b.bin", meta); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if meta.Timestamp == nil || !meta.Timestamp.Equal(clock.Now()) {
		t.Errorf("Write() Timestamp = %v, want %v", meta.Timestamp, clock.Now())
	}

	record := filepath.Join(root, ".cache", "lfu", "upload", "dir", "sub", "b.bin.metadata")
	if _, err := os.Stat(record); err != nil {
		t.Fatalf("record not written at %s: %v", record, err)
	}

	got, err := s.Read("dir/sub/b.bin", info)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.SHA256 != meta.SHA256 || got.UploadMode != model.UploadModeRegular {
		t.Errorf("Read() = %+v, want %+v", got, meta)
	}
}

func TestFileSystemStore_StaleRecord(t *testing.T) {
	s, root, clock := newTestFileSystemStore(t)
	info := writeFile(t, root, "c.txt", "v1")

	meta := model.NewFileMetadata(info.Size())
	meta.SHA256 = "old"
	if err := s.Write("c.txt", meta); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// Modify the file after the record was written.
	later := clock.Now().Add(time.Minute)
	p := filepath.Join(root, "c.txt")
	if err := os.WriteFile(p, []byte("v2 longer"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(p, later, later); err != nil {
		t.Fatal(err)
	}
	info, _ = os.Stat(p)

	got, err := s.Read("c.txt", info)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.SHA256 != "" {
		t.Errorf("stale record honored: SHA256 = %q", got.SHA256)
	}
	if got.Size != int64(len("v2 longer")) {
		t.Errorf("Size = %d, want %d", got.Size, len("v2 longer"))
	}
}

func TestFileSystemStore_CorruptRecord(t *testing.T) {
	s, root, _ := newTestFileSystemStore(t)
	info := writeFile(t, root, "d.txt", "data")

	record := filepath.Join(root, ".cache", "lfu", "upload", "d.txt.metadata")
	if err := os.WriteFile(record, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := s.Read("d.txt", info)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.SHA256 != "" || got.Size != 4 {
		t.Errorf("Read() = %+v, want fresh record", got)
	}
}

func TestFileSystemStore_NoTempFilesLeft(t *testing.T) {
	s, root, _ := newTestFileSystemStore(t)
	info := writeFile(t, root, "e.txt", "data")

	for i := 0; i < 3; i++ {
		meta := model.NewFileMetadata(info.Size())
		meta.IsCommitted = i == 2
		if err := s.Write("e.txt", meta); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(root, ".cache", "lfu", "upload"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".metadata" && filepath.Ext(e.Name()) != ".lock" {
			t.Errorf("unexpected file left behind: %s", e.Name())
		}
	}
}
