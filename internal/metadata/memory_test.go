package metadata

import (
	"io/fs"
	"testing"
	"time"

	"lfu-go/internal/model"
	"lfu-go/internal/testutil"
)

type fileInfo struct {
	size    int64
	modTime time.Time
}

func (f fileInfo) Name() string       { return "f" }
func (f fileInfo) Size() int64        { return f.size }
func (f fileInfo) Mode() fs.FileMode  { return 0644 }
func (f fileInfo) ModTime() time.Time { return f.modTime }
func (f fileInfo) IsDir() bool        { return false }
func (f fileInfo) Sys() any           { return nil }

func TestMemoryStore(t *testing.T) {
	clock := testutil.FixedClock()
	before := clock.Now().Add(-time.Hour)
	after := clock.Now().Add(time.Hour)

	tests := []struct {
		name    string
		stored  bool
		modTime time.Time
		wantSHA string
	}{
		{name: "no record", stored: false, modTime: before, wantSHA: ""},
		{name: "record newer than file", stored: true, modTime: before, wantSHA: "abc"},
		{name: "record same age as file", stored: true, modTime: clock.Now(), wantSHA: "abc"},
		{name: "file modified after record", stored: true, modTime: after, wantSHA: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMemoryStore(clock)
			if tt.stored {
				meta := model.NewFileMetadata(3)
				meta.SHA256 = "abc"
				if err := s.Write("x", meta); err != nil {
					t.Fatalf("Write() error = %v", err)
				}
			}

			got, err := s.Read("x", fileInfo{size: 3, modTime: tt.modTime})
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if got.SHA256 != tt.wantSHA {
				t.Errorf("SHA256 = %q, want %q", got.SHA256, tt.wantSHA)
			}
		})
	}
}

func TestMemoryStore_ReadReturnsCopy(t *testing.T) {
	clock := testutil.FixedClock()
	s := NewMemoryStore(clock)
	meta := model.NewFileMetadata(1)
	if err := s.Write("x", meta); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, _ := s.Read("x", fileInfo{size: 1, modTime: clock.Now().Add(-time.Minute)})
	got.IsCommitted = true

	stored, _ := s.Get("x")
	if stored.IsCommitted {
		t.Error("mutating a read record changed the store")
	}
	if s.Writes() != 1 {
		t.Errorf("Writes() = %d, want 1", s.Writes())
	}
}
