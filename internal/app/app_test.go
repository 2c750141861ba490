package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lfu-go/internal/config"
	"lfu-go/internal/database"
	"lfu-go/internal/testutil"
)

func newTestApp(t *testing.T, mutate func(*config.Config)) *LFUApp {
	t.Helper()
	base := t.TempDir()
	cfg := config.NewConfig("test-host", base)
	cfg.Remote = config.RemoteConfig{Type: "memory"}
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Encryption = config.EncryptionConfig{Type: "test"}
	cfg.LogLevel = "error"
	if mutate != nil {
		mutate(cfg)
	}

	a, err := NewLFUApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewLFUApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func writeSampleTree(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "dataset")
	testutil.WriteTree(t, dir, map[string]string{
		"README.md":       "# dataset\n",
		"data/train.bin":  "\x00\x01\x02binary",
		"data/labels.csv": "id,label\n1,cat\n",
	})
	return dir
}

func TestLFUApp_Upload(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)
	dir := writeSampleTree(t)

	res, err := a.Upload(ctx, dir, UploadOptions{Workers: 1})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.Committed != 3 || res.Final.Total != 3 {
		t.Errorf("Upload() committed %d of %d, want 3 of 3", res.Committed, res.Final.Total)
	}

	again, err := a.Upload(ctx, dir, UploadOptions{Workers: 1})
	if err != nil {
		t.Fatalf("second Upload() error = %v", err)
	}
	if again.Committed != 0 {
		t.Errorf("second Upload() committed %d, want 0", again.Committed)
	}

	runs, err := a.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("History() returned %d runs, want 2", len(runs))
	}
	for _, run := range runs {
		if run.Status != database.RunStatusSuccess || run.FilesTotal != 3 || run.FinishedAt == nil {
			t.Errorf("run = %+v", run)
		}
	}
	committed := runs[0].FilesCommitted + runs[1].FilesCommitted
	if committed != 3 {
		t.Errorf("runs committed %d files in total, want 3", committed)
	}
}

func TestLFUApp_Status(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)
	dir := writeSampleTree(t)

	before, err := a.Status(dir)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if before.Total != 3 || before.Committed != 0 || before.Hashed != 0 {
		t.Errorf("Status() before upload = %+v", before)
	}

	if _, err := a.Upload(ctx, dir, UploadOptions{Workers: 1}); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	after, err := a.Status(dir)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if after.Committed != 3 {
		t.Errorf("Status() after upload committed = %d, want 3", after.Committed)
	}
}

func TestLFUApp_SQLiteMetadata(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, func(cfg *config.Config) {
		cfg.Metadata = config.MetadataConfig{Type: "sqlite"}
	})
	dir := writeSampleTree(t)

	if _, err := a.Upload(ctx, dir, UploadOptions{Workers: 1}); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	snap, err := a.Status(dir)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if snap.Committed != 3 {
		t.Errorf("Status() committed = %d, want 3", snap.Committed)
	}
}

func TestLFUApp_DryRun(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, func(cfg *config.Config) {
		cfg.Metadata = config.MetadataConfig{Type: "sqlite"}
	})
	dir := writeSampleTree(t)

	res, err := a.Upload(ctx, dir, UploadOptions{Workers: 1, DryRun: true})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.Committed != 3 {
		t.Errorf("dry run committed %d, want 3", res.Committed)
	}

	runs, err := a.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("dry run recorded %d runs, want 0", len(runs))
	}
	snap, err := a.Status(dir)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if snap.Committed != 0 {
		t.Errorf("dry run persisted progress: committed = %d", snap.Committed)
	}
}

func TestLFUApp_UploadWritesReport(t *testing.T) {
	a := newTestApp(t, nil)
	dir := writeSampleTree(t)

	var out bytes.Buffer
	if _, err := a.Upload(context.Background(), dir, UploadOptions{Workers: 1, ReportOut: &out, ReportEvery: time.Hour}); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !strings.Contains(out.String(), "committed: 3/3") {
		t.Errorf("report = %q", out.String())
	}
}

func TestLFUApp_Cat(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)
	dir := writeSampleTree(t)
	if _, err := a.Upload(ctx, dir, UploadOptions{Workers: 1}); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	prompts := 0
	passphrase := func() (string, error) {
		prompts++
		return "secret", nil
	}

	var buf bytes.Buffer
	if err := a.Cat(ctx, "data/labels.csv", &buf, passphrase); err != nil {
		t.Fatalf("Cat() error = %v", err)
	}
	if buf.String() != "id,label\n1,cat\n" {
		t.Errorf("Cat() = %q", buf.String())
	}
	if prompts != 1 {
		t.Errorf("passphrase asked %d times, want 1", prompts)
	}

	if err := a.Cat(ctx, "missing.txt", &buf, passphrase); err == nil {
		t.Error("Cat() expected error for a path not on the remote")
	}
}

func TestLFUApp_InvalidReportInterval(t *testing.T) {
	a := newTestApp(t, func(cfg *config.Config) {
		cfg.Upload.ReportInterval = "soon"
	})
	if _, err := a.Upload(context.Background(), writeSampleTree(t), UploadOptions{Workers: 1}); err == nil {
		t.Error("Upload() expected error for an invalid report interval")
	}
}

func TestNewLFUApp_RejectsUnknownBackends(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "remote", mutate: func(c *config.Config) { c.Remote.Type = "ftp" }},
		{name: "database", mutate: func(c *config.Config) { c.Database.Type = "postgres" }},
		{name: "encryption", mutate: func(c *config.Config) { c.Encryption.Type = "rot13" }},
		{name: "log level", mutate: func(c *config.Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig("h", t.TempDir())
			cfg.Remote = config.RemoteConfig{Type: "memory"}
			cfg.Database = config.DatabaseConfig{Type: "memory"}
			tt.mutate(cfg)
			if a, err := NewLFUApp(context.Background(), cfg); err == nil {
				a.Close()
				t.Fatal("NewLFUApp() expected error")
			}
		})
	}
}

func TestSetupEncryption(t *testing.T) {
	t.Run("age keys", func(t *testing.T) {
		cfg := config.NewConfig("h", t.TempDir())
		cfg.Encryption.Type = "age"
		if err := SetupEncryption(cfg, "pass"); err != nil {
			t.Fatalf("SetupEncryption() error = %v", err)
		}
		if err := SetupEncryption(cfg, "pass"); err == nil {
			t.Error("second SetupEncryption() expected error")
		}
	})

	t.Run("no encryption configured", func(t *testing.T) {
		cfg := config.NewConfig("h", t.TempDir())
		if err := SetupEncryption(cfg, "pass"); err == nil {
			t.Error("SetupEncryption() expected error for type none")
		}
	})
}
