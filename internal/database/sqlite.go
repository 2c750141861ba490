package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lfu-go/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Run statuses recorded in upload_runs.
const (
	RunStatusRunning     = "running"
	RunStatusSuccess     = "success"
	RunStatusInterrupted = "interrupted"
	RunStatusError       = "error"
)

// UploadRun is one recorded invocation of an upload.
type UploadRun struct {
	ID             int64
	RunID          string
	Root           string
	StartedAt      time.Time
	FinishedAt     *time.Time
	Status         string
	FilesTotal     int
	FilesCommitted int
}

// SQLiteDatabase stores run history and, optionally, per-file upload
// progress in a single SQLite file.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// PRAGMAs and :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Run history

// CreateUploadRun records the start of an upload of root.
func (s *SQLiteDatabase) CreateUploadRun(runID, root string, startedAt time.Time) (*UploadRun, error) {
	res, err := s.db.ExecContext(context.Background(),
		`INSERT INTO upload_runs (run_id, root, started_at, status) VALUES (?, ?, ?, ?)`,
		runID, root, startedAt.UTC(), RunStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("creating upload run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading upload run id: %w", err)
	}
	return &UploadRun{
		ID:        id,
		RunID:     runID,
		Root:      root,
		StartedAt: startedAt.UTC(),
		Status:    RunStatusRunning,
	}, nil
}

// FinishUploadRun records how a run ended: the number of files it found
// and how many of them it committed.
func (s *SQLiteDatabase) FinishUploadRun(runID, status string, filesTotal, filesCommitted int, finishedAt time.Time) error {
	res, err := s.db.ExecContext(context.Background(),
		`UPDATE upload_runs SET status = ?, files_total = ?, files_committed = ?, finished_at = ? WHERE run_id = ?`,
		status, filesTotal, filesCommitted, finishedAt.UTC(), runID)
	if err != nil {
		return fmt.Errorf("finishing upload run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing upload run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing upload run: no run with id %s", runID)
	}
	return nil
}

// ListUploadRuns returns the most recent runs, newest first.
func (s *SQLiteDatabase) ListUploadRuns(limit int) ([]*UploadRun, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, run_id, root, started_at, finished_at, status, files_total, files_committed
		 FROM upload_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing upload runs: %w", err)
	}
	defer rows.Close()

	var runs []*UploadRun
	for rows.Next() {
		var (
			run      UploadRun
			finished sql.NullTime
		)
		if err := rows.Scan(&run.ID, &run.RunID, &run.Root, &run.StartedAt, &finished,
			&run.Status, &run.FilesTotal, &run.FilesCommitted); err != nil {
			return nil, fmt.Errorf("scanning upload run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing upload runs: %w", err)
	}
	return runs, nil
}

// File metadata

// fileRecord is a file_metadata row.
type fileRecord struct {
	TimestampUS  int64
	Size         int64
	ShouldIgnore sql.NullBool
	SHA256       string
	UploadMode   string
	RemoteOID    string
	IsUploaded   bool
	IsCommitted  bool
}

// getFileRecord returns the row for (root, path), or nil if none exists.
func (s *SQLiteDatabase) getFileRecord(root, path string) (*fileRecord, error) {
	var r fileRecord
	err := s.db.QueryRowContext(context.Background(),
		`SELECT timestamp_us, size, should_ignore, sha256, upload_mode, remote_oid, is_uploaded, is_committed
		 FROM file_metadata WHERE root = ? AND path = ?`, root, path).
		Scan(&r.TimestampUS, &r.Size, &r.ShouldIgnore, &r.SHA256, &r.UploadMode, &r.RemoteOID, &r.IsUploaded, &r.IsCommitted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("reading file metadata: %w", err)
	}
	return &r, nil
}

// putFileRecord inserts or replaces the row for (root, path) in one statement.
func (s *SQLiteDatabase) putFileRecord(root, path string, r *fileRecord) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO file_metadata
		   (root, path, timestamp_us, size, should_ignore, sha256, upload_mode, remote_oid, is_uploaded, is_committed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (root, path) DO UPDATE SET
		   timestamp_us = excluded.timestamp_us,
		   size = excluded.size,
		   should_ignore = excluded.should_ignore,
		   sha256 = excluded.sha256,
		   upload_mode = excluded.upload_mode,
		   remote_oid = excluded.remote_oid,
		   is_uploaded = excluded.is_uploaded,
		   is_committed = excluded.is_committed`,
		root, path, r.TimestampUS, r.Size, r.ShouldIgnore, r.SHA256, r.UploadMode, r.RemoteOID, r.IsUploaded, r.IsCommitted)
	if err != nil {
		return fmt.Errorf("writing file metadata: %w", err)
	}
	return nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate applies any pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
