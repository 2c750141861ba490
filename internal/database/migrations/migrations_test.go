package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tables := []string{"upload_runs", "file_metadata", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	err := CheckDBMigrationStatus(db)
	if !errors.Is(err, ErrNoVersion) {
		t.Errorf("CheckDBMigrationStatus() error = %v, want ErrNoVersion", err)
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}

	version, dirty, err := Version(db)
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	latest, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if version != latest || dirty {
		t.Errorf("Version() = (%d, %v), want (%d, false)", version, dirty, latest)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestSchema_FileMetadataKeyedByRootAndPath(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	insert := "INSERT INTO file_metadata (root, path, timestamp_us, size) VALUES (?, ?, 1, 10)"
	if _, err := db.Exec(insert, "/a", "x.bin"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := db.Exec(insert, "/b", "x.bin"); err != nil {
		t.Fatalf("same path under another root: %v", err)
	}
	if _, err := db.Exec(insert, "/a", "x.bin"); err == nil {
		t.Error("Expected primary key violation for duplicate (root, path), but insert succeeded")
	}
}

func TestSchema_RunIDUnique(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	insert := "INSERT INTO upload_runs (run_id, root, started_at) VALUES ('run-1', '/data', datetime('now'))"
	if _, err := db.Exec(insert); err != nil {
		t.Fatalf("Failed to insert first run: %v", err)
	}
	if _, err := db.Exec(insert); err == nil {
		t.Error("Expected unique constraint violation for duplicate run_id, but insert succeeded")
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
