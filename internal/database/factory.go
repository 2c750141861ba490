package database

import (
	"fmt"
	"os"
	"path/filepath"

	"lfu-go/internal/config"
)

// NewDatabaseFromConfig opens the database named by cfg and brings its
// schema up to date.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, hostID string) (*SQLiteDatabase, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data_dir: %w", err)
		}
		path = filepath.Join(cfg.DataDir, hostID+".db")
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	db, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return db, nil
}
