package remote

import (
	"context"
	"fmt"

	"lfu-go/internal/config"
	"lfu-go/internal/lfu"
)

// NewObjectStoreFromConfig creates the ObjectStore named by cfg.Type.
func NewObjectStoreFromConfig(ctx context.Context, cfg config.RemoteConfig) (ObjectStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem remote requires fs_root to be set")
		}
		return NewFileSystemStore(cfg.FSRoot)
	case "s3":
		return NewS3StoreFromConfig(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown remote type: %s", cfg.Type)
	}
}

// NewRemoteFromConfig creates the repository the engine uploads into.
// Filesystem and s3 remotes offer the bulk upload path; the memory remote
// stages objects one request at a time.
func NewRemoteFromConfig(ctx context.Context, cfg *config.Config, enc lfu.Encryptor, clock lfu.Clock, ids lfu.IDGenerator) (*Repository, lfu.Remote, error) {
	store, err := NewObjectStoreFromConfig(ctx, cfg.Remote)
	if err != nil {
		return nil, nil, err
	}
	repo := NewRepository(store, clock, ids, WithLFSThreshold(cfg.LFSThreshold), WithEncryptor(enc))
	if cfg.Remote.Type == "memory" {
		return repo, repo, nil
	}
	return repo, NewBulkRepository(repo, DefaultBulkConcurrency), nil
}
