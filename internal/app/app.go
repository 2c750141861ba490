package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"lfu-go/internal/config"
	"lfu-go/internal/database"
	"lfu-go/internal/encryption"
	"lfu-go/internal/fs"
	"lfu-go/internal/lfu"
	"lfu-go/internal/metadata"
	"lfu-go/internal/remote"
)

// LFUApp is the application layer between the CLI and the upload engine.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and records run history.
// The caller must call Close when done.
type LFUApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	fsmgr     *fs.OSFilesystemManager
	repo      *remote.Repository
	remote    lfu.Remote
	encryptor lfu.Encryptor
	logger    lfu.Logger
	logCloser io.Closer
	clock     lfu.Clock
	ids       lfu.IDGenerator
}

// NewLFUApp creates a fully wired LFUApp from the given config.
func NewLFUApp(ctx context.Context, cfg *config.Config) (*LFUApp, error) {
	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	ids := lfu.UUIDGenerator{}
	clock := lfu.RealClock{}

	sl, logCloser, err := newLogger(cfg.LogDir, ids.New(), level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: sl}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	repo, r, err := remote.NewRemoteFromConfig(ctx, cfg, enc, clock, ids)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("creating remote: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		logCloser.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	return &LFUApp{
		cfg:       cfg,
		db:        db,
		fsmgr:     fs.NewOSFilesystemManager(cfg.Filesystem.Ignore),
		repo:      repo,
		remote:    r,
		encryptor: enc,
		logger:    logger,
		logCloser: logCloser,
		clock:     clock,
		ids:       ids,
	}, nil
}

// UploadOptions are per-invocation overrides of the [upload] config.
type UploadOptions struct {
	Workers     int           // 0 uses the config value or the CPU default
	ReportEvery time.Duration // 0 uses the config value
	ReportOut   io.Writer     // nil disables progress reports
	// DryRun runs the whole pipeline against an in-memory remote and
	// progress store: nothing leaves the machine and nothing is persisted.
	DryRun bool
}

// Upload resolves rawPath and uploads the tree below it, resuming earlier
// progress. The run is recorded in the history unless it is a dry run.
func (a *LFUApp) Upload(ctx context.Context, rawPath string, opts UploadOptions) (*lfu.RunResult, error) {
	root, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	interval, err := a.reportInterval(opts.ReportEvery)
	if err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = a.cfg.Upload.Workers
	}

	store, r := lfu.MetadataStore(nil), a.remote
	if opts.DryRun {
		store = metadata.NewMemoryStore(a.clock)
		r = remote.NewRepository(remote.NewMemoryStore(), a.clock, a.ids, remote.WithLFSThreshold(a.cfg.LFSThreshold))
	} else {
		store, err = a.metadataStore(root.String())
		if err != nil {
			return nil, err
		}
	}

	engine := lfu.NewEngine(a.fsmgr, store, r, a.logger, a.clock,
		lfu.WithWorkers(workers),
		lfu.WithReport(opts.ReportOut, interval),
		lfu.WithCommitMessage(a.cfg.Upload.CommitMessage))

	rec := &UploadRecord{RunID: a.ids.New(), Root: root.String()}
	if !opts.DryRun {
		if _, err := a.db.CreateUploadRun(rec.RunID, rec.Root, a.clock.Now()); err != nil {
			return nil, err
		}
		rec.Persisted = true
	}

	result, runErr := engine.Run(ctx, root)

	if rec.Persisted {
		var total, committed int
		if result != nil {
			total, committed = result.Final.Total, result.Committed
		}
		if err := a.db.FinishUploadRun(rec.RunID, runStatus(runErr), total, committed, a.clock.Now()); err != nil {
			a.logger.Error("recording run", "run", rec.RunID, "error", err)
		}
	}
	return result, runErr
}

// Status reports the persisted progress of the tree at rawPath without
// contacting the remote.
func (a *LFUApp) Status(rawPath string) (lfu.Snapshot, error) {
	root, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return lfu.Snapshot{}, fmt.Errorf("resolving path: %w", err)
	}
	store, err := a.metadataStore(root.String())
	if err != nil {
		return lfu.Snapshot{}, err
	}
	engine := lfu.NewEngine(a.fsmgr, store, a.remote, a.logger, a.clock)
	return engine.Status(root)
}

// History returns the most recent upload runs.
func (a *LFUApp) History(limit int) ([]*database.UploadRun, error) {
	return a.db.ListUploadRuns(limit)
}

// Cat writes the committed content of the remote path to w. Encrypted
// content asks passphrase for the key passphrase.
func (a *LFUApp) Cat(ctx context.Context, path string, w io.Writer, passphrase func() (string, error)) error {
	err := a.repo.ReadFile(ctx, path, w, nil)
	if !errors.Is(err, remote.ErrLocked) {
		return err
	}
	if a.encryptor == nil {
		return fmt.Errorf("%w: no encryption configured", err)
	}

	pass, err := passphrase()
	if err != nil {
		return fmt.Errorf("reading passphrase: %w", err)
	}
	dec, err := a.encryptor.Unlock(pass)
	if err != nil {
		return fmt.Errorf("unlocking key: %w", err)
	}
	return a.repo.ReadFile(ctx, path, w, dec)
}

// Close closes the database and the log file.
func (a *LFUApp) Close() error {
	var errs []error
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing log: %w", err))
		}
	}
	return errors.Join(errs...)
}

// metadataStore opens the progress store for the tree at root.
func (a *LFUApp) metadataStore(root string) (lfu.MetadataStore, error) {
	switch a.cfg.Metadata.Type {
	case "", "filesystem":
		store, err := metadata.NewFileSystemStore(root, a.clock, a.logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sqlite":
		return database.NewMetadataStore(a.db, root, a.clock, a.logger), nil
	case "memory":
		return metadata.NewMemoryStore(a.clock), nil
	default:
		return nil, fmt.Errorf("unknown metadata type: %s", a.cfg.Metadata.Type)
	}
}

func (a *LFUApp) reportInterval(override time.Duration) (time.Duration, error) {
	if override > 0 {
		return override, nil
	}
	if a.cfg.Upload.ReportInterval == "" {
		return lfu.DefaultReportInterval, nil
	}
	d, err := time.ParseDuration(a.cfg.Upload.ReportInterval)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid upload.report_interval %q", a.cfg.Upload.ReportInterval)
	}
	return d, nil
}

// SetupEncryption generates the key pair named by cfg, protecting the
// private key with passphrase.
func SetupEncryption(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return err
	}
	if enc == nil {
		return fmt.Errorf("encryption type is %q: nothing to set up", cfg.Encryption.Type)
	}
	return enc.Setup(passphrase)
}
