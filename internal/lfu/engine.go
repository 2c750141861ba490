package lfu

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultReportInterval is how often progress is reported during a run.
	DefaultReportInterval = time.Minute

	// DefaultCommitMessage is used when no commit message is configured.
	DefaultCommitMessage = "Upload folder using lfu"

	// LargeTreeWarning is the file count above which a run logs a warning.
	LargeTreeWarning = 100_000
)

// DefaultWorkers leaves two cores for the rest of the system.
func DefaultWorkers() int {
	return max(runtime.NumCPU()-2, 2)
}

// Engine uploads a directory tree to a remote, resuming from whatever
// progress the metadata store recorded on previous runs.
type Engine struct {
	fsmgr  FilesystemManager
	store  MetadataStore
	remote Remote
	bulk   BulkUploader
	logger Logger
	clock  Clock

	workers        int
	waitInterval   time.Duration
	reportInterval time.Duration
	reportOut      io.Writer
	commitMessage  string

	waiting atomic.Int32
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithWorkers sets the worker pool size. Values below 1 are ignored.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithReport writes a progress report to w every interval. A nil w
// disables reporting.
func WithReport(w io.Writer, interval time.Duration) EngineOption {
	return func(e *Engine) {
		e.reportOut = w
		if interval > 0 {
			e.reportInterval = interval
		}
	}
}

// WithCommitMessage sets the message recorded with every commit.
func WithCommitMessage(msg string) EngineOption {
	return func(e *Engine) {
		if msg != "" {
			e.commitMessage = msg
		}
	}
}

// WithWaitInterval overrides how long an idle worker sleeps before asking
// for work again.
func WithWaitInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.waitInterval = d
	}
}

// NewEngine creates an Engine with the provided dependencies. If remote
// implements BulkUploader its bulk path replaces per-file staging.
func NewEngine(fsmgr FilesystemManager, store MetadataStore, remote Remote, logger Logger, clock Clock, opts ...EngineOption) *Engine {
	e := &Engine{
		fsmgr:          fsmgr,
		store:          store,
		remote:         remote,
		logger:         logger,
		clock:          clock,
		workers:        DefaultWorkers(),
		waitInterval:   WaitInterval,
		reportInterval: DefaultReportInterval,
		commitMessage:  DefaultCommitMessage,
	}
	if b, ok := remote.(BulkUploader); ok {
		e.bulk = b
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunResult summarizes an upload run.
type RunResult struct {
	Final     Snapshot
	Committed int // files committed by this run
	Duration  time.Duration
}

// Run uploads every file under root and returns once all of them are
// committed or ignored. Cancelling ctx stops workers between stage
// executions; batches already in flight finish first. A cancelled run
// returns ErrInterrupted and can be resumed by calling Run again.
func (e *Engine) Run(ctx context.Context, root *Path) (*RunResult, error) {
	start := e.clock.Now()

	if err := e.remote.ValidateSetup(); err != nil {
		return nil, fmt.Errorf("validating remote: %w", err)
	}
	sched, err := e.load(root)
	if err != nil {
		return nil, err
	}
	initial := sched.Snapshot()
	e.logger.Info("upload started",
		"root", root.String(),
		"files", initial.Total,
		"committed", initial.Committed,
		"ignored", initial.Ignored,
		"workers", e.workers)

	stopReport := e.startReporter(sched, start)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Go(func() {
			e.work(ctx, sched)
		})
	}
	wg.Wait()
	stopReport()

	final := sched.Snapshot()
	result := &RunResult{
		Final:     final,
		Committed: final.Committed - initial.Committed,
		Duration:  e.clock.Now().Sub(start),
	}
	if e.reportOut != nil {
		fmt.Fprintln(e.reportOut, FormatReport(final, result.Duration, 0))
	}

	if !sched.Done() {
		e.logger.Warn("upload interrupted", "committed", result.Committed, "remaining", final.Total-final.Committed-final.Ignored)
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%w: %w", ErrInterrupted, err)
		}
		return result, ErrInterrupted
	}

	e.logger.Info("upload complete", "committed", result.Committed, "duration", result.Duration)
	return result, nil
}

// Status loads the persisted progress for root without contacting the
// remote or running any stage.
func (e *Engine) Status(root *Path) (Snapshot, error) {
	sched, err := e.load(root)
	if err != nil {
		return Snapshot{}, err
	}
	return sched.Snapshot(), nil
}

// load discovers files under root, reads their metadata and seeds a scheduler.
func (e *Engine) load(root *Path) (*Scheduler, error) {
	if !root.IsDir() {
		return nil, fmt.Errorf("%s: %w", root.String(), ErrNotDirectory)
	}

	files, err := e.fsmgr.FindFiles(root)
	if err != nil {
		return nil, fmt.Errorf("finding files: %w", err)
	}
	if len(files) > LargeTreeWarning {
		e.logger.Warn("large folder: consider splitting the upload", "files", len(files))
	}

	items := make([]*WorkItem, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root.String(), f.String())
		if err != nil {
			return nil, fmt.Errorf("calculating relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)

		meta, err := e.store.Read(rel, f.Info())
		if err != nil {
			return nil, fmt.Errorf("reading metadata for %s: %w", rel, err)
		}
		items = append(items, NewWorkItem(rel, f, meta))
	}

	var opts []SchedulerOption
	if e.bulk != nil {
		opts = append(opts, WithBulkUpload())
	}
	return NewScheduler(e.clock, items, opts...), nil
}

// work is one worker's loop. Cancellation is only observed between jobs.
func (e *Engine) work(ctx context.Context, sched *Scheduler) {
	stageCtx := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			return
		}

		job := sched.Next()
		switch job.Kind {
		case JobDone:
			return
		case JobWait:
			e.waiting.Add(1)
			select {
			case <-ctx.Done():
			case <-time.After(e.waitInterval):
			}
			e.waiting.Add(-1)
		default:
			sched.Complete(job, e.execute(stageCtx, job))
		}
	}
}

// startReporter prints a progress report every reportInterval until the
// returned function is called.
func (e *Engine) startReporter(sched *Scheduler, start time.Time) func() {
	if e.reportOut == nil {
		return func() {}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(e.reportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				report := FormatReport(sched.Snapshot(), e.clock.Now().Sub(start), int(e.waiting.Load()))
				fmt.Fprintln(e.reportOut, report)
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}
