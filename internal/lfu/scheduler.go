package lfu

import (
	"sync"
	"time"

	"lfu-go/internal/model"
	"lfu-go/internal/staging"
)

const (
	// CommitStaleAfter forces a commit of whatever is ready once this long
	// has passed since the last commit attempt started.
	CommitStaleAfter = 5 * time.Minute

	// CommitIdleAfter allows a commit once this long has passed since the
	// last commit attempt, after all cheaper work has been handed out.
	CommitIdleAfter = time.Minute

	// CommitHighWaterMark is the commit queue depth that triggers a commit
	// regardless of timers.
	CommitHighWaterMark = 150

	// ClassifyBatchSize is the most files classified in one round trip.
	ClassifyBatchSize = 100

	// BulkUploadBatchSize is the stage-upload batch size for remotes with a
	// bulk transfer path. Other remotes stage one file at a time.
	BulkUploadBatchSize = 256

	// WaitInterval is how long a worker sleeps after a wait job.
	WaitInterval = 10 * time.Second
)

// JobKind identifies what a worker should do next.
type JobKind int

const (
	JobWait JobKind = iota
	JobHash
	JobClassify
	JobStageUpload
	JobCommit
	JobDone
)

func (k JobKind) String() string {
	switch k {
	case JobWait:
		return "wait"
	case JobHash:
		return "hash"
	case JobClassify:
		return "classify"
	case JobStageUpload:
		return "stage-upload"
	case JobCommit:
		return "commit"
	case JobDone:
		return "done"
	default:
		return "unknown"
	}
}

// stage returns the queue a job kind draws from.
func (k JobKind) stage() (Stage, bool) {
	switch k {
	case JobHash:
		return StageHash, true
	case JobClassify:
		return StageClassify, true
	case JobStageUpload:
		return StageUpload, true
	case JobCommit:
		return StageCommit, true
	default:
		return 0, false
	}
}

// Job is a unit of work handed to a worker. The worker exclusively owns
// Items until it passes the job back to Scheduler.Complete.
type Job struct {
	Kind  JobKind
	Rule  string // name of the rule that produced the job
	Items []*WorkItem
}

// Result reports how a job went.
type Result struct {
	Err     error
	Elapsed time.Duration
}

// Scheduler owns the stage queues and decides which job an idle worker
// runs next. All of its state is guarded by one mutex, and no method blocks
// on I/O while holding it.
type Scheduler struct {
	mu    sync.Mutex
	clock Clock

	queues   [numQueues]*staging.Queue[*WorkItem]
	inFlight [numQueues]int

	lastCommitAttempt *time.Time
	batcher           *CommitBatcher

	uploadBatchSize int
	fastPath        bool

	items     []*WorkItem
	remaining int
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithBulkUpload switches stage-upload to BulkUploadBatchSize batches and
// enables the fast-path exception for the shared stage-upload rule.
func WithBulkUpload() SchedulerOption {
	return func(s *Scheduler) {
		s.uploadBatchSize = BulkUploadBatchSize
		s.fastPath = true
	}
}

// NewScheduler creates a scheduler and seeds every item into the queue
// its metadata calls for. Items that are already terminal are tracked for
// reporting but never queued.
func NewScheduler(clock Clock, items []*WorkItem, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		clock:           clock,
		batcher:         NewCommitBatcher(),
		uploadBatchSize: 1,
		items:           items,
	}
	for i := range s.queues {
		s.queues[i] = staging.NewQueue[*WorkItem]()
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, item := range items {
		s.remaining++
		s.route(item)
	}
	return s
}

// route re-derives the stage of an item its caller exclusively holds and
// hands the item to the matching queue. Must be called with mu held.
func (s *Scheduler) route(item *WorkItem) {
	stage := StageOf(item.Meta)
	item.stage = stage
	item.mode = item.Meta.UploadMode
	item.size = item.Meta.Size
	item.hashed = item.Meta.SHA256 != ""
	item.uploaded = item.Meta.IsUploaded

	if stage.Terminal() {
		s.remaining--
		return
	}
	s.queues[stage].Push(item)
}

// Next decides the next job, marks it in flight and dequeues its items.
func (s *Scheduler) Next() Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for _, r := range rules {
		if !r.when(s, now) {
			continue
		}
		job := Job{Kind: r.kind, Rule: r.name}
		stage, ok := r.kind.stage()
		if !ok {
			return job
		}
		job.Items = s.queues[stage].PopUpTo(s.batchSize(r.kind))
		s.inFlight[stage]++
		if r.kind == JobCommit {
			s.lastCommitAttempt = &now
		}
		return job
	}
	return Job{Kind: JobWait, Rule: "wait"}
}

// Complete returns a job's items to the scheduler. Each item is routed by
// its current metadata, so items whose stage failed land back in the queue
// they came from, unchanged.
func (s *Scheduler) Complete(job Job, res Result) {
	stage, ok := job.Kind.stage()
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight[stage]--
	if job.Kind == JobCommit {
		s.batcher.Record(res.Err == nil, len(job.Items), res.Elapsed)
	}
	for _, item := range job.Items {
		s.route(item)
	}
}

// Done reports whether every tracked file is committed or ignored.
func (s *Scheduler) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining == 0
}

func (s *Scheduler) batchSize(kind JobKind) int {
	switch kind {
	case JobCommit:
		return s.batcher.Target()
	case JobClassify:
		return ClassifyBatchSize
	case JobStageUpload:
		return s.uploadBatchSize
	default:
		return 1
	}
}

// Snapshot is a point-in-time view of progress used by the reporter.
type Snapshot struct {
	Total     int
	TotalSize int64

	Hashed     int
	HashedSize int64

	LFS          int
	LFSSize      int64
	Uploaded     int
	UploadedSize int64

	Committed     int
	CommittedSize int64
	Ignored       int

	Queued   [numQueues]int
	InFlight [numQueues]int

	CommitTarget int
}

// Snapshot returns the current progress counters.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Total:        len(s.items),
		InFlight:     s.inFlight,
		CommitTarget: s.batcher.Target(),
	}
	for i, q := range s.queues {
		snap.Queued[i] = q.Len()
	}
	for _, item := range s.items {
		snap.TotalSize += item.size
		if item.stage == StageIgnored {
			snap.Ignored++
			continue
		}
		if item.hashed {
			snap.Hashed++
			snap.HashedSize += item.size
		}
		if item.mode == model.UploadModeLFS {
			snap.LFS++
			snap.LFSSize += item.size
			if item.uploaded {
				snap.Uploaded++
				snap.UploadedSize += item.size
			}
		}
		if item.stage == StageCommitted {
			snap.Committed++
			snap.CommittedSize += item.size
		}
	}
	return snap
}
