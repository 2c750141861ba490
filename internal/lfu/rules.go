package lfu

import "time"

// rule is one step of the scheduling cascade. Rules are evaluated in order
// under the scheduler lock and the first whose predicate holds wins.
type rule struct {
	name string
	kind JobKind
	when func(s *Scheduler, now time.Time) bool
}

var rules = []rule{
	{"commit-stale", JobCommit, func(s *Scheduler, now time.Time) bool {
		return s.commitIdle() && s.sinceLastCommit(now, CommitStaleAfter)
	}},
	{"commit-high-water", JobCommit, func(s *Scheduler, _ time.Time) bool {
		return s.inFlight[StageCommit] == 0 && s.queues[StageCommit].Len() >= CommitHighWaterMark
	}},
	{"classify-full-batch", JobClassify, func(s *Scheduler, _ time.Time) bool {
		return s.queues[StageClassify].Len() >= ClassifyBatchSize
	}},
	{"upload-full-batch-exclusive", JobStageUpload, func(s *Scheduler, _ time.Time) bool {
		return s.queues[StageUpload].Len() >= s.uploadBatchSize && s.inFlight[StageUpload] == 0
	}},
	{"hash-exclusive", JobHash, func(s *Scheduler, _ time.Time) bool {
		return s.queues[StageHash].Len() > 0 && s.inFlight[StageHash] == 0
	}},
	{"classify-exclusive", JobClassify, func(s *Scheduler, _ time.Time) bool {
		return s.queues[StageClassify].Len() > 0 && s.inFlight[StageClassify] == 0
	}},
	{"upload-full-batch", JobStageUpload, func(s *Scheduler, _ time.Time) bool {
		if s.fastPath && s.inFlight[StageUpload] > 0 {
			return false
		}
		return s.queues[StageUpload].Len() >= s.uploadBatchSize
	}},
	{"hash", JobHash, func(s *Scheduler, _ time.Time) bool {
		return s.queues[StageHash].Len() > 0
	}},
	{"classify", JobClassify, func(s *Scheduler, _ time.Time) bool {
		return s.queues[StageClassify].Len() > 0
	}},
	{"upload", JobStageUpload, func(s *Scheduler, _ time.Time) bool {
		return s.queues[StageUpload].Len() > 0
	}},
	{"commit-idle", JobCommit, func(s *Scheduler, now time.Time) bool {
		return s.commitIdle() && s.sinceLastCommit(now, CommitIdleAfter)
	}},
	{"commit-drain", JobCommit, func(s *Scheduler, _ time.Time) bool {
		return s.commitIdle() && s.drained()
	}},
	{"done", JobDone, func(s *Scheduler, _ time.Time) bool {
		return s.remaining == 0
	}},
}

// commitIdle reports whether no commit is running and there is something to commit.
func (s *Scheduler) commitIdle() bool {
	return s.inFlight[StageCommit] == 0 && s.queues[StageCommit].Len() > 0
}

// sinceLastCommit reports whether more than d has passed since the last
// commit attempt started. It is false before the first commit.
func (s *Scheduler) sinceLastCommit(now time.Time, d time.Duration) bool {
	return s.lastCommitAttempt != nil && now.Sub(*s.lastCommitAttempt) > d
}

// drained reports whether every queue and in-flight counter other than
// commit's is zero.
func (s *Scheduler) drained() bool {
	for stage := StageHash; stage < StageCommit; stage++ {
		if s.queues[stage].Len() > 0 || s.inFlight[stage] > 0 {
			return false
		}
	}
	return true
}
