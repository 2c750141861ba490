package lfu

import "time"

// CommitSizeScale lists the commit batch sizes the batcher moves between.
var CommitSizeScale = []int{20, 50, 75, 100, 125, 200, 250, 400, 600, 1000}

// FastCommitCutoff is the longest a commit may take and still grow the batch size.
const FastCommitCutoff = 40 * time.Second

// CommitBatcher adapts the commit batch size to how the remote copes with it.
// It grows one step after a fast, full-sized commit and shrinks one step
// after any failed commit.
//
// CommitBatcher is not safe for concurrent use; the scheduler guards it.
type CommitBatcher struct {
	idx int
}

// NewCommitBatcher starts at the smallest size on the scale.
func NewCommitBatcher() *CommitBatcher {
	return &CommitBatcher{}
}

// Target returns the current commit batch size.
func (b *CommitBatcher) Target() int {
	return CommitSizeScale[b.idx]
}

// Index returns the position of Target on CommitSizeScale.
func (b *CommitBatcher) Index() int {
	return b.idx
}

// Record updates the target after a commit of batchSize items that took elapsed.
// It reports whether the target changed.
func (b *CommitBatcher) Record(success bool, batchSize int, elapsed time.Duration) bool {
	prev := b.idx
	switch {
	case !success:
		b.idx--
	case batchSize >= b.Target() && elapsed < FastCommitCutoff:
		b.idx++
	}
	b.idx = max(0, min(b.idx, len(CommitSizeScale)-1))
	return b.idx != prev
}
