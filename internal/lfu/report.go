package lfu

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatReport renders a progress snapshot for humans.
func FormatReport(s Snapshot, elapsed time.Duration, waiting int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "---------- %s ----------\n", elapsed.Truncate(time.Second))
	fmt.Fprintf(&b, "Files:   hashed %d/%d (%s/%s) | pre-uploaded: %d/%d (%s/%s) | committed: %d/%d (%s/%s) | ignored: %d\n",
		s.Hashed, s.Total, bytes(s.HashedSize), bytes(s.TotalSize),
		s.Uploaded, s.LFS, bytes(s.UploadedSize), bytes(s.LFSSize),
		s.Committed, s.Total, bytes(s.CommittedSize), bytes(s.TotalSize),
		s.Ignored)
	fmt.Fprintf(&b, "Workers: hashing: %d | get upload mode: %d | pre-uploading: %d | committing: %d | waiting: %d\n",
		s.InFlight[StageHash], s.InFlight[StageClassify], s.InFlight[StageUpload], s.InFlight[StageCommit], waiting)
	fmt.Fprintf(&b, "Queues:  hash: %d | get upload mode: %d | pre-upload: %d | commit: %d (batch %d)",
		s.Queued[StageHash], s.Queued[StageClassify], s.Queued[StageUpload], s.Queued[StageCommit], s.CommitTarget)
	return b.String()
}

func bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
