package lfu

import "lfu-go/internal/model"

// Stage is where a file currently sits in the pipeline.
// It is always derived from the file's metadata by StageOf, never stored.
type Stage int

const (
	StageHash Stage = iota
	StageClassify
	StageUpload
	StageCommit
	StageIgnored
	StageCommitted
)

// numQueues is the number of stages that own a queue.
const numQueues = int(StageCommit) + 1

// String returns a human-readable representation of the stage.
func (s Stage) String() string {
	switch s {
	case StageHash:
		return "hash"
	case StageClassify:
		return "classify"
	case StageUpload:
		return "stage-upload"
	case StageCommit:
		return "commit"
	case StageIgnored:
		return "ignored"
	case StageCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further stage applies.
func (s Stage) Terminal() bool {
	return s == StageIgnored || s == StageCommitted
}

// StageOf derives the next stage for a file from its metadata. Seeding at
// startup and routing after every stage execution both go through here.
func StageOf(m *model.FileMetadata) Stage {
	switch {
	case m.Ignored():
		return StageIgnored
	case m.IsCommitted:
		return StageCommitted
	case m.SHA256 == "":
		return StageHash
	case m.UploadMode == "":
		return StageClassify
	case m.UploadMode == model.UploadModeLFS && !m.IsUploaded:
		return StageUpload
	default:
		return StageCommit
	}
}

// WorkItem is one file travelling through the pipeline.
//
// Meta is owned by whichever queue or worker currently holds the item and is
// only touched by that owner. The unexported fields are the scheduler's view
// of the item and are only read or written under the scheduler lock.
type WorkItem struct {
	RelPath string // slash-separated path relative to the upload root
	Path    *Path
	Meta    *model.FileMetadata

	stage    Stage
	mode     model.UploadMode
	size     int64
	hashed   bool
	uploaded bool
}

// NewWorkItem creates a work item for a discovered file.
func NewWorkItem(relPath string, path *Path, meta *model.FileMetadata) *WorkItem {
	return &WorkItem{RelPath: relPath, Path: path, Meta: meta}
}
