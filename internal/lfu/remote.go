package lfu

import (
	"context"
	"io"

	"lfu-go/internal/model"
)

// SampleSize is the number of leading bytes sent with a classify request.
const SampleSize = 512

// ClassifyRequest asks the remote how a single file should be uploaded.
type ClassifyRequest struct {
	Path   string // path relative to the upload root, slash separated
	Sample []byte // up to SampleSize leading bytes
	Size   int64
}

// Classification is the remote's answer for one ClassifyRequest.
type Classification struct {
	Path         string
	UploadMode   model.UploadMode
	ShouldIgnore bool
	RemoteOID    string // oid currently stored at Path on the remote, if any
}

// StageRequest names one large object to pre-upload.
type StageRequest struct {
	Path   string
	SHA256 string
	Size   int64
	// Open returns the object content. Remotes open objects one at a time
	// so a large batch never holds every file open.
	Open func() (io.ReadCloser, error)
}

// CommitOperation adds or replaces one file in a commit.
type CommitOperation struct {
	Path   string
	Mode   model.UploadMode
	SHA256 string
	Size   int64
	// Content holds the file bytes for regular uploads; lfs operations
	// reference a staged object by SHA256 and leave Content nil.
	Content []byte
}

// Remote is the repository the engine uploads into.
type Remote interface {
	// Classify decides upload mode, ignore status and existing oid for a
	// batch of files in one round trip.
	Classify(ctx context.Context, files []ClassifyRequest) ([]Classification, error)

	// StageUpload pre-uploads large-object content. Objects already present
	// on the remote are skipped.
	StageUpload(ctx context.Context, files []StageRequest) error

	// Commit atomically records every operation in a single remote
	// transaction. Either all operations land or none do.
	Commit(ctx context.Context, ops []CommitOperation, message string) error

	// ValidateSetup verifies that the remote is accessible and properly configured.
	ValidateSetup() error
}

// BulkUploader is implemented by remotes with a chunked, deduplicating
// transfer path. When available it replaces StageUpload for whole batches
// and serializes internally, so the engine never runs two bulk uploads at once.
type BulkUploader interface {
	BulkUpload(ctx context.Context, files []StageRequest) error
}
