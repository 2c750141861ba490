package lfu

import (
	"io/fs"

	"lfu-go/internal/model"
)

// MetadataStore persists per-file upload progress so a run can resume
// after the process stops.
type MetadataStore interface {
	// Read returns the stored record for the file at relPath.
	// If no record exists, the record cannot be parsed, or the file was
	// modified after the record was written, it returns a fresh record with
	// only Size populated from info.
	Read(relPath string, info fs.FileInfo) (*model.FileMetadata, error)

	// Write durably persists every field of meta, setting meta.Timestamp to
	// the current time. A crash may lose the last write but never leaves a
	// partially written record behind.
	Write(relPath string, meta *model.FileMetadata) error
}
