// Package metadata persists per-file upload progress.
package metadata

import (
	"io/fs"

	"lfu-go/internal/model"
)

// fresh returns the default record for a file with no usable progress.
func fresh(info fs.FileInfo) *model.FileMetadata {
	return model.NewFileMetadata(info.Size())
}

// usable reports whether a stored record still describes the file.
func usable(meta *model.FileMetadata, info fs.FileInfo) bool {
	return meta != nil && !meta.IsStaleFor(info.ModTime())
}
