package model

import "time"

// UploadMode is how a file's content travels to the remote.
type UploadMode string

const (
	// UploadModeLFS stages content as a content-addressed object before the
	// commit, which then only references it by hash.
	UploadModeLFS UploadMode = "lfs"
	// UploadModeRegular sends content inline in the commit payload.
	UploadModeRegular UploadMode = "regular"
)

// Valid reports whether m is a known upload mode.
func (m UploadMode) Valid() bool {
	return m == UploadModeLFS || m == UploadModeRegular
}

// FileMetadata is the durable upload progress of a single file.
// Optional fields use pointers (or the zero value for strings) to mean
// "not determined yet".
type FileMetadata struct {
	Size         int64      // byte length at discovery time
	SHA256       string     // hex content hash, empty until hashed
	ShouldIgnore *bool      // nil until classified
	UploadMode   UploadMode // empty until classified
	RemoteOID    string     // oid already present on the remote at this path
	IsUploaded   bool       // lfs object staged on the remote
	IsCommitted  bool       // named by a successful commit
	Timestamp    *time.Time // last time this record was written
}

// NewFileMetadata returns the default record for a file never seen before.
func NewFileMetadata(size int64) *FileMetadata {
	return &FileMetadata{Size: size}
}

// Ignored reports whether classification excluded the file permanently.
func (m *FileMetadata) Ignored() bool {
	return m.ShouldIgnore != nil && *m.ShouldIgnore
}

// IsStaleFor reports whether the record predates the file's modification time.
// A record without a timestamp is always stale.
func (m *FileMetadata) IsStaleFor(modTime time.Time) bool {
	if m.Timestamp == nil {
		return true
	}
	return modTime.After(*m.Timestamp)
}

// Clone returns a deep copy.
func (m *FileMetadata) Clone() *FileMetadata {
	c := *m
	if m.ShouldIgnore != nil {
		v := *m.ShouldIgnore
		c.ShouldIgnore = &v
	}
	if m.Timestamp != nil {
		ts := *m.Timestamp
		c.Timestamp = &ts
	}
	return &c
}

// Bool returns a pointer to b, for ShouldIgnore literals.
func Bool(b bool) *bool {
	return &b
}
