package database

import (
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	"lfu-go/internal/lfu"
	"lfu-go/internal/model"
)

// MetadataStore keeps per-file upload progress for one upload root in the
// file_metadata table. Records of different roots never collide.
type MetadataStore struct {
	db     *SQLiteDatabase
	root   string
	clock  lfu.Clock
	logger lfu.Logger
}

// NewMetadataStore returns a store scoped to the absolute upload root.
func NewMetadataStore(db *SQLiteDatabase, root string, clock lfu.Clock, logger lfu.Logger) *MetadataStore {
	return &MetadataStore{db: db, root: root, clock: clock, logger: logger}
}

func (s *MetadataStore) Read(relPath string, info fs.FileInfo) (*model.FileMetadata, error) {
	r, err := s.db.getFileRecord(s.root, relPath)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return model.NewFileMetadata(info.Size()), nil
	}

	meta, err := r.toMetadata()
	if err != nil {
		s.logger.Warn("corrupted metadata record, starting over", "path", relPath, "error", err)
		return model.NewFileMetadata(info.Size()), nil
	}
	if meta.IsStaleFor(info.ModTime()) {
		return model.NewFileMetadata(info.Size()), nil
	}
	return meta, nil
}

func (s *MetadataStore) Write(relPath string, meta *model.FileMetadata) error {
	now := s.clock.Now()
	meta.Timestamp = &now
	if err := s.db.putFileRecord(s.root, relPath, fromMetadata(meta)); err != nil {
		return fmt.Errorf("%s: %w", relPath, err)
	}
	return nil
}

func fromMetadata(m *model.FileMetadata) *fileRecord {
	r := &fileRecord{
		TimestampUS: m.Timestamp.UnixMicro(),
		Size:        m.Size,
		SHA256:      m.SHA256,
		UploadMode:  string(m.UploadMode),
		RemoteOID:   m.RemoteOID,
		IsUploaded:  m.IsUploaded,
		IsCommitted: m.IsCommitted,
	}
	if m.ShouldIgnore != nil {
		r.ShouldIgnore = sql.NullBool{Bool: *m.ShouldIgnore, Valid: true}
	}
	return r
}

func (r *fileRecord) toMetadata() (*model.FileMetadata, error) {
	mode := model.UploadMode(r.UploadMode)
	if mode != "" && !mode.Valid() {
		return nil, fmt.Errorf("unknown upload mode %q", r.UploadMode)
	}
	ts := time.UnixMicro(r.TimestampUS)
	m := &model.FileMetadata{
		Size:        r.Size,
		SHA256:      r.SHA256,
		UploadMode:  mode,
		RemoteOID:   r.RemoteOID,
		IsUploaded:  r.IsUploaded,
		IsCommitted: r.IsCommitted,
		Timestamp:   &ts,
	}
	if r.ShouldIgnore.Valid {
		m.ShouldIgnore = model.Bool(r.ShouldIgnore.Bool)
	}
	return m, nil
}

var _ lfu.MetadataStore = (*MetadataStore)(nil)
