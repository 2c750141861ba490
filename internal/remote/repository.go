package remote

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"sync"

	"lfu-go/internal/config"
	"lfu-go/internal/encryption"
	"lfu-go/internal/fs"
	"lfu-go/internal/lfu"
	"lfu-go/internal/model"
)

// ErrLocked is returned by ReadFile for encrypted content when no
// decryption context is given.
var ErrLocked = errors.New("content is encrypted: unlock required")

// Repository is an lfu.Remote storing a tree of committed files and a
// content-addressed object store in an ObjectStore:
//
//	tree.json             current tree (path -> oid, size, mode)
//	objects/<sha256>      file content
//	objects/<sha256>.enc  file content encrypted at rest
//	commits/<id>.json     one record per commit
type Repository struct {
	store     ObjectStore
	clock     lfu.Clock
	ids       lfu.IDGenerator
	threshold int64
	enc       lfu.Encryptor

	// mu serializes commits: each one rewrites tree.json.
	mu sync.Mutex
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithLFSThreshold sets the size from which files are classified as lfs.
func WithLFSThreshold(n int64) RepositoryOption {
	return func(r *Repository) {
		if n > 0 {
			r.threshold = n
		}
	}
}

// WithEncryptor encrypts every object written from now on. A nil enc
// stores plaintext.
func WithEncryptor(enc lfu.Encryptor) RepositoryOption {
	return func(r *Repository) {
		r.enc = enc
	}
}

// NewRepository creates a repository on store.
func NewRepository(store ObjectStore, clock lfu.Clock, ids lfu.IDGenerator, opts ...RepositoryOption) *Repository {
	r := &Repository{
		store:     store,
		clock:     clock,
		ids:       ids,
		threshold: config.DefaultLFSThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) encrypted() bool {
	return r.enc != nil
}

// Classify answers from the committed tree: a path matching the committed
// .gitignore is ignored, large or binary files go through lfs, and the oid
// already stored at the path is reported.
func (r *Repository) Classify(ctx context.Context, files []lfu.ClassifyRequest) ([]lfu.Classification, error) {
	tree, err := loadTree(ctx, r.store)
	if err != nil {
		return nil, err
	}
	matcher := tree.matcher()

	out := make([]lfu.Classification, len(files))
	for i, f := range files {
		mode := model.UploadModeRegular
		if f.Size >= r.threshold || bytes.IndexByte(f.Sample, 0) >= 0 {
			mode = model.UploadModeLFS
		}
		out[i] = lfu.Classification{
			Path:         f.Path,
			UploadMode:   mode,
			ShouldIgnore: matcher.Match(f.Path, false),
			RemoteOID:    tree.Files[f.Path].OID,
		}
	}
	return out, nil
}

// StageUpload stores each object that is not already present. Content is
// verified against the announced size and sha256 while it streams; a
// mismatch aborts the write.
func (r *Repository) StageUpload(ctx context.Context, files []lfu.StageRequest) error {
	for _, f := range files {
		if err := r.stage(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) stage(ctx context.Context, f lfu.StageRequest) error {
	key := objectKey(f.SHA256, r.encrypted())
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Path, err)
	}
	defer rc.Close()

	if err := r.putObject(ctx, key, newVerifyingReader(rc, f.SHA256, f.Size), f.Size); err != nil {
		return fmt.Errorf("staging %s: %w", f.Path, err)
	}
	return nil
}

// putObject writes content, encrypting it first when an encryptor is set.
func (r *Repository) putObject(ctx context.Context, key string, content io.Reader, size int64) error {
	if !r.encrypted() {
		return r.store.Put(ctx, key, content, size)
	}
	body := encryption.EncryptReader(r.enc, content)
	defer body.Close()
	return r.store.Put(ctx, key, body, -1)
}

// Commit checks every lfs operation against staged objects, stores inline
// content, appends a commit record and then replaces tree.json. Nothing is
// visible in the tree until the final write.
func (r *Repository) Commit(ctx context.Context, ops []lfu.CommitOperation, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tree, err := loadTree(ctx, r.store)
	if err != nil {
		return err
	}

	encrypted := r.encrypted()
	var missing []string
	for _, op := range ops {
		switch op.Mode {
		case model.UploadModeLFS:
			ok, err := r.store.Exists(ctx, objectKey(op.SHA256, encrypted))
			if err != nil {
				return err
			}
			if !ok {
				missing = append(missing, op.Path)
			}
		case model.UploadModeRegular:
			if sum := sha256.Sum256(op.Content); hex.EncodeToString(sum[:]) != op.SHA256 {
				return fmt.Errorf("inline content of %s does not match its sha256", op.Path)
			}
		default:
			return fmt.Errorf("%s: unknown upload mode %q", op.Path, op.Mode)
		}
	}
	if len(missing) > 0 {
		return &lfu.MissingObjectsError{Paths: missing}
	}

	record := CommitRecord{
		ID:      r.ids.New(),
		Parent:  tree.Head,
		Message: message,
		Time:    r.clock.Now().UTC(),
		Files:   make([]CommitFile, 0, len(ops)),
	}
	for _, op := range ops {
		if op.Mode == model.UploadModeRegular {
			key := objectKey(op.SHA256, encrypted)
			if err := r.putObject(ctx, key, bytes.NewReader(op.Content), int64(len(op.Content))); err != nil {
				return fmt.Errorf("storing %s: %w", op.Path, err)
			}
			if op.Path == GitignorePath {
				patterns, err := fs.ParsePatterns(bytes.NewReader(op.Content))
				if err != nil {
					return err
				}
				tree.Ignore = patterns
			}
		}
		entry := TreeEntry{OID: op.SHA256, Size: op.Size, Mode: op.Mode, Encrypted: encrypted}
		tree.Files[op.Path] = entry
		record.Files = append(record.Files, CommitFile{Path: op.Path, TreeEntry: entry})
	}

	if err := putJSON(ctx, r.store, commitKey(record.ID), record); err != nil {
		return err
	}
	tree.Head = record.ID
	return putJSON(ctx, r.store, treeKey, tree)
}

// ValidateSetup checks that the underlying store is usable.
func (r *Repository) ValidateSetup() error {
	return r.store.Validate(context.Background())
}

// Tree returns the current committed tree.
func (r *Repository) Tree(ctx context.Context) (*Tree, error) {
	return loadTree(ctx, r.store)
}

// ReadFile writes the committed content of path to w. Encrypted content
// needs dec; plaintext content ignores it.
func (r *Repository) ReadFile(ctx context.Context, path string, w io.Writer, dec lfu.DecryptionContext) error {
	tree, err := loadTree(ctx, r.store)
	if err != nil {
		return err
	}
	entry, ok := tree.Files[path]
	if !ok {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}

	key := objectKey(entry.OID, entry.Encrypted)
	if !entry.Encrypted {
		return r.store.Get(ctx, key, w)
	}
	if dec == nil {
		return fmt.Errorf("%s: %w", path, ErrLocked)
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(r.store.Get(ctx, key, pw))
	}()
	defer pr.Close()
	if err := dec.Decrypt(pr, w); err != nil {
		return fmt.Errorf("decrypting %s: %w", path, err)
	}
	return nil
}

// verifyingReader fails at EOF if the content read does not have the
// expected size and sha256.
type verifyingReader struct {
	r        io.Reader
	h        hash.Hash
	n        int64
	wantSHA  string
	wantSize int64
}

func newVerifyingReader(r io.Reader, sha string, size int64) *verifyingReader {
	return &verifyingReader{r: r, h: sha256.New(), wantSHA: sha, wantSize: size}
}

func (v *verifyingReader) Read(p []byte) (int, error) {
	n, err := v.r.Read(p)
	v.h.Write(p[:n])
	v.n += int64(n)
	if err == io.EOF {
		if v.n != v.wantSize {
			return n, fmt.Errorf("size mismatch: expected %d bytes, got %d", v.wantSize, v.n)
		}
		if sum := hex.EncodeToString(v.h.Sum(nil)); sum != v.wantSHA {
			return n, fmt.Errorf("sha256 mismatch: expected %s, got %s", v.wantSHA, sum)
		}
	}
	return n, err
}

var _ lfu.Remote = (*Repository)(nil)
