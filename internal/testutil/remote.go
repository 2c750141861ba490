package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"lfu-go/internal/lfu"
	"lfu-go/internal/model"
)

// ErrInjected is returned by RecordingRemote for injected failures.
var ErrInjected = errors.New("injected remote failure")

// Call is one recorded remote call.
type Call struct {
	Method string // "classify", "stage-upload", "bulk-upload" or "commit"
	Paths  []string
	Err    error
}

// RecordingRemote is an in-memory lfu.Remote that records every call and
// can be told to fail. It also notes every path that is inside two calls
// at once. Safe for concurrent use.
type RecordingRemote struct {
	mu sync.Mutex

	// LFSThreshold classifies files at least this large as lfs. Zero
	// classifies everything as regular.
	LFSThreshold int64
	// Ignore lists paths the remote reports as ignored.
	Ignore map[string]bool
	// Latency holds every call open this long before it does any work.
	Latency time.Duration
	// OnCall, if set, runs at the start of every call. Set it before use.
	OnCall func(method string, paths []string)

	tree      map[string]string // path -> sha256
	objects   map[string]bool
	committed map[string]int // path@sha -> successful commit count
	calls     []Call
	failures  map[string]int
	active    map[string]string // path -> method of the call holding it
	overlaps  []string
}

// NewRecordingRemote creates an empty recording remote.
func NewRecordingRemote() *RecordingRemote {
	return &RecordingRemote{
		Ignore:    make(map[string]bool),
		tree:      make(map[string]string),
		objects:   make(map[string]bool),
		committed: make(map[string]int),
		failures:  make(map[string]int),
		active:    make(map[string]string),
	}
}

// AddObject records an object with the given sha256 as already staged.
func (r *RecordingRemote) AddObject(sha string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[sha] = true
}

// Overlaps describes every path that was part of two calls at the same time.
func (r *RecordingRemote) Overlaps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.overlaps...)
}

// SetRemoteFile records path as already present on the remote with the given sha256.
func (r *RecordingRemote) SetRemoteFile(path, sha string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tree[path] = sha
}

// Fail makes the next n calls to method return ErrInjected.
func (r *RecordingRemote) Fail(method string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[method] = n
}

// Calls returns the recorded calls to method, in order.
func (r *RecordingRemote) Calls(method string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Tree returns a copy of the committed path -> sha256 map.
func (r *RecordingRemote) Tree() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.tree))
	for k, v := range r.tree {
		out[k] = v
	}
	return out
}

// DoubleCommits returns every path@sha that was successfully committed more than once.
func (r *RecordingRemote) DoubleCommits() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for k, n := range r.committed {
		if n > 1 {
			out = append(out, k)
		}
	}
	return out
}

// begin marks paths as held by a call to method, logs the call and returns
// its index in the log and an injected failure if one is pending. Every
// begin needs a matching end.
func (r *RecordingRemote) begin(method string, paths []string) (int, error) {
	if r.OnCall != nil {
		r.OnCall(method, paths)
	}

	r.mu.Lock()
	for _, p := range paths {
		if other, ok := r.active[p]; ok {
			r.overlaps = append(r.overlaps, fmt.Sprintf("%s in %s and %s", p, other, method))
		}
		r.active[p] = method
	}
	idx, err := r.record(method, paths)
	latency := r.Latency
	r.mu.Unlock()

	if latency > 0 {
		time.Sleep(latency)
	}
	return idx, err
}

func (r *RecordingRemote) end(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range paths {
		delete(r.active, p)
	}
}

// record logs a call and returns an injected failure if one is pending.
// Must be called with mu held.
func (r *RecordingRemote) record(method string, paths []string) (int, error) {
	var err error
	if r.failures[method] > 0 {
		r.failures[method]--
		err = fmt.Errorf("%s: %w", method, ErrInjected)
	}
	r.calls = append(r.calls, Call{Method: method, Paths: paths, Err: err})
	return len(r.calls) - 1, err
}

// fail records err as the outcome of call idx and returns it.
// Must be called with mu held.
func (r *RecordingRemote) fail(idx int, err error) error {
	r.calls[idx].Err = err
	return err
}

func (r *RecordingRemote) Classify(_ context.Context, files []lfu.ClassifyRequest) ([]lfu.Classification, error) {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	_, err := r.begin("classify", paths)
	defer r.end(paths)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]lfu.Classification, len(files))
	for i, f := range files {
		mode := model.UploadModeRegular
		if r.LFSThreshold > 0 && f.Size >= r.LFSThreshold {
			mode = model.UploadModeLFS
		}
		out[i] = lfu.Classification{
			Path:         f.Path,
			UploadMode:   mode,
			ShouldIgnore: r.Ignore[f.Path],
			RemoteOID:    r.tree[f.Path],
		}
	}
	return out, nil
}

func (r *RecordingRemote) StageUpload(_ context.Context, files []lfu.StageRequest) error {
	return r.stage("stage-upload", files)
}

func (r *RecordingRemote) stage(method string, files []lfu.StageRequest) error {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	idx, err := r.begin(method, paths)
	defer r.end(paths)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range files {
		if r.objects[f.SHA256] {
			continue
		}
		sum, err := readSHA256(f.Open)
		if err != nil {
			return r.fail(idx, fmt.Errorf("reading %s: %w", f.Path, err))
		}
		if sum != f.SHA256 {
			return r.fail(idx, fmt.Errorf("checksum mismatch for %s", f.Path))
		}
		r.objects[f.SHA256] = true
	}
	return nil
}

func (r *RecordingRemote) Commit(_ context.Context, ops []lfu.CommitOperation, _ string) error {
	paths := make([]string, len(ops))
	for i, op := range ops {
		paths[i] = op.Path
	}
	idx, err := r.begin("commit", paths)
	defer r.end(paths)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var missing []string
	for _, op := range ops {
		if op.Mode == model.UploadModeLFS && !r.objects[op.SHA256] {
			missing = append(missing, op.Path)
		}
		if op.Mode == model.UploadModeRegular && SHA256Hex(op.Content) != op.SHA256 {
			return r.fail(idx, fmt.Errorf("inline content mismatch for %s", op.Path))
		}
	}
	if len(missing) > 0 {
		return r.fail(idx, &lfu.MissingObjectsError{Paths: missing})
	}
	for _, op := range ops {
		r.tree[op.Path] = op.SHA256
		r.committed[op.Path+"@"+op.SHA256]++
	}
	return nil
}

func (r *RecordingRemote) ValidateSetup() error {
	return nil
}

// RecordingBulkRemote is a RecordingRemote that also offers the bulk upload path.
type RecordingBulkRemote struct {
	*RecordingRemote
}

// NewRecordingBulkRemote creates an empty recording remote with bulk upload.
func NewRecordingBulkRemote() *RecordingBulkRemote {
	return &RecordingBulkRemote{RecordingRemote: NewRecordingRemote()}
}

func (r *RecordingBulkRemote) BulkUpload(_ context.Context, files []lfu.StageRequest) error {
	return r.stage("bulk-upload", files)
}

func readSHA256(open func() (io.ReadCloser, error)) (string, error) {
	rc, err := open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Compile-time checks
var (
	_ lfu.Remote       = (*RecordingRemote)(nil)
	_ lfu.BulkUploader = (*RecordingBulkRemote)(nil)
)
