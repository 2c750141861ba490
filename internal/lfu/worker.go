package lfu

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"lfu-go/internal/model"
)

// execute runs one stage job. Items are updated in place: a worker clones
// an item's metadata, persists the updated clone and only then swaps it in,
// so any item whose stage or persistence failed keeps its old metadata.
func (e *Engine) execute(ctx context.Context, job Job) Result {
	start := e.clock.Now()

	var err error
	switch job.Kind {
	case JobHash:
		err = e.hash(job.Items)
	case JobClassify:
		err = e.classify(ctx, job.Items)
	case JobStageUpload:
		err = e.stageUpload(ctx, job.Items)
	case JobCommit:
		err = e.commit(ctx, job.Items)
	default:
		err = fmt.Errorf("unexpected job kind %s", job.Kind)
	}

	res := Result{Err: err, Elapsed: e.clock.Now().Sub(start)}
	if err != nil {
		stage, _ := job.Kind.stage()
		serr := &StageError{Stage: stage, Paths: relPaths(job.Items), Err: err}
		e.logger.Warn("stage failed",
			"stage", stage.String(),
			"batch", len(job.Items),
			"rule", job.Rule,
			"error", serr)
		res.Err = serr
	} else {
		e.logger.Debug("stage complete",
			"job", job.Kind.String(),
			"batch", len(job.Items),
			"rule", job.Rule,
			"elapsed", res.Elapsed)
	}
	return res
}

func (e *Engine) hash(items []*WorkItem) error {
	var errs []error
	for _, item := range items {
		if item.Meta.SHA256 != "" {
			continue
		}
		sum, err := e.hashFile(item.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("hashing %s: %w", item.RelPath, err))
			continue
		}
		next := item.Meta.Clone()
		next.SHA256 = sum
		errs = append(errs, e.persist(item, next))
	}
	return errors.Join(errs...)
}

// hashFile streams the file through SHA-256.
func (e *Engine) hashFile(path *Path) (string, error) {
	f, err := e.fsmgr.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (e *Engine) classify(ctx context.Context, items []*WorkItem) error {
	reqs := make([]ClassifyRequest, len(items))
	for i, item := range items {
		sample, err := e.readSample(item.Path)
		if err != nil {
			return fmt.Errorf("sampling %s: %w", item.RelPath, err)
		}
		reqs[i] = ClassifyRequest{Path: item.RelPath, Sample: sample, Size: item.Meta.Size}
	}

	results, err := e.remote.Classify(ctx, reqs)
	if err != nil {
		return fmt.Errorf("classifying: %w", err)
	}
	byPath := make(map[string]Classification, len(results))
	for _, c := range results {
		byPath[c.Path] = c
	}
	// Validate the whole answer before touching any item.
	for _, item := range items {
		c, ok := byPath[item.RelPath]
		if !ok {
			return fmt.Errorf("remote returned no classification for %s", item.RelPath)
		}
		if !c.ShouldIgnore && !c.UploadMode.Valid() {
			return fmt.Errorf("remote returned invalid upload mode %q for %s", c.UploadMode, item.RelPath)
		}
	}

	var errs []error
	for _, item := range items {
		c := byPath[item.RelPath]
		next := item.Meta.Clone()
		next.ShouldIgnore = model.Bool(c.ShouldIgnore)
		next.UploadMode = c.UploadMode
		next.RemoteOID = c.RemoteOID
		if !c.ShouldIgnore && c.RemoteOID != "" && c.RemoteOID == next.SHA256 {
			// Already identical on the remote.
			next.IsCommitted = true
			e.logger.Debug("file already on remote", "path", item.RelPath)
		}
		errs = append(errs, e.persist(item, next))
	}
	return errors.Join(errs...)
}

// readSample returns up to SampleSize leading bytes of the file.
func (e *Engine) readSample(path *Path) ([]byte, error) {
	f, err := e.fsmgr.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, SampleSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return buf[:n], nil
}

func (e *Engine) stageUpload(ctx context.Context, items []*WorkItem) error {
	reqs := make([]StageRequest, len(items))
	for i, item := range items {
		reqs[i] = StageRequest{
			Path:   item.RelPath,
			SHA256: item.Meta.SHA256,
			Size:   item.Meta.Size,
			Open: func() (io.ReadCloser, error) {
				return e.fsmgr.Open(item.Path)
			},
		}
	}

	var err error
	if e.bulk != nil {
		err = e.bulk.BulkUpload(ctx, reqs)
	} else {
		err = e.remote.StageUpload(ctx, reqs)
	}
	if err != nil {
		return fmt.Errorf("staging upload: %w", err)
	}

	var errs []error
	for _, item := range items {
		next := item.Meta.Clone()
		next.IsUploaded = true
		errs = append(errs, e.persist(item, next))
	}
	return errors.Join(errs...)
}

func (e *Engine) commit(ctx context.Context, items []*WorkItem) error {
	ops := make([]CommitOperation, len(items))
	for i, item := range items {
		op := CommitOperation{
			Path:   item.RelPath,
			Mode:   item.Meta.UploadMode,
			SHA256: item.Meta.SHA256,
			Size:   item.Meta.Size,
		}
		if op.Mode == model.UploadModeRegular {
			content, err := e.readContent(item.Path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", item.RelPath, err)
			}
			op.Content = content
		}
		ops[i] = op
	}

	if err := e.remote.Commit(ctx, ops, e.commitMessage); err != nil {
		err = fmt.Errorf("committing: %w", err)
		if errors.Is(err, ErrObjectMissing) {
			return errors.Join(err, e.restage(items, err))
		}
		return err
	}

	var errs []error
	for _, item := range items {
		next := item.Meta.Clone()
		next.IsCommitted = true
		errs = append(errs, e.persist(item, next))
	}
	return errors.Join(errs...)
}

// restage clears the upload flag of the lfs items whose objects the remote
// reported missing, so they route back to stage-upload. Without a list of
// paths every lfs item of the batch is reset.
func (e *Engine) restage(items []*WorkItem, err error) error {
	var missing map[string]bool
	var merr *MissingObjectsError
	if errors.As(err, &merr) && len(merr.Paths) > 0 {
		missing = make(map[string]bool, len(merr.Paths))
		for _, p := range merr.Paths {
			missing[p] = true
		}
	}

	var errs []error
	for _, item := range items {
		if item.Meta.UploadMode != model.UploadModeLFS || !item.Meta.IsUploaded {
			continue
		}
		if missing != nil && !missing[item.RelPath] {
			continue
		}
		e.logger.Info("object missing on remote, staging again", "path", item.RelPath)
		next := item.Meta.Clone()
		next.IsUploaded = false
		errs = append(errs, e.persist(item, next))
	}
	return errors.Join(errs...)
}

func (e *Engine) readContent(path *Path) ([]byte, error) {
	f, err := e.fsmgr.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

// persist writes next and makes it the item's metadata.
func (e *Engine) persist(item *WorkItem, next *model.FileMetadata) error {
	if err := e.store.Write(item.RelPath, next); err != nil {
		return fmt.Errorf("saving metadata for %s: %w", item.RelPath, err)
	}
	item.Meta = next
	return nil
}

func relPaths(items []*WorkItem) []string {
	paths := make([]string, len(items))
	for i, item := range items {
		paths[i] = item.RelPath
	}
	return paths
}
