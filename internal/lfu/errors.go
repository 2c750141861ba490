package lfu

import (
	"errors"
	"fmt"
)

var (
	// ErrNotDirectory is returned when the upload root is not a directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrObjectMissing is returned by a remote when a commit references a
	// large object that was never staged.
	ErrObjectMissing = errors.New("object not staged on remote")

	// ErrInterrupted is returned when a run stops before every file is committed.
	ErrInterrupted = errors.New("upload interrupted")
)

// StageError describes a failed stage execution for one batch.
type StageError struct {
	Stage Stage
	Paths []string
	Err   error
}

func (e *StageError) Error() string {
	switch len(e.Paths) {
	case 0:
		return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
	case 1:
		return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.Paths[0], e.Err)
	default:
		return fmt.Sprintf("%s failed for %s and %d more: %v", e.Stage, e.Paths[0], len(e.Paths)-1, e.Err)
	}
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// MissingObjectsError is returned by a remote commit that references large
// objects the remote does not hold. It matches ErrObjectMissing.
type MissingObjectsError struct {
	Paths []string
}

func (e *MissingObjectsError) Error() string {
	switch len(e.Paths) {
	case 0:
		return ErrObjectMissing.Error()
	case 1:
		return fmt.Sprintf("%s: %v", e.Paths[0], ErrObjectMissing)
	default:
		return fmt.Sprintf("%s and %d more: %v", e.Paths[0], len(e.Paths)-1, ErrObjectMissing)
	}
}

func (e *MissingObjectsError) Is(target error) bool {
	return target == ErrObjectMissing
}
