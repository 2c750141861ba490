package app

import (
	"errors"

	"lfu-go/internal/database"
	"lfu-go/internal/lfu"
)

// UploadRecord tracks one upload run between its start and finish records.
type UploadRecord struct {
	RunID string
	Root  string

	// Persisted is false until the start of the run has been written.
	Persisted bool
}

// runStatus maps the outcome of an upload to its recorded status.
func runStatus(err error) string {
	switch {
	case err == nil:
		return database.RunStatusSuccess
	case errors.Is(err, lfu.ErrInterrupted):
		return database.RunStatusInterrupted
	default:
		return database.RunStatusError
	}
}
