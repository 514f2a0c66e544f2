// internal/errors/errors.go
package errors

import (
	"fmt"
	"time"
)

// ErrInvalidRepoFormat is returned when a repository string is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// ErrSyncPaused is returned when an upstream call kept failing after every retry.
// The sync can be resumed later from the stored watermark.
type ErrSyncPaused struct {
	Op       string
	Attempts int
	Elapsed  time.Duration
	Err      error
}

func (e *ErrSyncPaused) Error() string {
	return fmt.Sprintf("sync paused: %s failed after %d attempts over %s: %v", e.Op, e.Attempts, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *ErrSyncPaused) Unwrap() error { return e.Err }

// ValidationError is returned by the persistence layer for an entity that does
// not match its schema. Nothing is written for that entity.
type ValidationError struct {
	Entity string
	ID     int64
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %d: %v", e.Entity, e.ID, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Reason }

// ErrMalformedJob is returned when a change feed payload cannot be read as a job.
type ErrMalformedJob struct {
	Reason string
}

func (e *ErrMalformedJob) Error() string {
	return "malformed job: " + e.Reason
}
