package object

import (
	"context"
	"errors"
	"io"
)

// ErrTooLarge indicates an upload exceeded the configured size cap.
var ErrTooLarge = errors.New("file too large")

// Store defines the contract for job-scoped file storage.
type Store interface {
	// SaveUpload writes the source PDF for a job and returns its storage path.
	SaveUpload(ctx context.Context, jobID string, r io.Reader, maxBytes int64) (path string, size int64, err error)
	// SaveOutput writes a generated artifact for a job and returns its storage path.
	SaveOutput(ctx context.Context, jobID string, fileName string, r io.Reader) (path string, err error)
	// Open opens a stored file for reading.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Exists reports whether a stored file is still present.
	Exists(path string) bool
	// ReleaseJob removes every stored file belonging to a job.
	ReleaseJob(jobID string) error
}
