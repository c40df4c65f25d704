package jobs

import "errors"

var (
	ErrNotFound          = errors.New("job not found")
	ErrConflict          = errors.New("job is processing")
	ErrAlreadyRunning    = errors.New("job already has an active run")
	ErrExpired           = errors.New("job expired")
	ErrNotCompleted      = errors.New("job not completed")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Error kinds recorded in the structured error detail of a failed job.
const (
	KindValidation = "validation"
	KindExtraction = "extraction"
	KindParsing    = "parsing"
	KindAssembly   = "assembly"
	KindResource   = "resource"
	KindInternal   = "internal"
)
