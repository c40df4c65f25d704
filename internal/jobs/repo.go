package jobs

import (
	"context"
	"time"
)

// ListFilter narrows List results.
type ListFilter struct {
	Status string
	Since  time.Time
	Limit  int
	Offset int
}

// Repo defines persistence operations for jobs.
type Repo interface {
	Create(ctx context.Context, job Job) error
	GetByID(ctx context.Context, jobID string) (Job, error)
	Update(ctx context.Context, job Job) error
	List(ctx context.Context, filter ListFilter) ([]Job, int, error)
	Delete(ctx context.Context, jobID string) error
	// ListExpired returns terminal jobs past their expiry that still hold
	// stored files.
	ListExpired(ctx context.Context, now time.Time) ([]Job, error)
}
