package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo used when no database is configured and in
// tests.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Job
}

// NewMemoryRepo constructs an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Job)}
}

func (r *MemoryRepo) Create(_ context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[job.ID] = cloneJob(job)
	return nil
}

func (r *MemoryRepo) GetByID(_ context.Context, jobID string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.byID[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return cloneJob(job), nil
}

func (r *MemoryRepo) Update(_ context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[job.ID]; !ok {
		return ErrNotFound
	}
	r.byID[job.ID] = cloneJob(job)
	return nil
}

func (r *MemoryRepo) List(_ context.Context, filter ListFilter) ([]Job, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]Job, 0, len(r.byID))
	for _, job := range r.byID {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && job.CreatedAt.Before(filter.Since) {
			continue
		}
		matched = append(matched, cloneJob(job))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []Job{}, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (r *MemoryRepo) Delete(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[jobID]; !ok {
		return ErrNotFound
	}
	delete(r.byID, jobID)
	return nil
}

func (r *MemoryRepo) ListExpired(_ context.Context, now time.Time) ([]Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var expired []Job
	for _, job := range r.byID {
		if !job.IsTerminal() || !job.IsExpired(now) {
			continue
		}
		if job.PDFPath == "" && job.OutputPath == "" && job.AnswerKeyPath == "" {
			continue
		}
		expired = append(expired, cloneJob(job))
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	return expired, nil
}

func cloneJob(job Job) Job {
	out := job
	if job.Warnings != nil {
		out.Warnings = append([]string(nil), job.Warnings...)
	}
	if job.ErrorDetail != nil {
		out.ErrorDetail = make(map[string]any, len(job.ErrorDetail))
		for k, v := range job.ErrorDetail {
			out.ErrorDetail[k] = v
		}
	}
	if job.StartedAt != nil {
		t := *job.StartedAt
		out.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
