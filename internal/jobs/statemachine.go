package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"exam-backend/internal/progress"
	"exam-backend/internal/shared/metrics"
	"exam-backend/internal/shared/telemetry"
)

var stateOrder = map[string]int{
	StatusPending:    0,
	StatusExtracting: 1,
	StatusParsing:    2,
	StatusAssembling: 3,
	StatusCompleted:  4,
}

// Machine owns job state transitions. Every status or progress change goes
// through it so transitions stay forward-only, progress stays monotone, and
// each change is persisted and broadcast exactly once.
type Machine struct {
	repo        Repo
	broadcaster *progress.Broadcaster

	mu     sync.Mutex
	active map[string]struct{}
}

// NewMachine constructs a Machine over the given repo and broadcaster.
func NewMachine(repo Repo, broadcaster *progress.Broadcaster) *Machine {
	return &Machine{
		repo:        repo,
		broadcaster: broadcaster,
		active:      make(map[string]struct{}),
	}
}

// Acquire claims the job for a worker run. At most one run per job can hold
// the claim at a time.
func (m *Machine) Acquire(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[jobID]; ok {
		return ErrAlreadyRunning
	}
	m.active[jobID] = struct{}{}
	return nil
}

// Release gives the claim back. Safe to call when the claim is not held.
func (m *Machine) Release(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, jobID)
}

// Begin moves a pending job to extracting and stamps its start time. A job
// in any other state cannot begin.
func (m *Machine) Begin(ctx context.Context, jobID string) (Job, error) {
	job, err := m.repo.GetByID(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if job.Status != StatusPending {
		return Job{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, StatusExtracting)
	}
	now := time.Now().UTC()
	job.Status = StatusExtracting
	job.Progress = 5
	job.CurrentStep = "Extracting text from PDF"
	job.StartedAt = &now
	if err := m.repo.Update(ctx, job); err != nil {
		return Job{}, err
	}
	metrics.IncJobsStarted()
	m.emitProgress(job)
	return job, nil
}

// Advance moves the job one state forward through the pipeline. Completed is
// reached only through Complete.
func (m *Machine) Advance(ctx context.Context, job *Job, next string, percent int, step string) error {
	cur, okCur := stateOrder[job.Status]
	nxt, okNext := stateOrder[next]
	if !okCur || !okNext || nxt != cur+1 || next == StatusCompleted {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, next)
	}
	job.Status = next
	return m.setProgress(ctx, job, percent, step)
}

// SetProgress records a progress update within the job's current state.
func (m *Machine) SetProgress(ctx context.Context, job *Job, percent int, step string) error {
	if job.IsTerminal() {
		return fmt.Errorf("%w: progress update on %s job", ErrInvalidTransition, job.Status)
	}
	return m.setProgress(ctx, job, percent, step)
}

func (m *Machine) setProgress(ctx context.Context, job *Job, percent int, step string) error {
	if percent > job.Progress {
		job.Progress = percent
	}
	job.CurrentStep = step
	if err := m.repo.Update(ctx, *job); err != nil {
		return err
	}
	m.emitProgress(*job)
	return nil
}

// Complete moves an assembling job to completed, records its results, and
// broadcasts the completion event.
func (m *Machine) Complete(ctx context.Context, job *Job, outputPath, outputFilename, answerKeyPath string, totalQuestions, diagramCount int) error {
	if job.Status != StatusAssembling {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, StatusCompleted)
	}
	now := time.Now().UTC()
	job.Status = StatusCompleted
	job.Progress = 100
	job.CurrentStep = "Completed"
	job.OutputPath = outputPath
	job.OutputFilename = outputFilename
	job.AnswerKeyPath = answerKeyPath
	job.TotalQuestions = totalQuestions
	job.DiagramCount = diagramCount
	job.CompletedAt = &now
	if err := m.repo.Update(ctx, *job); err != nil {
		return err
	}
	metrics.IncJobsCompleted()
	if job.StartedAt != nil {
		metrics.ObserveJobDurationMs(float64(now.Sub(*job.StartedAt).Milliseconds()))
	}
	m.broadcaster.Publish(job.ID, progress.Complete(job.OutputFilename, totalQuestions, diagramCount))
	return nil
}

// Fail marks the job failed with the given error kind and message. Failing a
// job that already reached a terminal state is a no-op.
func (m *Machine) Fail(ctx context.Context, jobID, kind, message string, detail map[string]any) {
	job, err := m.repo.GetByID(ctx, jobID)
	if err != nil {
		telemetry.Error("job.fail_load", map[string]any{"job_id": jobID, "error": err.Error()})
		return
	}
	if job.IsTerminal() {
		return
	}
	now := time.Now().UTC()
	job.Status = StatusFailed
	job.CurrentStep = "Failed"
	job.ErrorMessage = message
	if detail == nil {
		detail = map[string]any{}
	}
	detail["kind"] = kind
	job.ErrorDetail = detail
	job.CompletedAt = &now
	if err := m.repo.Update(ctx, job); err != nil {
		telemetry.Error("job.fail_persist", map[string]any{"job_id": jobID, "error": err.Error()})
		return
	}
	metrics.IncJobsFailed()
	telemetry.Warn("job.failed", map[string]any{"job_id": jobID, "kind": kind, "message": message})
	m.broadcaster.Publish(jobID, progress.Error(message, detail))
}

func (m *Machine) emitProgress(job Job) {
	m.broadcaster.Publish(job.ID, progress.Progress(job.Progress, job.CurrentStep))
}
