package queue

import (
	"context"
	"sync"
	"time"

	"exam-backend/internal/jobs"
	"exam-backend/internal/shared/telemetry"
)

// LocalDispatcher runs jobs on in-process goroutines. It is the fallback
// when no Redis queue is configured, so a single binary can serve requests
// and process jobs.
type LocalDispatcher struct {
	Runner     *jobs.Runner
	JobTimeout time.Duration

	sem chan struct{}
	wg  sync.WaitGroup
}

// NewLocalDispatcher caps concurrent runs at concurrency.
func NewLocalDispatcher(runner *jobs.Runner, concurrency int, jobTimeout time.Duration) *LocalDispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &LocalDispatcher{
		Runner:     runner,
		JobTimeout: jobTimeout,
		sem:        make(chan struct{}, concurrency),
	}
}

var _ jobs.Dispatcher = (*LocalDispatcher)(nil)

// Dispatch schedules the job on a background goroutine. The request context
// is not propagated; the run outlives the HTTP request that created it.
func (d *LocalDispatcher) Dispatch(_ context.Context, jobID string) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sem <- struct{}{}
		defer func() { <-d.sem }()

		ctx := context.Background()
		if d.JobTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.JobTimeout)
			defer cancel()
		}
		if err := d.Runner.Run(ctx, jobID); err != nil {
			telemetry.Warn("dispatch.run", map[string]any{"job_id": jobID, "error": err.Error()})
		}
	}()
	return nil
}

// Wait blocks until all dispatched jobs finish.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}
