package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"exam-backend/internal/jobs"
	"exam-backend/internal/shared/telemetry"
)

const dequeueWait = 5 * time.Second

// Worker consumes the Redis queue and runs jobs, at most Concurrency at a
// time. Run returns once the context is cancelled and in-flight jobs finish.
type Worker struct {
	Queue       *RedisQueue
	Runner      *jobs.Runner
	Concurrency int
	JobTimeout  time.Duration
}

// Run is the worker loop.
func (w *Worker) Run(ctx context.Context) {
	concurrency := w.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	telemetry.Info("worker.start", map[string]any{"concurrency": concurrency})
	for {
		if ctx.Err() != nil {
			break
		}
		msg, ok, err := w.Queue.Dequeue(ctx, dequeueWait)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			telemetry.Error("worker.dequeue", map[string]any{"error": err.Error()})
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(msg Message) {
			defer wg.Done()
			defer func() { <-sem }()
			w.runOne(msg)
		}(msg)
	}

	wg.Wait()
	telemetry.Info("worker.stop", nil)
}

func (w *Worker) runOne(msg Message) {
	ctx := context.Background()
	if w.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.JobTimeout)
		defer cancel()
	}
	telemetry.Info("worker.job_start", map[string]any{
		"job_id":     msg.JobID,
		"request_id": msg.RequestID,
		"queued_ms":  time.Since(msg.EnqueuedAt).Milliseconds(),
	})
	if err := w.Runner.Run(ctx, msg.JobID); err != nil {
		telemetry.Warn("worker.job_error", map[string]any{"job_id": msg.JobID, "error": err.Error()})
	}
}
