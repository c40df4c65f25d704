package cleanup

import (
	"context"
	"time"

	"exam-backend/internal/jobs"
	"exam-backend/internal/shared/metrics"
	"exam-backend/internal/shared/storage/object"
	"exam-backend/internal/shared/telemetry"
)

// Summary reports one sweep.
type Summary struct {
	Cleaned int `json:"cleaned"`
	Failed  int `json:"failed"`
}

// Sweeper removes stored files of expired jobs on an interval. The job
// records stay behind so later download attempts can report the expiry.
type Sweeper struct {
	Repo     jobs.Repo
	Store    object.Store
	Interval time.Duration
}

// Run sweeps immediately and then on every interval tick until the context
// is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	telemetry.Info("cleanup.start", map[string]any{"interval": interval.String()})

	s.SweepOnce(ctx, time.Now().UTC())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			telemetry.Info("cleanup.stop", nil)
			return
		case now := <-ticker.C:
			s.SweepOnce(ctx, now.UTC())
		}
	}
}

// SweepOnce releases the files of every expired job. One job's failure does
// not stop the sweep; it is counted and retried on the next run.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) Summary {
	var summary Summary

	expired, err := s.Repo.ListExpired(ctx, now)
	if err != nil {
		telemetry.Error("cleanup.list", map[string]any{"error": err.Error()})
		return summary
	}

	for _, job := range expired {
		if err := s.Store.ReleaseJob(job.ID); err != nil {
			summary.Failed++
			telemetry.Error("cleanup.release", map[string]any{"job_id": job.ID, "error": err.Error()})
			continue
		}
		job.PDFPath = ""
		job.OutputPath = ""
		job.AnswerKeyPath = ""
		if err := s.Repo.Update(ctx, job); err != nil {
			summary.Failed++
			telemetry.Error("cleanup.update", map[string]any{"job_id": job.ID, "error": err.Error()})
			continue
		}
		summary.Cleaned++
	}

	metrics.AddCleanupResult(summary.Cleaned, summary.Failed)
	if summary.Cleaned > 0 || summary.Failed > 0 {
		telemetry.Info("cleanup.sweep", map[string]any{
			"cleaned": summary.Cleaned,
			"failed":  summary.Failed,
		})
	}
	return summary
}
