package jobs

import (
	"context"
	"errors"
	"fmt"

	"exam-backend/internal/extract"
	"exam-backend/internal/parser"
	"exam-backend/internal/shared/metrics"
	"exam-backend/internal/shared/telemetry"
)

// TextExtractor produces the plain text of a page range from a stored PDF.
type TextExtractor interface {
	ExtractPages(ctx context.Context, path string, startPage, endPage int) (string, error)
}

// AssemblyResult names the artifacts produced for a completed job.
type AssemblyResult struct {
	OutputPath     string
	OutputFilename string
	AnswerKeyPath  string
}

// Assembler renders parsed questions into the downloadable artifacts.
type Assembler interface {
	Assemble(ctx context.Context, job Job, questions []parser.Question, onProgress func(done, total int)) (AssemblyResult, error)
}

// Runner executes the extract, parse and assemble pipeline for one job.
type Runner struct {
	Machine   *Machine
	Extractor TextExtractor
	Assembler Assembler
}

// Run processes the job end to end. Any pipeline error marks the job failed
// and is also returned to the caller.
func (r *Runner) Run(ctx context.Context, jobID string) error {
	if err := r.Machine.Acquire(jobID); err != nil {
		telemetry.Warn("job.run_skipped", map[string]any{"job_id": jobID, "error": err.Error()})
		return err
	}
	defer r.Machine.Release(jobID)

	job, err := r.Machine.Begin(ctx, jobID)
	if err != nil {
		if !errors.Is(err, ErrInvalidTransition) {
			r.Machine.Fail(ctx, jobID, KindInternal, "failed to start job", map[string]any{"error": err.Error()})
		}
		return err
	}

	text, err := r.Extractor.ExtractPages(ctx, job.PDFPath, job.PageStart, job.PageEnd)
	if err != nil {
		kind := KindResource
		var rangeErr *extract.PageRangeError
		if errors.As(err, &rangeErr) {
			kind = KindExtraction
		} else if errors.Is(err, extract.ErrNotPDF) || errors.Is(err, extract.ErrNoText) {
			kind = KindExtraction
		}
		r.Machine.Fail(ctx, jobID, kind, err.Error(), nil)
		return err
	}
	if err := r.Machine.SetProgress(ctx, &job, 20, "Text extracted"); err != nil {
		return r.failInternal(ctx, jobID, err)
	}

	if err := r.Machine.Advance(ctx, &job, StatusParsing, 25, "Parsing questions"); err != nil {
		return r.failInternal(ctx, jobID, err)
	}
	result, err := parser.Parse(text, job.QuestionStart, job.QuestionEnd, func(parsed, total int, q parser.Question) {
		percent := 25 + parsed*45/total
		if percent > 70 {
			percent = 70
		}
		step := fmt.Sprintf("Parsed question %d", q.Number)
		if perr := r.Machine.SetProgress(ctx, &job, percent, step); perr != nil {
			telemetry.Warn("job.progress_update", map[string]any{"job_id": jobID, "error": perr.Error()})
		}
	})
	if err != nil {
		kind := KindParsing
		if !errors.Is(err, parser.ErrNoQuestions) {
			kind = KindInternal
		}
		r.Machine.Fail(ctx, jobID, kind, err.Error(), nil)
		return err
	}
	job.Warnings = result.Warnings
	metrics.AddQuestionsParsed(len(result.Questions))
	if err := r.Machine.SetProgress(ctx, &job, 70, fmt.Sprintf("Parsed %d questions", len(result.Questions))); err != nil {
		return r.failInternal(ctx, jobID, err)
	}

	if err := r.Machine.Advance(ctx, &job, StatusAssembling, 75, "Assembling output document"); err != nil {
		return r.failInternal(ctx, jobID, err)
	}
	assembled, err := r.Assembler.Assemble(ctx, job, result.Questions, func(done, total int) {
		percent := 75 + done*20/total
		if percent > 95 {
			percent = 95
		}
		if perr := r.Machine.SetProgress(ctx, &job, percent, "Rendering document"); perr != nil {
			telemetry.Warn("job.progress_update", map[string]any{"job_id": jobID, "error": perr.Error()})
		}
	})
	if err != nil {
		r.Machine.Fail(ctx, jobID, KindAssembly, err.Error(), nil)
		return err
	}
	if err := r.Machine.SetProgress(ctx, &job, 95, "Finalizing"); err != nil {
		return r.failInternal(ctx, jobID, err)
	}

	diagramCount := 0
	for _, q := range result.Questions {
		if q.HasDiagram {
			diagramCount++
		}
	}
	if err := r.Machine.Complete(ctx, &job, assembled.OutputPath, assembled.OutputFilename, assembled.AnswerKeyPath, len(result.Questions), diagramCount); err != nil {
		return r.failInternal(ctx, jobID, err)
	}
	telemetry.Info("job.completed", map[string]any{
		"job_id":    jobID,
		"questions": len(result.Questions),
		"diagrams":  diagramCount,
		"warnings":  len(job.Warnings),
	})
	return nil
}

func (r *Runner) failInternal(ctx context.Context, jobID string, err error) error {
	r.Machine.Fail(ctx, jobID, KindInternal, err.Error(), nil)
	return err
}
