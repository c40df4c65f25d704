package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"exam-backend/internal/extract"
	"exam-backend/internal/shared/storage/object"
	"exam-backend/internal/shared/telemetry"
)

// Dispatcher hands a created job to whatever executes it, either an in-process
// goroutine or a queue consumed by a separate worker.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Service implements the job lifecycle operations behind the HTTP handlers.
type Service struct {
	Repo           Repo
	Store          object.Store
	Dispatcher     Dispatcher
	Retention      time.Duration
	MaxUploadBytes int64
}

// CreateInput carries one extraction request.
type CreateInput struct {
	FileName      string
	File          io.Reader
	PageStart     int
	PageEnd       int
	QuestionStart int
	QuestionEnd   int
	Label         string
	Subject       string
	Year          int
}

// Create validates the request, stores the upload, persists the job record
// and dispatches it for processing.
func (s *Service) Create(ctx context.Context, in CreateInput) (Job, error) {
	if err := validateCreate(in); err != nil {
		return Job{}, err
	}

	jobID := uuid.NewString()
	path, size, err := s.Store.SaveUpload(ctx, jobID, in.File, s.MaxUploadBytes)
	if err != nil {
		if errors.Is(err, object.ErrTooLarge) {
			return Job{}, &ValidationError{Field: "file", Message: fmt.Sprintf("file exceeds the %d MB upload limit", s.MaxUploadBytes/(1024*1024))}
		}
		return Job{}, fmt.Errorf("save upload: %w", err)
	}

	if err := s.validateStoredPDF(ctx, path); err != nil {
		s.releaseFiles(jobID)
		return Job{}, err
	}

	now := time.Now().UTC()
	job := Job{
		ID:            jobID,
		PDFFilename:   filepath.Base(in.FileName),
		PDFPath:       path,
		PageStart:     in.PageStart,
		PageEnd:       in.PageEnd,
		QuestionStart: in.QuestionStart,
		QuestionEnd:   in.QuestionEnd,
		Label:         strings.TrimSpace(in.Label),
		Subject:       strings.TrimSpace(in.Subject),
		Year:          in.Year,
		Status:        StatusPending,
		Progress:      0,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.Retention),
	}
	if err := s.Repo.Create(ctx, job); err != nil {
		s.releaseFiles(jobID)
		return Job{}, fmt.Errorf("persist job: %w", err)
	}

	if err := s.Dispatcher.Dispatch(ctx, jobID); err != nil {
		s.releaseFiles(jobID)
		if derr := s.Repo.Delete(ctx, jobID); derr != nil {
			telemetry.Error("job.dispatch_rollback", map[string]any{"job_id": jobID, "error": derr.Error()})
		}
		return Job{}, fmt.Errorf("dispatch job: %w", err)
	}

	telemetry.Info("job.created", map[string]any{
		"job_id":     jobID,
		"pdf":        job.PDFFilename,
		"size_bytes": size,
		"pages":      fmt.Sprintf("%d-%d", in.PageStart, in.PageEnd),
		"questions":  fmt.Sprintf("%d-%d", in.QuestionStart, in.QuestionEnd),
	})
	return job, nil
}

// Get returns a job by ID.
func (s *Service) Get(ctx context.Context, jobID string) (Job, error) {
	return s.Repo.GetByID(ctx, jobID)
}

// List returns jobs newest first with the overall match count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Job, int, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.Repo.List(ctx, filter)
}

// Delete removes a job and its stored files. Jobs that are still processing
// cannot be deleted.
func (s *Service) Delete(ctx context.Context, jobID string) error {
	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsProcessing() {
		return ErrConflict
	}
	if err := s.Store.ReleaseJob(jobID); err != nil {
		return fmt.Errorf("release files: %w", err)
	}
	return s.Repo.Delete(ctx, jobID)
}

// Download describes a downloadable artifact.
type Download struct {
	FileName string
	Body     io.ReadCloser
}

// Result opens the generated document of a completed job. Expired jobs whose
// artifacts were already swept report ErrExpired.
func (s *Service) Result(ctx context.Context, jobID string) (Download, error) {
	return s.open(ctx, jobID, func(j Job) (string, string) { return j.OutputPath, j.OutputFilename })
}

// AnswerKey opens the answer key spreadsheet of a completed job.
func (s *Service) AnswerKey(ctx context.Context, jobID string) (Download, error) {
	return s.open(ctx, jobID, func(j Job) (string, string) {
		return j.AnswerKeyPath, filepath.Base(j.AnswerKeyPath)
	})
}

func (s *Service) open(ctx context.Context, jobID string, pick func(Job) (path, name string)) (Download, error) {
	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		return Download{}, err
	}
	if job.Status != StatusCompleted {
		return Download{}, ErrNotCompleted
	}
	path, name := pick(job)
	if path == "" || !s.Store.Exists(path) {
		if job.IsExpired(time.Now().UTC()) {
			return Download{}, ErrExpired
		}
		return Download{}, ErrNotFound
	}
	body, err := s.Store.Open(ctx, path)
	if err != nil {
		return Download{}, fmt.Errorf("open artifact: %w", err)
	}
	return Download{FileName: name, Body: body}, nil
}

func (s *Service) validateStoredPDF(ctx context.Context, path string) error {
	body, err := s.Store.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	if err := extract.ValidatePDF(data); err != nil {
		return &ValidationError{Field: "file", Message: "file is not a valid PDF document"}
	}
	return nil
}

func (s *Service) releaseFiles(jobID string) {
	if err := s.Store.ReleaseJob(jobID); err != nil {
		telemetry.Error("job.release_files", map[string]any{"job_id": jobID, "error": err.Error()})
	}
}

func validateCreate(in CreateInput) error {
	if in.File == nil {
		return &ValidationError{Field: "file", Message: "a PDF file is required"}
	}
	if !strings.EqualFold(filepath.Ext(in.FileName), ".pdf") {
		return &ValidationError{Field: "file", Message: "only PDF files are accepted"}
	}
	if in.PageStart < 1 {
		return &ValidationError{Field: "pageStart", Message: "must be at least 1"}
	}
	if in.PageEnd < in.PageStart {
		return &ValidationError{Field: "pageEnd", Message: "must be greater than or equal to pageStart"}
	}
	if in.QuestionStart < 1 {
		return &ValidationError{Field: "questionStart", Message: "must be at least 1"}
	}
	if in.QuestionEnd < in.QuestionStart {
		return &ValidationError{Field: "questionEnd", Message: "must be greater than or equal to questionStart"}
	}
	return nil
}
