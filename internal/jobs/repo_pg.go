package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const jobColumns = `
id, pdf_filename, pdf_path, page_start, page_end, question_start, question_end,
label, subject, year, status, progress, current_step, warnings,
output_filename, output_path, answer_key_path, total_questions, diagram_count,
error_message, error_detail, created_at, started_at, completed_at, expires_at`

// Create inserts a new job.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO jobs (
	id, pdf_filename, pdf_path, page_start, page_end, question_start, question_end,
	label, subject, year, status, progress, current_step, warnings,
	output_filename, output_path, answer_key_path, total_questions, diagram_count,
	error_message, error_detail, created_at, started_at, completed_at, expires_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`

	warnings, err := marshalJSONB(job.Warnings)
	if err != nil {
		return err
	}
	detail, err := marshalJSONB(job.ErrorDetail)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		job.ID,
		job.PDFFilename,
		job.PDFPath,
		job.PageStart,
		job.PageEnd,
		job.QuestionStart,
		job.QuestionEnd,
		nullString(job.Label),
		nullString(job.Subject),
		nullInt(job.Year),
		job.Status,
		job.Progress,
		nullString(job.CurrentStep),
		warnings,
		nullString(job.OutputFilename),
		nullString(job.OutputPath),
		nullString(job.AnswerKeyPath),
		nullInt(job.TotalQuestions),
		nullInt(job.DiagramCount),
		nullString(job.ErrorMessage),
		detail,
		job.CreatedAt,
		job.StartedAt,
		job.CompletedAt,
		job.ExpiresAt,
	)
	return err
}

// GetByID returns a job by ID.
func (r *PGRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	const query = `
SELECT` + jobColumns + `
FROM jobs
WHERE id = $1
LIMIT 1`
	row := r.DB.QueryRowContext(ctx, query, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	return job, nil
}

// Update persists the mutable fields of a job.
func (r *PGRepo) Update(ctx context.Context, job Job) error {
	const query = `
UPDATE jobs
SET status = $1,
    progress = $2,
    current_step = $3,
    warnings = $4,
    pdf_path = $5,
    output_filename = $6,
    output_path = $7,
    answer_key_path = $8,
    total_questions = $9,
    diagram_count = $10,
    error_message = $11,
    error_detail = $12,
    started_at = $13,
    completed_at = $14
WHERE id = $15`

	warnings, err := marshalJSONB(job.Warnings)
	if err != nil {
		return err
	}
	detail, err := marshalJSONB(job.ErrorDetail)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query,
		job.Status,
		job.Progress,
		nullString(job.CurrentStep),
		warnings,
		job.PDFPath,
		nullString(job.OutputFilename),
		nullString(job.OutputPath),
		nullString(job.AnswerKeyPath),
		nullInt(job.TotalQuestions),
		nullInt(job.DiagramCount),
		nullString(job.ErrorMessage),
		detail,
		job.StartedAt,
		job.CompletedAt,
		job.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns jobs newest first with an overall match count.
func (r *PGRepo) List(ctx context.Context, filter ListFilter) ([]Job, int, error) {
	const query = `
SELECT` + jobColumns + `
FROM jobs
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::timestamptz IS NULL OR created_at >= $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`
	const countQuery = `
SELECT count(*)
FROM jobs
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::timestamptz IS NULL OR created_at >= $2)`

	var status any
	if filter.Status != "" {
		status = filter.Status
	}
	var since any
	if !filter.Since.IsZero() {
		since = filter.Since
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, status, since).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(ctx, query, status, since, limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

// Delete removes a job row.
func (r *PGRepo) Delete(ctx context.Context, jobID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListExpired returns terminal jobs whose retention window has passed.
func (r *PGRepo) ListExpired(ctx context.Context, now time.Time) ([]Job, error) {
	const query = `
SELECT` + jobColumns + `
FROM jobs
WHERE status IN ('completed', 'failed')
  AND expires_at < $1
  AND (pdf_path <> '' OR output_path IS NOT NULL OR answer_key_path IS NOT NULL)
ORDER BY expires_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var label, subject, currentStep sql.NullString
	var year sql.NullInt64
	var warnings, errorDetail sql.NullString
	var outputFilename, outputPath, answerKeyPath, errorMessage sql.NullString
	var totalQuestions, diagramCount sql.NullInt64
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&j.ID,
		&j.PDFFilename,
		&j.PDFPath,
		&j.PageStart,
		&j.PageEnd,
		&j.QuestionStart,
		&j.QuestionEnd,
		&label,
		&subject,
		&year,
		&j.Status,
		&j.Progress,
		&currentStep,
		&warnings,
		&outputFilename,
		&outputPath,
		&answerKeyPath,
		&totalQuestions,
		&diagramCount,
		&errorMessage,
		&errorDetail,
		&j.CreatedAt,
		&startedAt,
		&completedAt,
		&j.ExpiresAt,
	)
	if err != nil {
		return Job{}, err
	}
	if label.Valid {
		j.Label = label.String
	}
	if subject.Valid {
		j.Subject = subject.String
	}
	if year.Valid {
		j.Year = int(year.Int64)
	}
	if currentStep.Valid {
		j.CurrentStep = currentStep.String
	}
	if warnings.Valid {
		if err := json.Unmarshal([]byte(warnings.String), &j.Warnings); err != nil {
			j.Warnings = nil
		}
	}
	if outputFilename.Valid {
		j.OutputFilename = outputFilename.String
	}
	if outputPath.Valid {
		j.OutputPath = outputPath.String
	}
	if answerKeyPath.Valid {
		j.AnswerKeyPath = answerKeyPath.String
	}
	if totalQuestions.Valid {
		j.TotalQuestions = int(totalQuestions.Int64)
	}
	if diagramCount.Valid {
		j.DiagramCount = int(diagramCount.Int64)
	}
	if errorMessage.Valid {
		j.ErrorMessage = errorMessage.String
	}
	if errorDetail.Valid {
		if err := json.Unmarshal([]byte(errorDetail.String), &j.ErrorDetail); err != nil {
			j.ErrorDetail = nil
		}
	}
	if startedAt.Valid {
		t := startedAt.Time
		j.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	return j, nil
}

func marshalJSONB(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		if v == nil {
			return nil, nil
		}
	case map[string]any:
		if v == nil {
			return nil, nil
		}
	}
	return json.Marshal(value)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
