package assemble

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"exam-backend/internal/jobs"
	"exam-backend/internal/parser"
	"exam-backend/internal/shared/storage/object"
	"exam-backend/internal/shared/util"
)

// Assembler renders parsed questions into the downloadable artifacts and
// stores them alongside the job.
type Assembler struct {
	Store object.Store
}

// New constructs an Assembler over the given store.
func New(store object.Store) *Assembler {
	return &Assembler{Store: store}
}

var _ jobs.Assembler = (*Assembler)(nil)

// Assemble renders the question paper DOCX and the answer key XLSX for a job.
func (a *Assembler) Assemble(ctx context.Context, job jobs.Job, questions []parser.Question, onProgress func(done, total int)) (jobs.AssemblyResult, error) {
	if err := ctx.Err(); err != nil {
		return jobs.AssemblyResult{}, err
	}

	docx, err := renderDOCX(documentTitle(job), documentSubtitle(job), questions, onProgress)
	if err != nil {
		return jobs.AssemblyResult{}, fmt.Errorf("render document: %w", err)
	}
	xlsx, err := renderAnswerKey(questions)
	if err != nil {
		return jobs.AssemblyResult{}, fmt.Errorf("render answer key: %w", err)
	}

	baseName := outputBaseName(job)
	outputPath, err := a.Store.SaveOutput(ctx, job.ID, baseName+".docx", bytes.NewReader(docx))
	if err != nil {
		return jobs.AssemblyResult{}, fmt.Errorf("store document: %w", err)
	}
	answerKeyPath, err := a.Store.SaveOutput(ctx, job.ID, baseName+"_answer_key.xlsx", bytes.NewReader(xlsx))
	if err != nil {
		return jobs.AssemblyResult{}, fmt.Errorf("store answer key: %w", err)
	}

	return jobs.AssemblyResult{
		OutputPath:     outputPath,
		OutputFilename: baseName + ".docx",
		AnswerKeyPath:  answerKeyPath,
	}, nil
}

func documentTitle(job jobs.Job) string {
	if job.Label != "" {
		return job.Label
	}
	return strings.TrimSuffix(job.PDFFilename, ".pdf")
}

func documentSubtitle(job jobs.Job) string {
	var parts []string
	if job.Subject != "" {
		parts = append(parts, job.Subject)
	}
	if job.Year != 0 {
		parts = append(parts, fmt.Sprintf("%d", job.Year))
	}
	parts = append(parts, fmt.Sprintf("Questions %d to %d", job.QuestionStart, job.QuestionEnd))
	return strings.Join(parts, ", ")
}

func outputBaseName(job jobs.Job) string {
	base := documentTitle(job)
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, base)
	if base == "" {
		base = "questions"
	}
	name := fmt.Sprintf("%s_Q%d-%d", base, job.QuestionStart, job.QuestionEnd)
	if sanitized, err := util.SanitizeFileName(name); err == nil {
		return sanitized
	}
	return fmt.Sprintf("questions_Q%d-%d", job.QuestionStart, job.QuestionEnd)
}
