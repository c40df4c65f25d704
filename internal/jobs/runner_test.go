package jobs

import (
	"context"
	"errors"
	"testing"

	"exam-backend/internal/extract"
	"exam-backend/internal/parser"
	"exam-backend/internal/progress"
)

const runnerSampleText = `Q1. 2 + 2 ?
(a) 3 (b) 4 (c) 5 (d) 6
Ans: (b)
Solution: It equals four.

Q2. 5 - 3 ?
(a) 1 (b) 2 (c) 3 (d) 4
Answer: a
`

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) ExtractPages(_ context.Context, _ string, _, _ int) (string, error) {
	return s.text, s.err
}

type stubAssembler struct {
	result AssemblyResult
	err    error
	calls  int
}

func (s *stubAssembler) Assemble(_ context.Context, _ Job, questions []parser.Question, onProgress func(done, total int)) (AssemblyResult, error) {
	s.calls++
	if s.err != nil {
		return AssemblyResult{}, s.err
	}
	if onProgress != nil {
		onProgress(len(questions), len(questions))
	}
	return s.result, nil
}

func newTestRunner(t *testing.T, extractor TextExtractor, assembler Assembler) (*Runner, *MemoryRepo) {
	t.Helper()
	machine, repo, _ := newTestMachine(t)
	return &Runner{Machine: machine, Extractor: extractor, Assembler: assembler}, repo
}

func TestRunCompletesJob(t *testing.T) {
	assembler := &stubAssembler{result: AssemblyResult{
		OutputPath:     "outputs/job-1/paper.docx",
		OutputFilename: "paper.docx",
		AnswerKeyPath:  "outputs/job-1/paper_answer_key.xlsx",
	}}
	runner, repo := newTestRunner(t, stubExtractor{text: runnerSampleText}, assembler)
	seedJob(t, repo, StatusPending)

	if err := runner.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	job, err := repo.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != StatusCompleted || job.Progress != 100 {
		t.Fatalf("job = %s/%d, want completed/100", job.Status, job.Progress)
	}
	if job.TotalQuestions != 2 || job.DiagramCount != 0 {
		t.Errorf("results = %d questions, %d diagrams", job.TotalQuestions, job.DiagramCount)
	}
	if job.OutputFilename != "paper.docx" || job.AnswerKeyPath == "" {
		t.Errorf("artifacts = %q / %q", job.OutputFilename, job.AnswerKeyPath)
	}
	if assembler.calls != 1 {
		t.Errorf("assembler calls = %d, want 1", assembler.calls)
	}
}

func TestRunPublishesMonotoneProgress(t *testing.T) {
	machine, repo, broadcaster := newTestMachine(t)
	runner := &Runner{
		Machine:   machine,
		Extractor: stubExtractor{text: runnerSampleText},
		Assembler: &stubAssembler{result: AssemblyResult{OutputPath: "p", OutputFilename: "p.docx"}},
	}
	seedJob(t, repo, StatusPending)
	ch := broadcaster.Subscribe("test", "job-1")

	if err := runner.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	last := -1
	sawComplete := false
	for len(ch) > 0 {
		ev := <-ch
		if ev.Kind == progress.KindComplete {
			sawComplete = true
			continue
		}
		if ev.Percent < last {
			t.Errorf("progress went backwards: %d after %d", ev.Percent, last)
		}
		last = ev.Percent
	}
	if !sawComplete {
		t.Error("no completion event observed")
	}
}

func TestRunFailureKinds(t *testing.T) {
	cases := []struct {
		name      string
		extractor TextExtractor
		assembler Assembler
		wantKind  string
	}{
		{
			name:      "page range",
			extractor: stubExtractor{err: &extract.PageRangeError{StartPage: 1, EndPage: 9, TotalPages: 3}},
			assembler: &stubAssembler{},
			wantKind:  KindExtraction,
		},
		{
			name:      "storage",
			extractor: stubExtractor{err: errors.New("open upload: no such file")},
			assembler: &stubAssembler{},
			wantKind:  KindResource,
		},
		{
			name:      "no questions",
			extractor: stubExtractor{text: "plain prose without numbering at all"},
			assembler: &stubAssembler{},
			wantKind:  KindParsing,
		},
		{
			name:      "assembly",
			extractor: stubExtractor{text: runnerSampleText},
			assembler: &stubAssembler{err: errors.New("disk full")},
			wantKind:  KindAssembly,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner, repo := newTestRunner(t, tc.extractor, tc.assembler)
			seedJob(t, repo, StatusPending)

			if err := runner.Run(context.Background(), "job-1"); err == nil {
				t.Fatal("expected Run to fail")
			}

			job, err := repo.GetByID(context.Background(), "job-1")
			if err != nil {
				t.Fatalf("GetByID: %v", err)
			}
			if job.Status != StatusFailed {
				t.Fatalf("status = %s, want failed", job.Status)
			}
			if kind := job.ErrorDetail["kind"]; kind != tc.wantKind {
				t.Errorf("error kind = %v, want %s", kind, tc.wantKind)
			}
		})
	}
}

func TestRunSkipsWhenAlreadyRunning(t *testing.T) {
	runner, repo := newTestRunner(t, stubExtractor{text: runnerSampleText}, &stubAssembler{})
	seedJob(t, repo, StatusPending)

	if err := runner.Machine.Acquire("job-1"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := runner.Run(context.Background(), "job-1"); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	job, err := repo.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != StatusPending {
		t.Errorf("status = %s, want pending untouched", job.Status)
	}
}
