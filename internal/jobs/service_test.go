package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"exam-backend/internal/shared/storage/object/local"
)

// minimalPDF builds a one-page PDF with a correct xref table.
func minimalPDF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	objects := []string{
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n",
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n",
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n",
	}
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		buf.WriteString(obj)
	}

	xrefPos := buf.Len()
	buf.WriteString(fmt.Sprintf("xref\n0 %d\n", len(objects)+1))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefPos))
	return buf.Bytes()
}

type stubDispatcher struct {
	dispatched []string
	err        error
}

func (d *stubDispatcher) Dispatch(_ context.Context, jobID string) error {
	if d.err != nil {
		return d.err
	}
	d.dispatched = append(d.dispatched, jobID)
	return nil
}

func newTestService(t *testing.T) (*Service, *MemoryRepo, *local.Store, *stubDispatcher) {
	t.Helper()
	repo := NewMemoryRepo()
	store := local.New(t.TempDir())
	dispatcher := &stubDispatcher{}
	svc := &Service{
		Repo:           repo,
		Store:          store,
		Dispatcher:     dispatcher,
		Retention:      24 * time.Hour,
		MaxUploadBytes: 1 << 20,
	}
	return svc, repo, store, dispatcher
}

func validInput(t *testing.T) CreateInput {
	t.Helper()
	return CreateInput{
		FileName:      "physics.pdf",
		File:          bytes.NewReader(minimalPDF(t)),
		PageStart:     1,
		PageEnd:       1,
		QuestionStart: 1,
		QuestionEnd:   5,
		Label:         "Physics Mock",
		Subject:       "Physics",
		Year:          2019,
	}
}

func TestCreatePersistsAndDispatches(t *testing.T) {
	svc, repo, store, dispatcher := newTestService(t)

	job, err := svc.Create(context.Background(), validInput(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.Status != StatusPending || job.Progress != 0 {
		t.Errorf("job = %s/%d, want pending/0", job.Status, job.Progress)
	}
	if want := job.CreatedAt.Add(24 * time.Hour); !job.ExpiresAt.Equal(want) {
		t.Errorf("expires at = %v, want %v", job.ExpiresAt, want)
	}
	if !store.Exists(job.PDFPath) {
		t.Errorf("upload missing at %s", job.PDFPath)
	}
	if len(dispatcher.dispatched) != 1 || dispatcher.dispatched[0] != job.ID {
		t.Errorf("dispatched = %v", dispatcher.dispatched)
	}
	if _, err := repo.GetByID(context.Background(), job.ID); err != nil {
		t.Errorf("job not persisted: %v", err)
	}
}

func TestCreateValidatesRequest(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{"missing file", func(in *CreateInput) { in.File = nil }, "file"},
		{"wrong extension", func(in *CreateInput) { in.FileName = "notes.txt" }, "file"},
		{"page start zero", func(in *CreateInput) { in.PageStart = 0 }, "pageStart"},
		{"page end before start", func(in *CreateInput) { in.PageEnd = 0 }, "pageEnd"},
		{"question start zero", func(in *CreateInput) { in.QuestionStart = 0 }, "questionStart"},
		{"question end before start", func(in *CreateInput) { in.QuestionEnd = 0 }, "questionEnd"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _, _ := newTestService(t)
			in := validInput(t)
			tc.mutate(&in)

			_, err := svc.Create(context.Background(), in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Errorf("field = %s, want %s", verr.Field, tc.field)
			}
		})
	}
}

func TestCreateRejectsNonPDFPayload(t *testing.T) {
	svc, _, _, dispatcher := newTestService(t)
	in := validInput(t)
	in.File = strings.NewReader("this is not a pdf at all")

	_, err := svc.Create(context.Background(), in)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(dispatcher.dispatched) != 0 {
		t.Errorf("rejected upload was dispatched: %v", dispatcher.dispatched)
	}
}

func TestCreateRollsBackOnDispatchFailure(t *testing.T) {
	svc, repo, _, dispatcher := newTestService(t)
	dispatcher.err = errors.New("queue unavailable")

	_, err := svc.Create(context.Background(), validInput(t))
	if err == nil {
		t.Fatal("expected Create to fail")
	}

	jobs, total, err := repo.List(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 0 || len(jobs) != 0 {
		t.Errorf("orphan job left behind: %v", jobs)
	}
}

func TestDeleteRejectsProcessingJob(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	seedJob(t, repo, StatusParsing)

	if err := svc.Delete(context.Background(), "job-1"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := repo.GetByID(context.Background(), "job-1"); err != nil {
		t.Errorf("job should survive rejected delete: %v", err)
	}
}

func TestDeleteRemovesJobAndFiles(t *testing.T) {
	svc, repo, store, _ := newTestService(t)

	job, err := svc.Create(context.Background(), validInput(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	job.Status = StatusCompleted
	if err := repo.Update(context.Background(), job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := svc.Delete(context.Background(), job.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), job.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if store.Exists(job.PDFPath) {
		t.Error("upload not removed")
	}
}

func TestResultBeforeCompletion(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	seedJob(t, repo, StatusParsing)

	if _, err := svc.Result(context.Background(), "job-1"); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("expected ErrNotCompleted, got %v", err)
	}
}

func TestResultAfterExpiryIsGone(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	job := seedJob(t, repo, StatusCompleted)
	job.OutputPath = "outputs/job-1/paper.docx"
	job.OutputFilename = "paper.docx"
	job.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	if err := repo.Update(context.Background(), job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := svc.Result(context.Background(), "job-1"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestResultMissingArtifactBeforeExpiry(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	job := seedJob(t, repo, StatusCompleted)
	job.OutputPath = "outputs/job-1/paper.docx"
	job.OutputFilename = "paper.docx"
	if err := repo.Update(context.Background(), job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := svc.Result(context.Background(), "job-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResultStreamsStoredArtifact(t *testing.T) {
	svc, repo, store, _ := newTestService(t)
	job := seedJob(t, repo, StatusCompleted)

	path, err := store.SaveOutput(context.Background(), "job-1", "paper.docx", strings.NewReader("docx bytes"))
	if err != nil {
		t.Fatalf("SaveOutput: %v", err)
	}
	job.OutputPath = path
	job.OutputFilename = "paper.docx"
	if err := repo.Update(context.Background(), job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	dl, err := svc.Result(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	defer dl.Body.Close()
	if dl.FileName != "paper.docx" {
		t.Errorf("file name = %q", dl.FileName)
	}
}

func TestListCapsLimit(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		job := Job{
			ID:        fmt.Sprintf("job-%d", i),
			Status:    StatusCompleted,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
			ExpiresAt: now.Add(24 * time.Hour),
		}
		if err := repo.Create(context.Background(), job); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	jobs, total, err := svc.List(context.Background(), ListFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(jobs) != 2 {
		t.Fatalf("len = %d, want 2", len(jobs))
	}
	if jobs[0].ID != "job-3" || jobs[1].ID != "job-2" {
		t.Errorf("page = %s, %s", jobs[0].ID, jobs[1].ID)
	}
}
