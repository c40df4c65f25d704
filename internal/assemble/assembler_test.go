package assemble

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"exam-backend/internal/jobs"
	"exam-backend/internal/parser"
	"exam-backend/internal/shared/storage/object/local"
)

func sampleQuestions() []parser.Question {
	return []parser.Question{
		{
			Number:         1,
			Body:           []string{"What is 2 + 2 ?"},
			Options:        []string{"3", "4", "5", "6"},
			CorrectIndex:   1,
			AnswerExplicit: true,
			Solution:       []string{"2 + 2 = 4."},
			Confidence:     1.0,
		},
		{
			Number:       2,
			Body:         []string{"Identify the shape in the figure."},
			Options:      []string{"Square", "Circle", "Triangle", "Rhombus"},
			CorrectIndex: 0,
			HasDiagram:   true,
			Confidence:   0.6,
		},
	}
}

func sampleJob() jobs.Job {
	return jobs.Job{
		ID:            "job-1",
		PDFFilename:   "physics_2019.pdf",
		Label:         "Physics Mock Test",
		Subject:       "Physics",
		Year:          2019,
		QuestionStart: 1,
		QuestionEnd:   2,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestAssembleWritesBothArtifacts(t *testing.T) {
	store := local.New(t.TempDir())
	assembler := New(store)

	var calls []int
	result, err := assembler.Assemble(context.Background(), sampleJob(), sampleQuestions(), func(done, total int) {
		calls = append(calls, done)
		if total != 2 {
			t.Errorf("total = %d, want 2", total)
		}
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if result.OutputFilename != "Physics_Mock_Test_Q1-2.docx" {
		t.Errorf("output filename = %q", result.OutputFilename)
	}
	if !store.Exists(result.OutputPath) {
		t.Errorf("document missing at %s", result.OutputPath)
	}
	if !store.Exists(result.AnswerKeyPath) {
		t.Errorf("answer key missing at %s", result.AnswerKeyPath)
	}
	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Errorf("progress calls = %v", calls)
	}
}

func TestAssembleDocumentContent(t *testing.T) {
	store := local.New(t.TempDir())
	assembler := New(store)

	result, err := assembler.Assemble(context.Background(), sampleJob(), sampleQuestions(), nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	body, err := store.Open(context.Background(), result.OutputPath)
	if err != nil {
		t.Fatalf("open document: %v", err)
	}
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}

	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("open docx package: %v", err)
	}
	var documentXML string
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("open document.xml: %v", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read document.xml: %v", err)
		}
		documentXML = string(content)
	}
	if documentXML == "" {
		t.Fatal("word/document.xml not found in package")
	}

	for _, want := range []string{
		"Physics Mock Test",
		"Physics, 2019, Questions 1 to 2",
		"Q1. What is 2 + 2 ?",
		"(b) 4",
		"Ans: (b)",
		"Solution: 2 + 2 = 4.",
		"Q2. Identify the shape in the figure.",
		"[Diagram referenced in source PDF]",
		"Ans: (a)",
	} {
		if !strings.Contains(documentXML, escapeXML(want)) {
			t.Errorf("document.xml missing %q", want)
		}
	}
}

func TestAssembleAnswerKeyRows(t *testing.T) {
	store := local.New(t.TempDir())
	assembler := New(store)

	result, err := assembler.Assemble(context.Background(), sampleJob(), sampleQuestions(), nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	body, err := store.Open(context.Background(), result.AnswerKeyPath)
	if err != nil {
		t.Fatalf("open answer key: %v", err)
	}
	defer body.Close()
	f, err := excelize.OpenReader(body)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(answerSheetName)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][0] != "Question" || rows[0][1] != "Answer" {
		t.Errorf("header row = %v", rows[0])
	}
	if rows[1][0] != "1" || rows[1][1] != "B" {
		t.Errorf("first answer row = %v", rows[1])
	}
	if rows[2][0] != "2" || rows[2][1] != "A" {
		t.Errorf("second answer row = %v", rows[2])
	}
}

func TestOutputBaseNameFallsBackToPDFName(t *testing.T) {
	job := sampleJob()
	job.Label = ""
	if got := outputBaseName(job); got != "physics_2019_Q1-2" {
		t.Errorf("outputBaseName = %q", got)
	}

	job.PDFFilename = "???.pdf"
	if got := outputBaseName(job); got != "questions_Q1-2" {
		t.Errorf("outputBaseName with unusable name = %q", got)
	}
}

func TestRenderDOCXEscapesMarkup(t *testing.T) {
	questions := []parser.Question{{
		Number:       1,
		Body:         []string{"Is x < y & y > z ?"},
		Options:      []string{"yes", "no", "sometimes", "never"},
		CorrectIndex: 0,
	}}
	raw, err := renderDOCX("", "", questions, nil)
	if err != nil {
		t.Fatalf("renderDOCX: %v", err)
	}
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("open package: %v", err)
	}
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, _ := file.Open()
		content, _ := io.ReadAll(rc)
		rc.Close()
		if !strings.Contains(string(content), "Is x &lt; y &amp; y &gt; z ?") {
			t.Errorf("markup not escaped: %s", content)
		}
	}
}
