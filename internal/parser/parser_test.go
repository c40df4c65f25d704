package parser

import (
	"errors"
	"strings"
	"testing"
)

const sampleTwoQuestions = `Q1. 2 + 2 ?
(a) 3 (b) 4 (c) 5 (d) 6
Ans: (b)
Solution: It equals four.

Q2. 5 - 3 ?
(a) 1 (b) 2 (c) 3 (d) 4
Answer: a
`

func TestParseTwoQuestions(t *testing.T) {
	result, err := Parse(sampleTwoQuestions, 1, 2, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(result.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(result.Questions))
	}

	q1 := result.Questions[0]
	if q1.Number != 1 {
		t.Errorf("q1 number = %d, want 1", q1.Number)
	}
	if len(q1.Body) != 1 || q1.Body[0] != "2 + 2 ?" {
		t.Errorf("q1 body = %q", q1.Body)
	}
	if len(q1.Options) != 4 {
		t.Fatalf("q1 options = %q", q1.Options)
	}
	want := []string{"3", "4", "5", "6"}
	for i, opt := range want {
		if q1.Options[i] != opt {
			t.Errorf("q1 option %d = %q, want %q", i, q1.Options[i], opt)
		}
	}
	if q1.CorrectIndex != 1 {
		t.Errorf("q1 correct index = %d, want 1", q1.CorrectIndex)
	}
	if !q1.AnswerExplicit {
		t.Error("q1 answer should be explicit")
	}
	if len(q1.Solution) == 0 {
		t.Error("q1 solution should not be empty")
	}
	if q1.Confidence != 1.0 {
		t.Errorf("q1 confidence = %v, want 1.0", q1.Confidence)
	}

	q2 := result.Questions[1]
	if q2.CorrectIndex != 0 || !q2.AnswerExplicit {
		t.Errorf("q2 correct index = %d explicit=%v, want 0 explicit", q2.CorrectIndex, q2.AnswerExplicit)
	}
	if len(result.Missing) != 0 || len(result.Duplicates) != 0 {
		t.Errorf("unexpected coverage gaps: missing=%v duplicates=%v", result.Missing, result.Duplicates)
	}
}

func TestParseAnswerLetterCaseInsensitive(t *testing.T) {
	for _, marker := range []string{"Ans: (c)", "ANS. C", "Answer: c", "Correct: (C)"} {
		block := "Q7. 6 * 6 ?\n(a) 30 (b) 32 (c) 36 (d) 38\n" + marker + "\n"
		result, err := Parse(block, 7, 7, nil)
		if err != nil {
			t.Fatalf("parse %q: %v", marker, err)
		}
		if len(result.Questions) != 1 {
			t.Fatalf("parse %q: got %d questions", marker, len(result.Questions))
		}
		if idx := result.Questions[0].CorrectIndex; idx != 2 {
			t.Errorf("marker %q: correct index = %d, want 2", marker, idx)
		}
	}
}

func TestParseNoMarkersFails(t *testing.T) {
	_, err := Parse("plain prose without numbering at all", 1, 10, nil)
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestParseMarkersOutsideRangeFails(t *testing.T) {
	_, err := Parse(sampleTwoQuestions, 50, 60, nil)
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestParseDropsBlockWithTooFewOptions(t *testing.T) {
	text := sampleTwoQuestions + "\nQ3. 1 + 1 ?\n(a) 2 (b) 3\n"
	result, err := Parse(text, 1, 3, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(result.Questions) != 2 {
		t.Fatalf("expected question 3 to be dropped, got %d questions", len(result.Questions))
	}
	if len(result.Missing) != 1 || result.Missing[0] != 3 {
		t.Errorf("missing = %v, want [3]", result.Missing)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "question 3") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a warning for question 3, got %v", result.Warnings)
	}
}

func TestParseDefaultsAnswerToFirstOption(t *testing.T) {
	text := "Q4. 9 - 9 ?\n(a) 0 (b) 1 (c) 9 (d) 18\n"
	result, err := Parse(text, 4, 4, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := result.Questions[0]
	if q.CorrectIndex != 0 {
		t.Errorf("correct index = %d, want 0", q.CorrectIndex)
	}
	if q.AnswerExplicit {
		t.Error("answer should not be explicit")
	}
	// body 0.3 + options 0.3, no answer marker, no solution
	if q.Confidence != 0.6 {
		t.Errorf("confidence = %v, want 0.6", q.Confidence)
	}
}

func TestParseReportsDuplicates(t *testing.T) {
	text := "Q5. 1 + 2 ?\n(a) 2 (b) 3 (c) 4 (d) 5\nAns: (b)\n" +
		"Q5. 1 + 2 ?\n(a) 2 (b) 3 (c) 4 (d) 5\nAns: (b)\n"
	result, err := Parse(text, 5, 5, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(result.Questions) != 2 {
		t.Fatalf("expected both duplicate blocks parsed, got %d", len(result.Questions))
	}
	if len(result.Duplicates) != 1 || result.Duplicates[0] != 5 {
		t.Errorf("duplicates = %v, want [5]", result.Duplicates)
	}
}

func TestParseDetectsDiagram(t *testing.T) {
	text := "Q8. Refer to the figure shown.\n(a) 10 (b) 20 (c) 30 (d) 40\nAns: (a)\n"
	result, err := Parse(text, 8, 8, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !result.Questions[0].HasDiagram {
		t.Error("expected diagram flag")
	}
}

func TestParseProgressCallback(t *testing.T) {
	var calls int
	_, err := Parse(sampleTwoQuestions, 1, 2, func(parsed, total int, q Question) {
		calls++
		if parsed != calls {
			t.Errorf("parsed = %d on call %d", parsed, calls)
		}
		if total != 2 {
			t.Errorf("total = %d, want 2", total)
		}
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if calls != 2 {
		t.Errorf("callback calls = %d, want 2", calls)
	}
}

func TestParseOptionsOnSeparateLines(t *testing.T) {
	text := "Q9. 7 + 0 ?\n(a) 7\n(b) 70\n(c) 77\n(d) 707\nAns: (a)\n"
	result, err := Parse(text, 9, 9, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(result.Questions) != 1 {
		t.Fatalf("got %d questions", len(result.Questions))
	}
	if len(result.Questions[0].Options) != 4 {
		t.Errorf("options = %q", result.Questions[0].Options)
	}
}
