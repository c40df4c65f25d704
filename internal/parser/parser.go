package parser

import (
	"errors"
	"fmt"
	"sort"

	"exam-backend/internal/shared/telemetry"
)

// ErrNoQuestions indicates no question-number markers matched the requested range.
var ErrNoQuestions = errors.New("no questions found in range")

// Question is one structured multiple-choice question extracted from raw text.
type Question struct {
	Number         int      `json:"number"`
	Body           []string `json:"body"`
	Options        []string `json:"options"`
	CorrectIndex   int      `json:"correctIndex"`
	AnswerExplicit bool     `json:"answerExplicit"`
	Solution       []string `json:"solution"`
	HasDiagram     bool     `json:"hasDiagram"`
	Confidence     float64  `json:"confidence"`
}

// Result carries the ordered question sequence and coverage warnings.
type Result struct {
	Questions  []Question
	Missing    []int
	Duplicates []int
	Warnings   []string
}

// ProgressFunc is invoked once per successfully parsed question.
type ProgressFunc func(parsed, totalBlocks int, q Question)

// Parse splits the text into question blocks for [startQ, endQ], extracts
// each block independently, and validates range coverage. Individual block
// failures are absorbed as warnings; Parse fails only when the requested
// range yields no blocks or no block produces a valid question.
func Parse(text string, startQ, endQ int, onQuestion ProgressFunc) (Result, error) {
	blocks := splitBlocks(text, startQ, endQ)
	if len(blocks) == 0 {
		return Result{}, fmt.Errorf("%w %d-%d", ErrNoQuestions, startQ, endQ)
	}

	result := Result{Questions: make([]Question, 0, len(blocks))}
	for _, block := range blocks {
		q, err := parseBlock(block)
		if err != nil {
			warning := fmt.Sprintf("question %d: %v", block.Number, err)
			result.Warnings = append(result.Warnings, warning)
			telemetry.Warn("parser.block_dropped", map[string]any{
				"question": block.Number,
				"error":    err.Error(),
			})
			continue
		}
		result.Questions = append(result.Questions, q)
		if onQuestion != nil {
			onQuestion(len(result.Questions), len(blocks), q)
		}
	}

	if len(result.Questions) == 0 {
		return Result{}, fmt.Errorf("%w %d-%d", ErrNoQuestions, startQ, endQ)
	}

	result.Missing, result.Duplicates = validateSequence(result.Questions, startQ, endQ)
	for _, n := range result.Missing {
		result.Warnings = append(result.Warnings, fmt.Sprintf("question %d missing from parsed output", n))
	}
	for _, n := range result.Duplicates {
		result.Warnings = append(result.Warnings, fmt.Sprintf("question %d parsed more than once", n))
	}
	if len(result.Missing) > 0 || len(result.Duplicates) > 0 {
		telemetry.Warn("parser.sequence_gaps", map[string]any{
			"missing":    result.Missing,
			"duplicates": result.Duplicates,
		})
	}

	return result, nil
}

// parseBlock extracts one question from its block. A block that does not
// yield exactly four options fails; a missing answer marker does not.
func parseBlock(block Block) (Question, error) {
	body := extractBody(block.Text)
	if len(body) == 0 {
		return Question{}, errors.New("no question text found")
	}

	options, ok := extractOptions(block.Text)
	if !ok {
		return Question{}, fmt.Errorf("found %d options (expected 4)", len(options))
	}

	correctIdx, explicit := extractAnswer(block.Text)
	solution := extractSolution(block.Text)
	hasDiagram := detectDiagram(block.Text)

	return Question{
		Number:         block.Number,
		Body:           body,
		Options:        options,
		CorrectIndex:   correctIdx,
		AnswerExplicit: explicit,
		Solution:       solution,
		HasDiagram:     hasDiagram,
		Confidence:     confidence(len(body) > 0, true, explicit, len(solution) > 0),
	}, nil
}

func validateSequence(questions []Question, startQ, endQ int) (missing, duplicates []int) {
	seen := make(map[int]int, len(questions))
	for _, q := range questions {
		seen[q.Number]++
	}

	for n := startQ; n <= endQ; n++ {
		if seen[n] == 0 {
			missing = append(missing, n)
		}
	}
	for n, count := range seen {
		if count > 1 {
			duplicates = append(duplicates, n)
		}
	}
	sort.Ints(duplicates)
	return missing, duplicates
}
