package parser

import "regexp"

// Marker patterns for the token kinds the parser recognizes. They mirror the
// formats seen in scanned exam papers: "Q1.", "1.", "Q.1", "101)", "(a)",
// "a)", "A.", "Ans: (c)", "Answer: c", "Solution:", "Sol.".
var (
	reQuestionNumber = regexp.MustCompile(`(?:Q\.?\s*)?(\d+)[.)]\s*`)
	reOptionMarker   = regexp.MustCompile(`\(?\s*([a-dA-D])\s*[).]?\s*`)
	reAnswer         = regexp.MustCompile(`(?i)(?:Ans(?:wer)?|Correct)\s*[:.]\s*\(?\s*([a-dA-D])\s*\)?`)
	reSolution       = regexp.MustCompile(`(?i)(?:Solution|Explanation|Sol)\s*[:.]\s*`)
	reDiagram        = regexp.MustCompile(`(?i)diagram|figure|image|graph|chart|table|see\s+(?:above|below|figure)|shown\s+in|refer\s+to`)

	reOptionLine      = regexp.MustCompile(`^\s*\(?\s*[a-dA-D]\s*[).]`)
	reOptionLineStrip = regexp.MustCompile(`^\s*\(?\s*[a-dA-D]\s*[).]?\s*`)
	reTrailingAnswer  = regexp.MustCompile(`(?is)\s*(?:Ans|Answer|Correct).*$`)
)

// span marks the location of one marker token within a block's text.
type span struct {
	start int
	end   int
}

// numberMarker is a question-number token with its parsed ordinal.
type numberMarker struct {
	span
	number int
}

// letterMarker is an option or answer token with its zero-based option index.
type letterMarker struct {
	span
	index int
}

func letterIndex(letter byte) int {
	switch {
	case letter >= 'a' && letter <= 'd':
		return int(letter - 'a')
	case letter >= 'A' && letter <= 'D':
		return int(letter - 'A')
	default:
		return -1
	}
}

// scanOptionMarkers returns every option-marker token in order of appearance.
func scanOptionMarkers(text string) []letterMarker {
	matches := reOptionMarker.FindAllStringSubmatchIndex(text, -1)
	markers := make([]letterMarker, 0, len(matches))
	for _, m := range matches {
		letter := text[m[2]]
		markers = append(markers, letterMarker{
			span:  span{start: m[0], end: m[1]},
			index: letterIndex(letter),
		})
	}
	return markers
}

// scanAnswerMarker returns the first answer-marker token, if any.
func scanAnswerMarker(text string) (letterMarker, bool) {
	m := reAnswer.FindStringSubmatchIndex(text)
	if m == nil {
		return letterMarker{}, false
	}
	return letterMarker{
		span:  span{start: m[0], end: m[1]},
		index: letterIndex(text[m[2]]),
	}, true
}

// scanSolutionMarker returns the first solution-marker token, if any.
func scanSolutionMarker(text string) (span, bool) {
	m := reSolution.FindStringIndex(text)
	if m == nil {
		return span{}, false
	}
	return span{start: m[0], end: m[1]}, true
}
