package parser

import "strings"

const bodyFallbackChars = 500

// extractBody returns the question text preceding the first option marker,
// with the leading question-number marker stripped, split into non-empty
// trimmed lines. Without an option marker it falls back to the first 500
// characters of the block.
func extractBody(text string) []string {
	body := text
	if markers := scanOptionMarkers(text); len(markers) > 0 {
		body = text[:markers[0].start]
	} else if len(body) > bodyFallbackChars {
		body = body[:bodyFallbackChars]
	}
	body = strings.TrimSpace(body)

	if loc := reQuestionNumber.FindStringIndex(body); loc != nil {
		body = body[:loc[0]] + body[loc[1]:]
	}

	return splitLines(body)
}

// extractOptions collects up to four option texts bounded by the next option
// marker, or for the final option by the nearer of the answer and solution
// markers or block end. The boolean reports whether exactly four were found.
func extractOptions(text string) ([]string, bool) {
	markers := scanOptionMarkers(text)

	count := len(markers)
	if count > 4 {
		count = 4
	}

	options := make([]string, 0, 4)
	for i := 0; i < count; i++ {
		start := markers[i].end
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1].start
		} else {
			if ans, ok := scanAnswerMarker(text[start:]); ok && start+ans.start < end {
				end = start + ans.start
			}
			if sol, ok := scanSolutionMarker(text[start:]); ok && start+sol.start < end {
				end = start + sol.start
			}
		}
		options = append(options, cleanOptionText(text[start:end]))
	}

	if len(options) == 4 {
		return options, true
	}
	return extractOptionsByLine(text)
}

// extractOptionsByLine is the line-anchored fallback for blocks whose options
// do not sit on one run of marker-to-marker spans.
func extractOptionsByLine(text string) ([]string, bool) {
	var options []string
	for _, line := range strings.Split(text, "\n") {
		if !reOptionLine.MatchString(line) {
			continue
		}
		option := strings.TrimSpace(reOptionLineStrip.ReplaceAllString(line, ""))
		if option == "" {
			continue
		}
		options = append(options, option)
		if len(options) == 4 {
			break
		}
	}
	return options, len(options) == 4
}

func cleanOptionText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	text = reTrailingAnswer.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// extractAnswer maps the first answer marker's letter to a zero-based option
// index. Absent a marker it defaults to index 0; the boolean reports whether
// the marker was explicit.
func extractAnswer(text string) (int, bool) {
	if marker, ok := scanAnswerMarker(text); ok && marker.index >= 0 {
		return marker.index, true
	}
	return 0, false
}

// extractSolution returns the lines following the solution marker, falling
// back to the text after the answer marker. Without either marker the
// solution is empty.
func extractSolution(text string) []string {
	if sol, ok := scanSolutionMarker(text); ok {
		return splitLines(text[sol.end:])
	}
	if ans, ok := scanAnswerMarker(text); ok {
		return splitLines(text[ans.end:])
	}
	return nil
}

// detectDiagram reports whether the block references a figure the output
// document cannot reproduce from text alone.
func detectDiagram(text string) bool {
	return reDiagram.MatchString(text)
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
