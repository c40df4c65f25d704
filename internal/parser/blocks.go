package parser

import (
	"strconv"
	"strings"
)

// Block is the text span belonging to a single candidate question,
// delimited by consecutive question-number markers.
type Block struct {
	Number int
	Text   string
}

// splitBlocks locates every question-number marker and cuts the text between
// consecutive markers. Blocks whose number falls outside [startQ, endQ] are
// discarded, but every marker still terminates the preceding block.
func splitBlocks(text string, startQ, endQ int) []Block {
	matches := reQuestionNumber.FindAllStringSubmatchIndex(text, -1)

	var blocks []Block
	for i, m := range matches {
		number, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		if number < startQ || number > endQ {
			continue
		}

		start := m[0]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		blocks = append(blocks, Block{
			Number: number,
			Text:   strings.TrimSpace(text[start:end]),
		})
	}
	return blocks
}
