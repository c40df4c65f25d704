package assemble

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"exam-backend/internal/parser"
)

const answerSheetName = "Answer Key"

// renderAnswerKey builds an XLSX answer key with one row per question.
// Library used: github.com/xuri/excelize/v2.
func renderAnswerKey(questions []parser.Question) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", answerSheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headers := []string{"Question", "Answer", "Explicit", "Confidence", "Diagram"}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(answerSheetName, cell, header); err != nil {
			return nil, fmt.Errorf("set header %s: %w", header, err)
		}
	}

	for row, q := range questions {
		values := []any{
			q.Number,
			strings.ToUpper(answerLetter(q.CorrectIndex)),
			q.AnswerExplicit,
			q.Confidence,
			q.HasDiagram,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(answerSheetName, cell, value); err != nil {
				return nil, fmt.Errorf("set row %d: %w", row+2, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
