package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"exam-backend/internal/shared/storage/object"
	"exam-backend/internal/shared/telemetry"
)

var (
	// ErrNotPDF marks a payload that does not open as a PDF document.
	ErrNotPDF = errors.New("file is not a valid pdf")
	// ErrNoText marks a page range that yields no extractable text.
	ErrNoText = errors.New("no extractable text in page range")
)

// PageRangeError reports a page range that does not fit the document.
type PageRangeError struct {
	StartPage  int
	EndPage    int
	TotalPages int
}

func (e *PageRangeError) Error() string {
	switch {
	case e.StartPage < 1:
		return fmt.Sprintf("start page %d must be >= 1", e.StartPage)
	case e.EndPage > e.TotalPages:
		return fmt.Sprintf("end page %d exceeds total pages (%d)", e.EndPage, e.TotalPages)
	default:
		return fmt.Sprintf("start page %d must be <= end page %d", e.StartPage, e.EndPage)
	}
}

// ExtractPages pulls the text of a 1-indexed inclusive page range from a stored PDF.
// Library used: github.com/ledongthuc/pdf.
func ExtractPages(ctx context.Context, store object.Store, path string, startPage, endPage int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	body, err := store.Open(ctx, path)
	if err != nil {
		return "", fmt.Errorf("extract pages path=%s: %w", path, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("extract pages path=%s: read: %w", path, err)
	}

	return ExtractPagesFromBytes(ctx, raw, startPage, endPage)
}

// ExtractPagesFromBytes extracts a page range from an in-memory PDF payload.
func ExtractPagesFromBytes(ctx context.Context, data []byte, startPage, endPage int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotPDF, err)
	}

	totalPages := reader.NumPage()
	if startPage < 1 || endPage > totalPages || startPage > endPage {
		return "", &PageRangeError{StartPage: startPage, EndPage: endPage, TotalPages: totalPages}
	}

	var pages []string
	for num := startPage; num <= endPage; num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			telemetry.Warn("extract.empty_page", map[string]any{"page": num})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", num, err)
		}
		if strings.TrimSpace(text) == "" {
			telemetry.Warn("extract.empty_page", map[string]any{"page": num})
			continue
		}
		pages = append(pages, text)
	}

	text := strings.Join(pages, "\n\n")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: pages %d-%d", ErrNoText, startPage, endPage)
	}
	return text, nil
}

// ValidatePDF checks that the payload opens as a PDF with at least one page.
func ValidatePDF(data []byte) error {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	if reader.NumPage() == 0 {
		return fmt.Errorf("%w: document has no pages", ErrNotPDF)
	}
	return nil
}
