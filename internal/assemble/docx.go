package assemble

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"

	"exam-backend/internal/parser"
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const documentOpenXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

const documentCloseXML = `</w:body></w:document>`

var optionLetters = []string{"a", "b", "c", "d"}

// docBuilder accumulates word/document.xml paragraphs.
type docBuilder struct {
	buf strings.Builder
}

func (b *docBuilder) paragraph(text string, bold bool) {
	b.buf.WriteString("<w:p>")
	b.writeRun(text, bold)
	b.buf.WriteString("</w:p>")
}

func (b *docBuilder) empty() {
	b.buf.WriteString("<w:p/>")
}

func (b *docBuilder) writeRun(text string, bold bool) {
	b.buf.WriteString("<w:r>")
	if bold {
		b.buf.WriteString("<w:rPr><w:b/></w:rPr>")
	}
	b.buf.WriteString(`<w:t xml:space="preserve">`)
	b.buf.WriteString(escapeXML(text))
	b.buf.WriteString("</w:t></w:r>")
}

func escapeXML(s string) string {
	var out strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			out.WriteString("&amp;")
		case '<':
			out.WriteString("&lt;")
		case '>':
			out.WriteString("&gt;")
		case '"':
			out.WriteString("&quot;")
		case '\'':
			out.WriteString("&apos;")
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}

// renderDOCX builds the question paper as a DOCX package. onQuestion, when
// set, is called after each question is rendered.
func renderDOCX(title string, subtitle string, questions []parser.Question, onQuestion func(done, total int)) ([]byte, error) {
	var b docBuilder
	if title != "" {
		b.paragraph(title, true)
	}
	if subtitle != "" {
		b.paragraph(subtitle, false)
	}
	if title != "" || subtitle != "" {
		b.empty()
	}

	for i, q := range questions {
		writeQuestion(&b, q)
		if i < len(questions)-1 {
			b.empty()
		}
		if onQuestion != nil {
			onQuestion(i+1, len(questions))
		}
	}

	var output bytes.Buffer
	writer := zip.NewWriter(&output)
	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", packageRelsXML},
		{"word/document.xml", documentOpenXML + b.buf.String() + documentCloseXML},
	}
	for _, part := range parts {
		dst, err := writer.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", part.name, err)
		}
		if _, err := dst.Write([]byte(part.content)); err != nil {
			return nil, fmt.Errorf("write %s: %w", part.name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return output.Bytes(), nil
}

func writeQuestion(b *docBuilder, q parser.Question) {
	for i, line := range q.Body {
		if i == 0 {
			b.paragraph(fmt.Sprintf("Q%d. %s", q.Number, line), true)
			continue
		}
		b.paragraph(line, false)
	}
	if q.HasDiagram {
		b.paragraph("[Diagram referenced in source PDF]", false)
	}
	for i, option := range q.Options {
		letter := "?"
		if i < len(optionLetters) {
			letter = optionLetters[i]
		}
		b.paragraph(fmt.Sprintf("(%s) %s", letter, option), false)
	}
	b.paragraph(fmt.Sprintf("Ans: (%s)", answerLetter(q.CorrectIndex)), true)
	for i, line := range q.Solution {
		if i == 0 {
			b.paragraph("Solution: "+line, false)
			continue
		}
		b.paragraph(line, false)
	}
}

func answerLetter(index int) string {
	if index >= 0 && index < len(optionLetters) {
		return optionLetters[index]
	}
	return "?"
}
