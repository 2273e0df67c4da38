package report

import (
	"bytes"
	_ "embed"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
)

//go:embed templates/analysis.docx
var docxTemplate []byte

const tablePlaceholder = "<w:p><w:r><w:t>{{QUESTION_TABLE}}</w:t></w:r></w:p>"

const (
	headerFill   = "1E293B"
	subtopicFill = "EFF6FF"
	subtopicInk  = "1D4ED8"
)

type difficultyColors struct{ fill, ink string }

var difficultyPalette = map[exam.Difficulty]difficultyColors{
	exam.Easy:      {fill: "DCFCE7", ink: "166534"},
	exam.Moderate:  {fill: "FEF9C3", ink: "854D0E"},
	exam.Difficult: {fill: "FEE2E2", ink: "991B1B"},
}

// Column widths in twentieths of a point; 567 is one centimetre.
var columnWidths = []int{680, 680, 5103, 1985, 1985, 2835, 1020, 3685, 1134}

// WriteDOCX renders a landscape question table to w.
func WriteDOCX(w io.Writer, questions []exam.Question, meta Metadata) error {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(docxTemplate), int64(len(docxTemplate)))
	if err != nil {
		return fmt.Errorf("open DOCX template: %w", err)
	}
	defer r.Close()

	doc := r.Editable()
	replacements := []struct{ placeholder, value string }{
		{"{{PAPER_NAME}}", meta.title()},
		{"{{SUBTITLE}}", meta.subtitle(len(questions))},
		{"{{SUMMARY}}", Summarize(questions).String()},
		{"{{FOOTER}}", meta.footer()},
	}
	for _, rep := range replacements {
		if err := doc.Replace(rep.placeholder, rep.value, -1); err != nil {
			return fmt.Errorf("fill %s: %w", rep.placeholder, err)
		}
	}
	doc.ReplaceRaw(tablePlaceholder, questionTable(questions), 1)

	if err := doc.Write(w); err != nil {
		return fmt.Errorf("write DOCX: %w", err)
	}
	return nil
}

// WriteDOCXFile renders the report to path.
func WriteDOCXFile(path string, questions []exam.Question, meta Metadata) error {
	var buf bytes.Buffer
	if err := WriteDOCX(&buf, questions, meta); err != nil {
		return err
	}
	return writeFile(path, buf.Bytes())
}

func questionTable(questions []exam.Question) string {
	var b strings.Builder
	b.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="0" w:type="auto"/><w:jc w:val="center"/><w:tblBorders>`)
	for _, side := range []string{"top", "left", "bottom", "right", "insideH", "insideV"} {
		fmt.Fprintf(&b, `<w:%s w:val="single" w:sz="4" w:space="0" w:color="auto"/>`, side)
	}
	b.WriteString(`</w:tblBorders><w:tblLayout w:type="fixed"/></w:tblPr><w:tblGrid>`)
	for _, width := range columnWidths {
		fmt.Fprintf(&b, `<w:gridCol w:w="%d"/>`, width)
	}
	b.WriteString(`</w:tblGrid>`)

	b.WriteString(`<w:tr><w:trPr><w:tblHeader/></w:trPr>`)
	for i, h := range Headers {
		writeCell(&b, i, h, cellStyle{bold: true, size: 16, ink: "FFFFFF", fill: headerFill, center: true})
	}
	b.WriteString(`</w:tr>`)

	for _, q := range questions {
		r := toRow(q)
		palette, ok := difficultyPalette[r.Difficulty]
		if !ok {
			palette = difficultyPalette[exam.Moderate]
		}

		b.WriteString(`<w:tr>`)
		writeCell(&b, 0, strconv.Itoa(r.SNo), cellStyle{bold: true, size: 17, center: true})
		writeCell(&b, 1, r.Label, cellStyle{size: 17, center: true})
		text := r.Text
		if r.DiagramNote != "" {
			text += "\n" + r.DiagramNote
		}
		writeCell(&b, 2, text, cellStyle{size: 16})
		writeCell(&b, 3, r.Chapter, cellStyle{size: 16})
		writeCell(&b, 4, r.Topic, cellStyle{size: 16})
		writeCell(&b, 5, r.Subtopic, cellStyle{bold: true, size: 16})
		writeCell(&b, 6, r.SubtopicNumber, cellStyle{bold: true, size: 18, ink: subtopicInk, fill: subtopicFill, center: true})
		writeCell(&b, 7, r.Concept, cellStyle{italic: true, size: 16})
		writeCell(&b, 8, string(r.Difficulty), cellStyle{bold: true, size: 16, ink: palette.ink, fill: palette.fill, center: true})
		b.WriteString(`</w:tr>`)
	}

	b.WriteString(`</w:tbl>`)
	return b.String()
}

// cellStyle sizes are in half-points.
type cellStyle struct {
	bold, italic bool
	center       bool
	size         int
	ink, fill    string
}

func writeCell(b *strings.Builder, col int, text string, s cellStyle) {
	fmt.Fprintf(b, `<w:tc><w:tcPr><w:tcW w:w="%d" w:type="dxa"/>`, columnWidths[col])
	if s.fill != "" {
		fmt.Fprintf(b, `<w:shd w:val="clear" w:color="auto" w:fill="%s"/>`, s.fill)
	}
	b.WriteString(`</w:tcPr><w:p><w:pPr><w:spacing w:before="40" w:after="40"/>`)
	if s.center {
		b.WriteString(`<w:jc w:val="center"/>`)
	}
	b.WriteString(`</w:pPr><w:r><w:rPr><w:rFonts w:ascii="Arial" w:hAnsi="Arial" w:cs="Arial"/>`)
	if s.bold {
		b.WriteString(`<w:b/>`)
	}
	if s.italic {
		b.WriteString(`<w:i/>`)
	}
	if s.ink != "" {
		fmt.Fprintf(b, `<w:color w:val="%s"/>`, s.ink)
	}
	fmt.Fprintf(b, `<w:sz w:val="%d"/></w:rPr><w:t xml:space="preserve">%s</w:t></w:r></w:p></w:tc>`, s.size, escapeRun(text))
}

// escapeRun escapes text for a w:t element and turns newlines into breaks.
func escapeRun(text string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(text))
	return strings.ReplaceAll(b.String(), "&#xA;", `</w:t><w:br/><w:t xml:space="preserve">`)
}
