package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
)

const (
	analysisSheet = "Analysis"
	summarySheet  = "Summary"
)

var xlsxColumnWidths = []float64{7, 7, 60, 24, 24, 30, 9, 40, 12, 12}

// WriteXLSX renders the question table and a summary sheet to w.
func WriteXLSX(w io.Writer, questions []exam.Question, meta Metadata) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", analysisSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeAnalysisSheet(f, questions); err != nil {
		return fmt.Errorf("write %s sheet: %w", analysisSheet, err)
	}
	if err := writeSummarySheet(f, questions, meta); err != nil {
		return fmt.Errorf("write %s sheet: %w", summarySheet, err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write XLSX: %w", err)
	}
	return nil
}

// WriteXLSXFile renders the workbook to path.
func WriteXLSXFile(path string, questions []exam.Question, meta Metadata) error {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, questions, meta); err != nil {
		return err
	}
	return writeFile(path, buf.Bytes())
}

func writeAnalysisSheet(f *excelize.File, questions []exam.Question) error {
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Family: "Arial", Size: 9},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return err
	}
	wrap, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Size: 9},
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return err
	}
	subNo, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: subtopicInk, Family: "Arial", Size: 9},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{subtopicFill}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top"},
	})
	if err != nil {
		return err
	}
	difficulty := make(map[exam.Difficulty]int, len(difficultyPalette))
	for d, c := range difficultyPalette {
		id, err := f.NewStyle(&excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: c.ink, Family: "Arial", Size: 9},
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{c.fill}},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top"},
		})
		if err != nil {
			return err
		}
		difficulty[d] = id
	}

	headers := append(append([]string{}, Headers...), "Match %")
	headerRow := make([]any, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(analysisSheet, "A1", &headerRow); err != nil {
		return err
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetCellStyle(analysisSheet, "A1", last+"1", header); err != nil {
		return err
	}

	for i, q := range questions {
		r := toRow(q)
		rowNum := i + 2
		cells := append(r.cells(), r.Confidence)
		if r.DiagramNote != "" {
			cells[2] = r.Text + "\n" + r.DiagramNote
		}
		start, _ := excelize.CoordinatesToCellName(1, rowNum)
		if err := f.SetSheetRow(analysisSheet, start, &cells); err != nil {
			return err
		}
		end, _ := excelize.CoordinatesToCellName(len(headers), rowNum)
		if err := f.SetCellStyle(analysisSheet, start, end, wrap); err != nil {
			return err
		}
		subCell, _ := excelize.CoordinatesToCellName(7, rowNum)
		if err := f.SetCellStyle(analysisSheet, subCell, subCell, subNo); err != nil {
			return err
		}
		diffStyle, ok := difficulty[r.Difficulty]
		if !ok {
			diffStyle = difficulty[exam.Moderate]
		}
		diffCell, _ := excelize.CoordinatesToCellName(9, rowNum)
		if err := f.SetCellStyle(analysisSheet, diffCell, diffCell, diffStyle); err != nil {
			return err
		}
	}

	for i, width := range xlsxColumnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(analysisSheet, col, col, width); err != nil {
			return err
		}
	}
	return f.SetPanes(analysisSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSummarySheet(f *excelize.File, questions []exam.Question, meta Metadata) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	s := Summarize(questions)
	rows := [][]any{
		{"Paper", meta.title()},
		{"Exam", string(meta.ExamType)},
		{"Subject", string(meta.Subject)},
		{"Model", meta.ModelUsed},
		{"Generated", meta.generatedAt().Format("2006-01-02 15:04")},
		{},
		{"Total questions", s.Total},
		{"Easy", s.Easy},
		{"Moderate", s.Moderate},
		{"Difficult", s.Difficult},
		{"Matched to subtopic", s.Matched},
	}
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "B", 24)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
