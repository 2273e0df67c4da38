package report

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
)

func sampleQuestions() []exam.Question {
	return []exam.Question{
		{
			SNo: 1, Label: "Q.1", Text: "Find F when m < 2 & a > 0",
			Subject: "Physics", Topic: "Mechanics", SubtopicName: "Newton's laws",
			ConceptTested: "Second law", Difficulty: exam.Easy,
			SubtopicNumber: "3.2", MatchedSubtopicName: "Newton's Laws of Motion",
			MatchedUnitName: "Laws of Motion", MatchConfidence: 88.5, MatchedExamType: exam.JEE,
		},
		{
			SNo: 2, Text: "Identify the circuit", Subject: "Physics", Topic: "Current Electricity",
			SubtopicName: "Kirchhoff", Difficulty: exam.Difficult,
			HasDiagram: true, DiagramDescription: "three resistors in a loop",
			SubtopicNumber: exam.NotApplicable,
		},
		{SNo: 3, Label: "Q.3", Text: "Plain", Topic: "Optics"},
	}
}

func sampleMeta() Metadata {
	return Metadata{
		PaperName:   "JEE_Main_2024",
		ExamType:    exam.JEE,
		Subject:     exam.Physics,
		ModelUsed:   "google/gemini-2.5-flash",
		GeneratedAt: time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC),
	}
}

func documentXML(t *testing.T, data []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(b)
	}
	t.Fatal("word/document.xml not found")
	return ""
}

func TestWriteDOCX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDOCX(&buf, sampleQuestions(), sampleMeta()))

	doc := documentXML(t, buf.Bytes())

	// Well-formed XML after all substitutions.
	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
	}

	assert.NotContains(t, doc, "{{")
	assert.Contains(t, doc, "JEE_Main_2024")
	assert.Contains(t, doc, "Exam: JEE | Subject: Physics | Questions: 3 | Model: gemini-2.5-flash")
	assert.Contains(t, doc, "Total: 3 | Easy: 1 | Moderate: 0 | Difficult: 1")
	assert.Contains(t, doc, "Generated: 2024-04-01 09:30 | Model: google/gemini-2.5-flash")
	assert.Contains(t, doc, "Find F when m &lt; 2 &amp; a &gt; 0")
	assert.Contains(t, doc, "Newton&#39;s Laws of Motion", "matched name preferred")
	assert.Contains(t, doc, "Laws of Motion")
	assert.Contains(t, doc, "[Diagram: three resistors in a loop]")
	assert.Contains(t, doc, "Q.2", "missing label derived from sno")
	assert.Contains(t, doc, `w:fill="DCFCE7"`)
	assert.Contains(t, doc, `w:fill="FEE2E2"`)
	assert.Contains(t, doc, `w:fill="FEF9C3"`, "empty difficulty shown as Moderate")
	assert.Contains(t, doc, `w:fill="1E293B"`)
	assert.Equal(t, 4, strings.Count(doc, "</w:tr>"), "header plus one row per question")
}

func TestWriteDOCX_NoQuestions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDOCX(&buf, nil, Metadata{}))

	doc := documentXML(t, buf.Bytes())
	assert.Contains(t, doc, "Exam Paper Analysis")
	assert.Contains(t, doc, "Questions: 0")
	assert.Contains(t, doc, "Model: N/A")
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleQuestions(), sampleMeta()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{analysisSheet, summarySheet}, f.GetSheetList())

	rows, err := f.GetRows(analysisSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, append(append([]string{}, Headers...), "Match %"), rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "Laws of Motion", rows[1][3])
	assert.Equal(t, "Newton's Laws of Motion", rows[1][5])
	assert.Equal(t, "3.2", rows[1][6])
	assert.Equal(t, "Easy", rows[1][8])
	assert.Equal(t, "88.5", rows[1][9])
	assert.Equal(t, "Q.2", rows[2][1])
	assert.Equal(t, "Current Electricity", rows[2][3], "unit falls back to topic")
	assert.Equal(t, "Kirchhoff", rows[2][5])
	assert.Contains(t, rows[2][2], "[Diagram: three resistors in a loop]")
	assert.Equal(t, "N/A", rows[3][6])
	assert.Equal(t, "Moderate", rows[3][8])

	total, err := f.GetCellValue(summarySheet, "B7")
	require.NoError(t, err)
	assert.Equal(t, "3", total)
	matched, err := f.GetCellValue(summarySheet, "B11")
	require.NoError(t, err)
	assert.Equal(t, "1", matched)
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	docxName, xlsxName := FileNames("paper", "ab12cd34")

	require.NoError(t, WriteDOCXFile(filepath.Join(dir, docxName), sampleQuestions(), sampleMeta()))
	require.NoError(t, WriteXLSXFile(filepath.Join(dir, xlsxName), sampleQuestions(), sampleMeta()))

	assert.FileExists(t, filepath.Join(dir, "paper_Analysis_ab12cd34.docx"))
	assert.FileExists(t, filepath.Join(dir, "paper_Analysis_ab12cd34.xlsx"))
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleQuestions())
	assert.Equal(t, Summary{Total: 3, Easy: 1, Difficult: 1, Matched: 1}, s)
}

func TestPaperName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"JEE Main 2024.pdf", "JEE_Main_2024"},
		{"../../etc/passwd.pdf", "passwd"},
		{`C:\uploads\neet paper.PDF`, "neet_paper"},
		{".pdf", "paper"},
		{"", "paper"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PaperName(tt.in), tt.in)
	}
}
