// Package report renders classified questions as DOCX and XLSX documents.
package report

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
)

// Headers are the question table columns shared by both formats.
var Headers = []string{
	"S.No", "Q.No", "Question", "Chapter / Unit", "Topic",
	"Subtopic Name", "Sub. No.", "Concept Tested", "Difficulty",
}

// Metadata describes the paper a report is generated for.
type Metadata struct {
	PaperName   string
	ExamType    exam.Type
	Subject     exam.Subject
	ModelUsed   string
	GeneratedAt time.Time
}

func (m Metadata) title() string {
	if m.PaperName == "" {
		return "Exam Paper Analysis"
	}
	return m.PaperName
}

func (m Metadata) generatedAt() time.Time {
	if m.GeneratedAt.IsZero() {
		return time.Now()
	}
	return m.GeneratedAt
}

// subtitle is the "Exam: JEE | Subject: Physics | Questions: 30 | Model: x"
// line under the title. Only the last path segment of the model id is shown.
func (m Metadata) subtitle(questions int) string {
	var parts []string
	if m.ExamType != "" {
		parts = append(parts, "Exam: "+string(m.ExamType))
	}
	if m.Subject != "" {
		parts = append(parts, "Subject: "+string(m.Subject))
	}
	parts = append(parts, fmt.Sprintf("Questions: %d", questions))
	if m.ModelUsed != "" {
		parts = append(parts, "Model: "+m.ModelUsed[strings.LastIndex(m.ModelUsed, "/")+1:])
	}
	return strings.Join(parts, " | ")
}

func (m Metadata) footer() string {
	model := m.ModelUsed
	if model == "" {
		model = exam.NotApplicable
	}
	return fmt.Sprintf("Generated: %s | Model: %s", m.generatedAt().Format("2006-01-02 15:04"), model)
}

// row is one table row, with matched taxonomy names preferred over the
// classifier's own.
type row struct {
	SNo            int
	Label          string
	Text           string
	Chapter        string
	Topic          string
	Subtopic       string
	SubtopicNumber string
	Concept        string
	Difficulty     exam.Difficulty
	Confidence     float64
	DiagramNote    string
}

func toRow(q exam.Question) row {
	r := row{
		SNo:            q.SNo,
		Label:          q.Label,
		Text:           q.Text,
		Chapter:        q.MatchedUnitName,
		Topic:          q.Topic,
		Subtopic:       q.MatchedSubtopicName,
		SubtopicNumber: q.SubtopicNumber,
		Concept:        q.ConceptTested,
		Difficulty:     q.Difficulty,
		Confidence:     q.MatchConfidence,
	}
	if r.Label == "" {
		r.Label = exam.LabelFor(q.SNo)
	}
	if r.Chapter == "" {
		r.Chapter = q.Topic
	}
	if r.Subtopic == "" {
		r.Subtopic = q.SubtopicName
	}
	if r.SubtopicNumber == "" {
		r.SubtopicNumber = exam.NotApplicable
	}
	if r.Difficulty == "" {
		r.Difficulty = exam.Moderate
	}
	if q.HasDiagram && q.DiagramDescription != "" {
		r.DiagramNote = "[Diagram: " + q.DiagramDescription + "]"
	}
	return r
}

func (r row) cells() []any {
	return []any{
		r.SNo, r.Label, r.Text, r.Chapter, r.Topic,
		r.Subtopic, r.SubtopicNumber, r.Concept, string(r.Difficulty),
	}
}

// Summary counts questions per difficulty.
type Summary struct {
	Total     int
	Easy      int
	Moderate  int
	Difficult int
	Matched   int
}

// Summarize tallies difficulties and matched subtopics.
func Summarize(questions []exam.Question) Summary {
	s := Summary{Total: len(questions)}
	for _, q := range questions {
		switch q.Difficulty {
		case exam.Easy:
			s.Easy++
		case exam.Moderate:
			s.Moderate++
		case exam.Difficult:
			s.Difficult++
		}
		if q.Matched() {
			s.Matched++
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("Total: %d | Easy: %d | Moderate: %d | Difficult: %d", s.Total, s.Easy, s.Moderate, s.Difficult)
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// PaperName derives a filesystem-safe paper name from an upload filename.
func PaperName(uploadName string) string {
	base := filepath.Base(strings.ReplaceAll(uploadName, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := strings.Trim(unsafeName.ReplaceAllString(base, "_"), "._")
	if name == "" {
		return "paper"
	}
	return name
}

// FileNames returns the DOCX and XLSX filenames for a job.
func FileNames(paperName, jobID string) (docx, xlsx string) {
	stem := fmt.Sprintf("%s_Analysis_%s", paperName, jobID)
	return stem + ".docx", stem + ".xlsx"
}
