package exam

import "fmt"

// NotApplicable is the subtopic number of a question no taxonomy entry matched.
const NotApplicable = "N/A"

// RawQuestion is a question as split out of the PDF text layer.
type RawQuestion struct {
	Number      int      `json:"number"`
	Label       string   `json:"label"`
	Text        string   `json:"text"`
	HasDiagram  bool     `json:"has_diagram"`
	DiagramRefs []string `json:"diagram_refs,omitempty"`
}

// Page is one rendered page of a paper.
type Page struct {
	Number int
	PNG    []byte
}

// Question is a classified question, optionally annotated with its
// taxonomy match.
type Question struct {
	SNo                int        `json:"sno"`
	Label              string     `json:"question_label"`
	Text               string     `json:"question_text"`
	Subject            string     `json:"subject"`
	Topic              string     `json:"topic"`
	SubtopicName       string     `json:"subtopic_name"`
	ConceptTested      string     `json:"concept_tested"`
	Difficulty         Difficulty `json:"difficulty"`
	HasDiagram         bool       `json:"has_diagram"`
	DiagramDescription string     `json:"diagram_description"`
	DiagramRefs        []string   `json:"diagram_refs,omitempty"`

	SubtopicNumber      string  `json:"subtopic_number,omitempty"`
	MatchedSubtopicName string  `json:"matched_subtopic_name,omitempty"`
	MatchedUnitName     string  `json:"matched_unit_name,omitempty"`
	MatchConfidence     float64 `json:"match_confidence"`
	MatchedExamType     Type    `json:"matched_exam_type,omitempty"`
}

// Matched reports whether the question was assigned a taxonomy subtopic.
func (q Question) Matched() bool {
	return q.SubtopicNumber != "" && q.SubtopicNumber != NotApplicable
}

// LabelFor returns the display label for a serial number.
func LabelFor(sno int) string {
	return fmt.Sprintf("Q.%d", sno)
}
