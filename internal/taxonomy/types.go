// Package taxonomy loads and caches the reference subtopic lists that
// classified questions are matched against.
package taxonomy

import (
	"strings"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
)

// Entry is one subtopic of a reference taxonomy.
type Entry struct {
	UnitNumber     string `json:"unit_number" yaml:"unit_number"`
	UnitName       string `json:"unit_name" yaml:"unit_name"`
	SubtopicNumber string `json:"subtopic_number" yaml:"subtopic_number"`
	SubtopicName   string `json:"subtopic_name" yaml:"subtopic_name"`
}

// Taxonomy is the ordered subtopic list of one exam and subject.
type Taxonomy []Entry

// Key identifies a taxonomy.
type Key struct {
	Exam    exam.Type
	Subject exam.Subject
}

// String returns the storage name of the taxonomy, e.g. "JEE_Mathematics".
func (k Key) String() string {
	return string(k.Exam) + "_" + string(k.Subject)
}

// ParseKey splits a storage name on its first underscore.
func ParseKey(name string) (Key, bool) {
	examPart, subjectPart, ok := strings.Cut(name, "_")
	if !ok || examPart == "" || subjectPart == "" {
		return Key{}, false
	}
	return Key{Exam: exam.Type(examPart), Subject: exam.Subject(subjectPart)}, true
}

// Stat summarizes one stored taxonomy.
type Stat struct {
	ExamType string `json:"exam_type"`
	Subject  string `json:"subject"`
	Count    int    `json:"count"`
}
