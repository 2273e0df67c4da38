// Package exam defines the exam-paper domain shared by extraction, analysis,
// matching and reporting.
package exam

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Type identifies the competitive exam a paper was set for.
type Type string

const (
	JEE     Type = "JEE"
	NEET    Type = "NEET"
	Unknown Type = "UNKNOWN"
)

// ParseType maps free text from forms or model output to a Type.
func ParseType(s string) Type {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "JEE", "JEE MAIN", "JEE MAINS", "JEE ADVANCED", "IIT JEE":
		return JEE
	case "NEET", "NEET-UG", "NEET UG":
		return NEET
	default:
		return Unknown
	}
}

// Known reports whether t is a concrete exam.
func (t Type) Known() bool {
	return t == JEE || t == NEET
}

// Sibling returns the exam tried when a match against t is weak. Every
// exam other than JEE, including Unknown, falls back to JEE.
func (t Type) Sibling() Type {
	if t == JEE {
		return NEET
	}
	return JEE
}

// Subject is the paper or question subject.
type Subject string

const (
	Physics        Subject = "Physics"
	Chemistry      Subject = "Chemistry"
	Mathematics    Subject = "Mathematics"
	Biology        Subject = "Biology"
	UnknownSubject Subject = "UNKNOWN"
)

// ParseSubject maps free text to a Subject. Common abbreviations and the
// biology sub-disciplines are accepted.
func ParseSubject(s string) Subject {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "physics":
		return Physics
	case "chemistry":
		return Chemistry
	case "mathematics", "maths", "math":
		return Mathematics
	case "biology", "botany", "zoology":
		return Biology
	default:
		return UnknownSubject
	}
}

// Known reports whether s is one of the four taught subjects.
func (s Subject) Known() bool {
	switch s {
	case Physics, Chemistry, Mathematics, Biology:
		return true
	}
	return false
}

// Difficulty is the coarse difficulty band assigned by the classifier.
type Difficulty string

const (
	Easy      Difficulty = "Easy"
	Moderate  Difficulty = "Moderate"
	Difficult Difficulty = "Difficult"
)

// NormalizeDifficulty trims and capitalizes s. Anything outside the three
// bands, including the empty string, becomes Moderate.
func NormalizeDifficulty(s string) Difficulty {
	d := Difficulty(cases.Title(language.English).String(strings.TrimSpace(s)))
	switch d {
	case Easy, Moderate, Difficult:
		return d
	default:
		return Moderate
	}
}
