package match

import (
	"context"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
	"github.com/p-n-ai/exam-analyzer/internal/taxonomy"
)

// DefaultThreshold is the minimum score for a match to be accepted.
const DefaultThreshold = 60.0

// Loader supplies taxonomies. *taxonomy.Store satisfies it.
type Loader interface {
	Load(ctx context.Context, examType exam.Type, subject exam.Subject) taxonomy.Taxonomy
}

// Result is the outcome of matching one classified question.
type Result struct {
	SubtopicNumber string
	MatchedName    string
	UnitName       string
	Confidence     float64
	Exam           exam.Type
}

// Accepted reports whether the result names a taxonomy entry.
func (r Result) Accepted() bool {
	return r.SubtopicNumber != exam.NotApplicable
}

// Matcher scores classifier labels against reference taxonomies.
type Matcher struct {
	loader     Loader
	similarity Similarity
	threshold  float64
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithSimilarity replaces the token-sort scorer.
func WithSimilarity(s Similarity) Option {
	return func(m *Matcher) {
		m.similarity = s
	}
}

// WithThreshold sets the acceptance threshold.
func WithThreshold(t float64) Option {
	return func(m *Matcher) {
		m.threshold = t
	}
}

// NewMatcher creates a Matcher reading taxonomies from loader.
func NewMatcher(loader Loader, opts ...Option) *Matcher {
	m := &Matcher{
		loader:     loader,
		similarity: TokenSort,
		threshold:  DefaultThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the acceptance threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match finds the taxonomy entry closest to a classifier's subtopic and
// topic. Every entry is tried both as its bare subtopic name and prefixed
// with its unit name, against three phrasings of the query. The first
// strictly highest score wins. Below the threshold the subtopic number is
// "N/A" and only the score is reported.
func (m *Matcher) Match(ctx context.Context, subtopic, topic string, examType exam.Type, subject exam.Subject) Result {
	res := Result{SubtopicNumber: exam.NotApplicable, Exam: examType}

	entries := m.loader.Load(ctx, examType, subject)
	if len(entries) == 0 {
		return res
	}

	queries := [...]string{
		subtopic,
		topic + ": " + subtopic,
		topic + " " + subtopic,
	}

	best := -1
	var bestScore float64
	for _, q := range queries {
		for i, e := range entries {
			candidates := [...]string{e.SubtopicName, e.UnitName + ": " + e.SubtopicName}
			for _, c := range candidates {
				if score := m.similarity.Score(q, c); score > bestScore {
					bestScore = score
					best = i
				}
			}
		}
	}

	res.Confidence = bestScore
	if best >= 0 && bestScore >= m.threshold {
		e := entries[best]
		res.SubtopicNumber = e.SubtopicNumber
		res.MatchedName = e.SubtopicName
		res.UnitName = e.UnitName
	}
	return res
}
