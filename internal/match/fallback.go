package match

import (
	"context"
	"log/slog"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
)

// MatchWithFallback runs Match and, when the result falls below the
// threshold, retries once against the sibling exam's taxonomy. The sibling
// result is used only if it scores strictly higher. An unknown exam has no
// taxonomy of its own, so its questions are effectively matched against JEE.
func (m *Matcher) MatchWithFallback(ctx context.Context, subtopic, topic string, examType exam.Type, subject exam.Subject) Result {
	res := m.Match(ctx, subtopic, topic, examType, subject)
	if res.Confidence >= m.threshold {
		return res
	}

	sibling := examType.Sibling()
	alt := m.Match(ctx, subtopic, topic, sibling, subject)
	if alt.Confidence > res.Confidence {
		slog.Debug("cross-exam match adopted",
			"subtopic", subtopic,
			"exam", examType,
			"sibling", sibling,
			"confidence", alt.Confidence,
		)
		return alt
	}
	return res
}

// Annotate matches every question in place. A question whose own subject
// is not recognized is matched under paperSubject.
func (m *Matcher) Annotate(ctx context.Context, questions []exam.Question, examType exam.Type, paperSubject exam.Subject) {
	matched := 0
	for i := range questions {
		q := &questions[i]

		subject := exam.ParseSubject(q.Subject)
		if !subject.Known() {
			subject = paperSubject
		}

		r := m.MatchWithFallback(ctx, q.SubtopicName, q.Topic, examType, subject)
		q.SubtopicNumber = r.SubtopicNumber
		q.MatchedSubtopicName = r.MatchedName
		q.MatchedUnitName = r.UnitName
		q.MatchConfidence = r.Confidence
		q.MatchedExamType = r.Exam
		if r.Accepted() {
			matched++
		}
	}

	slog.Info("subtopic matching complete",
		"exam", examType,
		"questions", len(questions),
		"matched", matched,
	)
}
