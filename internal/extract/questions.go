package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
)

var (
	// Question starts: "Q.12", "Q 12.", "Question 12:", "12." or "12)" at
	// the start of a line.
	questionStart = regexp.MustCompile(`(?m)^[ \t]*(?:Q(?:uestion)?[ \t]*\.?[ \t]*(\d{1,3})[ \t]*[.:)]?|(\d{1,3})[ \t]*[.)])[ \t]+`)

	figureRef = regexp.MustCompile(`(?i)\b(?:fig(?:ure)?\.?[ \t]*\d+[a-z]?)`)

	diagramWords = []string{"figure", "diagram", "shown below", "shown in", "graph", "circuit", "fig."}
)

// SplitQuestions cuts paper text into numbered questions. A marker counts
// as a new question only when its number is higher than the previous one,
// so numbered statements inside a question do not split it.
func SplitQuestions(text string) []exam.RawQuestion {
	matches := questionStart.FindAllStringSubmatchIndex(text, -1)

	type marker struct {
		number     int
		start, end int
	}
	var markers []marker
	last := 0
	for _, m := range matches {
		numStr := ""
		switch {
		case m[2] >= 0:
			numStr = text[m[2]:m[3]]
		case m[4] >= 0:
			numStr = text[m[4]:m[5]]
		}
		n, err := strconv.Atoi(numStr)
		if err != nil || n <= last {
			continue
		}
		markers = append(markers, marker{number: n, start: m[0], end: m[1]})
		last = n
	}

	questions := make([]exam.RawQuestion, 0, len(markers))
	for i, mk := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1].start
		}
		body := normalizeSpace(text[mk.end:end])
		if body == "" {
			continue
		}
		refs := figureRef.FindAllString(body, -1)
		questions = append(questions, exam.RawQuestion{
			Number:      mk.number,
			Label:       exam.LabelFor(mk.number),
			Text:        body,
			HasDiagram:  mentionsDiagram(body),
			DiagramRefs: refs,
		})
	}
	return questions
}

func mentionsDiagram(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range diagramWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
