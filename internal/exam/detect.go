package exam

import "strings"

var (
	jeeSignals     = []string{"jee main", "jee advanced", "jee mains", "iit jee", "jee (main)"}
	neetSignals    = []string{"neet", "neet-ug", "neet ug", "national eligibility"}
	biologySignals = []string{"biology", "botany", "zoology"}

	// Checked in order; the first subject with any hit wins.
	subjectSignals = []struct {
		subject Subject
		words   []string
	}{
		{Mathematics, []string{"mathematics", "maths", "math"}},
		{Physics, []string{"physics"}},
		{Chemistry, []string{"chemistry"}},
		{Biology, biologySignals},
	}
)

// DetectType guesses the exam from paper header text by counting keyword
// signals. A tie falls back to NEET when biology is mentioned.
func DetectType(text string) Type {
	lower := strings.ToLower(text)

	jee := countSignals(lower, jeeSignals)
	neet := countSignals(lower, neetSignals)
	switch {
	case jee > neet:
		return JEE
	case neet > jee:
		return NEET
	}

	if countSignals(lower, biologySignals) > 0 {
		return NEET
	}
	return Unknown
}

// DetectSubject guesses the paper subject from header text.
func DetectSubject(text string) Subject {
	lower := strings.ToLower(text)
	for _, s := range subjectSignals {
		if countSignals(lower, s.words) > 0 {
			return s.subject
		}
	}
	return UnknownSubject
}

func countSignals(text string, signals []string) int {
	n := 0
	for _, s := range signals {
		if strings.Contains(text, s) {
			n++
		}
	}
	return n
}
