package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse marks classifier output that holds no decodable
	// JSON object.
	ErrMalformedResponse = errors.New("malformed classifier response")

	// ErrMissingQuestionsField marks a decoded response without a
	// "questions" array.
	ErrMissingQuestionsField = errors.New("classifier response missing questions array")

	// ErrNoInput is returned when there is nothing to classify.
	ErrNoInput = errors.New("no questions or pages to analyze")
)

// sampleLimit bounds how much raw output a MalformedResponseError keeps.
const sampleLimit = 500

// MalformedResponseError carries the decode failure and a truncated sample
// of the raw output for diagnostics.
type MalformedResponseError struct {
	Sample string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%v: %v", ErrMalformedResponse, e.Err)
}

func (e *MalformedResponseError) Unwrap() []error {
	return []error{ErrMalformedResponse, e.Err}
}
