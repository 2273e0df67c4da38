package analysis

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
)

// Response is one classifier answer after normalization.
type Response struct {
	ExamType  exam.Type
	Questions []exam.Question
}

// requiredFields must be present on every question; absent ones are filled
// with placeholders.
var requiredFields = []string{"sno", "question_text", "subject", "topic", "subtopic_name", "difficulty"}

const unknownField = "Unknown"

var questionSchema = mustSchema(`{
  "type": "object",
  "required": ["sno", "question_text", "subject", "topic", "subtopic_name", "difficulty"]
}`)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("compile question schema: %v", err))
	}
	return schema
}

// Parse turns raw classifier output into questions. It tolerates markdown
// fences and prose around the JSON object, and repairs questions with
// missing fields. It fails only when no JSON object can be decoded
// (ErrMalformedResponse) or the object has no "questions" array
// (ErrMissingQuestionsField).
func Parse(raw string) (*Response, error) {
	doc, err := decodeObject(stripCodeFence(raw))
	if err != nil {
		return nil, &MalformedResponseError{Sample: truncate(raw, sampleLimit), Err: err}
	}

	items, ok := doc["questions"].([]any)
	if !ok {
		return nil, ErrMissingQuestionsField
	}

	resp := &Response{
		ExamType:  exam.ParseType(stringField(doc["exam_type"])),
		Questions: make([]exam.Question, 0, len(items)),
	}
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			slog.Warn("skipping non-object question in classifier response", "index", i)
			continue
		}
		fillMissing(i, obj)
		resp.Questions = append(resp.Questions, toQuestion(obj))
	}
	return resp, nil
}

// decodeObject decodes text as a JSON object, falling back to the span
// between the first '{' and the last '}'.
func decodeObject(text string) (map[string]any, error) {
	var doc map[string]any
	err := json.Unmarshal([]byte(text), &doc)
	if err == nil {
		return doc, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found: %w", err)
	}
	doc = nil
	if err := json.Unmarshal([]byte(text[start:end+1]), &doc); err != nil {
		return nil, fmt.Errorf("decode embedded object: %w", err)
	}
	return doc, nil
}

// stripCodeFence removes a leading ``` line (with optional language tag)
// and a trailing ``` from s.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "json") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "json"))
	}
	return s
}

func fillMissing(index int, obj map[string]any) {
	result, err := questionSchema.Validate(gojsonschema.NewGoLoader(obj))
	if err != nil {
		slog.Warn("question schema validation failed", "index", index, "error", err)
		fillMissingKeys(index, obj)
		return
	}
	if result.Valid() {
		return
	}

	var missing []string
	for _, re := range result.Errors() {
		if re.Type() != "required" {
			continue
		}
		field, _ := re.Details()["property"].(string)
		if field == "" {
			continue
		}
		missing = append(missing, field)
		obj[field] = placeholder(field)
	}
	if len(missing) > 0 {
		slog.Warn("question missing fields",
			"index", index,
			"sno", obj["sno"],
			"fields", missing,
		)
	}
}

func fillMissingKeys(index int, obj map[string]any) {
	var missing []string
	for _, field := range requiredFields {
		if _, ok := obj[field]; !ok {
			missing = append(missing, field)
			obj[field] = placeholder(field)
		}
	}
	if len(missing) > 0 {
		slog.Warn("question missing fields", "index", index, "fields", missing)
	}
}

func placeholder(field string) any {
	if field == "sno" {
		return 0.0
	}
	return unknownField
}

func toQuestion(obj map[string]any) exam.Question {
	sno := intField(obj["sno"])
	label := stringField(obj["question_label"])
	if label == "" {
		label = exam.LabelFor(sno)
	}

	return exam.Question{
		SNo:                sno,
		Label:              label,
		Text:               stringField(obj["question_text"]),
		Subject:            stringField(obj["subject"]),
		Topic:              stringField(obj["topic"]),
		SubtopicName:       stringField(obj["subtopic_name"]),
		ConceptTested:      stringField(obj["concept_tested"]),
		Difficulty:         exam.NormalizeDifficulty(stringField(obj["difficulty"])),
		HasDiagram:         boolField(obj["has_diagram"]),
		DiagramDescription: stringField(obj["diagram_description"]),
	}
}

func stringField(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func intField(v any) int {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0
		}
		return int(x)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(x), "Q.")))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func boolField(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(x))
		return b
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
