package analysis

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/p-n-ai/exam-analyzer/internal/ai"
	"github.com/p-n-ai/exam-analyzer/internal/exam"
)

const responseFormat = `RESPOND IN JSON FORMAT ONLY, no markdown, no explanation:
{
  "exam_type": "JEE",
  "questions": [
    {
      "sno": 1,
      "question_text": "...",
      "subject": "Mathematics",
      "topic": "...",
      "subtopic_name": "...",
      "concept_tested": "...",
      "difficulty": "Moderate",
      "has_diagram": false,
      "diagram_description": null
    }
  ]
}`

const classificationRules = `RULES FOR classification:
- subject: "Physics", "Chemistry", "Mathematics", or "Biology"
- topic: The broad unit/chapter name (e.g., "Three Dimensional Geometry", "Thermodynamics")
- subtopic_name: Be as SPECIFIC as possible, this will be matched to a reference database. Use exact terminology like "Evaluation of definite integrals" not just "Integration"
- concept_tested: One clear sentence describing the exact concept or principle being tested
- difficulty:
  * "Easy" = direct formula application, single concept, 1-2 steps
  * "Moderate" = multi-step OR combines 2 concepts
  * "Difficult" = multi-concept integration, non-standard approach, lengthy derivation
- has_diagram: true if the question has any figure, diagram, circuit, graph, or chemical structure
- diagram_description: if has_diagram is true, describe what the diagram shows`

const unicodeRules = `- Subscripts: H₂O, CO₃²⁻, NH₄⁺, x₁, x₂, aₙ
- Superscripts: x², e⁻⁴, A²⁰²⁵, 10⁻³, m³
- Greek letters: α, β, γ, θ, λ, Δ, Σ, π, ∞, ε, μ, ω, φ
- Math symbols: ∫, ∑, √, ≥, ≤, ≠, →, ⇌, ∈, ℝ, ℂ, ∂, ∇
- Vectors: a⃗, î, ĵ, k̂
- Fractions inline: dy/dx, x²/a², sin²x/cos²x
- Matrices: [[a,b],[c,d]] format`

const textSystemPrompt = `You are an expert exam paper analyzer for Indian competitive exams (JEE Main, JEE Advanced, NEET-UG).

TASK: Analyze the following extracted exam paper text. For each question, provide structured classification.

RULES FOR question_text:
- Preserve ALL Unicode characters exactly as they appear
` + unicodeRules + `

` + classificationRules + `

` + responseFormat

const visionSystemPrompt = `You are an expert exam paper analyzer for Indian competitive exams (JEE Main, JEE Advanced, NEET-UG).

TASK: You are given images of an exam paper. Look at each page carefully. Identify and classify every question you can see.

CRITICAL RULES FOR question_text:
- READ the actual mathematical expressions, formulas, and symbols from the images
- Write question text using Unicode characters:
` + unicodeRules + `
- Include the answer options (A), (B), (C), (D) in the question_text if visible
- Do NOT include headers, footers, page numbers, watermarks, or venue information in question_text
- If a question has a diagram/figure/graph/circuit, set has_diagram to true and describe it

` + classificationRules + `

` + responseFormat

// formatQuestions renders extracted questions as the text-mode prompt body.
func formatQuestions(questions []exam.RawQuestion) string {
	var b strings.Builder
	for _, q := range questions {
		fmt.Fprintf(&b, "Q.%d: %s\n", q.Number, q.Text)
		if q.HasDiagram {
			b.WriteString("  [This question contains a diagram/figure]\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// paperHints appends the declared exam and subject, when known.
func paperHints(examType exam.Type, subject exam.Subject) string {
	var b strings.Builder
	if examType.Known() {
		fmt.Fprintf(&b, "\n\nNote: This is a %s pattern paper.", examType)
	}
	if subject.Known() {
		fmt.Fprintf(&b, "\nSubject: %s", subject)
	}
	return b.String()
}

func textMessages(questions []exam.RawQuestion, examType exam.Type, subject exam.Subject) []ai.Message {
	user := "Analyze this exam paper and classify each question:\n\n" + formatQuestions(questions) + paperHints(examType, subject)
	return []ai.Message{
		{Role: "system", Content: textSystemPrompt},
		{Role: "user", Content: user},
	}
}

func visionMessages(pages []exam.Page, examType exam.Type, subject exam.Subject) []ai.Message {
	urls := make([]string, len(pages))
	for i, p := range pages {
		urls[i] = "data:image/png;base64," + base64.StdEncoding.EncodeToString(p.PNG)
	}
	instruction := "Analyze this exam paper. Look at every page image above. Identify and classify each question." + paperHints(examType, subject)
	return []ai.Message{
		{Role: "system", Content: visionSystemPrompt},
		{Role: "user", Content: instruction, ImageURLs: urls},
	}
}
