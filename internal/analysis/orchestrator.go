// Package analysis splits a paper into classifier-sized chunks, classifies
// them one by one, and reconciles the answers into a single question list.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/p-n-ai/exam-analyzer/internal/ai"
	"github.com/p-n-ai/exam-analyzer/internal/exam"
)

// Config tunes chunk sizes and completion parameters.
type Config struct {
	MaxChunkChars   int
	PagesPerChunk   int
	TextMaxTokens   int
	VisionMaxTokens int
	Temperature     float64 // negative selects the default; zero is sent as-is
}

// DefaultConfig returns the production chunking and completion settings.
func DefaultConfig() Config {
	return Config{
		MaxChunkChars:   DefaultMaxChunkChars,
		PagesPerChunk:   DefaultPagesPerChunk,
		TextMaxTokens:   8000,
		VisionMaxTokens: 16000,
		Temperature:     0.1,
	}
}

// Input is either extracted questions (text mode) or rendered pages
// (image mode). Pages take precedence when both are set.
type Input struct {
	Questions []exam.RawQuestion
	Pages     []exam.Page

	// OnChunk, if set, is called before each chunk is sent with the
	// 1-based chunk index and the chunk count.
	OnChunk func(chunk, total int)
}

// Vision reports whether the input is classified from page images.
func (in Input) Vision() bool {
	return len(in.Pages) > 0
}

// Result is the reconciled analysis of one paper.
type Result struct {
	ExamType        exam.Type
	Questions       []exam.Question
	ModelUsed       string
	ProcessingTime  time.Duration
	ChunksProcessed int
}

// Orchestrator drives chunked classification against a Completer.
type Orchestrator struct {
	classifier ai.Completer
	cfg        Config
}

// NewOrchestrator creates an Orchestrator. Zero-valued sizes and token
// limits, and a negative temperature, fall back to DefaultConfig.
func NewOrchestrator(classifier ai.Completer, cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = def.MaxChunkChars
	}
	if cfg.PagesPerChunk <= 0 {
		cfg.PagesPerChunk = def.PagesPerChunk
	}
	if cfg.TextMaxTokens <= 0 {
		cfg.TextMaxTokens = def.TextMaxTokens
	}
	if cfg.VisionMaxTokens <= 0 {
		cfg.VisionMaxTokens = def.VisionMaxTokens
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = def.Temperature
	}
	return &Orchestrator{classifier: classifier, cfg: cfg}
}

// chunkRequest is one prepared classifier call.
type chunkRequest struct {
	messages  []ai.Message
	maxTokens int
	task      ai.TaskType
}

func (o *Orchestrator) plan(in Input, examType exam.Type, subject exam.Subject) []chunkRequest {
	var reqs []chunkRequest
	if in.Vision() {
		for _, pages := range chunkByCount(in.Pages, o.cfg.PagesPerChunk) {
			reqs = append(reqs, chunkRequest{
				messages:  visionMessages(pages, examType, subject),
				maxTokens: o.cfg.VisionMaxTokens,
				task:      ai.TaskVisionClassification,
			})
		}
		return reqs
	}

	for _, questions := range chunkBySize(in.Questions, o.cfg.MaxChunkChars, questionSize) {
		reqs = append(reqs, chunkRequest{
			messages:  textMessages(questions, examType, subject),
			maxTokens: o.cfg.TextMaxTokens,
			task:      ai.TaskTextClassification,
		})
	}
	return reqs
}

// Analyze classifies the input chunk by chunk, strictly in order, and merges
// the answers. A declared exam type is kept; otherwise the first chunk that
// reports a known exam decides it. With more than one chunk the merged
// questions are renumbered from 1. Any chunk failure aborts the analysis.
func (o *Orchestrator) Analyze(ctx context.Context, in Input, model string, declaredExam exam.Type, declaredSubject exam.Subject) (*Result, error) {
	chunks := o.plan(in, declaredExam, declaredSubject)
	if len(chunks) == 0 {
		return nil, ErrNoInput
	}

	mode := "text"
	if in.Vision() {
		mode = "vision"
	}
	slog.Info("analysis started",
		"mode", mode,
		"model", model,
		"chunks", len(chunks),
		"exam", declaredExam,
		"subject", declaredSubject,
	)

	detected := declaredExam
	if !detected.Known() {
		detected = exam.Unknown
	}

	var (
		questions []exam.Question
		elapsed   time.Duration
	)
	for i, c := range chunks {
		if in.OnChunk != nil {
			in.OnChunk(i+1, len(chunks))
		}

		start := time.Now()
		temp := o.cfg.Temperature
		resp, err := o.classifier.Complete(ctx, ai.CompletionRequest{
			Messages:    c.messages,
			Model:       model,
			MaxTokens:   c.maxTokens,
			Temperature: &temp,
			Task:        c.task,
		})
		took := time.Since(start)
		elapsed += took
		if err != nil {
			return nil, fmt.Errorf("classify chunk %d/%d: %w", i+1, len(chunks), err)
		}

		parsed, err := Parse(resp.Content)
		if err != nil {
			return nil, fmt.Errorf("parse chunk %d/%d: %w", i+1, len(chunks), err)
		}

		if !detected.Known() && parsed.ExamType.Known() {
			detected = parsed.ExamType
		}
		questions = append(questions, parsed.Questions...)

		slog.Info("chunk classified",
			"chunk", i+1,
			"total", len(chunks),
			"questions", len(parsed.Questions),
			"duration", took,
		)
	}

	if len(chunks) > 1 {
		renumber(questions)
	}

	return &Result{
		ExamType:        detected,
		Questions:       questions,
		ModelUsed:       model,
		ProcessingTime:  elapsed,
		ChunksProcessed: len(chunks),
	}, nil
}
