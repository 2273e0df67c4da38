// Package ai provides a provider-agnostic gateway to chat-completion models
// used to classify exam questions.
package ai

import (
	"context"
	"time"
)

// TaskType defines the kind of AI task. Retry and timeout policy is chosen
// per task.
type TaskType int

const (
	TaskTextClassification TaskType = iota
	TaskVisionClassification
)

func (t TaskType) String() string {
	switch t {
	case TaskTextClassification:
		return "text_classification"
	case TaskVisionClassification:
		return "vision_classification"
	default:
		return "unknown"
	}
}

// Message represents a chat message. ImageURLs are sent ahead of Content as
// image parts; data URLs are allowed.
type Message struct {
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	ImageURLs []string `json:"image_urls,omitempty"`
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"` // nil leaves the provider default
	Task        TaskType  `json:"task,omitempty"`
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content      string        `json:"content"`
	Model        string        `json:"model"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Latency      time.Duration `json:"latency"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// ModelInfo describes an available model.
type ModelInfo struct {
	ID             string `json:"model_id"`
	Name           string `json:"display_name"`
	Provider       string `json:"provider"`
	SupportsVision bool   `json:"supports_vision"`
}

// Completer runs a single chat completion.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Provider is the interface all AI providers must implement.
type Provider interface {
	Completer
	Models() []ModelInfo
	HealthCheck(ctx context.Context) error
}
