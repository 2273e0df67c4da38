package ai

import (
	"context"
	"net/http"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is used when an analysis request names no model.
	DefaultModel = "google/gemini-2.5-flash"
)

// OpenRouterProvider implements Provider for OpenRouter.
// OpenRouter uses an OpenAI-compatible API with extra HTTP headers.
type OpenRouterProvider struct {
	apiKey  string
	baseURL string
	referer string
	title   string
	client  *http.Client
	models  []ModelInfo
}

// OpenRouterOption configures an OpenRouterProvider.
type OpenRouterOption func(*OpenRouterProvider)

// WithOpenRouterBaseURL sets the base URL (for testing).
func WithOpenRouterBaseURL(url string) OpenRouterOption {
	return func(p *OpenRouterProvider) {
		p.baseURL = url
	}
}

// WithOpenRouterHTTPClient sets a custom HTTP client.
func WithOpenRouterHTTPClient(client *http.Client) OpenRouterOption {
	return func(p *OpenRouterProvider) {
		p.client = client
	}
}

// WithOpenRouterReferer sets the HTTP-Referer attribution header.
func WithOpenRouterReferer(referer string) OpenRouterOption {
	return func(p *OpenRouterProvider) {
		p.referer = referer
	}
}

// NewOpenRouterProvider creates a new OpenRouter provider.
func NewOpenRouterProvider(apiKey string, opts ...OpenRouterOption) *OpenRouterProvider {
	p := &OpenRouterProvider{
		apiKey:  apiKey,
		baseURL: defaultOpenRouterBaseURL,
		referer: "https://exam-analyzer.local",
		title:   "Exam Analyzer",
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenRouterProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	return chatCompletion(ctx, p.client, "openrouter", p.baseURL+"/chat/completions",
		map[string]string{
			"Authorization": "Bearer " + p.apiKey,
			"HTTP-Referer":  p.referer,
			"X-Title":       p.title,
		},
		newOpenAIRequest(model, req),
	)
}

func (p *OpenRouterProvider) Models() []ModelInfo {
	if p.models != nil {
		return p.models
	}
	return []ModelInfo{
		{ID: "anthropic/claude-sonnet-4", Name: "Claude Sonnet 4", Provider: "Anthropic", SupportsVision: true},
		{ID: "anthropic/claude-opus-4", Name: "Claude Opus 4", Provider: "Anthropic", SupportsVision: true},
		{ID: "google/gemini-2.5-pro", Name: "Gemini 2.5 Pro", Provider: "Google", SupportsVision: true},
		{ID: DefaultModel, Name: "Gemini 2.5 Flash", Provider: "Google", SupportsVision: true},
		{ID: "openai/gpt-4o", Name: "GPT-4o", Provider: "OpenAI", SupportsVision: true},
		{ID: "openai/o3-mini", Name: "o3-mini", Provider: "OpenAI", SupportsVision: false},
		{ID: "deepseek/deepseek-r1", Name: "DeepSeek R1", Provider: "DeepSeek", SupportsVision: false},
	}
}

func (p *OpenRouterProvider) HealthCheck(ctx context.Context) error {
	return checkModelsEndpoint(ctx, p.client, p.baseURL, p.apiKey)
}
