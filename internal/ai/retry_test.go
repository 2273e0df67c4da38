package ai_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/p-n-ai/exam-analyzer/internal/ai"
)

func fastPolicy() ai.RetryPolicy {
	return ai.RetryPolicy{MaxRetries: 2, Delay: time.Millisecond}
}

func TestRetrier_RetriesTransientErrors(t *testing.T) {
	mock := ai.NewMockProvider("ok")
	mock.Errs = []error{
		&ai.APIError{Provider: "openrouter", StatusCode: 500},
		&ai.APIError{Provider: "openrouter", StatusCode: 429},
	}

	resp, err := ai.NewRetrier(mock, fastPolicy()).Complete(context.Background(), ai.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want ok", resp.Content)
	}
	if got := len(mock.Requests()); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestRetrier_ExhaustsBudget(t *testing.T) {
	apiErr := &ai.APIError{Provider: "openrouter", StatusCode: 503}
	mock := &ai.MockProvider{Err: apiErr}

	_, err := ai.NewRetrier(mock, fastPolicy()).Complete(context.Background(), ai.CompletionRequest{})
	if !errors.Is(err, apiErr) {
		t.Fatalf("Complete() error = %v, want wrapped APIError", err)
	}
	if got := len(mock.Requests()); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestRetrier_DoesNotRetryPermanentErrors(t *testing.T) {
	mock := &ai.MockProvider{Err: errors.New("unmarshal response: bad json")}

	_, err := ai.NewRetrier(mock, fastPolicy()).Complete(context.Background(), ai.CompletionRequest{})
	if err == nil {
		t.Fatal("Complete() should fail")
	}
	if got := len(mock.Requests()); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestRetrier_TaskPolicy(t *testing.T) {
	mock := &ai.MockProvider{Err: &ai.APIError{StatusCode: 500}}
	r := ai.NewRetrier(mock, fastPolicy(),
		ai.WithTaskPolicy(ai.TaskVisionClassification, ai.RetryPolicy{MaxRetries: 0}),
	)

	r.Complete(context.Background(), ai.CompletionRequest{Task: ai.TaskVisionClassification})
	if got := len(mock.Requests()); got != 1 {
		t.Errorf("vision attempts = %d, want 1", got)
	}
}

func TestRetrier_AttemptTimeout(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"late but fine"}}]}`))
	}))
	defer server.Close()

	provider := ai.NewOpenRouterProvider("key", ai.WithOpenRouterBaseURL(server.URL))
	r := ai.NewRetrier(provider, ai.RetryPolicy{MaxRetries: 1, Delay: time.Millisecond, AttemptTimeout: 100 * time.Millisecond})

	resp, err := r.Complete(context.Background(), ai.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "late but fine" {
		t.Errorf("Content = %q", resp.Content)
	}
}

func TestRetrier_ContextCancelledDuringWait(t *testing.T) {
	mock := &ai.MockProvider{Err: &ai.APIError{StatusCode: 500}}
	r := ai.NewRetrier(mock, ai.RetryPolicy{MaxRetries: 2, Delay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Complete(ctx, ai.CompletionRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Complete() error = %v, want deadline exceeded", err)
	}
	if got := len(mock.Requests()); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"api error", &ai.APIError{StatusCode: 500}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("no choices in response"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ai.IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}
