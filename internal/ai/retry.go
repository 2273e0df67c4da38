package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy bounds the attempts made for one completion.
type RetryPolicy struct {
	MaxRetries     int           // attempts after the first
	Delay          time.Duration // fixed wait between attempts
	AttemptTimeout time.Duration // per-attempt deadline, 0 for none
}

// Retrier retries transient completion failures with a fixed delay.
type Retrier struct {
	next     Completer
	policy   RetryPolicy
	policies map[TaskType]RetryPolicy
}

// RetrierOption configures a Retrier.
type RetrierOption func(*Retrier)

// WithTaskPolicy overrides the policy for one task type.
func WithTaskPolicy(task TaskType, p RetryPolicy) RetrierOption {
	return func(r *Retrier) {
		r.policies[task] = p
	}
}

// NewRetrier wraps next with the default policy.
func NewRetrier(next Completer, policy RetryPolicy, opts ...RetrierOption) *Retrier {
	r := &Retrier{
		next:     next,
		policy:   policy,
		policies: make(map[TaskType]RetryPolicy),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retrier) policyFor(task TaskType) RetryPolicy {
	if p, ok := r.policies[task]; ok {
		return p
	}
	return r.policy
}

// Complete calls the wrapped Completer up to MaxRetries+1 times. Non-transient
// errors are returned at once; the last transient error is returned when the
// budget runs out.
func (r *Retrier) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	policy := r.policyFor(req.Task)

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return CompletionResponse{}, fmt.Errorf("retry wait: %w", ctx.Err())
			case <-time.After(policy.Delay):
			}
		}

		resp, err := r.attempt(ctx, policy, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) {
			return CompletionResponse{}, err
		}
		slog.Warn("AI completion failed, retrying",
			"task", req.Task.String(),
			"model", req.Model,
			"attempt", attempt+1,
			"max_attempts", policy.MaxRetries+1,
			"error", err,
		)
	}

	return CompletionResponse{}, fmt.Errorf("giving up after %d attempts: %w", policy.MaxRetries+1, lastErr)
}

func (r *Retrier) attempt(ctx context.Context, policy RetryPolicy, req CompletionRequest) (CompletionResponse, error) {
	if policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.AttemptTimeout)
		defer cancel()
	}
	return r.next.Complete(ctx, req)
}
