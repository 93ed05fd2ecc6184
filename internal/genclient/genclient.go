// Package genclient wraps an eino ChatModel as the rag.Generator used by the
// orchestrator. It enforces a per-request timeout, classifies provider
// failures into stable reason codes, and retries transient upstream failures
// once before surfacing the error.
package genclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/ctxgen/ragserve-go/internal/budget"
	"github.com/ctxgen/ragserve-go/internal/rag"
)

// DefaultTimeout is the per-request generation deadline when none is configured.
const DefaultTimeout = 60 * time.Second

// RetryPolicy controls transparent retries inside Complete. The zero value
// disables retries entirely.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// InitialInterval is the first backoff delay between attempts.
	InitialInterval time.Duration

	// Retryable reports whether an attempt failing with err should be
	// retried. Nil selects the default: retry upstream failures only.
	Retryable func(err error) bool
}

// DefaultRetryPolicy retries once, after a short delay, on transient
// upstream failures. Timeouts, rate limits, and invalid requests surface
// immediately — retrying them either cannot help or makes things worse.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     2,
		InitialInterval: 500 * time.Millisecond,
	}
}

// Client implements rag.Generator on top of an eino ChatModel.
// Safe for concurrent use.
type Client struct {
	// chat is the backing model.
	chat model.BaseChatModel

	// timeout is the per-request deadline applied to every Complete call.
	timeout time.Duration

	// retry controls transparent retries of transient failures.
	retry RetryPolicy
}

// New constructs a generation client. timeout <= 0 selects DefaultTimeout.
func New(chat model.BaseChatModel, timeout time.Duration, retry RetryPolicy) (*Client, error) {
	if chat == nil {
		return nil, fmt.Errorf("genclient: chat model must not be nil")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Client{chat: chat, timeout: timeout, retry: retry}, nil
}

// Complete sends the prompt to the model and returns the generation. The
// call runs under the client timeout; failures come back as GenerationError
// with a reason code. Transient upstream failures are retried per the
// client's RetryPolicy before the error surfaces.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (rag.Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msgs := []*schema.Message{schema.UserMessage(prompt)}
	opts := []model.Option{
		model.WithMaxTokens(maxTokens),
		model.WithTemperature(temperature),
	}

	retryable := c.retry.Retryable
	if retryable == nil {
		retryable = func(err error) bool {
			return rag.GenerationReason(err) == rag.ReasonUpstreamFailure
		}
	}

	var resp *schema.Message
	attempt := func() error {
		var err error
		resp, err = c.chat.Generate(ctx, msgs, opts...)
		if err == nil {
			return nil
		}
		classified := classify(err)
		if !retryable(classified) {
			return backoff.Permanent(classified)
		}
		return classified
	}

	bo := backoff.NewExponentialBackOff()
	if c.retry.InitialInterval > 0 {
		bo.InitialInterval = c.retry.InitialInterval
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(c.retry.MaxAttempts-1)),
		ctx,
	)

	if err := backoff.Retry(attempt, policy); err != nil {
		var ge *rag.GenerationError
		if errors.As(err, &ge) {
			return rag.Generation{}, ge
		}
		return rag.Generation{}, classify(err)
	}

	text := resp.Content
	tokens := 0
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		tokens = resp.ResponseMeta.Usage.TotalTokens
	}
	if tokens == 0 {
		// Provider reported no usage; estimate so token accounting stays useful.
		tokens = budget.Estimate(prompt) + budget.Estimate(text)
	}

	return rag.Generation{Text: text, TokensUsed: tokens}, nil
}

// classify converts a raw model error into a GenerationError with a stable
// reason code. Classification is by error chain first, message shape second:
// provider SDKs rarely expose typed errors for HTTP status conditions.
func classify(err error) *rag.GenerationError {
	var ge *rag.GenerationError
	if errors.As(err, &ge) {
		return ge
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return rag.Generationf(rag.ReasonTimeout, err, "model call exceeded deadline")
	}
	if errors.Is(err, context.Canceled) {
		return rag.Generationf(rag.ReasonTimeout, err, "model call cancelled")
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "quota"):
		return rag.Generationf(rag.ReasonRateLimited, err, "provider rejected request for quota")
	case strings.Contains(msg, "400") || strings.Contains(msg, "invalid request") || strings.Contains(msg, "context length") || strings.Contains(msg, "maximum context"):
		return rag.Generationf(rag.ReasonInvalidRequest, err, "provider rejected request shape")
	default:
		return rag.Generationf(rag.ReasonUpstreamFailure, err, "model call failed")
	}
}
