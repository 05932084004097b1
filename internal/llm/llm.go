// Package llm provides language-model clients for quantity extraction and
// compliance reasoning.
//
// Two collaborator interfaces live here: Completer for text completion
// (Anthropic or OpenAI backends) and VisionClient for floor-plan Q&A against a
// vision-language API. Both are plain HTTP clients with rate limiting and
// retry; callers that can degrade gracefully treat errors as "no answer".
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Default configuration values.
const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-sonnet-20241022"
	defaultOpenAIBaseURL    = "https://api.openai.com"
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultMaxTokens        = 4096
	defaultTimeout          = 60 * time.Second
	defaultMaxRetries       = 3
	defaultBaseBackoff      = 1 * time.Second
)

// Rate limiter defaults: 50 requests per minute for both APIs.
const (
	defaultRateLimit = 50.0 / 60.0 // ~0.83 requests per second
	defaultBurst     = 5           // Allow bursts of up to 5 requests
)

// ErrUnknownProvider is returned by New for an unrecognized provider name.
var ErrUnknownProvider = errors.New("unknown llm provider")

// Completer generates a text completion for a system/user prompt pair.
type Completer interface {
	Complete(ctx context.Context, system, user string, temperature float64) (string, error)
}

// Config holds client configuration for a Completer.
type Config struct {
	// Provider selects the backend: "anthropic" or "openai".
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// New creates a Completer for the configured provider.
func New(cfg Config) (Completer, error) {
	switch cfg.Provider {
	case "anthropic":
		return newAnthropicClient(cfg)
	case "openai":
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// retryableError wraps an error to indicate it can be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryableError checks if an error should be retried.
func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
