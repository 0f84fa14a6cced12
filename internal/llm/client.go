// Package llm provides thin chat-completion clients for the hosted model
// providers the analyzer talks to. All providers expose the same Client
// interface so callers can rotate between them.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Request is a single-turn completion request.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Client is a chat-completion backend.
type Client interface {
	// Name identifies the provider, e.g. "openrouter".
	Name() string
	// Complete returns the model's text response.
	Complete(ctx context.Context, req Request) (string, error)
}

// RateLimitError signals an HTTP 429 from a provider. Callers typically
// rotate to the next model rather than retrying the same one.
type RateLimitError struct {
	Provider string
	Model    string
	Cause    error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: model %s rate limited: %v", e.Provider, e.Model, e.Cause)
}

func (e *RateLimitError) Unwrap() error {
	return e.Cause
}

// Provider names accepted by New.
const (
	ProviderOpenRouter = "openrouter"
	ProviderGroq       = "groq"
	ProviderGemini     = "gemini"
)

// New builds a client for the named provider.
func New(provider, apiKey string) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderOpenRouter:
		return NewOpenRouter(apiKey), nil
	case ProviderGroq:
		return NewGroq(apiKey), nil
	case ProviderGemini:
		return NewGemini(apiKey), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}
