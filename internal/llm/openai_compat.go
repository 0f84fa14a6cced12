package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	groqBaseURL       = "https://api.groq.com/openai/v1"

	completionTimeout = 90 * time.Second
)

// openAICompatClient talks to any OpenAI-compatible chat completion API.
type openAICompatClient struct {
	name   string
	client *openai.Client
}

// NewOpenRouter returns a client for the OpenRouter aggregator.
func NewOpenRouter(apiKey string) Client {
	return newOpenAICompat(ProviderOpenRouter, apiKey, openRouterBaseURL)
}

// NewGroq returns a client for the Groq API.
func NewGroq(apiKey string) Client {
	return newOpenAICompat(ProviderGroq, apiKey, groqBaseURL)
}

func newOpenAICompat(name, apiKey, baseURL string) Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: completionTimeout}
	return &openAICompatClient{name: name, client: openai.NewClientWithConfig(cfg)}
}

func (c *openAICompatClient) Name() string {
	return c.name
}

func (c *openAICompatClient) Complete(ctx context.Context, req Request) (string, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return "", &RateLimitError{Provider: c.name, Model: req.Model, Cause: err}
		}
		return "", fmt.Errorf("%s completion: %w", c.name, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: empty completion response", c.name)
	}
	return resp.Choices[0].Message.Content, nil
}
