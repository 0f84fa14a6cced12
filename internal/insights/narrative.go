package insights

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cardlens/backend/internal/extraction"
	"github.com/cardlens/backend/internal/llm"
	"github.com/cardlens/backend/internal/model"
)

// FallbackMarkdown is returned whenever the model cannot produce a result.
// Callers serve it with HTTP 200; an LLM outage is not the user's problem.
const FallbackMarkdown = "## Analysis Failed\n\n" +
	"We couldn't generate insights for this statement right now. " +
	"Your transactions and analytics are unaffected. Please try again in a few minutes."

const narrativeSystemPrompt = `You are a personal finance analyst reviewing a credit card statement.
Write a concise "financial story" in Markdown for the cardholder based only on the statistics provided.
Structure it as: a one-paragraph overview, then short sections on spending patterns, subscriptions and recurring charges, and fees or anything unusual.
Be specific with numbers from the context. Do not invent transactions or figures.
Do not include any preamble before the first heading.`

// Generator produces narrative insights from a transaction set.
type Generator struct {
	client llm.Client
	model  string
	logger *slog.Logger
	retry  extraction.RetryConfig
}

// NewGenerator wires a generator to a provider client. The model name is
// provider-specific; an empty client disables generation and every call
// returns the fallback.
func NewGenerator(client llm.Client, modelName string, logger *slog.Logger) *Generator {
	return &Generator{
		client: client,
		model:  modelName,
		logger: logger.With("component", "insights"),
		retry:  extraction.DefaultLLMRetryConfig,
	}
}

// Narrative generates the financial story for txs. It never returns an
// error: failures are logged and collapse to FallbackMarkdown.
func (g *Generator) Narrative(ctx context.Context, txs []model.Transaction) string {
	if len(txs) == 0 {
		return FallbackMarkdown
	}

	prompt := "Statement statistics:\n\n" + BuildContext(txs) +
		"\nWrite the financial story now."

	return g.complete(ctx, narrativeSystemPrompt, prompt)
}

func (g *Generator) complete(ctx context.Context, system, prompt string) string {
	if g.client == nil {
		return FallbackMarkdown
	}

	text, err := extraction.WithRetry(ctx, g.retry, func(ctx context.Context) (string, error) {
		return g.client.Complete(ctx, llm.Request{
			Model:       g.model,
			System:      system,
			Prompt:      prompt,
			Temperature: 0.4,
			MaxTokens:   1200,
		})
	})
	if err != nil {
		g.logger.Warn("insight generation failed",
			"provider", g.client.Name(), "model", g.model, "error", err)
		return FallbackMarkdown
	}

	text = strings.TrimSpace(text)
	if text == "" {
		g.logger.Warn("insight generation returned empty response",
			"provider", g.client.Name(), "model", g.model)
		return FallbackMarkdown
	}
	return text
}

func formatHistory(history []ChatMessage) string {
	if len(history) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, msg := range history {
		role := "User"
		if strings.EqualFold(msg.Role, "assistant") {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, msg.Content)
	}
	return b.String()
}
