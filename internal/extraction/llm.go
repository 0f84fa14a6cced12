package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cardlens/backend/internal/llm"
	"github.com/cardlens/backend/internal/model"
)

// extractionSystemPrompt instructs the model to return bare transaction JSON.
const extractionSystemPrompt = `You are a financial data extraction expert. You will be given the raw text of a credit card statement.

Extract every transaction and return ONLY a JSON array, no prose, no markdown. Each element must be an object with exactly these fields:
- "date": transaction date in YYYY-MM-DD format
- "merchant": the merchant or description text, cleaned of reference numbers
- "amount": a number. Positive for purchases and charges, negative for payments, refunds and credits
- "category": one of "Food", "Transport", "Shopping", "Utilities", "Entertainment", "Health", "Travel", "Other"

Rules:
- Do not invent transactions. Skip summary rows, opening balances and reward points.
- Interest charges, late fees and card fees are transactions; categorize them as "Other".
- If the statement year is missing from a date, infer it from the statement period.`

// DefaultExtractionModels is the rotation order when none is configured.
var DefaultExtractionModels = []string{
	"meta-llama/llama-4-maverick:free",
	"deepseek/deepseek-chat-v3-0324:free",
	"google/gemini-2.0-flash-exp:free",
	"qwen/qwen3-235b-a22b:free",
}

// rateLimitPause is how long the rotation waits after a 429 before trying
// the next model.
const rateLimitPause = 2 * time.Second

// LLMExtractor extracts transactions from statement text by rotating
// through hosted models until one returns parseable output.
type LLMExtractor struct {
	client llm.Client
	models []string
	logger *slog.Logger
	retry  RetryConfig
	pause  time.Duration
}

// NewLLMExtractor builds an extractor over the given provider client.
func NewLLMExtractor(client llm.Client, models []string, logger *slog.Logger) *LLMExtractor {
	if len(models) == 0 {
		models = DefaultExtractionModels
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMExtractor{
		client: client,
		models: models,
		logger: logger.With("component", "llm-extractor"),
		retry:  DefaultLLMRetryConfig,
		pause:  rateLimitPause,
	}
}

// wireTransaction is the model's output shape before validation.
type wireTransaction struct {
	Date     string  `json:"date"`
	Merchant string  `json:"merchant"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
}

// Extract runs the model rotation over the statement text. Each model gets
// two attempts; a rate-limited model pauses the rotation briefly and moves
// on to the next.
func (e *LLMExtractor) Extract(ctx context.Context, statementText string) ([]model.Transaction, error) {
	if len(statementText) > maxPromptChars {
		statementText = statementText[:maxPromptChars]
	}

	var lastErr error
	for _, modelName := range e.models {
		txs, err := WithRetry(ctx, e.retry, func(ctx context.Context) ([]model.Transaction, error) {
			return e.extractWithModel(ctx, modelName, statementText)
		})
		if err == nil {
			e.logger.Info("extraction succeeded", "model", modelName, "transactions", len(txs))
			return txs, nil
		}
		lastErr = err

		var rle *llm.RateLimitError
		if errors.As(err, &rle) {
			e.logger.Warn("model rate limited, rotating", "model", modelName)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.pause):
			}
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Warn("model failed, rotating", "model", modelName, "error", err)
	}

	var extErr *Error
	if errors.As(lastErr, &extErr) && extErr.Code == ErrNoTransactionsFound {
		return nil, extErr
	}
	return nil, newError(ErrAllModelsFailed,
		fmt.Sprintf("All models failed. Last error: %v", lastErr), "llm", true, lastErr)
}

func (e *LLMExtractor) extractWithModel(ctx context.Context, modelName, statementText string) ([]model.Transaction, error) {
	raw, err := e.client.Complete(ctx, llm.Request{
		Model:       modelName,
		System:      extractionSystemPrompt,
		Prompt:      statementText,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, err
	}

	cleaned := CleanModelJSON(raw)
	var wire []wireTransaction
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}
	if len(wire) == 0 {
		return nil, newError(ErrNoTransactionsFound, detailNoTransactions, "llm", false, nil)
	}

	txs := make([]model.Transaction, 0, len(wire))
	for _, w := range wire {
		txs = append(txs, model.Transaction{
			Date:     strings.TrimSpace(w.Date),
			Merchant: strings.TrimSpace(w.Merchant),
			Amount:   w.Amount,
			Category: model.ParseCategory(w.Category),
		})
	}
	return txs, nil
}

// CleanModelJSON strips markdown code fences, then slices from the first
// '[' to the last ']' so stray prose around the array is ignored.
func CleanModelJSON(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return text
}
