package insights

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardlens/backend/internal/extraction"
	"github.com/cardlens/backend/internal/llm"
	"github.com/cardlens/backend/internal/model"
)

type fakeClient struct {
	response string
	err      error
	prompts  []llm.Request
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.prompts = append(f.prompts, req)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGenerator(client llm.Client) *Generator {
	g := NewGenerator(client, "test-model", testLogger())
	g.retry = extraction.RetryConfig{MaxRetries: 0, BackoffFactor: 1.0}
	return g
}

func sampleTransactions() []model.Transaction {
	return []model.Transaction{
		{ID: "1", Date: "2024-01-05", Merchant: "Netflix", Amount: 15.99, Category: model.CategoryEntertainment},
		{ID: "2", Date: "2024-01-12", Merchant: "Woolworths", Amount: 120.40, Category: model.CategoryFood},
		{ID: "3", Date: "2024-01-20", Merchant: "Late Payment Fee", Amount: 30, Category: model.CategoryOther},
		{ID: "4", Date: "2024-01-25", Merchant: "Refund", Amount: -20, Category: model.CategoryOther},
	}
}

func TestBuildContext(t *testing.T) {
	ctx := BuildContext(sampleTransactions())

	assert.Contains(t, ctx, "2024-01-05 to 2024-01-25")
	assert.Contains(t, ctx, "Total spend: 166.39")
	assert.Contains(t, ctx, "Credits/refunds: 20.00")
	assert.Contains(t, ctx, "Food")
	assert.Contains(t, ctx, "Fees and charges: 30.00")
}

func TestNarrative(t *testing.T) {
	client := &fakeClient{response: "## Your January\n\nYou spent mostly on groceries."}
	g := newTestGenerator(client)

	got := g.Narrative(context.Background(), sampleTransactions())

	assert.Equal(t, "## Your January\n\nYou spent mostly on groceries.", got)
	require.Len(t, client.prompts, 1)
	assert.Equal(t, "test-model", client.prompts[0].Model)
	assert.Contains(t, client.prompts[0].Prompt, "Total spend: 166.39")
}

func TestNarrativeFallbackOnError(t *testing.T) {
	g := newTestGenerator(&fakeClient{err: errors.New("upstream down")})

	got := g.Narrative(context.Background(), sampleTransactions())
	assert.Equal(t, FallbackMarkdown, got)
}

func TestNarrativeFallbackOnEmptyResponse(t *testing.T) {
	g := newTestGenerator(&fakeClient{response: "   \n"})

	got := g.Narrative(context.Background(), sampleTransactions())
	assert.Equal(t, FallbackMarkdown, got)
}

func TestNarrativeNoClient(t *testing.T) {
	g := newTestGenerator(nil)

	got := g.Narrative(context.Background(), sampleTransactions())
	assert.Equal(t, FallbackMarkdown, got)
}

func TestNarrativeNoTransactions(t *testing.T) {
	client := &fakeClient{response: "should not be called"}
	g := newTestGenerator(client)

	got := g.Narrative(context.Background(), nil)
	assert.Equal(t, FallbackMarkdown, got)
	assert.Empty(t, client.prompts)
}

func TestChatIncludesHistoryAndQuestion(t *testing.T) {
	client := &fakeClient{response: "You spent **15.99** on Netflix."}
	g := newTestGenerator(client)

	history := []ChatMessage{
		{Role: "user", Content: "What did I spend the most on?"},
		{Role: "assistant", Content: "Groceries at Woolworths."},
	}
	got := g.Chat(context.Background(), sampleTransactions(), "And on streaming?", history)

	assert.Equal(t, "You spent **15.99** on Netflix.", got)
	require.Len(t, client.prompts, 1)
	prompt := client.prompts[0].Prompt
	assert.Contains(t, prompt, "Assistant: Groceries at Woolworths.")
	assert.Contains(t, prompt, "User: And on streaming?")
}

func TestChatEmptyMessage(t *testing.T) {
	client := &fakeClient{response: "unused"}
	g := newTestGenerator(client)

	got := g.Chat(context.Background(), sampleTransactions(), "  ", nil)
	assert.Equal(t, FallbackMarkdown, got)
	assert.Empty(t, client.prompts)
}

func TestChatTruncatesHistory(t *testing.T) {
	client := &fakeClient{response: "ok"}
	g := newTestGenerator(client)

	var history []ChatMessage
	for i := 0; i < 20; i++ {
		history = append(history, ChatMessage{Role: "user", Content: "old question"})
	}
	history[len(history)-1].Content = "newest question"

	g.Chat(context.Background(), sampleTransactions(), "hi", history)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0].Prompt, "newest question")
}
