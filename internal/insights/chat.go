package insights

import (
	"context"
	"strings"

	"github.com/cardlens/backend/internal/model"
)

const chatSystemPrompt = `You are a helpful personal finance assistant answering questions about a credit card statement.
Answer in Markdown, grounded only in the statement statistics provided. Keep answers short and specific.
If the question cannot be answered from the statistics, say so instead of guessing.`

// maxHistoryTurns bounds how much prior conversation is replayed.
const maxHistoryTurns = 12

// ChatMessage is one turn of a conversation. Role is "user" or "assistant".
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat answers a follow-up question about txs, replaying recent history for
// continuity. Like Narrative, it falls back rather than failing.
func (g *Generator) Chat(ctx context.Context, txs []model.Transaction, message string, history []ChatMessage) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return FallbackMarkdown
	}

	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	var b strings.Builder
	b.WriteString("Statement statistics:\n\n")
	b.WriteString(BuildContext(txs))
	b.WriteString("\n")
	if h := formatHistory(history); h != "" {
		b.WriteString(h)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(message)

	return g.complete(ctx, chatSystemPrompt, b.String())
}
