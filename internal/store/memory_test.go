package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardlens/backend/internal/model"
)

func newTestSession(t *testing.T, s Store, label string) *model.Session {
	t.Helper()
	session := &model.Session{Label: label}
	require.NoError(t, s.CreateSession(context.Background(), session))
	require.NotEmpty(t, session.ID)
	return session
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	session := newTestSession(t, s, "January statement")
	assert.False(t, session.CreatedAt.IsZero())

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "January statement", got.Label)

	got.Label = "Jan 2024"
	require.NoError(t, s.UpdateSession(ctx, got))

	got, err = s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jan 2024", got.Label)

	require.NoError(t, s.DeleteSession(ctx, session.ID))

	_, err = s.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.UpdateSession(ctx, &model.Session{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.DeleteSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.ReplaceTransactions(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = s.ListTransactions(ctx, "missing", TransactionFilter{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplaceTransactionsSortsAndCounts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	session := newTestSession(t, s, "test")

	txs := []model.Transaction{
		{ID: "b", Date: "2024-02-10", Merchant: "Woolworths", Amount: 84.20, Category: model.CategoryFood},
		{ID: "a", Date: "2024-01-05", Merchant: "Netflix", Amount: 15.99, Category: model.CategoryEntertainment},
	}
	require.NoError(t, s.ReplaceTransactions(ctx, session.ID, txs))

	got, _, err := s.ListTransactions(ctx, session.ID, TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-05", got[0].Date)
	assert.Equal(t, "2024-02-10", got[1].Date)

	updated, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.TxCount)

	// Replacing again swaps the whole set.
	require.NoError(t, s.ReplaceTransactions(ctx, session.ID, txs[:1]))
	got, _, err = s.ListTransactions(ctx, session.ID, TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestListTransactionsFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	session := newTestSession(t, s, "test")

	require.NoError(t, s.ReplaceTransactions(ctx, session.ID, []model.Transaction{
		{ID: "t1", Date: "2024-01-05", Merchant: "Netflix", Amount: 15.99, Category: model.CategoryEntertainment},
		{ID: "t2", Date: "2024-01-20", Merchant: "Woolworths", Amount: 84.20, Category: model.CategoryFood},
		{ID: "t3", Date: "2024-02-02", Merchant: "Uber", Amount: 23.50, Category: model.CategoryTransport},
	}))

	got, _, err := s.ListTransactions(ctx, session.ID, TransactionFilter{StartDate: "2024-01-10"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t2", got[0].ID)

	got, _, err = s.ListTransactions(ctx, session.ID, TransactionFilter{EndDate: "2024-01-31"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, _, err = s.ListTransactions(ctx, session.ID, TransactionFilter{Category: model.CategoryTransport})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Uber", got[0].Merchant)
}

func TestListTransactionsPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	session := newTestSession(t, s, "test")

	var txs []model.Transaction
	for i := 0; i < 5; i++ {
		txs = append(txs, model.Transaction{
			ID:       fmt.Sprintf("t%d", i),
			Date:     fmt.Sprintf("2024-01-%02d", i+1),
			Merchant: "Shop",
			Amount:   10,
			Category: model.CategoryShopping,
		})
	}
	require.NoError(t, s.ReplaceTransactions(ctx, session.ID, txs))

	var seen []string
	token := ""
	pages := 0
	for {
		page, next, err := s.ListTransactions(ctx, session.ID, TransactionFilter{PageSize: 2, PageToken: token})
		require.NoError(t, err)
		for _, tx := range page {
			seen = append(seen, tx.ID)
		}
		pages++
		if next == "" {
			break
		}
		token = next
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, []string{"t0", "t1", "t2", "t3", "t4"}, seen)
}

func TestListTransactionsBadPageToken(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	session := newTestSession(t, s, "test")

	_, _, err := s.ListTransactions(ctx, session.ID, TransactionFilter{PageSize: 2, PageToken: "%%%not-base64%%%"})
	assert.Error(t, err)
}

func TestListTransactionsUnknownCursor(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	session := newTestSession(t, s, "test")
	require.NoError(t, s.ReplaceTransactions(ctx, session.ID, []model.Transaction{
		{ID: "t0", Date: "2024-01-01", Merchant: "Cafe", Amount: 5, Category: model.CategoryFood},
		{ID: "t1", Date: "2024-01-02", Merchant: "Cafe", Amount: 5, Category: model.CategoryFood},
	}))

	// A well-formed token pointing at a transaction that no longer exists
	// must not silently re-serve the first page.
	_, _, err := s.ListTransactions(ctx, session.ID, TransactionFilter{
		PageSize:  1,
		PageToken: EncodePageToken("missing"),
	})
	assert.Error(t, err)
}

func TestListSessionsPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for i := 0; i < 5; i++ {
		newTestSession(t, s, fmt.Sprintf("session %d", i))
	}

	first, token, err := s.ListSessions(ctx, 3, "")
	require.NoError(t, err)
	assert.Len(t, first, 3)
	require.NotEmpty(t, token)

	rest, token, err := s.ListSessions(ctx, 3, token)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
	assert.Empty(t, token)

	ids := make(map[string]bool)
	for _, sess := range append(first, rest...) {
		ids[sess.ID] = true
	}
	assert.Len(t, ids, 5)
}

func TestPageTokenRoundTrip(t *testing.T) {
	token := EncodePageToken("abc-123")
	require.NotEmpty(t, token)

	id, err := DecodePageToken(token)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)

	id, err = DecodePageToken("")
	require.NoError(t, err)
	assert.Empty(t, id)
}
