// Package store persists analysis sessions and their transactions behind a
// common interface with in-memory, SQLite and Firestore backends.
package store

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/cardlens/backend/internal/model"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("not found")

// TransactionFilter narrows ListTransactions results. Zero values mean no
// constraint. Dates are inclusive YYYY-MM-DD bounds.
type TransactionFilter struct {
	StartDate string
	EndDate   string
	Category  model.Category
	PageSize  int
	PageToken string
}

// Store defines persistence operations for sessions and transactions.
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	UpdateSession(ctx context.Context, session *model.Session) error
	DeleteSession(ctx context.Context, sessionID string) error
	ListSessions(ctx context.Context, pageSize int, pageToken string) ([]*model.Session, string, error)

	// Transaction operations. ReplaceTransactions swaps a session's entire
	// transaction set atomically; re-analyzing a statement is idempotent.
	ReplaceTransactions(ctx context.Context, sessionID string, txs []model.Transaction) error
	ListTransactions(ctx context.Context, sessionID string, filter TransactionFilter) ([]model.Transaction, string, error)

	Close() error
}

// EncodePageToken encodes a record ID into a page token.
func EncodePageToken(id string) string {
	if id == "" {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte(id))
}

// DecodePageToken decodes a page token back to a record ID.
func DecodePageToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
