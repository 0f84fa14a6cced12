package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cardlens/backend/internal/model"
)

// MemoryStore implements Store with in-memory maps. It backs local
// development and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]*model.Session
	transactions map[string][]model.Transaction // keyed by session ID
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[string]*model.Session),
		transactions: make(map[string][]model.Transaction),
	}
}

func (m *MemoryStore) CreateSession(ctx context.Context, session *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *session
	return &cp, nil
}

func (m *MemoryStore) UpdateSession(ctx context.Context, session *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[session.ID]; !ok {
		return ErrNotFound
	}
	session.UpdatedAt = time.Now().UTC()
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, sessionID)
	delete(m.transactions, sessionID)
	return nil
}

func (m *MemoryStore) ListSessions(ctx context.Context, pageSize int, pageToken string) ([]*model.Session, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}

	pageIDs, nextToken, err := paginateIDs(ids, pageSize, pageToken)
	if err != nil {
		return nil, "", err
	}

	sessions := make([]*model.Session, 0, len(pageIDs))
	for _, id := range pageIDs {
		cp := *m.sessions[id]
		sessions = append(sessions, &cp)
	}
	return sessions, nextToken, nil
}

func (m *MemoryStore) ReplaceTransactions(ctx context.Context, sessionID string, txs []model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}

	cp := append([]model.Transaction(nil), txs...)
	model.SortByDate(cp)
	m.transactions[sessionID] = cp
	session.TxCount = len(cp)
	session.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) ListTransactions(ctx context.Context, sessionID string, filter TransactionFilter) ([]model.Transaction, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return nil, "", ErrNotFound
	}

	var matched []model.Transaction
	for _, tx := range m.transactions[sessionID] {
		if matchesFilter(tx, filter) {
			matched = append(matched, tx)
		}
	}
	return paginateTransactions(matched, filter.PageSize, filter.PageToken)
}

func (m *MemoryStore) Close() error {
	return nil
}

func matchesFilter(tx model.Transaction, filter TransactionFilter) bool {
	if filter.StartDate != "" && tx.Date < filter.StartDate {
		return false
	}
	if filter.EndDate != "" && tx.Date > filter.EndDate {
		return false
	}
	if filter.Category != "" && tx.Category != filter.Category {
		return false
	}
	return true
}

// paginateIDs applies cursor-based pagination to a set of IDs, sorting them
// first so cursors are stable.
func paginateIDs(ids []string, pageSize int, pageToken string) ([]string, string, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	sort.Strings(ids)

	startIdx := 0
	if pageToken != "" {
		cursorID, err := DecodePageToken(pageToken)
		if err != nil {
			return nil, "", err
		}
		startIdx = len(ids)
		for i, id := range ids {
			if id > cursorID {
				startIdx = i
				break
			}
		}
	}
	ids = ids[startIdx:]

	var nextToken string
	if len(ids) > pageSize {
		nextToken = EncodePageToken(ids[pageSize-1])
		ids = ids[:pageSize]
	}
	return ids, nextToken, nil
}

// paginateTransactions pages an already date-sorted transaction slice using
// the transaction ID as cursor.
func paginateTransactions(txs []model.Transaction, pageSize int, pageToken string) ([]model.Transaction, string, error) {
	if pageSize <= 0 {
		return txs, "", nil
	}

	startIdx := 0
	if pageToken != "" {
		cursorID, err := DecodePageToken(pageToken)
		if err != nil {
			return nil, "", err
		}
		found := false
		for i, tx := range txs {
			if tx.ID == cursorID {
				startIdx = i + 1
				found = true
				break
			}
		}
		if !found {
			return nil, "", fmt.Errorf("invalid page token")
		}
	}
	txs = txs[startIdx:]

	var nextToken string
	if len(txs) > pageSize {
		txs = txs[:pageSize]
		nextToken = EncodePageToken(txs[len(txs)-1].ID)
	}
	return txs, nextToken, nil
}
