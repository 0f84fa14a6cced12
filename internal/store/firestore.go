package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/google/uuid"

	"github.com/cardlens/backend/internal/model"
)

// maxBatchSize is Firestore's per-batch write limit.
const maxBatchSize = 500

// FirestoreStore implements Store on Firestore. Sessions live in the
// "sessions" collection; each session's transactions are a subcollection.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a Firestore-backed store.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) sessions() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *FirestoreStore) txCollection(sessionID string) *firestore.CollectionRef {
	return s.sessions().Doc(sessionID).Collection("transactions")
}

func (s *FirestoreStore) CreateSession(ctx context.Context, session *model.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	_, err := s.sessions().Doc(session.ID).Set(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *FirestoreStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	doc, err := s.sessions().Doc(sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session model.Session
	if err := doc.DataTo(&session); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &session, nil
}

func (s *FirestoreStore) UpdateSession(ctx context.Context, session *model.Session) error {
	if _, err := s.GetSession(ctx, session.ID); err != nil {
		return err
	}
	session.UpdatedAt = time.Now().UTC()

	_, err := s.sessions().Doc(session.ID).Set(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (s *FirestoreStore) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return err
	}

	// Subcollection documents are not deleted with their parent.
	if err := s.deleteAllTransactions(ctx, sessionID); err != nil {
		return err
	}

	_, err := s.sessions().Doc(sessionID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ListSessions(ctx context.Context, pageSize int, pageToken string) ([]*model.Session, string, error) {
	query := s.sessions().Query.OrderBy(firestore.DocumentID, firestore.Asc)

	if pageToken != "" {
		docID, err := DecodePageToken(pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		query = query.StartAfter(docID)
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	query = query.Limit(pageSize + 1) // +1 to detect next page

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, "", fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]*model.Session, 0, len(docs))
	for _, doc := range docs {
		var session model.Session
		if err := doc.DataTo(&session); err != nil {
			return nil, "", fmt.Errorf("failed to parse session: %w", err)
		}
		sessions = append(sessions, &session)
	}

	var nextToken string
	if len(sessions) > pageSize {
		sessions = sessions[:pageSize]
		nextToken = EncodePageToken(sessions[len(sessions)-1].ID)
	}
	return sessions, nextToken, nil
}

func (s *FirestoreStore) ReplaceTransactions(ctx context.Context, sessionID string, txs []model.Transaction) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := s.deleteAllTransactions(ctx, sessionID); err != nil {
		return err
	}

	sorted := append([]model.Transaction(nil), txs...)
	model.SortByDate(sorted)

	coll := s.txCollection(sessionID)
	for start := 0; start < len(sorted); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(sorted) {
			end = len(sorted)
		}
		batch := s.client.Batch()
		for i := start; i < end; i++ {
			t := sorted[i]
			if t.ID == "" {
				t.ID = uuid.NewString()
			}
			batch.Set(coll.Doc(t.ID), t)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("failed to write transactions: %w", err)
		}
	}

	session.TxCount = len(sorted)
	return s.UpdateSession(ctx, session)
}

func (s *FirestoreStore) ListTransactions(ctx context.Context, sessionID string, filter TransactionFilter) ([]model.Transaction, string, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, "", err
	}

	query := s.txCollection(sessionID).Query
	if filter.StartDate != "" {
		query = query.Where("Date", ">=", filter.StartDate)
	}
	if filter.EndDate != "" {
		query = query.Where("Date", "<=", filter.EndDate)
	}
	if filter.Category != "" {
		query = query.Where("Category", "==", string(filter.Category))
	}

	// Firestore requires OrderBy on the inequality field first, so the
	// pagination cursor carries both the Date value and the document ID.
	query = query.OrderBy("Date", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)

	if filter.PageToken != "" {
		docID, err := DecodePageToken(filter.PageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		cursorDoc, err := s.txCollection(sessionID).Doc(docID).Get(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("failed to fetch cursor document: %w", err)
		}
		query = query.StartAfter(cursorDoc.Data()["Date"], docID)
	}
	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize + 1)
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, "", fmt.Errorf("failed to list transactions: %w", err)
	}

	txs := make([]model.Transaction, 0, len(docs))
	for _, doc := range docs {
		var t model.Transaction
		if err := doc.DataTo(&t); err != nil {
			return nil, "", fmt.Errorf("failed to parse transaction: %w", err)
		}
		txs = append(txs, t)
	}

	var nextToken string
	if filter.PageSize > 0 && len(txs) > filter.PageSize {
		txs = txs[:filter.PageSize]
		nextToken = EncodePageToken(txs[len(txs)-1].ID)
	}
	return txs, nextToken, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) deleteAllTransactions(ctx context.Context, sessionID string) error {
	coll := s.txCollection(sessionID)
	for {
		docs, err := coll.Limit(maxBatchSize).Documents(ctx).GetAll()
		if err != nil {
			return fmt.Errorf("failed to query transactions: %w", err)
		}
		if len(docs) == 0 {
			return nil
		}

		batch := s.client.Batch()
		for _, doc := range docs {
			batch.Delete(doc.Ref)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("failed to delete transactions: %w", err)
		}
	}
}
