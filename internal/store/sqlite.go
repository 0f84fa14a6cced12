package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cardlens/backend/internal/model"
)

// SQLiteStore implements Store on a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// applies schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	if err := runMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, session *model.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	files, err := json.Marshal(sourceFilesOrEmpty(session.SourceFiles))
	if err != nil {
		return fmt.Errorf("marshal source files: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, label, source_files, tx_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.Label, string(files), session.TxCount,
		session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, label, source_files, tx_count, created_at, updated_at
		 FROM sessions WHERE id = ?`, sessionID)
	return scanSession(row)
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, session *model.Session) error {
	session.UpdatedAt = time.Now().UTC()

	files, err := json.Marshal(sourceFilesOrEmpty(session.SourceFiles))
	if err != nil {
		return fmt.Errorf("marshal source files: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET label = ?, source_files = ?, tx_count = ?, updated_at = ?
		 WHERE id = ?`,
		session.Label, string(files), session.TxCount, session.UpdatedAt, session.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, pageSize int, pageToken string) ([]*model.Session, string, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	cursorID, err := DecodePageToken(pageToken)
	if err != nil {
		return nil, "", err
	}

	// Fetch one extra row to learn whether another page exists.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, source_files, tx_count, created_at, updated_at
		 FROM sessions WHERE id > ? ORDER BY id LIMIT ?`,
		cursorID, pageSize+1)
	if err != nil {
		return nil, "", fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, "", err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("list sessions: %w", err)
	}

	var nextToken string
	if len(sessions) > pageSize {
		sessions = sessions[:pageSize]
		nextToken = EncodePageToken(sessions[len(sessions)-1].ID)
	}
	return sessions, nextToken, nil
}

func (s *SQLiteStore) ReplaceTransactions(ctx context.Context, sessionID string, txs []model.Transaction) error {
	sorted := append([]model.Transaction(nil), txs...)
	model.SortByDate(sorted)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET tx_count = ?, updated_at = ? WHERE id = ?`,
		len(sorted), now, sessionID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transactions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transactions (id, session_id, date, merchant, amount, category, is_recurring)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range sorted {
		id := t.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, id, sessionID, t.Date, t.Merchant,
			t.Amount, string(t.Category), boolToInt(t.IsRecurring)); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListTransactions(ctx context.Context, sessionID string, filter TransactionFilter) ([]model.Transaction, string, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, "", err
	}

	query := `SELECT id, date, merchant, amount, category, is_recurring
	 FROM transactions WHERE session_id = ?`
	args := []any{sessionID}

	if filter.StartDate != "" {
		query += " AND date >= ?"
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		query += " AND date <= ?"
		args = append(args, filter.EndDate)
	}
	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, string(filter.Category))
	}

	if filter.PageToken != "" {
		cursorID, err := DecodePageToken(filter.PageToken)
		if err != nil {
			return nil, "", err
		}
		var cursorDate string
		row := s.db.QueryRowContext(ctx,
			`SELECT date FROM transactions WHERE id = ?`, cursorID)
		if err := row.Scan(&cursorDate); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, "", fmt.Errorf("invalid page token")
			}
			return nil, "", fmt.Errorf("resolve page token: %w", err)
		}
		query += " AND (date > ? OR (date = ? AND id > ?))"
		args = append(args, cursorDate, cursorDate, cursorID)
	}

	query += " ORDER BY date, id"
	if filter.PageSize > 0 {
		query += " LIMIT ?"
		args = append(args, filter.PageSize+1)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var category string
		var recurring int
		if err := rows.Scan(&t.ID, &t.Date, &t.Merchant, &t.Amount, &category, &recurring); err != nil {
			return nil, "", fmt.Errorf("scan transaction: %w", err)
		}
		t.Category = model.Category(category)
		t.IsRecurring = recurring != 0
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("list transactions: %w", err)
	}

	var nextToken string
	if filter.PageSize > 0 && len(txs) > filter.PageSize {
		txs = txs[:filter.PageSize]
		nextToken = EncodePageToken(txs[len(txs)-1].ID)
	}
	return txs, nextToken, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var session model.Session
	var files string
	err := row.Scan(&session.ID, &session.Label, &files, &session.TxCount,
		&session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if err := json.Unmarshal([]byte(files), &session.SourceFiles); err != nil {
		return nil, fmt.Errorf("unmarshal source files: %w", err)
	}
	if len(session.SourceFiles) == 0 {
		session.SourceFiles = nil
	}
	return &session, nil
}

func sourceFilesOrEmpty(files []string) []string {
	if files == nil {
		return []string{}
	}
	return files
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
