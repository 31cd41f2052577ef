package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteStore persists execution history in a SQLite database file.
// It uses the pure-Go modernc.org/sqlite driver so no cgo is needed.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	mu     sync.Mutex
	closed bool
}

// NewSQLiteStore opens (or creates) a SQLite database at path and
// prepares the schema. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent saves.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS node_executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		workflow_id TEXT NOT NULL,
		node_id TEXT NOT NULL,
		status TEXT NOT NULL,
		result_urls TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		cost REAL NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_node_executions_lookup
		ON node_executions(workflow_id, node_id, created_at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// SaveExecution appends a record for the node.
func (s *SQLiteStore) SaveExecution(ctx context.Context, workflowID, nodeID string, rec ExecutionRecord) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	urls, err := json.Marshal(rec.ResultURLs)
	if err != nil {
		return fmt.Errorf("failed to marshal result urls: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO node_executions
			(workflow_id, node_id, status, result_urls, message, cost, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		workflowID, nodeID, rec.Status, string(urls), rec.Message, rec.Cost, rec.DurationMs,
		createdAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}
	return nil
}

// History returns the node's records, newest first.
func (s *SQLiteStore) History(ctx context.Context, workflowID, nodeID string) ([]ExecutionRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, result_urls, message, cost, duration_ms, created_at
		FROM node_executions
		WHERE workflow_id = ? AND node_id = ?
		ORDER BY created_at DESC, id DESC`,
		workflowID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var recs []ExecutionRecord
	for rows.Next() {
		var rec ExecutionRecord
		var urls, createdAt string
		if err := rows.Scan(&rec.Status, &urls, &rec.Message, &rec.Cost, &rec.DurationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(urls), &rec.ResultURLs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result urls: %w", err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return recs, nil
}

// ClearHistory deletes all records for the node.
func (s *SQLiteStore) ClearHistory(ctx context.Context, workflowID, nodeID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM node_executions WHERE workflow_id = ? AND node_id = ?`,
		workflowID, nodeID)
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Close closes the underlying database. It is safe to call more than
// once.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func (s *SQLiteStore) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}
