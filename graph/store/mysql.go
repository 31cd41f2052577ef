package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// MySQLStore persists execution history in a MySQL database. Use it
// when several processes share one workflow's history.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewMySQLStore connects to MySQL using the given DSN (e.g.
// "user:pass@tcp(localhost:3306)/nodeflow?parseTime=true") and
// prepares the schema. parseTime must be enabled in the DSN.
func NewMySQLStore(ctx context.Context, dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS node_executions (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		workflow_id VARCHAR(255) NOT NULL,
		node_id VARCHAR(255) NOT NULL,
		status VARCHAR(32) NOT NULL,
		result_urls JSON NOT NULL,
		message TEXT NOT NULL,
		cost DOUBLE NOT NULL DEFAULT 0,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP(6) NOT NULL,
		INDEX idx_node_executions_lookup (workflow_id, node_id, created_at)
	)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// SaveExecution appends a record for the node.
func (s *MySQLStore) SaveExecution(ctx context.Context, workflowID, nodeID string, rec ExecutionRecord) error {
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
		createdAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}
	return nil
}

// History returns the node's records, newest first.
func (s *MySQLStore) History(ctx context.Context, workflowID, nodeID string) ([]ExecutionRecord, error) {
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
		var urls string
		var createdAt sql.NullTime
		if err := rows.Scan(&rec.Status, &urls, &rec.Message, &rec.Cost, &rec.DurationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(urls), &rec.ResultURLs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result urls: %w", err)
		}
		rec.CreatedAt = createdAt.Time
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return recs, nil
}

// ClearHistory deletes all records for the node.
func (s *MySQLStore) ClearHistory(ctx context.Context, workflowID, nodeID string) error {
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

// Close closes the underlying database connection pool.
func (s *MySQLStore) Close() error {
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

func (s *MySQLStore) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}
