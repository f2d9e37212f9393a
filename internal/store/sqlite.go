// Package store is the durable side of the daemon: conversation turns and
// usage records land in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"inferd/internal/usage"
	"inferd/pkg/types"
)

type DB struct {
	*sql.DB
}

// Open creates (or opens) the database at path and ensures the schema.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS conversations(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		user_message TEXT NOT NULL,
		assistant_response TEXT NOT NULL,
		model_name TEXT NOT NULL,
		temperature REAL DEFAULT 0.7,
		max_tokens INTEGER DEFAULT 300,
		response_time_ms INTEGER DEFAULT 0,
		tokens_generated INTEGER DEFAULT 0,
		created_at REAL
	)`); err != nil {
		return nil, err
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS usage_records(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		endpoint TEXT NOT NULL,
		session_id TEXT,
		status TEXT,
		error TEXT,
		prompt_tokens INTEGER DEFAULT 0,
		completion_tokens INTEGER DEFAULT 0,
		response_time_ms INTEGER DEFAULT 0,
		created_at REAL
	)`); err != nil {
		return nil, err
	}

	for _, idx := range []string{
		`CREATE INDEX IF NOT EXISTS idx_conversations_session_id ON conversations(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_created_at ON conversations(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_endpoint ON usage_records(endpoint)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_created_at ON usage_records(created_at)`,
	} {
		if _, err := db.Exec(idx); err != nil {
			return nil, err
		}
	}

	return &DB{db}, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// InsertConversationTurn persists one request/response pair.
func (db *DB) InsertConversationTurn(ctx context.Context, rec usage.Record) error {
	_, err := db.ExecContext(ctx, `INSERT INTO conversations(
		session_id, user_message, assistant_response, model_name,
		temperature, max_tokens, response_time_ms, tokens_generated, created_at)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		rec.SessionID, rec.UserMessage, rec.AssistantResponse, rec.ModelName,
		rec.Temperature, rec.MaxTokens, rec.ResponseTime.Milliseconds(),
		rec.CompletionTokens, unixSeconds(rec.CreatedAt))
	return err
}

// InsertUsageRecord persists the audit row for one request, success or not.
func (db *DB) InsertUsageRecord(ctx context.Context, rec usage.Record) error {
	_, err := db.ExecContext(ctx, `INSERT INTO usage_records(
		endpoint, session_id, status, error, prompt_tokens, completion_tokens,
		response_time_ms, created_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		rec.Endpoint, rec.SessionID, rec.Status, rec.ErrorMessage,
		rec.PromptTokens, rec.CompletionTokens, rec.ResponseTime.Milliseconds(),
		unixSeconds(rec.CreatedAt))
	return err
}

// QueryConversation returns up to limit turns for a session, oldest first.
func (db *DB) QueryConversation(ctx context.Context, sessionID string, limit int) ([]types.ConversationTurn, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.QueryContext(ctx, `SELECT session_id, user_message, assistant_response,
		model_name, temperature, max_tokens, response_time_ms, tokens_generated, created_at
		FROM conversations WHERE session_id = ? ORDER BY id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ConversationTurn
	for rows.Next() {
		var t types.ConversationTurn
		var ts float64
		if err := rows.Scan(&t.SessionID, &t.UserMessage, &t.AssistantResponse,
			&t.ModelName, &t.Temperature, &t.MaxTokens, &t.ResponseTimeMs,
			&t.TokensGenerated, &ts); err != nil {
			return nil, err
		}
		t.CreatedAt = int64(ts)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// rows came newest-first; flip to chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// QueryStats aggregates usage per endpoint since the given time.
func (db *DB) QueryStats(ctx context.Context, since time.Time) ([]types.EndpointStats, error) {
	rows, err := db.QueryContext(ctx, `SELECT
		endpoint,
		COUNT(*),
		AVG(response_time_ms),
		SUM(CASE WHEN status != 'ok' THEN 1 ELSE 0 END),
		SUM(prompt_tokens),
		SUM(completion_tokens)
		FROM usage_records WHERE created_at >= ?
		GROUP BY endpoint ORDER BY COUNT(*) DESC`, unixSeconds(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.EndpointStats
	for rows.Next() {
		var s types.EndpointStats
		var avg sql.NullFloat64
		if err := rows.Scan(&s.Endpoint, &s.RequestCount, &avg, &s.ErrorCount,
			&s.PromptTokens, &s.CompletionToken); err != nil {
			return nil, err
		}
		s.AvgResponseMs = avg.Float64
		out = append(out, s)
	}
	return out, rows.Err()
}
