// Package tracker keeps a per-invocation usage log so operators can see what
// the gateway spent against the metered upstream API.
package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/verdia-ai/verdia/pkg/models"
)

// Recorder records and queries gateway invocations.
type Recorder interface {
	// Record stores one invocation record.
	Record(ctx context.Context, rec models.InvocationRecord) error
	// Summary returns aggregated usage grouped by feature, model and outcome,
	// optionally filtered by feature.
	Summary(ctx context.Context, feature string) ([]models.UsageSummary, error)
	// CountSince returns the number of invocations recorded since a given time.
	CountSince(ctx context.Context, since time.Time) (int64, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Recorder with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS invocations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	feature TEXT NOT NULL,
	scope TEXT NOT NULL,
	model TEXT NOT NULL,
	outcome TEXT NOT NULL,
	cache_hit INTEGER NOT NULL,
	estimated_tokens INTEGER NOT NULL,
	latency_ms INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_invocations_time ON invocations(created_at);
CREATE INDEX IF NOT EXISTS idx_invocations_feature ON invocations(feature, created_at);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}
	return &SQLiteTracker{db: db}, nil
}

// Record stores one invocation record.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.InvocationRecord) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO invocations (request_id, feature, scope, model, outcome, cache_hit, estimated_tokens, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Feature, rec.Scope, rec.Model, rec.Outcome, rec.CacheHit, rec.EstimatedTokens, rec.LatencyMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record invocation: %w", err)
	}
	return nil
}

// Summary returns aggregated usage grouped by feature, model and outcome.
func (t *SQLiteTracker) Summary(ctx context.Context, feature string) ([]models.UsageSummary, error) {
	query := `SELECT feature, model, outcome, COUNT(*), SUM(estimated_tokens) FROM invocations`
	var args []any
	if feature != "" {
		query += ` WHERE feature = ?`
		args = append(args, feature)
	}
	query += ` GROUP BY feature, model, outcome ORDER BY feature, model, outcome`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.UsageSummary
	for rows.Next() {
		var s models.UsageSummary
		if err := rows.Scan(&s.Feature, &s.Model, &s.Outcome, &s.Count, &s.EstimatedTokens); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// CountSince returns the number of invocations recorded since a given time.
func (t *SQLiteTracker) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := t.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invocations WHERE created_at >= ?`, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count invocations: %w", err)
	}
	return n, nil
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
