// Package postgres provides the Postgres-backed queue store implementation.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stashy/stashy/internal/engine"
)

//go:embed schema.sql
var schemaSQL string

// querier is the subset of *pgx.Conn the store needs. pgxmock satisfies it
// in tests.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
}

// Connector opens one queue store connection per caller. Each worker gets
// its own connection; the connector itself holds no connection state.
type Connector struct {
	dsn string
}

// NewConnector creates a Connector for the given Postgres DSN.
func NewConnector(dsn string) *Connector {
	return &Connector{dsn: dsn}
}

// ConnectStore opens a dedicated connection and returns the concrete store.
func (c *Connector) ConnectStore(ctx context.Context) (*Store, error) {
	if c.dsn == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	conn, err := pgx.Connect(ctx, c.dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Connect implements engine.StoreConnector.
func (c *Connector) Connect(ctx context.Context) (engine.QueueStore, error) {
	return c.ConnectStore(ctx)
}

// Store implements engine.QueueStore over a single Postgres connection.
type Store struct {
	conn querier
}

// NewStoreWithConn constructs a Store from an existing connection
// (primarily for testing).
func NewStoreWithConn(conn querier) (*Store, error) {
	if conn == nil {
		return nil, fmt.Errorf("conn is required")
	}
	return &Store{conn: conn}, nil
}

// Close releases the underlying connection.
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.conn == nil {
		return nil
	}
	if err := s.conn.Close(ctx); err != nil {
		return fmt.Errorf("close postgres: %w", err)
	}
	return nil
}

// ClaimPending atomically claims up to batchSize pending items for workerID.
// Exclusivity under concurrent callers is guaranteed by the SQL function's
// FOR UPDATE SKIP LOCKED selection.
func (s *Store) ClaimPending(ctx context.Context, workerID string, batchSize int) ([]engine.QueueItem, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, url FROM claim_pending_urls($1, $2)`,
		workerID, batchSize,
	)
	if err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}
	defer rows.Close()

	var items []engine.QueueItem
	for rows.Next() {
		var item engine.QueueItem
		if err := rows.Scan(&item.ID, &item.URL); err != nil {
			return nil, fmt.Errorf("scan claimed row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read claimed rows: %w", err)
	}
	return items, nil
}

// MarkDone transitions an item to done and clears its claim fields.
func (s *Store) MarkDone(ctx context.Context, id int64) error {
	_, err := s.conn.Exec(ctx,
		`UPDATE url_queue
		 SET status = 'done', claimed_at = NULL, claimed_by = NULL, updated_at = now()
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	return nil
}

// MarkFailed increments retries and returns the item to pending, or to
// failed once retries+1 reaches max_retries. The comparison is deliberately
// retries+1 >= max_retries: an item gets exactly max_retries failed attempts.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	if len(message) > engine.ErrorMessageLimit {
		message = message[:engine.ErrorMessageLimit]
	}
	_, err := s.conn.Exec(ctx,
		`UPDATE url_queue
		 SET status = CASE WHEN retries + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
		     retries = retries + 1,
		     claimed_at = NULL,
		     claimed_by = NULL,
		     error = $2,
		     updated_at = now()
		 WHERE id = $1`,
		id, message,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// UpsertRawPage stores the fetched page body, overwriting any previous fetch
// of the same item and refreshing fetched_at.
func (s *Store) UpsertRawPage(ctx context.Context, id int64, url string, res engine.FetchResult) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO raw_pages (url_id, url, html, status_code, content_type)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (url_id) DO UPDATE
		 SET html = $3, status_code = $4, content_type = $5, fetched_at = now()`,
		id, url, string(res.Body), res.StatusCode, res.ContentType,
	)
	if err != nil {
		return fmt.Errorf("insert raw_page: %w", err)
	}
	return nil
}

// Enqueue adds a URL to the queue in pending state. It reports whether the
// URL was inserted; an already-queued URL is left untouched.
func (s *Store) Enqueue(ctx context.Context, url string, priority int) (bool, error) {
	tag, err := s.conn.Exec(ctx,
		`INSERT INTO url_queue (url, priority) VALUES ($1, $2)
		 ON CONFLICT (url) DO NOTHING`,
		url, priority,
	)
	if err != nil {
		return false, fmt.Errorf("enqueue url: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Stats counts queue items per status.
func (s *Store) Stats(ctx context.Context) (engine.QueueStats, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT status, count(*) FROM url_queue GROUP BY status`,
	)
	if err != nil {
		return engine.QueueStats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var stats engine.QueueStats
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return engine.QueueStats{}, fmt.Errorf("scan stats row: %w", err)
		}
		switch engine.Status(status) {
		case engine.StatusPending:
			stats.Pending = count
		case engine.StatusClaimed:
			stats.Claimed = count
		case engine.StatusDone:
			stats.Done = count
		case engine.StatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return engine.QueueStats{}, fmt.Errorf("read stats rows: %w", err)
	}
	return stats, nil
}

// ReleaseStaleClaims returns items claimed longer than olderThan ago to
// pending without touching their retry count. The worker loop never calls
// this; it backs the operator-driven sweep command.
func (s *Store) ReleaseStaleClaims(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	tag, err := s.conn.Exec(ctx,
		`UPDATE url_queue
		 SET status = 'pending', claimed_at = NULL, claimed_by = NULL, updated_at = now()
		 WHERE status = 'claimed' AND claimed_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}
	return tag.RowsAffected(), nil
}

// EnsureSchema applies the embedded schema. All statements are idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
