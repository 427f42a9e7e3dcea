package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/types"
)

// DBPool abstracts pgxpool.Pool so the Postgres store can be mocked in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Postgres is a Store shared by account processes running on several hosts.
type Postgres struct {
	pool DBPool
	log  *zap.Logger
}

// OpenPostgres connects to dsn, verifies the connection and applies the schema.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewPostgres(pool, logger)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool DBPool, logger *zap.Logger) *Postgres {
	return &Postgres{pool: pool, log: logger.Named("store")}
}

func (s *Postgres) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		account_id TEXT PRIMARY KEY,
		cookies JSONB NOT NULL,
		local_storage JSONB NOT NULL,
		session_storage JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS content_log (
		id BIGSERIAL PRIMARY KEY,
		account_id TEXT NOT NULL,
		topic TEXT NOT NULL,
		context TEXT NOT NULL DEFAULT '',
		volume TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		posted_at TIMESTAMPTZ NOT NULL,
		length INTEGER NOT NULL,
		success BOOLEAN NOT NULL,
		retry_count INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		model JSONB
	);

	CREATE TABLE IF NOT EXISTS run_events (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_content_log_posted_at ON content_log(posted_at);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func (s *Postgres) LoadSession(ctx context.Context, accountID string) (*types.Session, error) {
	query := `
		SELECT cookies, local_storage, session_storage, created_at, updated_at
		FROM sessions
		WHERE account_id = $1;
	`
	rows, err := s.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var cookies, local, session []byte
	sess := &types.Session{AccountID: accountID}
	if err := rows.Scan(&cookies, &local, &session, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan session row: %w", err)
	}
	if err := decodeSession(sess, cookies, local, session); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Postgres) SaveSession(ctx context.Context, sess *types.Session) error {
	cookies, local, session, err := encodeSession(sess)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	created := sess.CreatedAt.UTC()
	if sess.CreatedAt.IsZero() {
		created = now
	}

	query := `
		INSERT INTO sessions (account_id, cookies, local_storage, session_storage, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id) DO UPDATE SET
			cookies = EXCLUDED.cookies,
			local_storage = EXCLUDED.local_storage,
			session_storage = EXCLUDED.session_storage,
			updated_at = EXCLUDED.updated_at;
	`
	if _, err := s.pool.Exec(ctx, query, sess.AccountID, cookies, local, session, created, now); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *Postgres) DeleteSession(ctx context.Context, accountID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE account_id = $1;`, accountID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *Postgres) AppendContentLog(ctx context.Context, e types.ContentLogEntry) error {
	model, _ := json.Marshal(e.Model)
	query := `
		INSERT INTO content_log (account_id, topic, context, volume, text, posted_at,
			length, success, retry_count, error, model)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err := s.pool.Exec(ctx, query, e.AccountID, e.Topic, e.Context, e.Volume, e.Text,
		e.PostedAt.UTC(), e.Length, e.Success, e.RetryCount, e.Error, model)
	if err != nil {
		return fmt.Errorf("failed to append content log: %w", err)
	}
	return nil
}

func (s *Postgres) RecentSuccessfulContent(ctx context.Context, since time.Time, limit int) ([]types.ContentLogEntry, error) {
	query := `
		SELECT id, account_id, topic, context, volume, text, posted_at, length, success, retry_count, error, model
		FROM content_log
		WHERE success AND posted_at >= $1
		ORDER BY posted_at DESC
		LIMIT $2;
	`
	return s.queryContent(ctx, query, since.UTC(), limit)
}

func (s *Postgres) ContentLogSince(ctx context.Context, accountID string, since time.Time) ([]types.ContentLogEntry, error) {
	query := `
		SELECT id, account_id, topic, context, volume, text, posted_at, length, success, retry_count, error, model
		FROM content_log
		WHERE account_id = $1 AND posted_at >= $2
		ORDER BY posted_at ASC;
	`
	return s.queryContent(ctx, query, accountID, since.UTC())
}

func (s *Postgres) queryContent(ctx context.Context, query string, args ...any) ([]types.ContentLogEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query content log: %w", err)
	}
	defer rows.Close()

	var entries []types.ContentLogEntry
	for rows.Next() {
		var e types.ContentLogEntry
		var model []byte
		err := rows.Scan(&e.ID, &e.AccountID, &e.Topic, &e.Context, &e.Volume, &e.Text,
			&e.PostedAt, &e.Length, &e.Success, &e.RetryCount, &e.Error, &model)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content row: %w", err)
		}
		if len(model) > 0 {
			if err := json.Unmarshal(model, &e.Model); err != nil {
				s.log.Warn("Ignoring unreadable model metadata", zap.Int64("id", e.ID), zap.Error(err))
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return entries, nil
}

func (s *Postgres) AppendRunEvent(ctx context.Context, ev types.RunEvent) error {
	created := ev.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	query := `
		INSERT INTO run_events (run_id, account_id, kind, message, created_at)
		VALUES ($1, $2, $3, $4, $5);
	`
	if _, err := s.pool.Exec(ctx, query, ev.RunID, ev.AccountID, ev.Kind, ev.Message, created.UTC()); err != nil {
		return fmt.Errorf("failed to append run event: %w", err)
	}
	return nil
}

var _ Store = (*Postgres)(nil)
