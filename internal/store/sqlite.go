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

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/xpilot/internal/types"
)

// SQLite is the default single-host Store.
type SQLite struct {
	db  *sql.DB
	log *zap.Logger
}

// NewSQLite opens (creating if needed) the database at dbPath.
func NewSQLite(dbPath string, logger *zap.Logger) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, err
	}

	// busy_timeout lets concurrent account processes share the file.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, log: logger.Named("store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Times are stored as unix nanoseconds so range queries compare integers.
func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		account_id TEXT PRIMARY KEY,
		cookies TEXT NOT NULL,
		local_storage TEXT NOT NULL,
		session_storage TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS content_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL,
		topic TEXT NOT NULL,
		context TEXT,
		volume TEXT,
		text TEXT NOT NULL,
		posted_at INTEGER NOT NULL,
		length INTEGER NOT NULL,
		success BOOLEAN NOT NULL,
		retry_count INTEGER NOT NULL,
		error TEXT,
		model TEXT
	);

	CREATE TABLE IF NOT EXISTS run_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_content_log_posted_at ON content_log(posted_at);
	CREATE INDEX IF NOT EXISTS idx_run_events_run_id ON run_events(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) LoadSession(ctx context.Context, accountID string) (*types.Session, error) {
	var cookiesJSON, localJSON, sessionJSON string
	var created, updated int64

	err := s.db.QueryRowContext(ctx, `
		SELECT cookies, local_storage, session_storage, created_at, updated_at
		FROM sessions WHERE account_id = ?
	`, accountID).Scan(&cookiesJSON, &localJSON, &sessionJSON, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	sess := &types.Session{
		AccountID: accountID,
		CreatedAt: time.Unix(0, created).UTC(),
		UpdatedAt: time.Unix(0, updated).UTC(),
	}
	if err := decodeSession(sess, []byte(cookiesJSON), []byte(localJSON), []byte(sessionJSON)); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SQLite) SaveSession(ctx context.Context, sess *types.Session) error {
	cookies, local, session, err := encodeSession(sess)
	if err != nil {
		return err
	}
	now := time.Now()
	created := sess.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (account_id, cookies, local_storage, session_storage, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			cookies = excluded.cookies,
			local_storage = excluded.local_storage,
			session_storage = excluded.session_storage,
			updated_at = excluded.updated_at
	`, sess.AccountID, string(cookies), string(local), string(session), created.UnixNano(), now.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SQLite) DeleteSession(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE account_id = ?`, accountID)
	return err
}

func (s *SQLite) AppendContentLog(ctx context.Context, e types.ContentLogEntry) error {
	model, _ := json.Marshal(e.Model)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content_log (account_id, topic, context, volume, text, posted_at,
			length, success, retry_count, error, model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.AccountID, e.Topic, e.Context, e.Volume, e.Text, e.PostedAt.UnixNano(),
		e.Length, e.Success, e.RetryCount, e.Error, string(model))
	if err != nil {
		return fmt.Errorf("failed to append content log: %w", err)
	}
	return nil
}

const contentColumns = `id, account_id, topic, context, volume, text, posted_at, length, success, retry_count, error, model`

func (s *SQLite) RecentSuccessfulContent(ctx context.Context, since time.Time, limit int) ([]types.ContentLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contentColumns+`
		FROM content_log
		WHERE success = 1 AND posted_at >= ?
		ORDER BY posted_at DESC
		LIMIT ?
	`, since.UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query content log: %w", err)
	}
	defer rows.Close()
	return s.scanContent(rows)
}

func (s *SQLite) ContentLogSince(ctx context.Context, accountID string, since time.Time) ([]types.ContentLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contentColumns+`
		FROM content_log
		WHERE account_id = ? AND posted_at >= ?
		ORDER BY posted_at ASC
	`, accountID, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query content log: %w", err)
	}
	defer rows.Close()
	return s.scanContent(rows)
}

func (s *SQLite) AppendRunEvent(ctx context.Context, ev types.RunEvent) error {
	created := ev.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_events (run_id, account_id, kind, message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, ev.RunID, ev.AccountID, ev.Kind, ev.Message, created.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to append run event: %w", err)
	}
	return nil
}

func (s *SQLite) scanContent(rows *sql.Rows) ([]types.ContentLogEntry, error) {
	var entries []types.ContentLogEntry
	for rows.Next() {
		var e types.ContentLogEntry
		var postedAt int64
		var label, volume, errText, model sql.NullString

		err := rows.Scan(&e.ID, &e.AccountID, &e.Topic, &label, &volume, &e.Text,
			&postedAt, &e.Length, &e.Success, &e.RetryCount, &errText, &model)
		if err != nil {
			return nil, err
		}
		e.Context = label.String
		e.Volume = volume.String
		e.Error = errText.String
		e.PostedAt = time.Unix(0, postedAt).UTC()
		if model.Valid && model.String != "" {
			if err := json.Unmarshal([]byte(model.String), &e.Model); err != nil {
				s.log.Warn("Ignoring unreadable model metadata", zap.Int64("id", e.ID), zap.Error(err))
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func encodeSession(sess *types.Session) (cookies, local, session []byte, err error) {
	if sess == nil || sess.AccountID == "" {
		return nil, nil, nil, errors.New("session has no account id")
	}
	c := sess.Cookies
	if c == nil {
		c = []types.Cookie{}
	}
	if cookies, err = json.Marshal(c); err != nil {
		return nil, nil, nil, err
	}
	if local, err = json.Marshal(nonNil(sess.LocalStorage)); err != nil {
		return nil, nil, nil, err
	}
	if session, err = json.Marshal(nonNil(sess.SessionStorage)); err != nil {
		return nil, nil, nil, err
	}
	return cookies, local, session, nil
}

func decodeSession(sess *types.Session, cookies, local, session []byte) error {
	if err := json.Unmarshal(cookies, &sess.Cookies); err != nil {
		return fmt.Errorf("corrupt session cookies: %w", err)
	}
	if err := json.Unmarshal(local, &sess.LocalStorage); err != nil {
		return fmt.Errorf("corrupt local storage snapshot: %w", err)
	}
	if err := json.Unmarshal(session, &sess.SessionStorage); err != nil {
		return fmt.Errorf("corrupt session storage snapshot: %w", err)
	}
	return nil
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

var _ Store = (*SQLite)(nil)
