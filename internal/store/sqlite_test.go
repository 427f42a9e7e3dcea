package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/types"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteSessionUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	got, err := s.LoadSession(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got, "missing session should be nil without error")

	first := &types.Session{
		AccountID:    "alice",
		Cookies:      []types.Cookie{{Name: "auth_token", Value: "one", Domain: ".x.com", Path: "/"}},
		LocalStorage: map[string]string{"a": "1"},
	}
	require.NoError(t, s.SaveSession(ctx, first))

	second := &types.Session{
		AccountID:      "alice",
		Cookies:        []types.Cookie{{Name: "ct0", Value: "two", Domain: ".x.com", Path: "/", Secure: true}},
		SessionStorage: map[string]string{"b": "2"},
	}
	require.NoError(t, s.SaveSession(ctx, second))

	got, err = s.LoadSession(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.Cookies, got.Cookies, "second save fully replaces cookies")
	assert.Empty(t, got.LocalStorage)
	assert.Equal(t, map[string]string{"b": "2"}, got.SessionStorage)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE account_id = ?`, "alice").Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, s.DeleteSession(ctx, "alice"))
	got, err = s.LoadSession(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteConcurrentSavesKeepOneRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess := &types.Session{
				AccountID: "bob",
				Cookies:   []types.Cookie{{Name: "auth_token", Value: string(rune('a' + i))}},
			}
			assert.NoError(t, s.SaveSession(ctx, sess))
		}(i)
	}
	wg.Wait()

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count))
	assert.Equal(t, 1, count)

	got, err := s.LoadSession(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, got.Cookies, 1)
}

func TestSQLiteSaveSessionRequiresAccount(t *testing.T) {
	s := newTestSQLite(t)
	assert.Error(t, s.SaveSession(context.Background(), &types.Session{}))
}

func TestSQLiteContentLog(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	now := time.Now()

	entries := []types.ContentLogEntry{
		{AccountID: "alice", Topic: "old", Text: "stale", PostedAt: now.Add(-48 * time.Hour), Success: true, RetryCount: 1},
		{AccountID: "alice", Topic: "failed", Text: "nope", PostedAt: now.Add(-2 * time.Hour), Success: false, RetryCount: 3, Error: "submit failed"},
		{AccountID: "alice", Topic: "a", Text: "first", PostedAt: now.Add(-90 * time.Minute), Success: true, RetryCount: 1,
			Model: types.ModelMetadata{Provider: "openai", Model: "gpt-4o-mini", Temperature: 0.85}},
		{AccountID: "carol", Topic: "b", Text: "second", PostedAt: now.Add(-30 * time.Minute), Success: true, RetryCount: 2},
	}
	for _, e := range entries {
		e.Length = len(e.Text)
		require.NoError(t, s.AppendContentLog(ctx, e))
	}

	recent, err := s.RecentSuccessfulContent(ctx, now.Add(-24*time.Hour), 20)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Text, "newest first")
	assert.Equal(t, "first", recent[1].Text)
	assert.Equal(t, "gpt-4o-mini", recent[1].Model.Model)

	limited, err := s.RecentSuccessfulContent(ctx, now.Add(-24*time.Hour), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	mine, err := s.ContentLogSince(ctx, "alice", now.Add(-3*time.Hour))
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "failed", mine[0].Topic)
	assert.Equal(t, "submit failed", mine[0].Error)
	assert.False(t, mine[0].Success)
}

func TestSQLiteUnreadableModelMetadataIsLogged(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"), zap.New(core))
	require.NoError(t, err)
	defer s.Close()

	now := time.Now()
	_, err = s.db.Exec(`INSERT INTO content_log (account_id, topic, text, posted_at, length, success, retry_count, model)
		VALUES ('alice', 'go', 'hello', ?, 5, 1, 1, '{not json')`, now.UnixNano())
	require.NoError(t, err)

	got, err := s.ContentLogSince(ctx, "alice", now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Text)
	assert.Empty(t, got[0].Model.Provider)
	assert.Equal(t, 1, logs.FilterMessage("Ignoring unreadable model metadata").Len())
}

func TestSQLiteRunEvents(t *testing.T) {
	s := newTestSQLite(t)
	err := s.AppendRunEvent(context.Background(), types.RunEvent{
		RunID: "run-1", AccountID: "alice", Kind: types.EventAuthFailure, Message: "login failed",
	})
	require.NoError(t, err)

	var kind string
	require.NoError(t, s.db.QueryRow(`SELECT kind FROM run_events WHERE run_id = ?`, "run-1").Scan(&kind))
	assert.Equal(t, types.EventAuthFailure, kind)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("sqlite", func(t *testing.T) {
		s, err := Open(ctx, config.StoreConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "x.db")}, zap.NewNop())
		require.NoError(t, err)
		assert.NoError(t, s.Close())
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := Open(ctx, config.StoreConfig{Driver: "mongo"}, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("unreachable postgres is unavailable", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_, err := Open(cctx, config.StoreConfig{Driver: config.DriverPostgres, DSN: "postgres://nobody@127.0.0.1:1/none?connect_timeout=1"}, zap.NewNop())
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}
