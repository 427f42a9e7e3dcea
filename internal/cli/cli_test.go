package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/engagelog"
	"github.com/ibeckermayer/xpilot/internal/runner"
	"github.com/ibeckermayer/xpilot/internal/store"
	"github.com/ibeckermayer/xpilot/internal/types"
)

type harness struct {
	dir    string
	cfg    string
	db     string
	opened []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("XPILOT_ACCOUNT_PASSWORD", "")

	h := &harness{dir: dir, cfg: filepath.Join(dir, "config.toml"), db: filepath.Join(dir, "xpilot.db")}
	toml := fmt.Sprintf("[account]\nusername = \"Alice\"\n\n[store]\ndriver = \"sqlite\"\npath = %q\n", h.db)
	require.NoError(t, os.WriteFile(h.cfg, []byte(toml), 0600))
	return h
}

func (h *harness) exec(t *testing.T, args ...string) (string, error) {
	t.Helper()
	st := &state{open: func(path string) error {
		h.opened = append(h.opened, path)
		return nil
	}}
	root := newRootCmdWith(st)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", h.cfg}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "engage", "login", "schedule", "sessions", "trends", "engagement", "bot-test", "open"} {
		assert.Contains(t, names, want)
	}
}

func TestSessionsShowAndClear(t *testing.T) {
	h := newHarness(t)

	out, err := h.exec(t, "sessions", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "No stored session for alice")

	s, err := store.NewSQLite(h.db, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.SaveSession(context.Background(), &types.Session{
		AccountID:    "alice",
		Cookies:      []types.Cookie{{Name: "auth_token", Value: "t", Domain: ".x.com"}},
		LocalStorage: map[string]string{"k": "v"},
	}))
	require.NoError(t, s.Close())

	out, err = h.exec(t, "sessions", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Account:         alice")
	assert.Contains(t, out, "Cookies:         1 (auth_token: true)")
	assert.Contains(t, out, "localStorage:    1 keys")

	out, err = h.exec(t, "sessions", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared session for alice")

	out, err = h.exec(t, "sessions", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "No stored session")
}

func TestRunRequiresCredentials(t *testing.T) {
	h := newHarness(t)

	for _, cmd := range []string{"run", "engage", "login", "schedule"} {
		t.Run(cmd, func(t *testing.T) {
			_, err := h.exec(t, cmd)
			assert.ErrorIs(t, err, config.ErrMissingCredentials)
		})
	}
}

func TestOpenConfigWritesDefaultFile(t *testing.T) {
	h := newHarness(t)
	h.cfg = filepath.Join(h.dir, "fresh", "config.toml")

	_, err := h.exec(t, "open", "config")
	require.NoError(t, err)
	require.Equal(t, []string{h.cfg}, h.opened)

	data, err := os.ReadFile(h.cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[posting]")
	assert.NotContains(t, string(data), "password")
}

func TestOpenCache(t *testing.T) {
	h := newHarness(t)

	_, err := h.exec(t, "open", "cache")
	require.NoError(t, err)
	require.Len(t, h.opened, 1)
	assert.DirExists(t, h.opened[0])
}

func TestOpenRejectsUnknownTarget(t *testing.T) {
	h := newHarness(t)

	_, err := h.exec(t, "open", "logs")
	assert.Error(t, err)
	assert.Empty(t, h.opened)
}

func TestTrendsShowsLatestDiscovery(t *testing.T) {
	h := newHarness(t)

	_, err := h.exec(t, "trends")
	assert.Error(t, err, "nothing discovered yet")

	cache, err := store.NewCache("")
	require.NoError(t, err)
	_, err = cache.SaveTrends([]types.TrendCandidate{{Topic: "Golang", ContextLabel: "Technology", VolumeLabel: "12K posts"}})
	require.NoError(t, err)

	out, err := h.exec(t, "trends")
	require.NoError(t, err)
	assert.Contains(t, out, " 1. Golang  [Technology]  12K posts")
}

func TestEngagementSummary(t *testing.T) {
	h := newHarness(t)
	logPath := filepath.Join(h.dir, "engagement.csv")
	t.Setenv("XPILOT_ENGAGEMENT_LOG_FILE", logPath)

	w, err := engagelog.Open(logPath)
	require.NoError(t, err)
	now := time.Now()
	for _, rec := range []types.EngagementRecord{
		{Timestamp: now, SessionID: "s1", Action: runner.ActionLike, ScrollCount: 1, LikeCount: 1},
		{Timestamp: now, SessionID: "s1", Action: runner.ActionLike, ScrollCount: 4, LikeCount: 2},
		{Timestamp: now, SessionID: "s1", Action: runner.ActionComment, ScrollCount: 5, CommentCount: 1},
		{Timestamp: now, SessionID: "s2", Action: runner.ActionProgress, ScrollCount: 5},
	} {
		require.NoError(t, w.Append(rec))
	}
	require.NoError(t, w.Close())

	out, err := h.exec(t, "engagement")
	require.NoError(t, err)
	assert.Contains(t, out, "s1  scrolls=5 likes=2 comments=1 reply_rounds=0")
	assert.Contains(t, out, "s2  scrolls=5 likes=0")

	out, err = h.exec(t, "engagement", "--session", "s2")
	require.NoError(t, err)
	assert.NotContains(t, out, "s1")
}
