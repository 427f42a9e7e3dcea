package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Account.Username = "someone@example.com"
	cfg.Account.Password = "hunter2"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3, cfg.Posting.MaxRetries)
	assert.Equal(t, 15, cfg.Posting.MaxTrends)
	assert.Equal(t, 15*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, 0.85, cfg.Generation.Temperature)
	assert.Equal(t, 150, cfg.Generation.MaxTokens)
	assert.Equal(t, 0.7, cfg.Diversity.Threshold)
	assert.Equal(t, 24*time.Hour, cfg.Diversity.Lookback)
	assert.Equal(t, 20, cfg.Engagement.CommentEvery)
	assert.Equal(t, 50, cfg.Engagement.NotificationsEvery)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "18:00", cfg.Schedule.ReportAt)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.JobTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing password",
			mutate:  func(c *Config) { c.Account.Password = "" },
			wantErr: ErrMissingCredentials.Error(),
		},
		{
			name:    "zero retries",
			mutate:  func(c *Config) { c.Posting.MaxRetries = 0 },
			wantErr: "max_retries",
		},
		{
			name:    "like percentage out of range",
			mutate:  func(c *Config) { c.Engagement.LikePercentage = 140 },
			wantErr: "like_percentage",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Generation.Provider = "markov" },
			wantErr: "unknown LLM provider",
		},
		{
			name: "postgres without dsn",
			mutate: func(c *Config) {
				c.Store.Driver = DriverPostgres
				c.Store.DSN = ""
			},
			wantErr: "store.dsn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("missing credentials is a sentinel", func(t *testing.T) {
		cfg := validConfig()
		cfg.Account.Username = ""
		assert.ErrorIs(t, cfg.Validate(), ErrMissingCredentials)
	})
}

func TestLoadReadsFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[posting]
max_retries = 5
max_trends = 8

[store]
path = "`+filepath.ToSlash(filepath.Join(dir, "test.db"))+`"
`), 0600))

	t.Setenv("XPILOT_ACCOUNT_USERNAME", "Operator")
	t.Setenv("XPILOT_ACCOUNT_PASSWORD", "secret")
	t.Setenv("XPILOT_POSTING_CYCLES", "4")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Posting.MaxRetries)
	assert.Equal(t, 8, cfg.Posting.MaxTrends)
	assert.Equal(t, 4, cfg.Posting.Cycles)
	assert.Equal(t, "Operator", cfg.Account.Username)
	assert.Equal(t, "operator", cfg.Account.ID())
	assert.Equal(t, "secret", cfg.Account.Password)
	assert.NotEmpty(t, cfg.Browser.ScreenshotDir)
	assert.NotEmpty(t, cfg.Engagement.LogFile)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Posting.MaxRetries)
}

func TestSaveOmitsSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Generation.APIKey = "sk-very-secret"
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.NotContains(t, string(data), "sk-very-secret")
	assert.Contains(t, string(data), "max_retries")
}
