package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/types"
)

// CacheKind names a subdirectory of the cache.
type CacheKind string

const (
	CacheLLM     CacheKind = "llm"
	CacheTrends  CacheKind = "trends"
	CacheReports CacheKind = "reports"
)

// LLMExchange is a prompt/response pair kept for debugging.
type LLMExchange struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	System    string    `json:"system"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Error     string    `json:"error,omitempty"`
}

// Cache writes timestamped debug artifacts under a root directory.
type Cache struct {
	root string
}

// NewCache returns a cache rooted at dir. An empty dir means the user cache directory.
func NewCache(dir string) (*Cache, error) {
	if dir == "" {
		var err error
		if dir, err = config.CacheDir(); err != nil {
			return nil, err
		}
	}
	return &Cache{root: dir}, nil
}

// Dir returns the directory for kind.
func (c *Cache) Dir(kind CacheKind) string {
	return filepath.Join(c.root, string(kind))
}

// Filenames sort chronologically.
func generateFilename(ext string) string {
	return time.Now().Format("2006-01-02T15-04-05.000000000") + ext
}

// SaveLLMExchange writes exchange as JSON and returns the file path.
func (c *Cache) SaveLLMExchange(exchange LLMExchange) (string, error) {
	return SaveJSON(c, CacheLLM, exchange)
}

// SaveTrends writes one discovery pass.
func (c *Cache) SaveTrends(trends []types.TrendCandidate) (string, error) {
	return SaveJSON(c, CacheTrends, trends)
}

// LatestTrends returns the most recent discovery pass and the file it came from.
func (c *Cache) LatestTrends() ([]types.TrendCandidate, string, error) {
	path, err := c.Latest(CacheTrends)
	if err != nil {
		return nil, "", err
	}
	trends, err := LoadJSON[[]types.TrendCandidate](path)
	if err != nil {
		return nil, path, err
	}
	return trends, path, nil
}

// SaveJSON writes v as indented JSON into kind's directory.
func SaveJSON[T any](c *Cache, kind CacheKind, v T) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s output: %w", kind, err)
	}
	return c.SaveText(kind, data, ".json")
}

// SaveText writes content with extension ext into kind's directory.
func (c *Cache) SaveText(kind CacheKind, content []byte, ext string) (string, error) {
	dir := c.Dir(kind)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}
	path := filepath.Join(dir, generateFilename(ext))
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s output: %w", kind, err)
	}
	return path, nil
}

// LoadJSON reads a file written by SaveJSON.
func LoadJSON[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, fmt.Errorf("failed to read cache file: %w", err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to unmarshal cache file: %w", err)
	}
	return v, nil
}

// Latest returns the newest file in kind's directory.
func (c *Cache) Latest(kind CacheKind) (string, error) {
	entries, err := os.ReadDir(c.Dir(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no cached %s output", kind)
		}
		return "", err
	}

	// os.ReadDir sorts by name, which is chronological here.
	var latest string
	for _, entry := range entries {
		if !entry.IsDir() {
			latest = entry.Name()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no cached %s output", kind)
	}
	return filepath.Join(c.Dir(kind), latest), nil
}
