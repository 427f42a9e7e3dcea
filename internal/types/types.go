package types

import (
	"strings"
	"time"
)

// MaxPostLength is the platform's hard ceiling on post length, in characters.
const MaxPostLength = 280

// Cookie is a browser cookie as persisted with a Session.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	HTTPOnly bool    `json:"http_only"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"same_site,omitempty"`
	Expires  float64 `json:"expires,omitempty"` // unix seconds, 0 for session cookies
}

// Session is the persisted authentication state of one account.
type Session struct {
	AccountID      string            `json:"account_id"`
	Cookies        []Cookie          `json:"cookies"`
	LocalStorage   map[string]string `json:"local_storage"`
	SessionStorage map[string]string `json:"session_storage"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// HasCookie reports whether the session carries a non-empty cookie called name.
func (s *Session) HasCookie(name string) bool {
	for _, c := range s.Cookies {
		if c.Name == name && c.Value != "" {
			return true
		}
	}
	return false
}

// TrendCandidate is one entry scraped from the trending surface.
type TrendCandidate struct {
	Topic        string `json:"topic"`
	ContextLabel string `json:"context_label"`
	VolumeLabel  string `json:"volume_label"`
}

// Key is the case-insensitive identity used for de-duplication.
func (t TrendCandidate) Key() string {
	return strings.ToLower(strings.TrimSpace(t.Topic))
}

// ModelMetadata describes how a piece of content was generated.
type ModelMetadata struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`
	Truncated   bool    `json:"truncated"`
}

// GeneratedContent is a candidate post before it is submitted.
type GeneratedContent struct {
	Text          string        `json:"text"`
	SourceTopic   string        `json:"source_topic"`
	SourceContext string        `json:"source_context"`
	SourceVolume  string        `json:"source_volume"`
	Model         ModelMetadata `json:"model"`
}

// ContentLogEntry records the terminal outcome of one post attempt sequence.
type ContentLogEntry struct {
	ID         int64         `json:"id,omitempty"`
	AccountID  string        `json:"account_id"`
	Topic      string        `json:"topic"`
	Context    string        `json:"context"`
	Volume     string        `json:"volume"`
	Text       string        `json:"text"`
	PostedAt   time.Time     `json:"posted_at"`
	Length     int           `json:"length"`
	Success    bool          `json:"success"`
	RetryCount int           `json:"retry_count"`
	Error      string        `json:"error,omitempty"`
	Model      ModelMetadata `json:"model"`
}

// RunEvent kinds
const (
	EventSetupFailure = "setup_failure"
	EventAuthFailure  = "auth_failure"
	EventInfraFailure = "infra_failure"
	EventRunSummary   = "run_summary"
)

// RunEvent is an operator-facing record of something that happened to a run.
type RunEvent struct {
	RunID     string    `json:"run_id"`
	AccountID string    `json:"account_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Post is a post visible in a timeline.
type Post struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Link  string `json:"link"`
}

// EngagementRecord is one row of the engagement log.
type EngagementRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	SessionID    string    `json:"session_id"`
	ScrollCount  int       `json:"scroll_count"`
	LikeCount    int       `json:"like_count"`
	PostLink     string    `json:"post_link"`
	Comment      string    `json:"comment"`
	CommentCount int       `json:"comment_count"`
	Action       string    `json:"action"`
}
