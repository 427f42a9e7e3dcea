// Package executor performs the UI mutations: composing posts, liking and replying.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ibeckermayer/xpilot/internal/browser"
	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/humanize"
	"github.com/ibeckermayer/xpilot/internal/scraper"
)

var (
	ErrComposeNotFound = errors.New("compose box not found")
	ErrSubmitNotFound  = errors.New("submit button not found")
)

const (
	settleMin = 2 * time.Second
	settleMax = 4 * time.Second

	// Posted text is looked up in the timeline by this many leading characters.
	verifyPrefixLen = 50
)

// Commenter writes reply text for a post.
type Commenter interface {
	GenerateComment(ctx context.Context, postText string) (string, error)
}

// PostSource lists the posts currently on screen. *scraper.Scraper satisfies it.
type PostSource interface {
	VisiblePosts(ctx context.Context) ([]scraper.VisiblePost, error)
}

// Executor drives one page. It is not safe for concurrent use.
type Executor struct {
	page      browser.Page
	human     *humanize.Humanizer
	posts     PostSource
	commenter Commenter
	limiter   *rate.Limiter
	engage    config.EngagementConfig
	log       *zap.Logger

	selectorTimeout time.Duration
	screenshotDir   string

	replied map[string]bool
}

// New creates an executor. commenter and posts may be nil when only SubmitPost is used.
func New(page browser.Page, human *humanize.Humanizer, posts PostSource, commenter Commenter,
	browserCfg config.BrowserConfig, engageCfg config.EngagementConfig, logger *zap.Logger) *Executor {
	timeout := browserCfg.SelectorTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	limit := rate.Inf
	if engageCfg.ActionsPerMinute > 0 {
		limit = rate.Limit(engageCfg.ActionsPerMinute / 60)
	}
	return &Executor{
		page:            page,
		human:           human,
		posts:           posts,
		commenter:       commenter,
		limiter:         rate.NewLimiter(limit, 1),
		engage:          engageCfg,
		log:             logger.Named("executor"),
		selectorTimeout: timeout,
		screenshotDir:   browserCfg.ScreenshotDir,
		replied:         map[string]bool{},
	}
}

// SubmitPost publishes text from the home timeline composer. A nil error means the submit
// click landed; failing to verify the post afterwards is only logged.
func (e *Executor) SubmitPost(ctx context.Context, text string) error {
	if err := e.submitPost(ctx, text); err != nil {
		e.screenshot(ctx, "submit")
		return err
	}
	return nil
}

func (e *Executor) submitPost(ctx context.Context, text string) error {
	if err := e.page.Navigate(ctx, HomeURL); err != nil {
		return fmt.Errorf("failed to open home timeline: %w", err)
	}
	e.log.Debug("Navigated to home timeline")

	compose, err := ComposeBox.FirstVisible(ctx, e.page, e.selectorTimeout)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrComposeNotFound, err)
	}
	e.log.Debug("Found compose box", zap.String("selector", compose))

	method, err := e.typeAndSubmit(ctx, compose, SubmitButton, text)
	if err != nil {
		return err
	}
	e.log.Info("Clicked post button", zap.String("method", string(method)))

	// The click has landed; settling and verification can no longer fail the post.
	if err := e.human.Pause(ctx, settleMin, settleMax); err != nil {
		e.log.Warn("Post clicked but not verified: interrupted while settling", zap.Error(err))
		return nil
	}
	if !e.verifyPosted(ctx, compose, text) {
		e.log.Warn("Post clicked but could not be verified in the timeline")
	} else {
		e.log.Info("Post verified")
	}
	return nil
}

// typeAndSubmit fills the composer and clicks its submit button.
func (e *Executor) typeAndSubmit(ctx context.Context, compose string, submit browser.Selectors, text string) (ClickMethod, error) {
	if err := e.page.Clear(ctx, compose); err != nil {
		return "", fmt.Errorf("failed to clear compose box: %w", err)
	}
	if err := e.page.Click(ctx, compose); err != nil {
		return "", fmt.Errorf("failed to focus compose box: %w", err)
	}
	if err := e.human.ShortPause(ctx); err != nil {
		return "", err
	}
	if err := browser.TypeText(ctx, e.page, e.human, text); err != nil {
		return "", err
	}
	e.log.Debug("Typed text", zap.Int("length", len([]rune(text))))

	button, err := submit.FirstVisible(ctx, e.page, e.selectorTimeout)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSubmitNotFound, err)
	}
	if err := e.human.ShortPause(ctx); err != nil {
		return "", err
	}
	return e.Click(ctx, button)
}

// verifyPosted reports whether the composer emptied or the text shows up in the timeline.
func (e *Executor) verifyPosted(ctx context.Context, compose, text string) bool {
	var remaining string
	script := fmt.Sprintf(`(() => { const el = document.querySelector(%q); return el ? el.innerText.trim() : ""; })()`, compose)
	if err := e.page.Evaluate(ctx, script, &remaining); err == nil && remaining == "" {
		return true
	}

	if err := e.page.Navigate(ctx, HomeURL); err != nil {
		e.log.Debug("Verification navigation failed", zap.Error(err))
		return false
	}
	if err := e.page.WaitVisible(ctx, scraper.TweetArticle, e.selectorTimeout); err != nil {
		return false
	}
	body, err := browser.BodyText(ctx, e.page)
	if err != nil {
		return false
	}
	return strings.Contains(body, verifyPrefix(text))
}

func verifyPrefix(text string) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) > verifyPrefixLen {
		r = r[:verifyPrefixLen]
	}
	return string(r)
}

// screenshot saves a diagnostic capture. Failures are logged and otherwise ignored.
func (e *Executor) screenshot(ctx context.Context, label string) {
	if e.screenshotDir == "" {
		return
	}
	if err := os.MkdirAll(e.screenshotDir, 0755); err != nil {
		e.log.Debug("Failed to create screenshot directory", zap.Error(err))
		return
	}
	path := filepath.Join(e.screenshotDir, fmt.Sprintf("%s-%s.png", label, time.Now().Format("20060102-150405.000")))
	// the run context may already be cancelled
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := e.page.Screenshot(sctx, path); err != nil {
		e.log.Debug("Failed to capture screenshot", zap.Error(err))
		return
	}
	e.log.Info("Saved diagnostic screenshot", zap.String("path", path))
}
