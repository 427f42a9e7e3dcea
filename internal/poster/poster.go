// Package poster submits generated content with bounded retries.
package poster

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/humanize"
	"github.com/ibeckermayer/xpilot/internal/types"
)

const (
	backoffMin = 5 * time.Second
	backoffMax = 10 * time.Second
)

// Submitter publishes one post. A nil error means it was submitted.
type Submitter interface {
	SubmitPost(ctx context.Context, text string) error
}

// Log records terminal outcomes.
type Log interface {
	AppendContentLog(ctx context.Context, entry types.ContentLogEntry) error
}

// Poster is the retry orchestrator around a Submitter.
type Poster struct {
	submitter Submitter
	log       Log
	human     *humanize.Humanizer
	accountID string
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a poster that records outcomes under accountID.
func New(submitter Submitter, log Log, human *humanize.Humanizer, accountID string, logger *zap.Logger) *Poster {
	return &Poster{
		submitter: submitter,
		log:       log,
		human:     human,
		accountID: accountID,
		now:       time.Now,
		logger:    logger.Named("poster"),
	}
}

// PostWithRetry makes at most maxRetries submit attempts and writes exactly one
// content log entry describing how they ended. It reports whether the post went out.
func (p *Poster) PostWithRetry(ctx context.Context, gc *types.GeneratedContent, maxRetries int) bool {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	attempt := 0
	for attempt < maxRetries {
		attempt++
		p.logger.Info("Posting attempt", zap.Int("attempt", attempt), zap.Int("max", maxRetries))

		lastErr = p.attempt(ctx, gc.Text)
		if lastErr == nil {
			p.record(ctx, gc, attempt, nil)
			p.logger.Info("Post submitted", zap.Int("attempts", attempt))
			return true
		}
		p.logger.Warn("Posting attempt failed", zap.Int("attempt", attempt), zap.Error(lastErr))

		if attempt == maxRetries || ctx.Err() != nil {
			break
		}
		if err := p.human.Pause(ctx, backoffMin, backoffMax); err != nil {
			lastErr = fmt.Errorf("%w (backoff interrupted: %w)", lastErr, err)
			break
		}
	}

	p.record(ctx, gc, attempt, lastErr)
	p.logger.Error("Giving up on post", zap.Int("attempts", attempt), zap.Error(lastErr))
	return false
}

// attempt converts a panic inside the submitter into an error so it ends the attempt
// like any other failure.
func (p *Poster) attempt(ctx context.Context, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("submit panicked: %v", r)
		}
	}()
	return p.submitter.SubmitPost(ctx, text)
}

func (p *Poster) record(ctx context.Context, gc *types.GeneratedContent, attempts int, failure error) {
	entry := types.ContentLogEntry{
		AccountID:  p.accountID,
		Topic:      gc.SourceTopic,
		Context:    gc.SourceContext,
		Volume:     gc.SourceVolume,
		Text:       gc.Text,
		PostedAt:   p.now(),
		Length:     len([]rune(gc.Text)),
		Success:    failure == nil,
		RetryCount: attempts,
		Model:      gc.Model,
	}
	if failure != nil {
		entry.Error = failure.Error()
	}
	// the outcome must land even when the run is being cancelled
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.log.AppendContentLog(wctx, entry); err != nil {
		p.logger.Error("Failed to write content log entry", zap.Bool("success", entry.Success), zap.Error(err))
	}
}
