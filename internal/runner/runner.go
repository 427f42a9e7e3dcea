// Package runner sequences the components into post cycles and the engagement loop.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/auth"
	"github.com/ibeckermayer/xpilot/internal/browser"
	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/diversity"
	"github.com/ibeckermayer/xpilot/internal/executor"
	"github.com/ibeckermayer/xpilot/internal/humanize"
	"github.com/ibeckermayer/xpilot/internal/types"
)

var (
	ErrNoTrends  = errors.New("no trends discovered")
	ErrNoContent = errors.New("no content generated")
	ErrNotPosted = errors.New("post was not submitted")
)

// Authenticator establishes a logged-in session.
type Authenticator interface {
	Authenticate(ctx context.Context, accountID string, creds auth.Credentials) (auth.Result, error)
}

// Feed reads the timeline and trends.
type Feed interface {
	OpenFeed(ctx context.Context) error
	ScrollFeed(ctx context.Context, passes int) error
	DiscoverTrends(ctx context.Context, maxCount int) []types.TrendCandidate
	SampleRecentPosts(ctx context.Context, topic string, sampleSize int) []string
}

// Generator writes post text. A nil result means nothing usable was produced.
type Generator interface {
	Generate(ctx context.Context, topic types.TrendCandidate, contextTrends []types.TrendCandidate, samples []string) *types.GeneratedContent
}

// DiversityChecker scores text against recent posts.
type DiversityChecker interface {
	Check(ctx context.Context, text string) diversity.Verdict
}

// Poster submits with retries and records the outcome.
type Poster interface {
	PostWithRetry(ctx context.Context, gc *types.GeneratedContent, maxRetries int) bool
}

// Engager performs engagement-loop interactions.
type Engager interface {
	LikeRandomSubset(ctx context.Context, percentage int) executor.LikeResult
	CommentOnRandomVisiblePost(ctx context.Context) executor.CommentOutcome
	ReplyToNotifications(ctx context.Context, limit int) int
}

// EventLog records operator-facing run events.
type EventLog interface {
	AppendRunEvent(ctx context.Context, ev types.RunEvent) error
}

// TrendRecorder keeps each discovery pass for later inspection. *store.Cache satisfies it.
type TrendRecorder interface {
	SaveTrends(trends []types.TrendCandidate) (string, error)
}

// EngagementLog records engagement-loop rows.
type EngagementLog interface {
	Append(rec types.EngagementRecord) error
}

// Deps are the collaborators of a Runner. Engager and Engagements are only needed by Engage;
// Generator, Diversity and Poster only by Run.
type Deps struct {
	Auth        Authenticator
	Feed        Feed
	Generator   Generator
	Diversity   DiversityChecker
	Poster      Poster
	Engager     Engager
	Events      EventLog
	Engagements EngagementLog
	Trends      TrendRecorder
	Human       *humanize.Humanizer
}

// Runner owns one browser session for the lifetime of a run.
type Runner struct {
	deps  Deps
	cfg   config.Config
	used  *UsedTopicSet
	runID string
	log   *zap.Logger
}

// New creates a runner with a fresh run identifier.
func New(cfg config.Config, deps Deps, logger *zap.Logger) *Runner {
	runID := uuid.New().String()
	return &Runner{
		deps:  deps,
		cfg:   cfg,
		used:  NewUsedTopicSet(),
		runID: runID,
		log:   logger.Named("runner").With(zap.String("run_id", runID)),
	}
}

// RunID identifies this run in events and the engagement log.
func (r *Runner) RunID() string { return r.runID }

// CycleResult is the outcome of one post cycle.
type CycleResult struct {
	Topic       string
	Text        string
	Posted      bool
	Regenerated bool
	Err         error
}

// Summary describes a completed multi-cycle run.
type Summary struct {
	RunID     string
	AccountID string
	Started   time.Time
	Finished  time.Time
	Session   auth.SessionUsed
	Cycles    []CycleResult
}

// Posted counts successful cycles.
func (s *Summary) Posted() int {
	n := 0
	for _, c := range s.Cycles {
		if c.Posted {
			n++
		}
	}
	return n
}

// Authenticate logs in, recording an auth event on failure.
func (r *Runner) Authenticate(ctx context.Context) (auth.Result, error) {
	acct := r.cfg.Account
	res, err := r.deps.Auth.Authenticate(ctx, acct.ID(), auth.Credentials{
		Username: acct.Username,
		Password: acct.Password,
		Handle:   acct.Handle,
	})
	if err != nil {
		kind := types.EventAuthFailure
		if errors.Is(err, browser.ErrInfrastructure) {
			kind = types.EventInfraFailure
		}
		r.event(ctx, kind, err.Error())
		return res, err
	}
	r.log.Info("Authenticated", zap.String("session", string(res.SessionUsed)))
	return res, nil
}

// Run authenticates and executes the configured number of post cycles, waiting a random
// gap between them. Cycle failures are recorded in the summary; authentication and
// infrastructure failures, an empty trend list and cancellation end the run early.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{RunID: r.runID, AccountID: r.cfg.Account.ID(), Started: time.Now()}
	defer func() { sum.Finished = time.Now() }()

	res, err := r.Authenticate(ctx)
	if err != nil {
		return sum, err
	}
	sum.Session = res.SessionUsed

	cycles := r.cfg.Posting.Cycles
	if cycles <= 0 {
		cycles = 1
	}
	for i := 1; i <= cycles; i++ {
		r.log.Info("Starting post cycle", zap.Int("cycle", i), zap.Int("of", cycles))
		cr := r.RunCycle(ctx)
		sum.Cycles = append(sum.Cycles, cr)

		if errors.Is(cr.Err, browser.ErrInfrastructure) {
			r.event(ctx, types.EventInfraFailure, cr.Err.Error())
			return sum, cr.Err
		}
		if errors.Is(cr.Err, ErrNoTrends) {
			r.event(ctx, types.EventRunSummary, fmt.Sprintf("aborted after %d of %d cycles: %v", len(sum.Cycles), cycles, cr.Err))
			return sum, cr.Err
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if i < cycles {
			gap := r.deps.Human.Between(r.cfg.Posting.CycleGapMin, r.cfg.Posting.CycleGapMax)
			r.log.Info("Waiting before next cycle", zap.Duration("gap", gap))
			if err := r.deps.Human.Wait(ctx, gap); err != nil {
				return sum, err
			}
		}
	}

	r.event(ctx, types.EventRunSummary, fmt.Sprintf("posted %d of %d cycles", sum.Posted(), len(sum.Cycles)))
	if sum.Posted() == 0 && len(sum.Cycles) == 1 {
		return sum, sum.Cycles[0].Err
	}
	return sum, nil
}

// RunCycle performs one post cycle on an authenticated session. Steps run strictly in order:
// nothing is generated before trend discovery has finished.
func (r *Runner) RunCycle(ctx context.Context) CycleResult {
	var res CycleResult
	pc := r.cfg.Posting

	if err := r.deps.Feed.OpenFeed(ctx); err != nil {
		if errors.Is(err, browser.ErrInfrastructure) {
			res.Err = err
			return res
		}
		r.log.Warn("Home timeline did not load", zap.Error(err))
	}
	if err := r.deps.Feed.ScrollFeed(ctx, pc.FeedScrolls); err != nil {
		r.log.Warn("Feed warm-up scroll failed", zap.Error(err))
	}

	trends := r.deps.Feed.DiscoverTrends(ctx, pc.MaxTrends)
	if len(trends) == 0 {
		res.Err = ErrNoTrends
		r.log.Error("Aborting cycle: no trends discovered")
		return res
	}
	if r.deps.Trends != nil {
		if path, err := r.deps.Trends.SaveTrends(trends); err != nil {
			r.log.Warn("Failed to cache discovered trends", zap.Error(err))
		} else {
			r.log.Debug("Cached discovered trends", zap.String("path", path))
		}
	}

	topic, _ := r.used.Pick(trends, r.deps.Human)
	res.Topic = topic.Topic
	r.log.Info("Selected topic",
		zap.String("topic", topic.Topic),
		zap.String("context", topic.ContextLabel),
		zap.Int("used_topics", r.used.Len()))

	gc := r.generate(ctx, topic, trends)
	if gc == nil {
		res.Err = fmt.Errorf("%w for %q", ErrNoContent, topic.Topic)
		return res
	}

	if v := r.deps.Diversity.Check(ctx, gc.Text); !v.Diverse {
		alt, ok := r.used.PickOther(trends, topic.Key(), r.deps.Human)
		if !ok {
			res.Err = fmt.Errorf("%w: too similar to a recent post and no other topic available", ErrNoContent)
			return res
		}
		r.log.Info("Regenerating with a different topic", zap.String("topic", alt.Topic))
		res.Regenerated = true
		res.Topic = alt.Topic
		if gc = r.generate(ctx, alt, trends); gc == nil {
			res.Err = fmt.Errorf("%w for %q", ErrNoContent, alt.Topic)
			return res
		}
	}
	res.Text = gc.Text

	res.Posted = r.deps.Poster.PostWithRetry(ctx, gc, pc.MaxRetries)
	if !res.Posted {
		res.Err = ErrNotPosted
	}
	return res
}

func (r *Runner) generate(ctx context.Context, topic types.TrendCandidate, trends []types.TrendCandidate) *types.GeneratedContent {
	samples := r.deps.Feed.SampleRecentPosts(ctx, topic.Topic, r.cfg.Posting.SampleSize)
	return r.deps.Generator.Generate(ctx, topic, trends, samples)
}

// event persists a run event. Errors only reach the log.
func (r *Runner) event(ctx context.Context, kind, msg string) {
	if r.deps.Events == nil {
		return
	}
	ev := types.RunEvent{
		RunID:     r.runID,
		AccountID: r.cfg.Account.ID(),
		Kind:      kind,
		Message:   msg,
		CreatedAt: time.Now(),
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.deps.Events.AppendRunEvent(wctx, ev); err != nil {
		r.log.Warn("Failed to record run event", zap.String("kind", kind), zap.Error(err))
	}
}
