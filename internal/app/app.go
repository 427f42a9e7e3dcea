// Package app wires configuration, storage, the browser and every automation component
// into one object the CLI commands drive.
package app

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
	"github.com/ibeckermayer/xpilot/internal/engagelog"
	"github.com/ibeckermayer/xpilot/internal/executor"
	"github.com/ibeckermayer/xpilot/internal/generator"
	"github.com/ibeckermayer/xpilot/internal/generator/providers"
	"github.com/ibeckermayer/xpilot/internal/humanize"
	"github.com/ibeckermayer/xpilot/internal/notifier"
	"github.com/ibeckermayer/xpilot/internal/poster"
	"github.com/ibeckermayer/xpilot/internal/report"
	"github.com/ibeckermayer/xpilot/internal/runner"
	"github.com/ibeckermayer/xpilot/internal/scraper"
	"github.com/ibeckermayer/xpilot/internal/store"
	"github.com/ibeckermayer/xpilot/internal/types"
)

// Mode selects which collaborators New builds.
type Mode int

const (
	// ModeLogin only needs the browser, the store and the authenticator.
	ModeLogin Mode = iota
	// ModePost adds generation, diversity and the retry orchestrator.
	ModePost
	// ModeEngage adds the engagement executor and the CSV engagement log.
	ModeEngage
)

const writeTimeout = 10 * time.Second

// App holds the components of one process.
type App struct {
	cfg   *config.Config
	log   *zap.Logger
	store store.Store
	cache *store.Cache

	handle      *browser.Handle
	engagements *engagelog.Writer
	runner      *runner.Runner
	auth        *auth.Authenticator
}

// OpenStore opens the configured store and the debug cache without launching a browser.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, *store.Cache, error) {
	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, nil, err
	}
	cache, err := store.NewCache("")
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to resolve cache directory: %w", err)
	}
	return st, cache, nil
}

// New opens the store, launches the browser and builds the components mode needs.
// Failures after the store is reachable are recorded as setup_failure run events.
func New(ctx context.Context, cfg *config.Config, mode Mode, logger *zap.Logger) (*App, error) {
	st, cache, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: logger, store: st, cache: cache}
	if err := a.build(ctx, mode); err != nil {
		a.setupFailure(ctx, err)
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, mode Mode) error {
	cfg := a.cfg

	// The browser outlives cancellation of ctx so shutdown can still screenshot; Close ends it.
	handle, err := browser.Launch(context.WithoutCancel(ctx), browser.LaunchOptions{
		Headless:  cfg.Browser.Headless,
		UserAgent: cfg.Browser.UserAgent,
		ProxyURL:  cfg.Browser.ProxyURL,
		ExecPath:  cfg.Browser.ExecPath,
	}, cfg.Browser.NavigationTimeout, a.log)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	a.handle = handle

	human := humanize.New()
	a.auth = auth.New(handle, a.store, human, cfg.Browser, a.log)
	feed := scraper.New(handle, human, cfg.Browser.SelectorTimeout, a.log)

	deps := runner.Deps{
		Auth:   a.auth,
		Feed:   feed,
		Events: a.store,
		Trends: a.cache,
		Human:  human,
	}

	if mode == ModePost || mode == ModeEngage {
		provider, err := providers.New(ctx, cfg.Generation)
		if err != nil {
			return err
		}
		gen := generator.New(provider, cfg.Generation, a.cache, a.log)
		exec := executor.New(handle, human, feed, gen, cfg.Browser, cfg.Engagement, a.log)

		deps.Generator = gen
		deps.Diversity = diversity.New(a.store, cfg.Diversity, a.log)
		deps.Poster = poster.New(exec, a.store, human, cfg.Account.ID(), a.log)
		deps.Engager = exec
	}

	if mode == ModeEngage {
		w, err := engagelog.Open(cfg.Engagement.LogFile)
		if err != nil {
			return err
		}
		a.engagements = w
		deps.Engagements = w
		a.log.Info("Writing engagement log", zap.String("path", w.Path()))
	}

	a.runner = runner.New(*cfg, deps, a.log)
	return nil
}

func (a *App) setupFailure(ctx context.Context, cause error) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	err := a.store.AppendRunEvent(wctx, types.RunEvent{
		RunID:     uuid.New().String(),
		AccountID: a.cfg.Account.ID(),
		Kind:      types.EventSetupFailure,
		Message:   cause.Error(),
		CreatedAt: time.Now(),
	})
	if err != nil {
		a.log.Warn("Failed to record setup failure", zap.Error(err))
	}
}

// Runner returns the run controller.
func (a *App) Runner() *runner.Runner { return a.runner }

// Store returns the persistent store.
func (a *App) Store() store.Store { return a.store }

// Login authenticates and persists the session without posting.
func (a *App) Login(ctx context.Context) (auth.Result, error) {
	return a.runner.Authenticate(ctx)
}

// SaveReport renders the content log since since, writes it to the cache and returns it.
func (a *App) SaveReport(ctx context.Context, since time.Time) (*report.Report, error) {
	r, err := BuildReport(ctx, a.store, a.cfg.Account.ID(), since)
	if err != nil {
		return nil, err
	}
	path, err := a.cache.SaveText(store.CacheReports, []byte(r.HTMLBody), ".html")
	if err != nil {
		return r, fmt.Errorf("failed to save report: %w", err)
	}
	a.log.Info("Report saved", zap.String("path", path), zap.Int("posted", r.Posted), zap.Int("failed", r.Failed))
	return r, nil
}

// BuildReport renders the content log of accountID since since.
func BuildReport(ctx context.Context, st store.Store, accountID string, since time.Time) (*report.Report, error) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	entries, err := st.ContentLogSince(wctx, accountID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to read content log: %w", err)
	}
	b, err := report.New(0)
	if err != nil {
		return nil, err
	}
	return b.Build(accountID, "Run report", entries)
}

// EmailReport sends r when email delivery is enabled. Disabled delivery is not an error.
func EmailReport(cfg config.EmailConfig, r *report.Report, logger *zap.Logger) error {
	n, err := notifier.NewFromConfig(cfg)
	if errors.Is(err, notifier.ErrDisabled) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := n.SendReport(r); err != nil {
		return err
	}
	logger.Info("Report emailed", zap.String("to", cfg.ToAddr))
	return nil
}

// Engage runs the engagement loop until ctx is done.
func (a *App) Engage(ctx context.Context) (runner.EngageStats, error) {
	return a.runner.Engage(ctx)
}

// Close releases the browser, the engagement log and the store.
func (a *App) Close() {
	if a.handle != nil {
		a.handle.Close()
	}
	if a.engagements != nil {
		if err := a.engagements.Close(); err != nil {
			a.log.Warn("Failed to close engagement log", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("Failed to close store", zap.Error(err))
		}
	}
}
