package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/browser"
	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/humanize"
	"github.com/ibeckermayer/xpilot/internal/types"
)

// ErrAuthFailure means the login flow could not reach an authenticated state.
var ErrAuthFailure = errors.New("authentication failed")

const (
	HomeURL  = "https://x.com/home"
	LoginURL = "https://x.com/i/flow/login"
	// ProbeURL is only reachable with a valid session; X redirects it to the login flow otherwise.
	ProbeURL = "https://x.com/settings/account"
)

// SessionUsed says where the authenticated state came from.
type SessionUsed string

const (
	SessionReused SessionUsed = "reused"
	SessionFresh  SessionUsed = "fresh"
)

// Result is returned on successful authentication.
type Result struct {
	OK          bool
	SessionUsed SessionUsed
}

// Credentials for the interactive login.
type Credentials struct {
	Username string
	Password string
	// Handle answers the "enter your username" challenge; Username is used when empty.
	Handle string
}

// Phrases X shows when it wants the account handle before the password.
var verificationPhrases = []string{
	"enter your phone number or username",
	"enter your phone number or email",
	"unusual login activity",
	"verify it's you",
	"confirm your identity",
	"help us keep your account safe",
}

var (
	usernameInput = browser.Selectors{
		`input[autocomplete="username"]`,
		`input[name="text"]`,
	}
	challengeInput = browser.Selectors{
		`input[data-testid="ocfEnterTextTextInput"]`,
		`input[name="text"]`,
	}
	passwordInput = browser.Selectors{
		`input[name="password"]`,
		`input[autocomplete="current-password"]`,
		`input[type="password"]`,
	}
)

// Authenticator reuses a stored session when it is still valid and logs in otherwise.
type Authenticator struct {
	page  browser.Page
	store SessionStore
	human *humanize.Humanizer
	log   *zap.Logger

	selectorTimeout time.Duration
	loginTimeout    time.Duration
	pollInterval    time.Duration
}

// New creates an Authenticator driving page.
func New(page browser.Page, store SessionStore, human *humanize.Humanizer, cfg config.BrowserConfig, logger *zap.Logger) *Authenticator {
	a := &Authenticator{
		page:            page,
		store:           store,
		human:           human,
		log:             logger.Named("auth"),
		selectorTimeout: cfg.SelectorTimeout,
		loginTimeout:    cfg.LoginTimeout,
		pollInterval:    time.Second,
	}
	if a.selectorTimeout <= 0 {
		a.selectorTimeout = 5 * time.Second
	}
	if a.loginTimeout <= 0 {
		a.loginTimeout = 30 * time.Second
	}
	return a
}

// Authenticate leaves the page logged in as accountID. There is no internal retry:
// a failed login is returned wrapped in ErrAuthFailure for the caller to decide on.
func (a *Authenticator) Authenticate(ctx context.Context, accountID string, creds Credentials) (Result, error) {
	log := a.log.With(zap.String("account", accountID))

	sess, err := a.store.LoadSession(ctx, accountID)
	if err != nil {
		log.Warn("Could not load stored session, logging in", zap.Error(err))
		sess = nil
	}

	switch {
	case sess == nil:
		log.Info("No stored session")
	case !usable(sess, time.Now()):
		log.Info("Stored session is missing auth cookies or expired")
	default:
		ok, err := a.tryReuse(ctx, sess)
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err != nil {
			log.Warn("Session reuse failed", zap.Error(err))
		}
		if ok {
			log.Info("Reusing stored session")
			return Result{OK: true, SessionUsed: SessionReused}, nil
		}
		log.Info("Stored session is no longer valid")
	}

	if err := a.Login(ctx, creds); err != nil {
		return Result{}, err
	}

	fresh, err := Capture(ctx, a.page, accountID)
	if err != nil {
		log.Error("Logged in but could not capture session", zap.Error(err))
		return Result{OK: true, SessionUsed: SessionFresh}, nil
	}
	if err := a.store.SaveSession(ctx, fresh); err != nil {
		log.Error("Logged in but could not persist session", zap.Error(err))
	} else {
		log.Info("Session saved", zap.Int("cookies", len(fresh.Cookies)))
	}
	return Result{OK: true, SessionUsed: SessionFresh}, nil
}

func (a *Authenticator) tryReuse(ctx context.Context, sess *types.Session) (bool, error) {
	if err := restore(ctx, a.page, sess, HomeURL); err != nil {
		return false, err
	}
	return a.Probe(ctx)
}

// Probe reports whether the page's current cookies grant access to an authenticated-only URL.
func (a *Authenticator) Probe(ctx context.Context) (bool, error) {
	if err := a.page.Navigate(ctx, ProbeURL); err != nil {
		return false, err
	}
	loc, err := a.page.Location(ctx)
	if err != nil {
		return false, err
	}
	return !isLoginURL(loc), nil
}

// Login runs the interactive username / challenge / password flow.
func (a *Authenticator) Login(ctx context.Context, creds Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("%w: missing credentials", ErrAuthFailure)
	}
	a.log.Info("Logging in", zap.String("username", creds.Username))

	if err := a.page.Navigate(ctx, LoginURL); err != nil {
		return fmt.Errorf("%w: %w", ErrAuthFailure, err)
	}

	if err := a.fill(ctx, usernameInput, creds.Username, a.loginTimeout); err != nil {
		return fmt.Errorf("%w: username step: %w", ErrAuthFailure, err)
	}

	if a.challenged(ctx) {
		handle := creds.Handle
		if handle == "" {
			handle = creds.Username
		}
		a.log.Info("Verification challenge shown, entering handle")
		if err := a.fill(ctx, challengeInput, handle, a.selectorTimeout); err != nil {
			return fmt.Errorf("%w: challenge step: %w", ErrAuthFailure, err)
		}
	}

	if err := a.fill(ctx, passwordInput, creds.Password, a.loginTimeout); err != nil {
		return fmt.Errorf("%w: password step: %w", ErrAuthFailure, err)
	}

	if err := a.waitForLogin(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrAuthFailure, err)
	}
	a.log.Info("Login succeeded")
	return nil
}

// fill finds the field, types value into it and submits with Enter.
func (a *Authenticator) fill(ctx context.Context, field browser.Selectors, value string, timeout time.Duration) error {
	sel, err := field.FirstVisible(ctx, a.page, timeout)
	if err != nil {
		return err
	}
	if err := a.page.Click(ctx, sel); err != nil {
		return err
	}
	if err := browser.TypeText(ctx, a.page, a.human, value); err != nil {
		return err
	}
	if err := a.human.ShortPause(ctx); err != nil {
		return err
	}
	if err := a.page.TypeRune(ctx, browser.Enter); err != nil {
		return err
	}
	return a.human.Pause(ctx, time.Second, 2*time.Second)
}

// challenged reports whether the page text asks for the account handle.
func (a *Authenticator) challenged(ctx context.Context) bool {
	text, err := browser.BodyText(ctx, a.page)
	if err != nil {
		return false
	}
	text = strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	for _, phrase := range verificationPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// waitForLogin polls until the page leaves the login flow or loginTimeout worth of polls pass.
func (a *Authenticator) waitForLogin(ctx context.Context) error {
	polls := int(a.loginTimeout / a.pollInterval)
	for i := 0; ; i++ {
		loc, err := a.page.Location(ctx)
		if err == nil && loc != "" && !isLoginURL(loc) {
			return nil
		}
		if i >= polls {
			return errors.New("login failed: still on the login page")
		}
		if err := a.human.Wait(ctx, a.pollInterval); err != nil {
			return err
		}
	}
}

func isLoginURL(u string) bool {
	return strings.Contains(u, "/login") || strings.Contains(u, "/i/flow/")
}
