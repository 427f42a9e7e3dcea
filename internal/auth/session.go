package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ibeckermayer/xpilot/internal/browser"
	"github.com/ibeckermayer/xpilot/internal/types"
)

// Cookies X sets only for a logged-in browser.
var requiredCookies = []string{"auth_token", "ct0"}

// SessionStore is the persistence the Authenticator needs.
type SessionStore interface {
	// LoadSession returns nil, nil when nothing is stored for accountID.
	LoadSession(ctx context.Context, accountID string) (*types.Session, error)
	SaveSession(ctx context.Context, s *types.Session) error
}

// usable reports whether a stored session is worth restoring at all.
func usable(s *types.Session, now time.Time) bool {
	if s == nil {
		return false
	}
	for _, name := range requiredCookies {
		if !s.HasCookie(name) {
			return false
		}
	}
	for _, c := range s.Cookies {
		if c.Name == "auth_token" && c.Expires > 0 && time.Unix(int64(c.Expires), 0).Before(now) {
			return false
		}
	}
	return true
}

// xCookies keeps only the cookies belonging to x.com or twitter.com.
func xCookies(cookies []types.Cookie) []types.Cookie {
	var out []types.Cookie
	for _, c := range cookies {
		d := strings.TrimPrefix(c.Domain, ".")
		if d == "x.com" || strings.HasSuffix(d, ".x.com") || d == "twitter.com" || strings.HasSuffix(d, ".twitter.com") {
			out = append(out, c)
		}
	}
	return out
}

// Capture snapshots the page's cookies and web storage as a Session for accountID.
func Capture(ctx context.Context, p browser.Page, accountID string) (*types.Session, error) {
	cookies, err := p.Cookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to extract cookies: %w", err)
	}
	local, err := browser.ReadStorage(ctx, p, browser.LocalStorage)
	if err != nil {
		return nil, err
	}
	session, err := browser.ReadStorage(ctx, p, browser.SessionStorage)
	if err != nil {
		return nil, err
	}
	return &types.Session{
		AccountID:      accountID,
		Cookies:        xCookies(cookies),
		LocalStorage:   local,
		SessionStorage: session,
	}, nil
}

// restore applies s to the page. Cookies go in first so the home page loads logged in;
// storage can only be written once the page is on the x.com origin.
func restore(ctx context.Context, p browser.Page, s *types.Session, homeURL string) error {
	if err := p.SetCookies(ctx, s.Cookies); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	if err := p.Navigate(ctx, homeURL); err != nil {
		return err
	}
	if err := browser.WriteStorage(ctx, p, browser.LocalStorage, s.LocalStorage); err != nil {
		return err
	}
	return browser.WriteStorage(ctx, p, browser.SessionStorage, s.SessionStorage)
}
