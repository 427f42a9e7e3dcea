package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/types"
)

// stealthScript runs before any page script on every navigation.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
window.chrome = window.chrome || { runtime: {} };
`

// Handle is a chromedp-backed Page owning one browser and one tab.
type Handle struct {
	mu     sync.Mutex
	parent context.Context
	opts   LaunchOptions
	tab    context.Context
	cancel context.CancelFunc
	navTO  time.Duration
	direct bool
	log    *zap.Logger
}

// Launch starts a browser. The browser lives until Close is called or parent is done.
func Launch(parent context.Context, opts LaunchOptions, navigationTimeout time.Duration, logger *zap.Logger) (*Handle, error) {
	if navigationTimeout <= 0 {
		navigationTimeout = 60 * time.Second
	}
	h := &Handle{
		parent: parent,
		opts:   opts,
		navTO:  navigationTimeout,
		log:    logger.Named("browser"),
	}
	if err := h.start(opts); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handle) start(opts LaunchOptions) error {
	allocCtx, allocCancel := chromedp.NewExecAllocator(h.parent, Options(opts)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser process.
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	}))
	if err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	h.tab = tabCtx
	h.cancel = func() {
		tabCancel()
		allocCancel()
	}
	h.log.Info("Browser started", zap.Bool("headless", opts.Headless), zap.Bool("proxy", opts.ProxyURL != ""))
	return nil
}

// Close shuts the browser down.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (h *Handle) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	h.mu.Lock()
	tab := h.tab
	h.mu.Unlock()

	runCtx, cancel := context.WithTimeout(tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// goDirect relaunches the browser without the proxy, carrying cookies across.
func (h *Handle) goDirect(ctx context.Context) error {
	if h.direct || h.opts.ProxyURL == "" {
		return fmt.Errorf("%w: no proxy to bypass", ErrTunnel)
	}
	h.log.Warn("Proxy tunnel failed, falling back to a direct connection")

	cookies, err := h.Cookies(ctx)
	if err != nil {
		h.log.Warn("Could not carry cookies across relaunch", zap.Error(err))
	}

	h.Close()
	direct := h.opts
	direct.ProxyURL = ""

	h.mu.Lock()
	err = h.start(direct)
	h.mu.Unlock()
	if err != nil {
		return err
	}
	h.direct = true

	if len(cookies) > 0 {
		return h.SetCookies(ctx, cookies)
	}
	return nil
}

func (h *Handle) Navigate(ctx context.Context, url string) error {
	nav := func() error {
		return h.run(ctx, h.navTO, chromedp.Navigate(url))
	}
	err := withDirectFallback(nav, func() error { return h.goDirect(ctx) })
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (h *Handle) Location(ctx context.Context) (string, error) {
	var url string
	err := h.run(ctx, 10*time.Second, chromedp.Location(&url))
	return url, err
}

func (h *Handle) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return h.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (h *Handle) Evaluate(ctx context.Context, script string, out any) error {
	if out == nil {
		return h.run(ctx, 30*time.Second, chromedp.Evaluate(script, nil))
	}
	var raw json.RawMessage
	if err := h.run(ctx, 30*time.Second, chromedp.Evaluate(script, &raw)); err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (h *Handle) Click(ctx context.Context, selector string) error {
	return h.run(ctx, 10*time.Second, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (h *Handle) ScriptClick(ctx context.Context, selector string) error {
	sel, _ := json.Marshal(selector)
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.click();
		return true;
	})()`, sel)

	var ok bool
	if err := h.Evaluate(ctx, script, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no element matches %s", selector)
	}
	return nil
}

func (h *Handle) BoundingBox(ctx context.Context, selector string) (Box, error) {
	sel, _ := json.Marshal(selector)
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return null;
		const r = el.getBoundingClientRect();
		return {x: r.x, y: r.y, width: r.width, height: r.height};
	})()`, sel)

	var box *Box
	if err := h.Evaluate(ctx, script, &box); err != nil {
		return Box{}, err
	}
	if box == nil || box.Width == 0 || box.Height == 0 {
		return Box{}, fmt.Errorf("element %s has no layout box", selector)
	}
	return *box, nil
}

func (h *Handle) MouseMove(ctx context.Context, x, y float64) error {
	return h.run(ctx, 5*time.Second, chromedp.MouseEvent(input.MouseMoved, x, y))
}

func (h *Handle) MouseClick(ctx context.Context, x, y float64) error {
	return h.run(ctx, 5*time.Second, chromedp.MouseClickXY(x, y))
}

func (h *Handle) Clear(ctx context.Context, selector string) error {
	sel, _ := json.Marshal(selector)
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.focus();
		if ('value' in el) { el.value = ''; return true; }
		document.execCommand('selectAll', false, null);
		document.execCommand('delete', false, null);
		return true;
	})()`, sel)
	var ok bool
	if err := h.Evaluate(ctx, script, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no element matches %s", selector)
	}
	return nil
}

func (h *Handle) TypeRune(ctx context.Context, r rune) error {
	return h.run(ctx, 5*time.Second, chromedp.KeyEvent(string(r)))
}

func (h *Handle) Cookies(ctx context.Context) ([]types.Cookie, error) {
	var raw []*network.Cookie
	err := h.run(ctx, 10*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	cookies := make([]types.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, types.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
			Expires:  c.Expires,
		})
	}
	return cookies, nil
}

func (h *Handle) SetCookies(ctx context.Context, cookies []types.Cookie) error {
	return h.run(ctx, 15*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			set := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if c.SameSite != "" {
				set = set.WithSameSite(network.CookieSameSite(c.SameSite))
			}
			if c.Expires > 0 {
				exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				set = set.WithExpires(&exp)
			}
			if err := set.Do(ctx); err != nil {
				return fmt.Errorf("failed to set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
}

func (h *Handle) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := h.run(ctx, 15*time.Second, chromedp.FullScreenshot(&buf, 80)); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}

var _ Page = (*Handle)(nil)
