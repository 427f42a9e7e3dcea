// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ibeckermayer/xpilot/internal/browser"
	"github.com/ibeckermayer/xpilot/internal/types"
)

// ErrNotVisible is returned by WaitVisible for selectors the fake does not show.
var ErrNotVisible = errors.New("browsertest: element not visible")

// EvalFunc answers an Evaluate call. The returned value is JSON round-tripped into out.
type EvalFunc func(script string) (any, error)

// Page is a scriptable fake. Zero value is usable; fields may be set before use.
type Page struct {
	mu sync.Mutex

	URL string
	// Redirects maps a navigated URL to the URL the page ends up on.
	Redirects   map[string]string
	NavigateErr map[string]error

	Visible map[string]bool

	Eval EvalFunc

	ClickErr       map[string]error
	ScriptClickErr map[string]error
	MouseClickErr  error
	Boxes          map[string]browser.Box
	ClearErr       error
	TypeErr        error

	// OnType runs after every typed rune, outside the page lock.
	OnType func(r rune)

	Jar           []types.Cookie
	ScreenshotErr error

	Calls       []string
	Typed       strings.Builder
	Screenshots []string
	Scripts     []string
}

// New returns an empty fake page.
func New() *Page {
	return &Page{
		Visible:        map[string]bool{},
		Redirects:      map[string]string{},
		NavigateErr:    map[string]error{},
		ClickErr:       map[string]error{},
		ScriptClickErr: map[string]error{},
		Boxes:          map[string]browser.Box{},
	}
}

func (p *Page) record(call string) {
	p.Calls = append(p.Calls, call)
}

// CallsWithPrefix returns the recorded calls starting with prefix, in order.
func (p *Page) CallsWithPrefix(prefix string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, c := range p.Calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// SetVisible toggles visibility of selector.
func (p *Page) SetVisible(selector string, visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Visible == nil {
		p.Visible = map[string]bool{}
	}
	p.Visible[selector] = visible
}

// TypedText returns everything typed so far.
func (p *Page) TypedText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Typed.String()
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("navigate:" + url)
	if err, ok := p.NavigateErr[url]; ok && err != nil {
		return err
	}
	if to, ok := p.Redirects[url]; ok {
		p.URL = to
		return nil
	}
	p.URL = url
	return nil
}

func (p *Page) Location(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.URL, ctx.Err()
}

func (p *Page) WaitVisible(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("wait:" + selector)
	if p.Visible[selector] {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotVisible, selector)
}

func (p *Page) Evaluate(ctx context.Context, script string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.Scripts = append(p.Scripts, script)
	eval := p.Eval
	p.mu.Unlock()

	if eval == nil {
		return nil
	}
	v, err := eval(script)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (p *Page) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("click:" + selector)
	return p.ClickErr[selector]
}

func (p *Page) ScriptClick(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("scriptclick:" + selector)
	return p.ScriptClickErr[selector]
}

func (p *Page) BoundingBox(ctx context.Context, selector string) (browser.Box, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("box:" + selector)
	box, ok := p.Boxes[selector]
	if !ok {
		return browser.Box{}, fmt.Errorf("no box for %s", selector)
	}
	return box, nil
}

func (p *Page) MouseMove(ctx context.Context, x, y float64) error {
	return ctx.Err()
}

func (p *Page) MouseClick(ctx context.Context, x, y float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(fmt.Sprintf("mouseclick:%.0f,%.0f", x, y))
	return p.MouseClickErr
}

func (p *Page) Clear(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("clear:" + selector)
	if p.ClearErr != nil {
		return p.ClearErr
	}
	p.Typed.Reset()
	return nil
}

func (p *Page) TypeRune(ctx context.Context, r rune) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	if p.TypeErr != nil {
		p.mu.Unlock()
		return p.TypeErr
	}
	p.Typed.WriteRune(r)
	hook := p.OnType
	p.mu.Unlock()

	if hook != nil {
		hook(r)
	}
	return nil
}

// SetJar replaces the cookie jar without recording a call.
func (p *Page) SetJar(cookies []types.Cookie) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Jar = append([]types.Cookie(nil), cookies...)
}

// SetURL moves the page to url without recording a navigation.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.URL = url
}

func (p *Page) Cookies(ctx context.Context) ([]types.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.Cookie, len(p.Jar))
	copy(out, p.Jar)
	return out, ctx.Err()
}

func (p *Page) SetCookies(ctx context.Context, cookies []types.Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(fmt.Sprintf("setcookies:%d", len(cookies)))
	p.Jar = append([]types.Cookie(nil), cookies...)
	return ctx.Err()
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Screenshots = append(p.Screenshots, path)
	return p.ScreenshotErr
}

var _ browser.Page = (*Page)(nil)
