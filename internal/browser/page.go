package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ibeckermayer/xpilot/internal/types"
)

// Box is an element's bounding box in viewport coordinates.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the middle of the box.
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Page is a single browser tab. Selectors are CSS selectors.
// Every method blocks until the browser answers, the timeout expires, or ctx is done.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Evaluate runs script in the page and JSON-decodes its result into out (which may be nil).
	Evaluate(ctx context.Context, script string, out any) error

	// Click dispatches a native click on the first element matching selector.
	Click(ctx context.Context, selector string) error
	// ScriptClick calls element.click() from injected script.
	ScriptClick(ctx context.Context, selector string) error
	BoundingBox(ctx context.Context, selector string) (Box, error)
	MouseMove(ctx context.Context, x, y float64) error
	MouseClick(ctx context.Context, x, y float64) error

	Clear(ctx context.Context, selector string) error
	TypeRune(ctx context.Context, r rune) error

	Cookies(ctx context.Context) ([]types.Cookie, error)
	SetCookies(ctx context.Context, cookies []types.Cookie) error
	Screenshot(ctx context.Context, path string) error
}

// Storage areas
const (
	LocalStorage   = "localStorage"
	SessionStorage = "sessionStorage"
)

// ReadStorage snapshots a web storage area of the current origin.
func ReadStorage(ctx context.Context, p Page, area string) (map[string]string, error) {
	script := fmt.Sprintf(`(() => {
		const out = {};
		const s = window[%q];
		for (let i = 0; i < s.length; i++) {
			const k = s.key(i);
			out[k] = s.getItem(k);
		}
		return out;
	})()`, area)

	out := map[string]string{}
	if err := p.Evaluate(ctx, script, &out); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", area, err)
	}
	return out, nil
}

// WriteStorage restores a storage snapshot into the current origin.
func WriteStorage(ctx context.Context, p Page, area string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return err
	}
	script := fmt.Sprintf(`(() => {
		const data = %s;
		const s = window[%q];
		for (const [k, v] of Object.entries(data)) s.setItem(k, v);
		return true;
	})()`, payload, area)

	if err := p.Evaluate(ctx, script, nil); err != nil {
		return fmt.Errorf("failed to write %s: %w", area, err)
	}
	return nil
}

// ScrollBy scrolls the window vertically by dy pixels.
func ScrollBy(ctx context.Context, p Page, dy int) error {
	return p.Evaluate(ctx, fmt.Sprintf(`window.scrollBy({top: %d, behavior: "smooth"})`, dy), nil)
}

// BodyText returns the visible text of the document.
func BodyText(ctx context.Context, p Page) (string, error) {
	var text string
	err := p.Evaluate(ctx, `document.body ? document.body.innerText : ""`, &text)
	return text, err
}
