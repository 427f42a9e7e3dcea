package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ibeckermayer/xpilot/internal/humanize"
)

// ErrNoMatch is returned when no selector of a list became visible.
var ErrNoMatch = errors.New("no selector matched")

// Selectors is an ordered list of candidate CSS selectors for one UI element.
// The DOM shifts often, so every element the bot touches is found through a list.
type Selectors []string

// FirstVisible tries each selector in order, giving each up to perTry to become visible,
// and returns the first one that does.
func (s Selectors) FirstVisible(ctx context.Context, p Page, perTry time.Duration) (string, error) {
	for _, sel := range s {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := p.WaitVisible(ctx, sel, perTry); err == nil {
			return sel, nil
		}
	}
	return "", fmt.Errorf("%w: [%s]", ErrNoMatch, strings.Join(s, ", "))
}

// Enter submits the focused form field when typed.
const Enter = '\r'

// TypeText types text one rune at a time with a human key cadence.
func TypeText(ctx context.Context, p Page, h *humanize.Humanizer, text string) error {
	for _, r := range text {
		if err := p.TypeRune(ctx, r); err != nil {
			return fmt.Errorf("failed to type: %w", err)
		}
		if err := h.Wait(ctx, h.KeyDelay()); err != nil {
			return err
		}
	}
	return nil
}

// HumanClick moves the pointer along a curved path to the center of box and clicks.
func HumanClick(ctx context.Context, p Page, h *humanize.Humanizer, box Box) error {
	x, y := box.Center()
	target := h.Jitter(humanize.Point{X: x, Y: y}, minFloat(box.Width, box.Height)/6)
	start := h.Jitter(target, 120)
	for _, pt := range h.Path(start, target, 12) {
		if err := p.MouseMove(ctx, pt.X, pt.Y); err != nil {
			return err
		}
		if err := h.Wait(ctx, h.Between(5*time.Millisecond, 20*time.Millisecond)); err != nil {
			return err
		}
	}
	return p.MouseClick(ctx, target.X, target.Y)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
