package executor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/browser"
)

// ErrAllClicksFailed is returned when every click strategy raised.
var ErrAllClicksFailed = errors.New("all click strategies failed")

// ClickMethod names the strategy that landed a click.
type ClickMethod string

const (
	ClickNative ClickMethod = "native"
	ClickScript ClickMethod = "script"
	ClickMouse  ClickMethod = "mouse"
)

// Click tries a native click, then a script click, then a mouse click at the element's
// center, stopping at the first strategy that does not fail.
func (e *Executor) Click(ctx context.Context, selector string) (ClickMethod, error) {
	var errs []error

	err := e.page.Click(ctx, selector)
	if err == nil {
		return ClickNative, nil
	}
	e.log.Debug("Native click failed, trying script click", zap.String("selector", selector), zap.Error(err))
	errs = append(errs, fmt.Errorf("native: %w", err))
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	err = e.page.ScriptClick(ctx, selector)
	if err == nil {
		return ClickScript, nil
	}
	e.log.Debug("Script click failed, trying mouse click", zap.String("selector", selector), zap.Error(err))
	errs = append(errs, fmt.Errorf("script: %w", err))
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	err = e.mouseClick(ctx, selector)
	if err == nil {
		return ClickMouse, nil
	}
	errs = append(errs, fmt.Errorf("mouse: %w", err))

	return "", fmt.Errorf("%w on %s: %w", ErrAllClicksFailed, selector, errors.Join(errs...))
}

func (e *Executor) mouseClick(ctx context.Context, selector string) error {
	box, err := e.page.BoundingBox(ctx, selector)
	if err != nil {
		return err
	}
	return browser.HumanClick(ctx, e.page, e.human, box)
}
