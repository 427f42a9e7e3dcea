package browser_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xpilot/internal/browser"
	"github.com/ibeckermayer/xpilot/internal/browser/browsertest"
	"github.com/ibeckermayer/xpilot/internal/humanize"
)

func TestSelectorsFirstVisible(t *testing.T) {
	ctx := context.Background()
	list := browser.Selectors{"#a", "#b", "#c"}

	t.Run("stops at first visible", func(t *testing.T) {
		page := browsertest.New()
		page.SetVisible("#b", true)
		page.SetVisible("#c", true)

		got, err := list.FirstVisible(ctx, page, 0)
		require.NoError(t, err)
		assert.Equal(t, "#b", got)
		assert.Equal(t, []string{"wait:#a", "wait:#b"}, page.CallsWithPrefix("wait:"))
	})

	t.Run("none visible", func(t *testing.T) {
		page := browsertest.New()
		_, err := list.FirstVisible(ctx, page, 0)
		assert.ErrorIs(t, err, browser.ErrNoMatch)
		assert.Len(t, page.CallsWithPrefix("wait:"), 3)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := list.FirstVisible(cctx, browsertest.New(), 0)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTypeText(t *testing.T) {
	page := browsertest.New()
	h := humanize.New(humanize.WithSeed(1), humanize.WithSleep(humanize.NoSleep))

	require.NoError(t, browser.TypeText(context.Background(), page, h, "héllo ✓"))
	assert.Equal(t, "héllo ✓", page.TypedText())
}

func TestHumanClickEndsOnTarget(t *testing.T) {
	page := browsertest.New()
	h := humanize.New(humanize.WithSeed(7), humanize.WithSleep(humanize.NoSleep))
	box := browser.Box{X: 100, Y: 200, Width: 60, Height: 30}

	require.NoError(t, browser.HumanClick(context.Background(), page, h, box))
	clicks := page.CallsWithPrefix("mouseclick:")
	require.Len(t, clicks, 1)

	var x, y float64
	_, err := fmt.Sscanf(strings.TrimPrefix(clicks[0], "mouseclick:"), "%f,%f", &x, &y)
	require.NoError(t, err)
	assert.InDelta(t, 130, x, 6)
	assert.InDelta(t, 215, y, 6)
}
