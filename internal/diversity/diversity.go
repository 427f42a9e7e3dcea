// Package diversity rejects generated posts that read too much like recent ones.
package diversity

import (
	"context"
	"strings"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/types"
)

const (
	DefaultThreshold   = 0.7
	DefaultLookback    = 24 * time.Hour
	DefaultHistorySize = 20
)

// History supplies recently posted content.
type History interface {
	RecentSuccessfulContent(ctx context.Context, since time.Time, limit int) ([]types.ContentLogEntry, error)
}

// Verdict is the outcome of a diversity check.
type Verdict struct {
	Diverse      bool
	Score        float64 // highest similarity seen
	ClosestMatch string
}

// Guard compares candidates against recent successful posts.
type Guard struct {
	history   History
	threshold float64
	lookback  time.Duration
	limit     int
	metric    strutil.StringMetric
	now       func() time.Time
	log       *zap.Logger
}

// New creates a guard. Zero config values fall back to the defaults.
func New(history History, cfg config.DiversityConfig, logger *zap.Logger) *Guard {
	g := &Guard{
		history:   history,
		threshold: cfg.Threshold,
		lookback:  cfg.Lookback,
		limit:     cfg.HistorySize,
		metric:    metrics.NewSorensenDice(),
		now:       time.Now,
		log:       logger.Named("diversity"),
	}
	if g.threshold <= 0 {
		g.threshold = DefaultThreshold
	}
	if g.lookback <= 0 {
		g.lookback = DefaultLookback
	}
	if g.limit <= 0 {
		g.limit = DefaultHistorySize
	}
	return g
}

// IsSufficientlyDiverse reports whether text may be posted.
func (g *Guard) IsSufficientlyDiverse(ctx context.Context, text string) bool {
	return g.Check(ctx, text).Diverse
}

// Check scores text against history. A history lookup failure lets the text through.
func (g *Guard) Check(ctx context.Context, text string) Verdict {
	entries, err := g.history.RecentSuccessfulContent(ctx, g.now().Add(-g.lookback), g.limit)
	if err != nil {
		g.log.Warn("Could not load content history, skipping diversity check", zap.Error(err))
		return Verdict{Diverse: true}
	}

	v := Verdict{Diverse: true}
	for _, e := range entries {
		score := g.similarity(text, e.Text)
		if score > v.Score {
			v.Score = score
			v.ClosestMatch = e.Text
		}
	}
	if v.Score > g.threshold {
		v.Diverse = false
		g.log.Info("Generated text is too similar to a recent post",
			zap.Float64("similarity", v.Score),
			zap.Float64("threshold", g.threshold),
			zap.String("closest_match", v.ClosestMatch))
	}
	return v
}

// similarity is the case-insensitive Sørensen-Dice bigram similarity of a and b, in [0, 1].
func (g *Guard) similarity(a, b string) float64 {
	return strutil.Similarity(strings.ToLower(a), strings.ToLower(b), g.metric)
}
