package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/browser"
	"github.com/ibeckermayer/xpilot/internal/humanize"
	"github.com/ibeckermayer/xpilot/internal/types"
)

// MinSampleLength is the shortest post body worth using as generation context.
const MinSampleLength = 20

const discoveryScrolls = 3

// Scraper reads trends and posts from the page the run controller owns.
type Scraper struct {
	page            browser.Page
	human           *humanize.Humanizer
	log             *zap.Logger
	selectorTimeout time.Duration
}

// New creates a scraper over page.
func New(page browser.Page, human *humanize.Humanizer, selectorTimeout time.Duration, logger *zap.Logger) *Scraper {
	if selectorTimeout <= 0 {
		selectorTimeout = 5 * time.Second
	}
	return &Scraper{
		page:            page,
		human:           human,
		log:             logger.Named("scraper"),
		selectorTimeout: selectorTimeout,
	}
}

// OpenFeed navigates to the home timeline and waits for the first post.
func (s *Scraper) OpenFeed(ctx context.Context) error {
	if err := s.page.Navigate(ctx, HomeURL); err != nil {
		return fmt.Errorf("failed to open home timeline: %w", err)
	}
	if err := s.page.WaitVisible(ctx, TweetArticle, s.selectorTimeout); err != nil {
		return fmt.Errorf("home timeline did not render: %w", err)
	}
	return nil
}

// ScrollFeed performs passes smooth-scroll increments on the current page.
// Pointer jitter between scrolls is best-effort.
func (s *Scraper) ScrollFeed(ctx context.Context, passes int) error {
	for i := 0; i < passes; i++ {
		if err := browser.ScrollBy(ctx, s.page, s.human.ScrollStep()); err != nil {
			return fmt.Errorf("failed to scroll: %w", err)
		}
		s.jitter(ctx)
		if err := s.human.Pause(ctx, time.Second, 3*time.Second); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scraper) jitter(ctx context.Context) {
	p := s.human.Jitter(humanize.Point{X: 640, Y: 400}, 250)
	if err := s.page.MouseMove(ctx, p.X, p.Y); err != nil {
		s.log.Debug("Pointer jitter failed", zap.Error(err))
	}
}

const trendsJS = `(() => Array.from(document.querySelectorAll('[data-testid="trend"]'))
	.map(el => (el.innerText || '').split('\n').map(s => s.trim()).filter(Boolean)))()`

// DiscoverTrends returns up to maxCount de-duplicated trends from the trending page.
// Scraping errors yield an empty result; a missing trend list is common and the caller
// decides what an empty list means.
func (s *Scraper) DiscoverTrends(ctx context.Context, maxCount int) []types.TrendCandidate {
	trends, err := s.discoverTrends(ctx, maxCount)
	if err != nil {
		s.log.Warn("Trend discovery failed", zap.Error(err))
		return nil
	}
	s.log.Info("Discovered trends", zap.Int("count", len(trends)))
	return trends
}

func (s *Scraper) discoverTrends(ctx context.Context, maxCount int) ([]types.TrendCandidate, error) {
	if err := s.page.Navigate(ctx, TrendingURL); err != nil {
		return nil, err
	}
	if err := s.page.WaitVisible(ctx, TrendBlock, s.selectorTimeout); err != nil {
		return nil, fmt.Errorf("no trends rendered: %w", err)
	}
	if err := s.ScrollFeed(ctx, discoveryScrolls); err != nil {
		return nil, err
	}

	var blocks [][]string
	if err := s.page.Evaluate(ctx, trendsJS, &blocks); err != nil {
		return nil, fmt.Errorf("failed to extract trends from DOM: %w", err)
	}
	return ParseTrendBlocks(blocks, maxCount), nil
}

// ParseTrendBlocks classifies, de-duplicates and caps the extracted blocks.
func ParseTrendBlocks(blocks [][]string, maxCount int) []types.TrendCandidate {
	var cands []types.TrendCandidate
	for _, b := range blocks {
		if c, ok := ClassifyFragments(b); ok {
			cands = append(cands, c)
		}
	}
	cands = Dedupe(cands)
	if maxCount > 0 && len(cands) > maxCount {
		cands = cands[:maxCount]
	}
	return cands
}

const sampleJS = `(() => Array.from(document.querySelectorAll('article[data-testid="tweet"] [data-testid="tweetText"]'))
	.map(el => (el.innerText || '').trim()))()`

// SampleRecentPosts returns up to sampleSize recent post bodies about topic. It never fails;
// whatever was found (possibly nothing) is returned.
func (s *Scraper) SampleRecentPosts(ctx context.Context, topic string, sampleSize int) []string {
	if sampleSize <= 0 {
		return nil
	}
	if err := s.page.Navigate(ctx, fmt.Sprintf(SearchURL, url.QueryEscape(topic))); err != nil {
		s.log.Warn("Could not open search", zap.String("topic", topic), zap.Error(err))
		return nil
	}
	if err := s.page.WaitVisible(ctx, TweetArticle, s.selectorTimeout); err != nil {
		s.log.Info("No posts found for topic", zap.String("topic", topic))
		return nil
	}
	if err := s.ScrollFeed(ctx, 1); err != nil {
		s.log.Debug("Scroll on search page failed", zap.Error(err))
	}

	var texts []string
	if err := s.page.Evaluate(ctx, sampleJS, &texts); err != nil {
		s.log.Warn("Failed to extract sample posts", zap.Error(err))
		return nil
	}
	return filterSamples(texts, sampleSize)
}

func filterSamples(texts []string, n int) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if utf8.RuneCountInString(t) <= MinSampleLength || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == n {
			break
		}
	}
	return out
}

// VisiblePost is a post on screen, addressable through PostSelector.
type VisiblePost struct {
	types.Post
	CanReply bool `json:"canReply"`
}

const visiblePostsJS = `(() => {
	const vh = window.innerHeight;
	return Array.from(document.querySelectorAll('article[data-testid="tweet"]'))
		.map((el, i) => {
			el.setAttribute('data-engage-post', String(i));
			const r = el.getBoundingClientRect();
			const textEl = el.querySelector('[data-testid="tweetText"]');
			const link = el.querySelector('a[href*="/status/"]');
			return {
				index: i,
				text: textEl ? textEl.innerText.trim() : '',
				link: link ? link.href : '',
				canReply: !!el.querySelector('[data-testid="reply"]'),
				visible: r.bottom > 0 && r.top < vh,
			};
		})
		.filter(p => p.visible);
})()`

// VisiblePosts returns the posts currently in the viewport.
func (s *Scraper) VisiblePosts(ctx context.Context) ([]VisiblePost, error) {
	var posts []VisiblePost
	if err := s.page.Evaluate(ctx, visiblePostsJS, &posts); err != nil {
		return nil, fmt.Errorf("failed to extract visible posts: %w", err)
	}
	return posts, nil
}

// PostSelector addresses the post with the given index from VisiblePosts.
func PostSelector(index int) string {
	return fmt.Sprintf(`article[%s="%d"]`, PostIndexAttr, index)
}
