package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/browser/browsertest"
	"github.com/ibeckermayer/xpilot/internal/humanize"
	"github.com/ibeckermayer/xpilot/internal/types"
)

func TestClassifyFragments(t *testing.T) {
	tests := []struct {
		name  string
		frags []string
		want  types.TrendCandidate
		ok    bool
	}{
		{
			name:  "full block",
			frags: []string{"1", "Sports · Trending", "Lakers", "12.5K posts"},
			want:  types.TrendCandidate{Topic: "Lakers", ContextLabel: "Sports · Trending", VolumeLabel: "12.5K posts"},
			ok:    true,
		},
		{
			name:  "rank number is not a topic",
			frags: []string{"3,204", "#GoLang"},
			want:  types.TrendCandidate{Topic: "#GoLang"},
			ok:    true,
		},
		{
			name:  "count suffix is volume",
			frags: []string{"Technology · Trending", "OpenAI", "45K"},
			want:  types.TrendCandidate{Topic: "OpenAI", ContextLabel: "Technology · Trending", VolumeLabel: "45K"},
			ok:    true,
		},
		{
			name:  "single character is skipped",
			frags: []string{"·", "x", "Golang"},
			want:  types.TrendCandidate{Topic: "Golang", ContextLabel: "·"},
			ok:    true,
		},
		{
			name:  "no topic",
			frags: []string{"2", "Music · Trending", "8,000 posts"},
			ok:    false,
		},
		{
			name: "empty",
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ClassifyFragments(tt.frags)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseCount(t *testing.T) {
	assert.Equal(t, 1200, ParseCount("1.2K"))
	assert.Equal(t, 5700000, ParseCount("5.7M"))
	assert.Equal(t, 1234, ParseCount("1,234"))
	assert.Equal(t, 0, ParseCount("lots"))
	assert.Equal(t, 0, ParseCount(""))
}

func TestDedupe(t *testing.T) {
	in := []types.TrendCandidate{{Topic: "Go"}, {Topic: " go "}, {Topic: "Rust"}, {Topic: "GO"}}
	out := Dedupe(in)
	require.Len(t, out, 2)
	assert.Equal(t, "Go", out[0].Topic)
	assert.Equal(t, "Rust", out[1].Topic)
}

var trendBlocks = [][]string{
	{"1", "Sports · Trending", "Lakers", "12.5K posts"},
	{"2", "Politics · Trending", "Election", "200K posts"},
	{"3", "Sports · Trending", "lakers", "9K posts"},
	{"4", "Tech · Trending", "Golang", "3K posts"},
}

func newTestScraper(page *browsertest.Page) *Scraper {
	h := humanize.New(humanize.WithSeed(1), humanize.WithSleep(humanize.NoSleep))
	return New(page, h, 0, zap.NewNop())
}

func TestDiscoverTrends(t *testing.T) {
	page := browsertest.New()
	page.SetVisible(TrendBlock, true)
	page.Eval = func(script string) (any, error) {
		if strings.Contains(script, `data-testid="trend"`) {
			return trendBlocks, nil
		}
		return nil, nil
	}
	s := newTestScraper(page)

	first := s.DiscoverTrends(context.Background(), 15)
	require.Len(t, first, 3)
	assert.Equal(t, "Lakers", first[0].Topic)
	assert.Equal(t, "Golang", first[2].Topic)

	second := s.DiscoverTrends(context.Background(), 15)
	assert.Equal(t, first, second, "same page yields the same topic set")

	capped := s.DiscoverTrends(context.Background(), 2)
	assert.Len(t, capped, 2)

	assert.Contains(t, page.CallsWithPrefix("navigate:"), "navigate:"+TrendingURL)
}

func TestDiscoverTrendsFailuresAreEmpty(t *testing.T) {
	t.Run("no trend blocks", func(t *testing.T) {
		page := browsertest.New()
		assert.Empty(t, newTestScraper(page).DiscoverTrends(context.Background(), 15))
	})

	t.Run("extraction error", func(t *testing.T) {
		page := browsertest.New()
		page.SetVisible(TrendBlock, true)
		page.Eval = func(script string) (any, error) {
			if strings.Contains(script, `data-testid="trend"`) {
				return nil, errors.New("execution context destroyed")
			}
			return nil, nil
		}
		assert.Empty(t, newTestScraper(page).DiscoverTrends(context.Background(), 15))
	})

	t.Run("navigation error", func(t *testing.T) {
		page := browsertest.New()
		page.NavigateErr[TrendingURL] = errors.New("net::ERR_TIMED_OUT")
		assert.Empty(t, newTestScraper(page).DiscoverTrends(context.Background(), 15))
	})
}

func TestSampleRecentPosts(t *testing.T) {
	page := browsertest.New()
	page.SetVisible(TweetArticle, true)
	page.Eval = func(script string) (any, error) {
		if strings.Contains(script, "tweetText") {
			return []string{
				"too short",
				"This one is long enough to be used as a sample",
				"This one is long enough to be used as a sample",
				"Another sufficiently long post about the topic",
				"A third long post that should be cut by the cap",
			}, nil
		}
		return nil, nil
	}
	s := newTestScraper(page)

	got := s.SampleRecentPosts(context.Background(), "Go 1.24", 2)
	assert.Equal(t, []string{
		"This one is long enough to be used as a sample",
		"Another sufficiently long post about the topic",
	}, got)
	assert.Equal(t, "navigate:https://x.com/search?q=Go+1.24&src=typed_query&f=live", page.CallsWithPrefix("navigate:")[0])
}

func TestSampleRecentPostsNothingFound(t *testing.T) {
	page := browsertest.New()
	assert.Empty(t, newTestScraper(page).SampleRecentPosts(context.Background(), "nothing", 2))
}

func TestVisiblePosts(t *testing.T) {
	page := browsertest.New()
	page.Eval = func(script string) (any, error) {
		return []map[string]any{
			{"index": 0, "text": "hello", "link": "https://x.com/a/status/1", "canReply": true},
			{"index": 3, "text": "", "link": "https://x.com/b/status/2", "canReply": false},
		}, nil
	}
	posts, err := newTestScraper(page).VisiblePosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "hello", posts[0].Text)
	assert.True(t, posts[0].CanReply)
	assert.Equal(t, 3, posts[1].Index)
	assert.Equal(t, `article[data-engage-post="3"]`, PostSelector(posts[1].Index))
}

func TestOpenFeed(t *testing.T) {
	page := browsertest.New()
	s := newTestScraper(page)
	assert.Error(t, s.OpenFeed(context.Background()))

	page.SetVisible(TweetArticle, true)
	require.NoError(t, s.OpenFeed(context.Background()))
	assert.Equal(t, []string{"navigate:" + HomeURL, "navigate:" + HomeURL}, page.CallsWithPrefix("navigate:"))
}
