package executor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xpilot/internal/browser/browsertest"
	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/scraper"
	"github.com/ibeckermayer/xpilot/internal/types"
)

func likePage(cands []map[string]any) *browsertest.Page {
	page := browsertest.New()
	page.Eval = func(script string) (any, error) {
		if strings.Contains(script, likeIndexAttr) {
			return cands, nil
		}
		return nil, nil
	}
	return page
}

var threeCandidates = []map[string]any{
	{"index": 0, "link": "https://x.com/a/status/1"},
	{"index": 1, "link": "https://x.com/b/status/2"},
	{"index": 2, "link": "https://x.com/c/status/3"},
}

func TestLikeRandomSubset(t *testing.T) {
	page := likePage(threeCandidates)
	e := newTestExecutor(t, page, nil, nil, config.EngagementConfig{LikeProbability: 1})

	res := e.LikeRandomSubset(context.Background(), 100)
	assert.Equal(t, 3, res.Candidates)
	assert.Equal(t, 1, res.Liked, "at most one like per pass")
	require.Len(t, res.Links, 1)

	clicks := page.CallsWithPrefix("click:")
	require.Len(t, clicks, 1)
	assert.True(t, strings.HasPrefix(clicks[0], `click:[data-engage-like="`))
}

func TestLikeRandomSubsetSkips(t *testing.T) {
	t.Run("zero percentage", func(t *testing.T) {
		page := likePage(threeCandidates)
		e := newTestExecutor(t, page, nil, nil, config.EngagementConfig{LikeProbability: 1})
		res := e.LikeRandomSubset(context.Background(), 0)
		assert.Equal(t, 3, res.Candidates)
		assert.Zero(t, res.Liked)
		assert.Empty(t, page.CallsWithPrefix("click:"))
	})

	t.Run("coin says no", func(t *testing.T) {
		page := likePage(threeCandidates)
		e := newTestExecutor(t, page, nil, nil, config.EngagementConfig{LikeProbability: 1e-12})
		assert.Zero(t, e.LikeRandomSubset(context.Background(), 100).Liked)
	})

	t.Run("nothing visible", func(t *testing.T) {
		page := likePage(nil)
		e := newTestExecutor(t, page, nil, nil, config.EngagementConfig{LikeProbability: 1})
		assert.Equal(t, LikeResult{}, e.LikeRandomSubset(context.Background(), 100))
	})

	t.Run("extraction error", func(t *testing.T) {
		page := browsertest.New()
		page.Eval = func(string) (any, error) { return nil, errors.New("context destroyed") }
		e := newTestExecutor(t, page, nil, nil, config.EngagementConfig{LikeProbability: 1})
		assert.Equal(t, LikeResult{}, e.LikeRandomSubset(context.Background(), 100))
	})

	t.Run("click fails", func(t *testing.T) {
		page := likePage(threeCandidates[:1])
		page.ClickErr[likeSelector(0)] = errors.New("x")
		page.ScriptClickErr[likeSelector(0)] = errors.New("x")
		e := newTestExecutor(t, page, nil, nil, config.EngagementConfig{LikeProbability: 1})
		res := e.LikeRandomSubset(context.Background(), 100)
		assert.Zero(t, res.Liked)
		assert.Empty(t, res.Links)
	})
}

func replyPage() *browsertest.Page {
	page := browsertest.New()
	page.SetVisible(ReplyComposeBox[0], true)
	page.SetVisible(ReplySubmitButton[0], true)
	page.SetVisible(scraper.TweetArticle, true)
	return page
}

func post(index int, link, text string, canReply bool) scraper.VisiblePost {
	return scraper.VisiblePost{Post: types.Post{Index: index, Link: link, Text: text}, CanReply: canReply}
}

func TestCommentOnRandomVisiblePost(t *testing.T) {
	page := replyPage()
	posts := &fakePosts{posts: []scraper.VisiblePost{
		post(0, "https://x.com/a/status/1", "", true),
		post(2, "https://x.com/b/status/2", "Shipping Go 1.24 today", true),
		post(3, "https://x.com/c/status/3", "replies are off", false),
	}}
	commenter := &fakeCommenter{text: "Congrats on the release!"}
	e := newTestExecutor(t, page, posts, commenter, config.EngagementConfig{})

	out := e.CommentOnRandomVisiblePost(context.Background())
	require.NoError(t, out.Err)
	assert.True(t, out.Success)
	assert.Equal(t, "Congrats on the release!", out.Comment)
	assert.Equal(t, "https://x.com/b/status/2", out.PostLink)
	assert.Equal(t, []string{"Shipping Go 1.24 today"}, commenter.calls)

	assert.Contains(t, page.Calls, `click:article[data-engage-post="2"] [data-testid="reply"]`)
	assert.Equal(t, "Congrats on the release!", page.TypedText())
	navs := page.CallsWithPrefix("navigate:")
	assert.Equal(t, "navigate:"+HomeURL, navs[len(navs)-1])
}

func TestCommentOnRandomVisiblePostFailures(t *testing.T) {
	t.Run("no eligible post", func(t *testing.T) {
		commenter := &fakeCommenter{text: "hi"}
		posts := &fakePosts{posts: []scraper.VisiblePost{post(0, "l", "text", false)}}
		out := newTestExecutor(t, replyPage(), posts, commenter, config.EngagementConfig{}).CommentOnRandomVisiblePost(context.Background())
		assert.Error(t, out.Err)
		assert.False(t, out.Success)
		assert.Empty(t, commenter.calls)
	})

	t.Run("generation fails", func(t *testing.T) {
		page := replyPage()
		commenter := &fakeCommenter{err: errors.New("timeout")}
		posts := &fakePosts{posts: []scraper.VisiblePost{post(1, "l", "text", true)}}
		out := newTestExecutor(t, page, posts, commenter, config.EngagementConfig{}).CommentOnRandomVisiblePost(context.Background())
		assert.ErrorContains(t, out.Err, "timeout")
		assert.Equal(t, "l", out.PostLink)
		assert.Empty(t, page.CallsWithPrefix("click:"))
	})

	t.Run("reply composer missing", func(t *testing.T) {
		page := browsertest.New()
		commenter := &fakeCommenter{text: "hi"}
		posts := &fakePosts{posts: []scraper.VisiblePost{post(1, "l", "text", true)}}
		out := newTestExecutor(t, page, posts, commenter, config.EngagementConfig{}).CommentOnRandomVisiblePost(context.Background())
		assert.ErrorIs(t, out.Err, ErrComposeNotFound)
		assert.Equal(t, "hi", out.Comment)
		assert.Len(t, page.Screenshots, 1)
	})

	t.Run("not configured", func(t *testing.T) {
		out := newTestExecutor(t, replyPage(), nil, nil, config.EngagementConfig{}).CommentOnRandomVisiblePost(context.Background())
		assert.Error(t, out.Err)
	})
}

func TestReplyToNotifications(t *testing.T) {
	page := replyPage()
	posts := &fakePosts{posts: []scraper.VisiblePost{
		post(0, "https://x.com/a/status/1", "@me what do you think?", true),
		post(1, "https://x.com/b/status/2", "@me nice post", true),
		post(2, "https://x.com/c/status/3", "@me agreed", true),
		post(3, "https://x.com/d/status/4", "@me one more", true),
	}}
	commenter := &fakeCommenter{text: "Thanks!"}
	e := newTestExecutor(t, page, posts, commenter, config.EngagementConfig{})

	assert.Equal(t, 3, e.ReplyToNotifications(context.Background(), 3))
	assert.Len(t, commenter.calls, 3)
	assert.Len(t, page.CallsWithPrefix("navigate:"+NotificationsURL), 3)

	// already answered mentions are not answered twice
	assert.Equal(t, 1, e.ReplyToNotifications(context.Background(), 3))
	assert.Equal(t, "@me one more", commenter.calls[3])
}

func TestReplyToNotificationsNoMentions(t *testing.T) {
	page := browsertest.New()
	commenter := &fakeCommenter{text: "Thanks!"}
	e := newTestExecutor(t, page, &fakePosts{}, commenter, config.EngagementConfig{})

	assert.Zero(t, e.ReplyToNotifications(context.Background(), 3))
	assert.Empty(t, commenter.calls)
	navs := page.CallsWithPrefix("navigate:")
	assert.Equal(t, "navigate:"+HomeURL, navs[len(navs)-1])
}
