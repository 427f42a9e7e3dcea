package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/scraper"
)

const (
	defaultLikeProbability   = 0.35
	maxLikesPerPass          = 1
	defaultNotificationLimit = 3
)

// LikeResult reports one LikeRandomSubset pass.
type LikeResult struct {
	Candidates int
	Liked      int
	Links      []string
}

type likeCandidate struct {
	Index int    `json:"index"`
	Link  string `json:"link"`
}

var likeCandidatesJS = fmt.Sprintf(`(() => {
	const vh = window.innerHeight;
	return Array.from(document.querySelectorAll('[data-testid="like"]'))
		.map((el, i) => {
			el.setAttribute(%q, String(i));
			const r = el.getBoundingClientRect();
			const art = el.closest('article');
			const link = art ? art.querySelector('a[href*="/status/"]') : null;
			return { index: i, link: link ? link.href : '', visible: r.bottom > 0 && r.top < vh };
		})
		.filter(c => c.visible);
})()`, likeIndexAttr)

func likeSelector(index int) string {
	return fmt.Sprintf(`[%s="%d"]`, likeIndexAttr, index)
}

// LikeRandomSubset may like one of the visible, not yet liked posts. percentage sizes the
// candidate pool; a weighted coin decides whether to act at all. Errors yield a zero result.
func (e *Executor) LikeRandomSubset(ctx context.Context, percentage int) LikeResult {
	var cands []likeCandidate
	if err := e.page.Evaluate(ctx, likeCandidatesJS, &cands); err != nil {
		e.log.Debug("Failed to list like buttons", zap.Error(err))
		return LikeResult{}
	}
	res := LikeResult{Candidates: len(cands)}

	n := int(math.Ceil(float64(len(cands)) * float64(percentage) / 100))
	if n == 0 {
		return res
	}
	prob := e.engage.LikeProbability
	if prob <= 0 {
		prob = defaultLikeProbability
	}
	if !e.human.Chance(prob) {
		return res
	}
	n = min(n, maxLikesPerPass)

	for _, i := range e.pick(len(cands), n) {
		c := cands[i]
		if err := e.limiter.Wait(ctx); err != nil {
			return res
		}
		if err := e.human.Pause(ctx, 300*time.Millisecond, 1200*time.Millisecond); err != nil {
			return res
		}
		if _, err := e.Click(ctx, likeSelector(c.Index)); err != nil {
			e.log.Debug("Like click failed", zap.String("link", c.Link), zap.Error(err))
			continue
		}
		res.Liked++
		res.Links = append(res.Links, c.Link)
		e.log.Info("Liked post", zap.String("link", c.Link))
	}
	return res
}

// pick returns n distinct random indices below size.
func (e *Executor) pick(size, n int) []int {
	idx := make([]int, size)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < n && i < size; i++ {
		j := i + e.human.Intn(size-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:min(n, size)]
}

// CommentOutcome reports one reply attempt.
type CommentOutcome struct {
	Success  bool
	Comment  string
	PostLink string
	Err      error
}

// CommentOnRandomVisiblePost replies to one random on-screen post and returns to the home feed.
func (e *Executor) CommentOnRandomVisiblePost(ctx context.Context) CommentOutcome {
	if e.posts == nil || e.commenter == nil {
		return CommentOutcome{Err: errors.New("commenting is not configured")}
	}
	posts, err := e.posts.VisiblePosts(ctx)
	if err != nil {
		return CommentOutcome{Err: err}
	}
	var eligible []scraper.VisiblePost
	for _, p := range posts {
		if p.CanReply && p.Text != "" && !e.replied[p.Link] {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		return CommentOutcome{Err: errors.New("no visible post to reply to")}
	}

	post := eligible[e.human.Intn(len(eligible))]
	out := e.reply(ctx, post)
	e.returnHome(ctx)
	return out
}

// ReplyToNotifications answers up to limit unanswered mentions and returns how many succeeded.
func (e *Executor) ReplyToNotifications(ctx context.Context, limit int) int {
	if e.posts == nil || e.commenter == nil {
		return 0
	}
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	defer e.returnHome(ctx)

	attempted := map[string]bool{}
	replied := 0
	for n := 0; n < limit && ctx.Err() == nil; n++ {
		post, ok := e.nextMention(ctx, attempted)
		if !ok {
			break
		}
		attempted[post.Link] = true
		if e.reply(ctx, post).Success {
			replied++
		}
	}
	e.log.Info("Processed mentions", zap.Int("replied", replied))
	return replied
}

// nextMention reloads the mentions tab, since replying navigates away from it.
func (e *Executor) nextMention(ctx context.Context, attempted map[string]bool) (scraper.VisiblePost, bool) {
	if err := e.page.Navigate(ctx, NotificationsURL); err != nil {
		e.log.Warn("Could not open notifications", zap.Error(err))
		return scraper.VisiblePost{}, false
	}
	if err := e.page.WaitVisible(ctx, scraper.TweetArticle, e.selectorTimeout); err != nil {
		e.log.Info("No mentions to reply to")
		return scraper.VisiblePost{}, false
	}
	posts, err := e.posts.VisiblePosts(ctx)
	if err != nil {
		e.log.Warn("Could not read mentions", zap.Error(err))
		return scraper.VisiblePost{}, false
	}
	for _, p := range posts {
		if p.CanReply && p.Text != "" && p.Link != "" && !attempted[p.Link] && !e.replied[p.Link] {
			return p, true
		}
	}
	return scraper.VisiblePost{}, false
}

func (e *Executor) reply(ctx context.Context, post scraper.VisiblePost) CommentOutcome {
	out := CommentOutcome{PostLink: post.Link}

	comment, err := e.commenter.GenerateComment(ctx, post.Text)
	if err != nil {
		out.Err = err
		return out
	}
	out.Comment = comment

	if err := e.limiter.Wait(ctx); err != nil {
		out.Err = err
		return out
	}
	if err := e.submitReply(ctx, post, comment); err != nil {
		e.screenshot(ctx, "reply")
		out.Err = err
		e.log.Warn("Reply failed", zap.String("link", post.Link), zap.Error(err))
		return out
	}
	if post.Link != "" {
		e.replied[post.Link] = true
	}
	out.Success = true
	e.log.Info("Replied to post", zap.String("link", post.Link), zap.String("comment", comment))
	return out
}

func (e *Executor) submitReply(ctx context.Context, post scraper.VisiblePost, comment string) error {
	if _, err := e.Click(ctx, scraper.PostSelector(post.Index)+" "+scraper.ReplyButton); err != nil {
		return fmt.Errorf("failed to open reply composer: %w", err)
	}
	compose, err := ReplyComposeBox.FirstVisible(ctx, e.page, e.selectorTimeout)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrComposeNotFound, err)
	}
	if _, err := e.typeAndSubmit(ctx, compose, ReplySubmitButton, comment); err != nil {
		return err
	}
	return e.human.Pause(ctx, settleMin, settleMax)
}

func (e *Executor) returnHome(ctx context.Context) {
	if err := e.page.Navigate(ctx, HomeURL); err != nil {
		e.log.Debug("Failed to return to home feed", zap.Error(err))
	}
}
