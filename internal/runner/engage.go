package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/types"
)

// Engagement record actions
const (
	ActionLike     = "like"
	ActionComment  = "comment"
	ActionReply    = "reply"
	ActionProgress = "progress"
)

// EngageStats are the running counters of the engagement loop.
type EngageStats struct {
	Passes   int
	Likes    int
	Comments int
	Replies  int
	Started  time.Time
}

// Engage authenticates and then scrolls the home feed until ctx is cancelled, liking on
// every pass and commenting, answering mentions and reporting progress periodically.
// Cancellation or deadline is a clean stop and returns a nil error.
func (r *Runner) Engage(ctx context.Context) (EngageStats, error) {
	stats := EngageStats{Started: time.Now()}
	ec := r.cfg.Engagement

	if _, err := r.Authenticate(ctx); err != nil {
		return stats, err
	}

	if ec.ReplyNotifications {
		stats.Replies += r.replyToMentions(ctx, &stats)
	}
	if err := r.deps.Feed.OpenFeed(ctx); err != nil {
		if ctx.Err() != nil {
			return stats, nil
		}
		r.log.Warn("Home timeline did not load, scrolling anyway", zap.Error(err))
	}

	r.log.Info("Engagement loop started")
	pass := 0
	for ctx.Err() == nil {
		if err := r.deps.Feed.ScrollFeed(ctx, 1); err != nil {
			if ctx.Err() != nil {
				break
			}
			r.log.Warn("Scroll failed", zap.Error(err))
			if err := r.deps.Human.Pause(ctx, time.Second, 3*time.Second); err != nil {
				break
			}
			continue
		}
		pass++
		stats.Passes = pass

		like := r.deps.Engager.LikeRandomSubset(ctx, ec.LikePercentage)
		for _, link := range like.Links {
			stats.Likes++
			r.record(stats, ActionLike, link, "")
		}

		if every(pass, ec.CommentEvery) {
			out := r.deps.Engager.CommentOnRandomVisiblePost(ctx)
			if out.Success {
				stats.Comments++
				r.record(stats, ActionComment, out.PostLink, out.Comment)
			} else if out.Err != nil && ctx.Err() == nil {
				r.log.Info("Skipped comment", zap.Error(out.Err))
			}
		}

		if ec.ReplyNotifications && every(pass, ec.NotificationsEvery) {
			stats.Replies += r.replyToMentions(ctx, &stats)
			if err := r.deps.Feed.OpenFeed(ctx); err != nil && ctx.Err() == nil {
				r.log.Warn("Home timeline did not reload after mentions", zap.Error(err))
			}
		}

		if every(pass, ec.ProgressEvery) {
			r.log.Info("Engagement progress",
				zap.Int("scrolls", stats.Passes),
				zap.Int("likes", stats.Likes),
				zap.Int("comments", stats.Comments),
				zap.Int("replies", stats.Replies),
				zap.Duration("elapsed", time.Since(stats.Started).Round(time.Second)))
			r.record(stats, ActionProgress, "", "")
		}
	}

	r.log.Info("Engagement loop stopped",
		zap.Int("scrolls", stats.Passes),
		zap.Int("likes", stats.Likes),
		zap.Int("comments", stats.Comments))
	return stats, nil
}

func (r *Runner) replyToMentions(ctx context.Context, stats *EngageStats) int {
	n := r.deps.Engager.ReplyToNotifications(ctx, r.cfg.Engagement.NotificationLimit)
	if n > 0 {
		s := *stats
		s.Replies += n
		r.record(s, ActionReply, "", "")
	}
	return n
}

func every(pass, n int) bool {
	return n > 0 && pass%n == 0
}

func (r *Runner) record(stats EngageStats, action, link, comment string) {
	if r.deps.Engagements == nil {
		return
	}
	err := r.deps.Engagements.Append(types.EngagementRecord{
		Timestamp:    time.Now(),
		SessionID:    r.runID,
		ScrollCount:  stats.Passes,
		LikeCount:    stats.Likes,
		PostLink:     link,
		Comment:      comment,
		CommentCount: stats.Comments,
		Action:       action,
	})
	if err != nil {
		r.log.Warn("Failed to write engagement log", zap.Error(err))
	}
}
