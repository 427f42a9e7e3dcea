package runner

import (
	"context"
	"sync"

	"github.com/ibeckermayer/xpilot/internal/auth"
	"github.com/ibeckermayer/xpilot/internal/diversity"
	"github.com/ibeckermayer/xpilot/internal/executor"
	"github.com/ibeckermayer/xpilot/internal/types"
)

type fakeAuth struct {
	err   error
	calls int
}

func (f *fakeAuth) Authenticate(context.Context, string, auth.Credentials) (auth.Result, error) {
	f.calls++
	if f.err != nil {
		return auth.Result{}, f.err
	}
	return auth.Result{OK: true, SessionUsed: auth.SessionReused}, nil
}

type fakeFeed struct {
	mu       sync.Mutex
	trends   []types.TrendCandidate
	samples  []string
	openErr  error
	scrolls  int
	onScroll func(ctx context.Context, n int) error
	sampled  []string
}

func (f *fakeFeed) OpenFeed(context.Context) error { return f.openErr }

func (f *fakeFeed) ScrollFeed(ctx context.Context, passes int) error {
	f.mu.Lock()
	f.scrolls++
	n := f.scrolls
	hook := f.onScroll
	f.mu.Unlock()
	if hook != nil {
		return hook(ctx, n)
	}
	return nil
}

func (f *fakeFeed) DiscoverTrends(context.Context, int) []types.TrendCandidate { return f.trends }

func (f *fakeFeed) SampleRecentPosts(_ context.Context, topic string, _ int) []string {
	f.sampled = append(f.sampled, topic)
	return f.samples
}

// fakeGenerator returns results in order, then repeats the last one.
type fakeGenerator struct {
	results []*types.GeneratedContent
	topics  []string
}

func (f *fakeGenerator) Generate(_ context.Context, topic types.TrendCandidate, _ []types.TrendCandidate, _ []string) *types.GeneratedContent {
	f.topics = append(f.topics, topic.Topic)
	if len(f.results) == 0 {
		return nil
	}
	i := min(len(f.topics), len(f.results)) - 1
	gc := f.results[i]
	if gc == nil {
		return nil
	}
	out := *gc
	out.SourceTopic = topic.Topic
	return &out
}

// fakeDiversity returns verdicts in order, then diverse.
type fakeDiversity struct {
	verdicts []bool
	checks   []string
}

func (f *fakeDiversity) Check(_ context.Context, text string) diversity.Verdict {
	f.checks = append(f.checks, text)
	if len(f.checks) <= len(f.verdicts) {
		return diversity.Verdict{Diverse: f.verdicts[len(f.checks)-1]}
	}
	return diversity.Verdict{Diverse: true}
}

type fakePoster struct {
	fail   bool
	posted []*types.GeneratedContent
}

func (f *fakePoster) PostWithRetry(_ context.Context, gc *types.GeneratedContent, _ int) bool {
	f.posted = append(f.posted, gc)
	return !f.fail
}

type fakeEngager struct {
	mu        sync.Mutex
	likes     int
	comments  int
	mentions  int
	commentOK bool
}

func (f *fakeEngager) LikeRandomSubset(context.Context, int) executor.LikeResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.likes++
	return executor.LikeResult{Candidates: 4, Liked: 1, Links: []string{"https://x.com/a/status/1"}}
}

func (f *fakeEngager) CommentOnRandomVisiblePost(context.Context) executor.CommentOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments++
	return executor.CommentOutcome{Success: f.commentOK, Comment: "nice", PostLink: "https://x.com/b/status/2"}
}

func (f *fakeEngager) ReplyToNotifications(context.Context, int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mentions++
	return 1
}

type memEvents struct {
	mu     sync.Mutex
	events []types.RunEvent
}

func (m *memEvents) AppendRunEvent(_ context.Context, ev types.RunEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memEvents) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.Kind)
	}
	return out
}

type memEngagements struct {
	mu   sync.Mutex
	rows []types.EngagementRecord
}

func (m *memEngagements) Append(rec types.EngagementRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rec)
	return nil
}

func (m *memEngagements) count(action string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.Action == action {
			n++
		}
	}
	return n
}

type memTrends struct {
	saved [][]types.TrendCandidate
	err   error
}

func (m *memTrends) SaveTrends(trends []types.TrendCandidate) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.saved = append(m.saved, trends)
	return "trends.json", nil
}
