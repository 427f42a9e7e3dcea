package generator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/store"
	"github.com/ibeckermayer/xpilot/internal/types"
)

type fakeProvider struct {
	resp  string
	err   error
	block bool
	reqs  []Request
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-1" }

func (f *fakeProvider) Complete(ctx context.Context, req Request) (string, error) {
	f.reqs = append(f.reqs, req)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.resp, f.err
}

type memRecorder struct {
	mu        sync.Mutex
	exchanges []store.LLMExchange
}

func (m *memRecorder) SaveLLMExchange(ex store.LLMExchange) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges = append(m.exchanges, ex)
	return "mem", nil
}

var testCfg = config.GenerationConfig{Temperature: 0.85, TopP: 0.9, MaxTokens: 150, Timeout: time.Second}

var lakers = types.TrendCandidate{Topic: "Lakers", ContextLabel: "Sports · Trending", VolumeLabel: "12.5K posts"}

func TestGenerate(t *testing.T) {
	p := &fakeProvider{resp: `"Lakers fans, tonight is the night."`}
	rec := &memRecorder{}
	g := New(p, testCfg, rec, zap.NewNop())

	got := g.Generate(context.Background(), lakers, []types.TrendCandidate{lakers, {Topic: "Election"}}, []string{"sample one is long enough"})
	require.NotNil(t, got)
	assert.Equal(t, "Lakers fans, tonight is the night.", got.Text)
	assert.Equal(t, "Lakers", got.SourceTopic)
	assert.Equal(t, "Sports · Trending", got.SourceContext)
	assert.Equal(t, "12.5K posts", got.SourceVolume)
	assert.Equal(t, "fake-1", got.Model.Model)
	assert.False(t, got.Model.Truncated)

	require.Len(t, p.reqs, 1)
	assert.Equal(t, 0.85, p.reqs[0].Temperature)
	assert.Equal(t, 0.9, p.reqs[0].TopP)
	assert.Equal(t, 150, p.reqs[0].MaxTokens)

	require.Len(t, rec.exchanges, 1)
	assert.Equal(t, p.reqs[0].User, rec.exchanges[0].Prompt)
}

func TestGenerateTruncatesLongOutput(t *testing.T) {
	p := &fakeProvider{resp: strings.Repeat("a", 300)}
	g := New(p, testCfg, nil, zap.NewNop())

	got := g.Generate(context.Background(), lakers, nil, nil)
	require.NotNil(t, got)
	assert.Len(t, []rune(got.Text), types.MaxPostLength)
	assert.Equal(t, strings.Repeat("a", 277)+"...", got.Text)
	assert.True(t, got.Model.Truncated)
}

func TestGenerateReturnsNilOnFailure(t *testing.T) {
	tests := []struct {
		name string
		p    *fakeProvider
	}{
		{"transport error", &fakeProvider{err: errors.New("connection reset")}},
		{"empty response", &fakeProvider{resp: "   "}},
		{"only quotes", &fakeProvider{resp: `""`}},
		{"timeout", &fakeProvider{block: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testCfg
			cfg.Timeout = 10 * time.Millisecond
			rec := &memRecorder{}
			g := New(tt.p, cfg, rec, zap.NewNop())
			assert.Nil(t, g.Generate(context.Background(), lakers, nil, nil))
			require.Len(t, rec.exchanges, 1, "failed exchanges are cached too")
		})
	}
}

func TestGenerateComment(t *testing.T) {
	p := &fakeProvider{resp: "'Totally agree with this.'"}
	g := New(p, testCfg, nil, zap.NewNop())

	got, err := g.GenerateComment(context.Background(), "Go 1.24 is out and it is great")
	require.NoError(t, err)
	assert.Equal(t, "Totally agree with this.", got)
	assert.Contains(t, p.reqs[0].User, "Go 1.24 is out")

	_, err = g.GenerateComment(context.Background(), "  ")
	assert.Error(t, err)

	p.err = errors.New("quota exceeded")
	_, err = g.GenerateComment(context.Background(), "hello there")
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestStripQuotes(t *testing.T) {
	tests := []struct{ in, want string }{
		{`"hello"`, "hello"},
		{`'hello'`, "hello"},
		{`“hello”`, "hello"},
		{`""hello""`, `"hello"`},
		{`  "hello  `, "hello"},
		{`say "hi" now`, `say "hi" now`},
		{`"`, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripQuotes(tt.in), tt.in)
	}
}

func TestFit(t *testing.T) {
	exact := strings.Repeat("b", 280)
	got, truncated := Fit(exact)
	assert.Equal(t, exact, got)
	assert.False(t, truncated)

	got, truncated = Fit(strings.Repeat("é", 281))
	assert.True(t, truncated)
	assert.Equal(t, 280, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestBuildPostPrompt(t *testing.T) {
	var trends []types.TrendCandidate
	for _, name := range []string{"Lakers", "A1", "B2", "C3", "D4", "E5", "F6"} {
		trends = append(trends, types.TrendCandidate{Topic: name, ContextLabel: "Trending"})
	}
	prompt := BuildPostPrompt(lakers, trends, []string{"first sample", "second sample", "third sample"})

	assert.Contains(t, prompt, "Lakers (Sports · Trending, 12.5K posts)")
	assert.Contains(t, prompt, "- A1 (Trending)")
	assert.Contains(t, prompt, "- E5 (Trending)")
	assert.NotContains(t, prompt, "F6", "at most five context trends")
	assert.NotContains(t, prompt, "- Lakers", "selected topic is not repeated as context")
	assert.Contains(t, prompt, "2. second sample")
	assert.NotContains(t, prompt, "third sample")
}

func TestSystemPrompt(t *testing.T) {
	assert.Contains(t, SystemPrompt(""), defaultPersona)
	assert.True(t, strings.HasPrefix(SystemPrompt("You are a sports nerd."), "You are a sports nerd."))
}
