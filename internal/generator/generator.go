package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/store"
	"github.com/ibeckermayer/xpilot/internal/types"
)

// ErrEmptyResponse is returned when a provider answers with no usable text.
var ErrEmptyResponse = errors.New("empty response from text generation service")

const defaultTimeout = 15 * time.Second

// Request is one completion call.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Provider is a text-generation backend.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Recorder keeps prompt/response pairs for debugging. *store.Cache satisfies it.
type Recorder interface {
	SaveLLMExchange(exchange store.LLMExchange) (string, error)
}

// Generator turns discovered context into post and reply text.
type Generator struct {
	provider Provider
	recorder Recorder
	cfg      config.GenerationConfig
	log      *zap.Logger
}

// New creates a generator. recorder may be nil.
func New(provider Provider, cfg config.GenerationConfig, recorder Recorder, logger *zap.Logger) *Generator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 150
	}
	return &Generator{
		provider: provider,
		recorder: recorder,
		cfg:      cfg,
		log:      logger.Named("generator"),
	}
}

// Generate writes a post about topic. It returns nil when nothing usable could be
// produced; callers treat that as the end of the attempt.
func (g *Generator) Generate(ctx context.Context, topic types.TrendCandidate, contextTrends []types.TrendCandidate, samples []string) *types.GeneratedContent {
	raw, err := g.complete(ctx, Request{
		System:      SystemPrompt(g.cfg.Persona),
		User:        BuildPostPrompt(topic, contextTrends, samples),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		TopP:        g.cfg.TopP,
	})
	if err != nil {
		g.log.Warn("Content generation failed", zap.String("topic", topic.Topic), zap.Error(err))
		return nil
	}

	text, truncated := Fit(StripQuotes(raw))
	if text == "" {
		g.log.Warn("Content generation returned only quotes or whitespace", zap.String("topic", topic.Topic))
		return nil
	}
	if truncated {
		g.log.Info("Generated text exceeded the post limit and was truncated",
			zap.Int("raw_length", len([]rune(raw))))
	}

	g.log.Info("Generated post", zap.String("topic", topic.Topic), zap.Int("length", len([]rune(text))))
	return &types.GeneratedContent{
		Text:          text,
		SourceTopic:   topic.Topic,
		SourceContext: topic.ContextLabel,
		SourceVolume:  topic.VolumeLabel,
		Model:         g.metadata(truncated),
	}
}

// GenerateComment writes a short reply to postText.
func (g *Generator) GenerateComment(ctx context.Context, postText string) (string, error) {
	if strings.TrimSpace(postText) == "" {
		return "", errors.New("post has no text to reply to")
	}
	raw, err := g.complete(ctx, Request{
		System:      SystemPrompt(g.cfg.Persona),
		User:        BuildCommentPrompt(postText),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		TopP:        g.cfg.TopP,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate comment: %w", err)
	}
	text, _ := Fit(StripQuotes(raw))
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (g *Generator) complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	resp, err := g.provider.Complete(ctx, req)
	g.record(req, resp, err)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp) == "" {
		return "", ErrEmptyResponse
	}
	return resp, nil
}

func (g *Generator) record(req Request, resp string, callErr error) {
	if g.recorder == nil {
		return
	}
	ex := store.LLMExchange{
		Timestamp: time.Now(),
		Provider:  g.provider.Name(),
		Model:     g.provider.Model(),
		System:    req.System,
		Prompt:    req.User,
		Response:  resp,
	}
	if callErr != nil {
		ex.Error = callErr.Error()
	}
	path, err := g.recorder.SaveLLMExchange(ex)
	if err != nil {
		g.log.Debug("Failed to cache LLM exchange", zap.Error(err))
		return
	}
	g.log.Debug("Cached LLM exchange", zap.String("path", path))
}

func (g *Generator) metadata(truncated bool) types.ModelMetadata {
	return types.ModelMetadata{
		Provider:    g.provider.Name(),
		Model:       g.provider.Model(),
		Temperature: g.cfg.Temperature,
		TopP:        g.cfg.TopP,
		MaxTokens:   g.cfg.MaxTokens,
		Truncated:   truncated,
	}
}
