package providers

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/generator"
)

// GeminiProvider implements generator.Provider with the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a Gemini client. endpoint overrides the API base URL when set.
func NewGeminiProvider(ctx context.Context, apiKey, model, endpoint string) (*GeminiProvider, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string  { return config.ProviderGemini }
func (p *GeminiProvider) Model() string { return p.model }

// Complete generates content for a single user turn.
func (p *GeminiProvider) Complete(ctx context.Context, req generator.Request) (string, error) {
	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		TopP:            genai.Ptr(float32(req.TopP)),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(req.User), gc)
	if err != nil {
		return "", fmt.Errorf("failed to call Gemini API: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", generator.ErrEmptyResponse
	}
	return text, nil
}
