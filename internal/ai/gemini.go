package ai

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiProvider implements Decider using Google Gemini
type GeminiProvider struct {
	client    *genai.Client
	model     string
	maxTokens int
	maxImages int
	logger    *zap.Logger
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, opts Options, logger *zap.Logger) (*GeminiProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions.BaseURL = opts.BaseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &GeminiProvider{
		client:    client,
		model:     model,
		maxTokens: opts.MaxTokens,
		maxImages: opts.MaxImages,
		logger:    logger.Named("ai.gemini"),
	}, nil
}

// Decide sends the conversation with a JSON response type and parses the reply
func (p *GeminiProvider) Decide(ctx context.Context, history []Message) (*Decision, error) {
	system, contents := geminiContents(limitImages(history, p.maxImages))

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: system,
		ResponseMIMEType:  "application/json",
		MaxOutputTokens:   int32(p.maxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	p.logger.Debug("Model call complete",
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
	)

	return ParseDecision(geminiText(resp))
}

// geminiContents moves system turns into the system instruction, maps the
// assistant role to "model" and embeds images as inline data.
func geminiContents(history []Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(history))

	for _, m := range history {
		switch m.Role {
		case RoleSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, genai.NewPartFromText(m.Content))
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(m.Content)}, genai.RoleModel))
		default:
			parts := []*genai.Part{genai.NewPartFromText(m.Content)}
			if m.HasImage() {
				parts = append(parts, genai.NewPartFromBytes(m.Image, m.mime()))
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
		}
	}
	return system, contents
}

// geminiText returns the first non-thought text part of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			return part.Text
		}
	}
	return ""
}
