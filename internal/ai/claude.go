package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// ClaudeProvider implements Decider using Anthropic's Claude
type ClaudeProvider struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	maxImages int
	logger    *zap.Logger
}

// NewClaudeProvider creates a new Claude provider
func NewClaudeProvider(opts Options, logger *zap.Logger) (*ClaudeProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key required")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(reqOpts...)

	model := opts.Model
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}

	return &ClaudeProvider{
		client:    &client,
		model:     model,
		maxTokens: opts.MaxTokens,
		maxImages: opts.MaxImages,
		logger:    logger.Named("ai.claude"),
	}, nil
}

// Decide sends the conversation and parses the first text block of the reply
func (p *ClaudeProvider) Decide(ctx context.Context, history []Message) (*Decision, error) {
	system, messages := claudeMessages(limitImages(history, p.maxImages))

	start := time.Now()
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(p.maxTokens),
		System:    system,
		Messages:  messages,
	})
	if err != nil {
		return nil, fmt.Errorf("Claude API error: %w", err)
	}

	p.logger.Debug("Model call complete",
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
	)

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	return ParseDecision(text)
}

// claudeMessages lifts system turns into the system prompt and embeds images
// as base64 image blocks.
func claudeMessages(history []Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	messages := make([]anthropic.MessageParam, 0, len(history))

	for _, m := range history {
		switch m.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)}
			if m.HasImage() {
				blocks = append(blocks, anthropic.NewImageBlockBase64(m.mime(), base64.StdEncoding.EncodeToString(m.Image)))
			}
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
	}
	return system, messages
}
