package ai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIProvider implements Decider using OpenAI chat completions
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	maxTokens int
	maxImages int
	logger    *zap.Logger
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(opts Options, logger *zap.Logger) (*OpenAIProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key required")
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	model := opts.Model
	if model == "" {
		model = "gpt-4.1-mini"
	}

	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: opts.MaxTokens,
		maxImages: opts.MaxImages,
		logger:    logger.Named("ai.openai"),
	}, nil
}

// Decide sends the conversation in JSON mode and parses the reply
func (p *OpenAIProvider) Decide(ctx context.Context, history []Message) (*Decision, error) {
	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:               p.model,
		Messages:            openAIMessages(limitImages(history, p.maxImages)),
		MaxCompletionTokens: p.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	p.logger.Debug("Model call complete",
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return ParseDecision(openAIText(resp.Choices[0].Message))
}

// openAIMessages embeds images as data-URL image_url parts
func openAIMessages(history []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		msg := openai.ChatCompletionMessage{Role: openAIRole(m.Role)}
		if m.Role == RoleUser && m.HasImage() {
			msg.MultiContent = []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: m.Content},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    m.dataURL(),
						Detail: openai.ImageURLDetailAuto,
					},
				},
			}
		} else {
			msg.Content = m.Content
		}
		out = append(out, msg)
	}
	return out
}

func openAIRole(r Role) string {
	switch r {
	case RoleSystem:
		return openai.ChatMessageRoleSystem
	case RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// openAIText returns the plain content or the first text part.
func openAIText(msg openai.ChatCompletionMessage) string {
	if msg.Content != "" {
		return msg.Content
	}
	for _, part := range msg.MultiContent {
		if part.Type == openai.ChatMessagePartTypeText {
			return part.Text
		}
	}
	return ""
}
