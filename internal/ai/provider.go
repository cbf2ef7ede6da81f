package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrUnknownProvider is returned for an unsupported provider name.
var ErrUnknownProvider = errors.New("unknown provider")

// Decider sends a conversation to a model and returns its normalized decision
type Decider interface {
	Decide(ctx context.Context, history []Message) (*Decision, error)
}

// Options configures a provider
type Options struct {
	Model     string
	APIKey    string
	BaseURL   string // overrides the provider endpoint, mainly for tests and proxies
	MaxTokens int
	// MaxImages bounds how many of the newest image-bearing turns keep their
	// image when sent; older turns go as text. 0 sends every image.
	MaxImages int
}

// Provider names
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Canonical maps a provider name or alias to its canonical name.
func Canonical(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "claude", "anthropic":
		return ProviderClaude, nil
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "gemini", "google":
		return ProviderGemini, nil
	default:
		return "", fmt.Errorf("%w: %s (supported: claude, openai, gemini)", ErrUnknownProvider, name)
	}
}

// NewProvider creates a Decider for the named provider
func NewProvider(ctx context.Context, name string, opts Options, logger *zap.Logger) (Decider, error) {
	canonical, err := Canonical(name)
	if err != nil {
		return nil, err
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}

	switch canonical {
	case ProviderClaude:
		return wrap(NewClaudeProvider(opts, logger))
	case ProviderOpenAI:
		return wrap(NewOpenAIProvider(opts, logger))
	default:
		return wrap(NewGeminiProvider(ctx, opts, logger))
	}
}

// wrap keeps a failed constructor from yielding a non-nil interface around a nil pointer.
func wrap[T Decider](d T, err error) (Decider, error) {
	if err != nil {
		return nil, err
	}
	return d, nil
}

