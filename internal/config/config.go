package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/v0xg/pagepilot/internal/ai"
	"github.com/v0xg/pagepilot/internal/crawler"
	"github.com/v0xg/pagepilot/internal/recorder"
)

// EnvPrefix scopes every environment override, e.g. PAGEPILOT_MAX_STEPS.
const EnvPrefix = "PAGEPILOT"

// ErrMissingAPIKey is returned when no credential is configured for the provider.
var ErrMissingAPIKey = errors.New("missing API key")

// Config holds everything a run needs.
type Config struct {
	Provider  string         `mapstructure:"provider" yaml:"provider"`
	Model     string         `mapstructure:"model" yaml:"model"`
	APIKey    string         `mapstructure:"api_key" yaml:"api_key"`
	MaxSteps  int            `mapstructure:"max_steps" yaml:"max_steps"`
	FPS       int            `mapstructure:"fps" yaml:"fps"`
	MaxWidth  int            `mapstructure:"max_width" yaml:"max_width"` // GIF frame width cap, 0 keeps the viewport width
	OutputDir string         `mapstructure:"output_dir" yaml:"output_dir"`
	Browser   BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Overlay   OverlayConfig  `mapstructure:"overlay" yaml:"overlay"`
	AI        AIConfig       `mapstructure:"ai" yaml:"ai"`
	Progress  ProgressConfig `mapstructure:"progress" yaml:"progress"`
	Logger    LoggerConfig   `mapstructure:"logger" yaml:"logger"`
}

type BrowserConfig struct {
	Width             int           `mapstructure:"width" yaml:"width"`
	Height            int           `mapstructure:"height" yaml:"height"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ProfileDir        string        `mapstructure:"profile_dir" yaml:"profile_dir"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

type OverlayConfig struct {
	FontPath string `mapstructure:"font_path" yaml:"font_path"`
}

type AIConfig struct {
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	// MaxImages caps how many observation screenshots are sent per request; 0 sends all.
	MaxImages int `mapstructure:"max_images" yaml:"max_images"`
}

type ProgressConfig struct {
	// URL is a websocket endpoint. Progress goes to the log when empty.
	URL string `mapstructure:"url" yaml:"url"`
}

// LoggerConfig defines logging output.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// providerKeyEnv lists the conventional credential variables per provider.
var providerKeyEnv = map[string][]string{
	ai.ProviderOpenAI: {"OPENAI_API_KEY"},
	ai.ProviderClaude: {"ANTHROPIC_API_KEY"},
	ai.ProviderGemini: {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// SetDefaults registers every key so environment overrides resolve during Unmarshal.
func SetDefaults(v *viper.Viper) {
	provider := os.Getenv(EnvPrefix + "_DEFAULT_PROVIDER")
	if provider == "" {
		provider = ai.ProviderOpenAI
	}
	v.SetDefault("provider", provider)
	v.SetDefault("model", "")
	v.SetDefault("api_key", "")
	v.SetDefault("max_steps", 15)
	v.SetDefault("fps", 3)
	v.SetDefault("max_width", 800)
	v.SetDefault("output_dir", ".")

	// -- Browser --
	v.SetDefault("browser.width", 1280)
	v.SetDefault("browser.height", 720)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.profile_dir", "")
	v.SetDefault("browser.navigation_timeout", 30*time.Second)

	v.SetDefault("overlay.font_path", "")

	// -- AI --
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("ai.max_images", 0)

	v.SetDefault("progress.url", "")

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagepilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
}

// NewViper returns a viper instance with defaults and PAGEPILOT_ env binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// NewConfigFromViper decodes, completes and validates the configuration.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	provider, err := ai.Canonical(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Provider = provider

	if cfg.APIKey == "" {
		cfg.APIKey = lookupKey(provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// lookupKey checks PAGEPILOT_<PROVIDER>_KEY, then the provider's own variables.
func lookupKey(provider string) string {
	names := append([]string{EnvPrefix + "_" + strings.ToUpper(provider) + "_KEY"}, providerKeyEnv[provider]...)
	for _, name := range names {
		if key := os.Getenv(name); key != "" {
			return key
		}
	}
	return ""
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if _, err := ai.Canonical(c.Provider); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w for provider %s", ErrMissingAPIKey, c.Provider)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be a positive integer")
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be a positive integer")
	}
	if c.MaxWidth < 0 {
		return fmt.Errorf("max_width must not be negative")
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		return fmt.Errorf("browser.width and browser.height must be positive")
	}
	if c.AI.MaxImages < 0 {
		return fmt.Errorf("ai.max_images must not be negative")
	}
	return nil
}

// CrawlerOptions maps the browser section onto launcher options
func (c *Config) CrawlerOptions() crawler.Options {
	return crawler.Options{
		Width:             c.Browser.Width,
		Height:            c.Browser.Height,
		Headless:          c.Browser.Headless,
		ProfileDir:        c.Browser.ProfileDir,
		NavigationTimeout: c.Browser.NavigationTimeout,
	}
}

// RecorderOptions maps the video settings onto recorder options
func (c *Config) RecorderOptions(tag string) recorder.Options {
	return recorder.Options{
		Tag:       tag,
		OutputDir: c.OutputDir,
		FPS:       c.FPS,
		MaxWidth:  uint(c.MaxWidth),
	}
}

// AIOptions maps the provider settings onto client options
func (c *Config) AIOptions() ai.Options {
	return ai.Options{
		Model:     c.Model,
		APIKey:    c.APIKey,
		BaseURL:   c.AI.BaseURL,
		MaxTokens: c.AI.MaxTokens,
		MaxImages: c.AI.MaxImages,
	}
}
