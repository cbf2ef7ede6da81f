package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/v0xg/pagepilot/internal/agent"
	"github.com/v0xg/pagepilot/internal/ai"
	"github.com/v0xg/pagepilot/internal/config"
	"github.com/v0xg/pagepilot/internal/crawler"
	"github.com/v0xg/pagepilot/internal/executor"
	"github.com/v0xg/pagepilot/internal/observability"
	"github.com/v0xg/pagepilot/internal/overlay"
	"github.com/v0xg/pagepilot/internal/progress"
	"github.com/v0xg/pagepilot/internal/recorder"
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd(config.NewViper()).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "pagepilot",
		Short: "Drive a browser toward a goal with an AI model",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return readConfigFile(v, configFile)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./pagepilot.yaml if present)")

	rootCmd.AddCommand(newRunCmd(v))
	return rootCmd
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <url> <instruction>",
		Short: "Run the agent against a page until it is done or out of steps",
		Long: `run opens the URL in a browser, then repeatedly shows the page to the model,
executes the action it chooses and records every step into a GIF.

Example:
  pagepilot run "https://myapp.com" "log in as test@example.com with password hunter2"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				v.Set("logger.level", "debug")
			}
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, agent.Goal{TargetURL: args[0], Instruction: args[1]})
		},
	}

	flags := cmd.Flags()
	flags.String("provider", "", "AI provider: openai, claude, gemini (default: from env or openai)")
	flags.String("model", "", "Specific model override")
	flags.Int("max-steps", 15, "Maximum agent steps")
	flags.Int("fps", 3, "Frames per second of the recorded GIF")
	flags.Int("max-width", 800, "Maximum GIF frame width in pixels (0 keeps the viewport width)")
	flags.StringP("output-dir", "o", ".", "Directory for the GIF and transcript")
	flags.Int("width", 1280, "Viewport width")
	flags.Int("height", 720, "Viewport height")
	flags.Bool("headless", true, "Run the browser headless")
	flags.String("profile", "", "Chrome/Chromium profile directory for authenticated sessions (close browser first)")
	flags.String("progress-url", "", "Websocket endpoint that receives progress lines and frames")
	flags.BoolP("verbose", "v", false, "Show detailed progress")

	for key, flag := range map[string]string{
		"provider":            "provider",
		"model":               "model",
		"max_steps":           "max-steps",
		"fps":                 "fps",
		"max_width":           "max-width",
		"output_dir":          "output-dir",
		"browser.width":       "width",
		"browser.height":      "height",
		"browser.headless":    "headless",
		"browser.profile_dir": "profile",
		"progress.url":        "progress-url",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pagepilot")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, goal agent.Goal) error {
	logger := observability.NewStdoutLogger(cfg.Logger)
	defer func() { _ = logger.Sync() }()

	runID := uuid.NewString()
	logger.Debug("starting pagepilot",
		zap.String("run_id", runID),
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model))

	decider, err := ai.NewProvider(ctx, cfg.Provider, cfg.AIOptions(), logger.Named("ai"))
	if err != nil {
		return fmt.Errorf("AI provider init failed: %w", err)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	fmt.Printf("→ Opening %s... ", goal.TargetURL)
	browser, err := crawler.Launch(ctx, goal.TargetURL, cfg.CrawlerOptions())
	if err != nil {
		fmt.Println("failed")
		return fmt.Errorf("browser launch failed: %w", err)
	}
	defer browser.Close()
	fmt.Println("done")

	sink, err := newSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	rec := recorder.New(sink, cfg.RecorderOptions("["+runID[:8]+"]"), logger.Named("recorder"))

	a := agent.New(
		browser,
		executor.New(browser, logger.Named("executor")),
		overlay.NewAnnotator(cfg.Overlay.FontPath, logger.Named("overlay")),
		decider,
		rec,
		agent.Options{MaxSteps: cfg.MaxSteps, VideoName: "run-" + runID + ".gif"},
		logger,
	)

	fmt.Printf("→ Working on: %s\n", goal.Instruction)
	res, runErr := a.Run(ctx, goal)

	if res != nil {
		path := filepath.Join(cfg.OutputDir, "run-"+runID+".json")
		if err := writeTranscript(path, res.Handoff()); err != nil {
			logger.Error("failed to write transcript", zap.String("path", path), zap.Error(err))
		} else {
			fmt.Printf("  Transcript: %s\n", path)
		}
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	switch res.Reason {
	case agent.ReasonDone:
		fmt.Printf("✓ Done after %d steps: %s\n", res.Steps, res.Summary)
	default:
		fmt.Printf("✗ Stopped after %d steps without finishing\n", res.Steps)
	}
	fmt.Printf("  Video: %s\n", filepath.Join(cfg.OutputDir, res.VideoFilename))
	return nil
}

func newSink(ctx context.Context, cfg *config.Config, logger *zap.Logger) (progress.Sink, error) {
	if cfg.Progress.URL == "" {
		return progress.NewLogSink(logger.Named("progress")), nil
	}
	sink, err := progress.DialWebsocket(ctx, cfg.Progress.URL, nil, logger.Named("progress"))
	if err != nil {
		return nil, err
	}
	return sink, nil
}

func writeTranscript(path string, handoff agent.Handoff) error {
	data, err := json.MarshalIndent(handoff, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
