package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/pagepilot/internal/agent"
	"github.com/v0xg/pagepilot/internal/ai"
	"github.com/v0xg/pagepilot/internal/config"
)

func TestRunRequiresURLAndInstruction(t *testing.T) {
	root := newRootCmd(config.NewViper())
	root.SetArgs([]string{"run", "https://example.com"})
	root.SilenceErrors = true

	assert.Error(t, root.Execute())
}

func TestFlagsOverrideDefaults(t *testing.T) {
	t.Setenv("PAGEPILOT_DEFAULT_PROVIDER", "")
	v := config.NewViper()
	root := newRootCmd(v)
	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)

	require.NoError(t, run.ParseFlags([]string{"--provider", "claude", "--max-steps", "3", "--width", "800", "--max-width", "640"}))
	v.Set("api_key", "k")

	cfg, err := config.NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, ai.ProviderClaude, cfg.Provider)
	assert.Equal(t, 3, cfg.MaxSteps)
	assert.Equal(t, 800, cfg.Browser.Width)
	assert.Equal(t, 720, cfg.Browser.Height)
	assert.Equal(t, uint(640), cfg.RecorderOptions("").MaxWidth)
}

func TestReadConfigFile(t *testing.T) {
	v := config.NewViper()
	assert.Error(t, readConfigFile(v, filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "pagepilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_steps: 7\n"), 0o600))
	require.NoError(t, readConfigFile(v, path))
	assert.Equal(t, 7, v.GetInt("max_steps"))
}

func TestWriteTranscript(t *testing.T) {
	conv := &ai.Conversation{}
	conv.Append(
		ai.Message{Role: ai.RoleSystem, Content: "sys"},
		ai.Message{Role: ai.RoleUser, Content: "{}", Image: []byte{1}, ImageRef: "step-1"},
	)
	path := filepath.Join(t.TempDir(), "run.json")

	require.NoError(t, writeTranscript(path, agent.Handoff{Transcript: conv, VideoFilename: "run-1.gif"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "run-1.gif", got["video_filename"])
	assert.Len(t, got["transcript"], 2)
}
