package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsApplyWhenNoFileOrEnv(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8765/ws", cfg.WSURL)
	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.Equal(t, "round_robin", cfg.TurnStrategy)
}

func TestLoad_FileOverridesDefaultsAndEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parley.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ws_url: ws://example.com/ws\nllm_provider: openai\n"), 0o600))

	t.Setenv("PARLEY_LLM_PROVIDER", "anthropic")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://example.com/ws", cfg.WSURL)
	assert.Equal(t, "anthropic", cfg.LLMProvider, "env var must win over the file")
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "round_robin", cfg.TurnStrategy)
}

func TestFlags_ApplyOverridesLoadedConfig(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	flags := RegisterFlags(fs, cfg)
	require.NoError(t, fs.Parse([]string{"-member-id", "host-1", "-turn-strategy", "ai"}))
	flags.Apply(cfg)

	assert.Equal(t, "host-1", cfg.MemberID)
	assert.Equal(t, "ai", cfg.TurnStrategy)
	// Untouched flags keep the loaded value.
	assert.Equal(t, "ws://localhost:8765/ws", cfg.WSURL)
}
