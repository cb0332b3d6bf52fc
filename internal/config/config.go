// Package config loads the sample binaries' runtime configuration by
// layering, in increasing priority, built-in defaults, an optional YAML
// file, and environment variables — command-line flags are layered last
// by the caller via RegisterFlags/Apply, after flag.Parse.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds everything a sample agent or the Werewolf exemplar needs to
// connect to a broker and drive an LLM-backed member.
type Config struct {
	WSURL        string  `koanf:"ws_url"`
	MemberID     string  `koanf:"member_id"`
	MemberName   string  `koanf:"member_name"`
	LLMProvider  string  `koanf:"llm_provider"` // "anthropic" or "openai"
	LLMModel     string  `koanf:"llm_model"`
	LLMAPIKey    string  `koanf:"llm_api_key"`
	LLMBaseURL   string  `koanf:"llm_base_url"`
	Temperature  float64 `koanf:"temperature"`
	TurnStrategy string  `koanf:"turn_strategy"` // "round_robin", "random", "alternation", or "ai"
	LogLevel     string  `koanf:"log_level"`
}

var defaults = map[string]any{
	"ws_url":        "ws://localhost:8765/ws",
	"llm_provider":  "anthropic",
	"llm_model":     "claude-3-5-sonnet-latest",
	"temperature":   0.7,
	"turn_strategy": "round_robin",
	"log_level":     "info",
}

// Load layers built-in defaults, then an optional YAML file at path
// (silently skipped if it doesn't exist), then environment variables
// prefixed PARLEY_ (e.g. PARLEY_LLM_API_KEY -> llm_api_key).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("PARLEY_", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, "PARLEY_"))
}

// Flags holds the parsed values of the command-line flags RegisterFlags
// binds; call Apply after flag.Parse to fold them back into a Config.
type Flags struct {
	wsURL, memberID, memberName      *string
	llmProvider, llmModel, llmAPIKey *string
	turnStrategy                     *string
}

// RegisterFlags binds flags to fs, defaulted from cfg's current values, so
// an unset flag leaves the file/env-derived value untouched.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) *Flags {
	return &Flags{
		wsURL:        fs.String("ws-url", cfg.WSURL, "broker websocket URL"),
		memberID:     fs.String("member-id", cfg.MemberID, "this member's id"),
		memberName:   fs.String("member-name", cfg.MemberName, "this member's display name"),
		llmProvider:  fs.String("llm-provider", cfg.LLMProvider, "anthropic or openai"),
		llmModel:     fs.String("llm-model", cfg.LLMModel, "model name"),
		llmAPIKey:    fs.String("llm-api-key", cfg.LLMAPIKey, "LLM provider API key"),
		turnStrategy: fs.String("turn-strategy", cfg.TurnStrategy, "round_robin, random, alternation, or ai"),
	}
}

// Apply copies the parsed flag values into cfg. Call after flag.Parse.
func (f *Flags) Apply(cfg *Config) {
	cfg.WSURL = *f.wsURL
	cfg.MemberID = *f.memberID
	cfg.MemberName = *f.memberName
	cfg.LLMProvider = *f.llmProvider
	cfg.LLMModel = *f.llmModel
	cfg.LLMAPIKey = *f.llmAPIKey
	cfg.TurnStrategy = *f.turnStrategy
}
