// Command agent runs a single LLM-backed chat participant: it logs in to
// the broker, joins whichever chats it's added to, and replies whenever a
// next_speaker event names it, using the aggregated context of every chat
// it has seen plus any declared reference chats.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/parley/parley/internal/agent"
	"github.com/parley/parley/internal/agent/llm/anthropicmodel"
	"github.com/parley/parley/internal/agent/llm/openaimodel"
	"github.com/parley/parley/internal/config"
	"github.com/parley/parley/internal/logging"
	"github.com/parley/parley/internal/member"
	"github.com/parley/parley/internal/transport"
)

func main() {
	logging.Setup()

	configPath := configPathFromArgs(os.Args[1:])
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("agent: failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("agent", flag.ExitOnError)
	fs.String("config", "", "path to a YAML config file")
	flags := config.RegisterFlags(fs, cfg)
	promptFlag := fs.String("prompt", "", "system prompt describing this agent's persona")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	flags.Apply(cfg)

	model, err := buildModel(*cfg)
	if err != nil {
		slog.Error("agent: failed to build chat model", "error", err)
		os.Exit(1)
	}

	tc := transport.NewClient(transport.Config{
		WSURL:      cfg.WSURL,
		MemberID:   cfg.MemberID,
		MemberName: cfg.MemberName,
	})
	mc := member.New(tc, cfg.MemberID, cfg.MemberName, "")
	a := agent.New(mc, model, *promptFlag)

	ctx := context.Background()
	if !tc.Login(ctx) {
		slog.Error("agent: login failed")
		os.Exit(1)
	}
	slog.Info("agent: logged in", "member_id", a.MemberID(), "name", a.Name())

	a.Wait()
}

// configPathFromArgs does a minimal pre-scan for -config/--config so the
// full flag set (whose defaults come from the loaded config) can be
// registered afterward, before flag.Parse sees the rest of the flags.
func configPathFromArgs(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "-config" || arg == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(arg, "-config="):
			return strings.TrimPrefix(arg, "-config=")
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}

func buildModel(cfg config.Config) (agent.ChatModel, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		return anthropicmodel.New(anthropicmodel.Config{
			APIKey:      cfg.LLMAPIKey,
			Model:       cfg.LLMModel,
			BaseURL:     cfg.LLMBaseURL,
			Temperature: cfg.Temperature,
		}), nil
	case "openai":
		return openaimodel.New(openaimodel.Config{
			APIKey:      cfg.LLMAPIKey,
			Model:       cfg.LLMModel,
			BaseURL:     cfg.LLMBaseURL,
			Temperature: float32(cfg.Temperature),
		}), nil
	default:
		return nil, fmt.Errorf("agent: unknown llm provider %q", cfg.LLMProvider)
	}
}
