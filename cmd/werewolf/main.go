// Command werewolf runs a complete ten-player Werewolf game: one host and
// nine LLM-backed players (four villagers, three werewolves, one prophet,
// one witch), all connected to the same broker from a single process.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/parley/parley/internal/agent"
	"github.com/parley/parley/internal/agent/llm/anthropicmodel"
	"github.com/parley/parley/internal/agent/llm/openaimodel"
	"github.com/parley/parley/internal/config"
	"github.com/parley/parley/internal/logging"
	"github.com/parley/parley/internal/member"
	"github.com/parley/parley/internal/transport"
	"github.com/parley/parley/internal/werewolf"
)

// playerSpec describes one seat at the table.
type playerSpec struct {
	memberID string
	name     string
	style    string
	role     werewolf.Role
}

var roster = []playerSpec{
	{"villager-1", "陈晨", "直率敢言", werewolf.RoleVillager},
	{"villager-2", "林悦", "谨慎多疑", werewolf.RoleVillager},
	{"villager-3", "赵宇", "沉默寡言", werewolf.RoleVillager},
	{"villager-4", "孙芳", "逻辑缜密", werewolf.RoleVillager},
	{"wolf-1", "周毅", "老练沉稳", werewolf.RoleWerewolf},
	{"wolf-2", "吴迪", "咄咄逼人", werewolf.RoleWerewolf},
	{"wolf-3", "郑凯", "左右逢源", werewolf.RoleWerewolf},
	{"prophet-1", "刘琪", "机警敏锐", werewolf.RoleProphet},
	{"witch-1", "黄蓉", "果断狠辣", werewolf.RoleWitch},
}

const hostMemberID = "werewolf-host"

func main() {
	logging.Setup()

	fs := flag.NewFlagSet("werewolf", flag.ExitOnError)
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("werewolf: failed to load config", "error", err)
		os.Exit(1)
	}
	flags := config.RegisterFlags(fs, cfg)
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	flags.Apply(cfg)

	model, err := buildModel(*cfg)
	if err != nil {
		slog.Error("werewolf: failed to build chat model", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	hostClient := loginMember(ctx, cfg.WSURL, hostMemberID, "主持人")
	_, villagersChat, err := hostClient.CreateChat(ctx, "village-square", "all players", true, true)
	if err != nil {
		slog.Error("werewolf: failed to create villagers chat", "error", err)
		os.Exit(1)
	}
	_, wolvesChat, err := hostClient.CreateChat(ctx, "wolves-den", "werewolves only", true, true)
	if err != nil {
		slog.Error("werewolf: failed to create wolves chat", "error", err)
		os.Exit(1)
	}

	allIDs := make([]string, len(roster))
	wolfIDs := make([]string, 0, 3)
	wolfNames := make([]string, 0, 3)
	for i, p := range roster {
		allIDs[i] = p.memberID
		if p.role == werewolf.RoleWerewolf {
			wolfIDs = append(wolfIDs, p.memberID)
			wolfNames = append(wolfNames, p.name)
		}
	}
	if err := hostClient.PullMembersIntoChat(ctx, villagersChat.ChatID, allIDs); err != nil {
		slog.Error("werewolf: failed to pull members into villagers chat", "error", err)
		os.Exit(1)
	}
	if err := hostClient.PullMembersIntoChat(ctx, wolvesChat.ChatID, wolfIDs); err != nil {
		slog.Error("werewolf: failed to pull wolves into wolves chat", "error", err)
		os.Exit(1)
	}

	host := werewolf.NewGameHost(hostClient, allIDs, villagersChat.ChatID, wolvesChat.ChatID)
	host.RegisterChatManager(ctx, villagersChat.ChatID)
	host.RegisterChatManager(ctx, wolvesChat.ChatID)

	for _, p := range roster {
		c := loginMember(ctx, cfg.WSURL, p.memberID, p.name)
		switch p.role {
		case werewolf.RoleWerewolf:
			werewolf.NewWerewolf(c, model, p.name, p.style, villagersChat.ChatID, wolvesChat.ChatID, hostMemberID)
		case werewolf.RoleProphet:
			werewolf.NewProphet(c, model, p.name, p.style, villagersChat.ChatID)
		case werewolf.RoleWitch:
			werewolf.NewWitch(c, model, p.name, p.style, villagersChat.ChatID)
		default:
			werewolf.NewVillager(c, model, p.name, p.style, villagersChat.ChatID)
		}
	}

	hostClient.SendCommand(ctx, "update-teammates", wolfIDs, map[string]any{"teammates": wolfNames})
	host.RefreshRoster(ctx)

	slog.Info("werewolf: starting game", "villagers_chat", villagersChat.ChatID, "wolves_chat", wolvesChat.ChatID)
	host.StartNightPhase(ctx)

	host.Wait()
}

func loginMember(ctx context.Context, wsURL, memberID, name string) *member.Client {
	tc := transport.NewClient(transport.Config{WSURL: wsURL, MemberID: memberID, MemberName: name})
	c := member.New(tc, memberID, name, "")
	if !tc.Login(ctx) {
		slog.Error("werewolf: login failed", "member_id", memberID)
		os.Exit(1)
	}
	return c
}

func buildModel(cfg config.Config) (agent.ChatModel, error) {
	switch cfg.LLMProvider {
	case "openai":
		return openaimodel.New(openaimodel.Config{
			APIKey:      cfg.LLMAPIKey,
			Model:       cfg.LLMModel,
			BaseURL:     cfg.LLMBaseURL,
			Temperature: float32(cfg.Temperature),
		}), nil
	default:
		return anthropicmodel.New(anthropicmodel.Config{
			APIKey:      cfg.LLMAPIKey,
			Model:       cfg.LLMModel,
			BaseURL:     cfg.LLMBaseURL,
			Temperature: cfg.Temperature,
		}), nil
	}
}
