package werewolf

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parley/parley/internal/agent"
	"github.com/parley/parley/internal/host"
	"github.com/parley/parley/internal/member"
)

const (
	prophetAbility = "每晚可以验证一名玩家的真实身份"
	prophetTarget  = "找出狼人身份，引导好人阵营投票驱逐狼人"
)

// Prophet can verify one player's role each night and remembers every
// result for the rest of the game.
type Prophet struct {
	*Villager

	verifyDict map[string]string
}

// NewProphet constructs a prophet and registers its verification commands
// in addition to the base villager commands.
func NewProphet(c *member.Client, model agent.ChatModel, name, style, villagerChatID string) *Prophet {
	p := &Prophet{verifyDict: make(map[string]string)}
	prompt := BasePrompt(name, RoleProphet, prophetAbility, prophetTarget, style)
	p.Villager = newSubRole(c, model, name, RoleProphet, style, prophetAbility, prophetTarget, villagerChatID, prompt)
	p.RegisterCommand("get-verify-target", p.handleGetVerifyTarget)
	p.RegisterCommand("verify-villager", p.handleVerifyVillager)
	return p
}

func (p *Prophet) handleGetVerifyTarget(data map[string]any) string {
	candidates := stringList(data["candidates"])
	candidates = removeName(candidates, p.Name())
	remaining := candidates[:0:0]
	for _, c := range candidates {
		if _, verified := p.verifyDict[c]; !verified {
			remaining = append(remaining, c)
		}
	}
	if len(remaining) == 0 {
		slog.Warn("werewolf: prophet has no unverified candidates left", "member", p.Name())
		return ""
	}

	reply, err := p.Ask(context.Background(), ProphetVerifyPrompt(remaining, p.verifyDict), p.villagerChatID)
	if err != nil {
		slog.Warn("werewolf: prophet verify failed", "member", p.Name(), "error", err)
		return ""
	}
	target, _ := host.ExtractTag(reply, "VERIFY")
	return target
}

func (p *Prophet) handleVerifyVillager(data map[string]any) string {
	name, _ := data["name"].(string)
	role, _ := data["role"].(string)
	if name == "" {
		return ""
	}
	p.verifyDict[name] = role
	p.SetPrompt(p.updatePrompt() + fmt.Sprintf("\n重要！！！已验证的村民身份：%v", p.verifyDict))
	return ""
}
