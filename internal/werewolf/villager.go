package werewolf

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/parley/parley/internal/agent"
	"github.com/parley/parley/internal/host"
	"github.com/parley/parley/internal/member"
)

const (
	defaultAbility = "无特殊能力"
	defaultTarget  = "找出狼人并投票驱逐，帮助好人阵营获得胜利"
)

// Villager is the base player: an agent.Agent plus game state (role,
// alive/dead) and the commands every player answers regardless of role.
type Villager struct {
	*agent.Agent

	role           Role
	isAlive        bool
	ability        string
	style          string
	target         string
	villagerChatID string
}

// NewVillager constructs a plain villager and registers its commands.
func NewVillager(c *member.Client, model agent.ChatModel, name, style, villagerChatID string) *Villager {
	v := &Villager{
		role:           RoleVillager,
		isAlive:        true,
		ability:        defaultAbility,
		style:          style,
		target:         defaultTarget,
		villagerChatID: villagerChatID,
	}
	prompt := BasePrompt(name, v.role, v.ability, v.target, v.style)
	v.Agent = agent.New(c, model, prompt)
	v.registerCommands()
	return v
}

// newSubRole is used by Witch/Prophet/Werewolf to build the embedded
// Villager with a non-default role/ability/target and its own prompt,
// without re-registering the base commands twice.
func newSubRole(c *member.Client, model agent.ChatModel, name string, role Role, style, ability, target, villagerChatID, prompt string) *Villager {
	v := &Villager{
		role:           role,
		isAlive:        true,
		ability:        ability,
		style:          style,
		target:         target,
		villagerChatID: villagerChatID,
	}
	v.Agent = agent.New(c, model, prompt)
	v.registerCommands()
	return v
}

func (v *Villager) registerCommands() {
	v.RegisterCommand("vote", v.handleVote)
	v.RegisterCommand("out", v.handleOut)
	v.RegisterCommand("be-saved", v.handleBeSaved)
	v.RegisterCommand("villager-info", v.handleVillagerInfo)
	v.RegisterCommand("clear-chat", v.handleClearChat)
}

// IsAlive reports whether this player is still in the game.
func (v *Villager) IsAlive() bool { return v.isAlive }

// Role returns this player's hidden role.
func (v *Villager) Role() Role { return v.role }

// updatePrompt rebuilds the base prompt from the player's current fields.
// Prophet uses it when it rebuilds its prompt; Werewolf builds its prompt
// with WerewolfPrompt instead, to include teammates.
func (v *Villager) updatePrompt() string {
	return BasePrompt(v.Name(), v.role, v.ability, v.target, v.style)
}

func (v *Villager) handleVote(data map[string]any) string {
	candidates := stringList(data["candidates"])
	candidates = removeName(candidates, v.Name())

	reply, err := v.Ask(context.Background(), VotePrompt(candidates), v.villagerChatID)
	if err != nil {
		slog.Warn("werewolf: vote failed, abstaining", "member", v.Name(), "error", err)
		return ""
	}
	target, _ := host.ExtractTag(reply, "VOTETO")
	return target
}

func (v *Villager) handleOut(map[string]any) string {
	v.isAlive = false
	return ""
}

func (v *Villager) handleBeSaved(map[string]any) string {
	v.isAlive = true
	return ""
}

func (v *Villager) handleVillagerInfo(map[string]any) string {
	info := VillagerInfo{MemberID: v.MemberID(), Name: v.Name(), Role: v.role, IsAlive: v.isAlive}
	data, err := json.Marshal(info)
	if err != nil {
		slog.Warn("werewolf: failed to encode villager-info", "member", v.Name(), "error", err)
		return ""
	}
	return string(data)
}

func (v *Villager) handleClearChat(data map[string]any) string {
	chatID, _ := data["chat_id"].(string)
	v.Memory().ClearChat(chatID)
	return ""
}

func stringList(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		if s, ok := v.([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func removeName(names []string, name string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
