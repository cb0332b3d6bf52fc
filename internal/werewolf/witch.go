package werewolf

import (
	"context"
	"log/slog"
	"strings"

	"github.com/parley/parley/internal/agent"
	"github.com/parley/parley/internal/host"
	"github.com/parley/parley/internal/member"
)

const (
	witchAbility = "拥有一瓶解药和一瓶毒药，一晚上只能使用一种"
	witchTarget  = "善用药水保护好人阵营，必要时除掉狼人"
)

// Witch is a villager with one save potion and one kill potion, each usable
// once per game.
type Witch struct {
	*Villager

	hasSave bool
	hasKill bool
}

// NewWitch constructs a witch and registers its save-or-kill command in
// addition to the base villager commands.
func NewWitch(c *member.Client, model agent.ChatModel, name, style, villagerChatID string) *Witch {
	w := &Witch{hasSave: true, hasKill: true}
	prompt := BasePrompt(name, RoleWitch, witchAbility, witchTarget, style)
	w.Villager = newSubRole(c, model, name, RoleWitch, style, witchAbility, witchTarget, villagerChatID, prompt)
	w.RegisterCommand("save-or-kill", w.handleSaveOrKill)
	return w
}

func (w *Witch) handleSaveOrKill(data map[string]any) string {
	deadVillager, _ := data["dead-villager"].(string)
	aliveVillagers := stringList(data["alive-villagers"])

	reply, err := w.Ask(context.Background(), WitchSavePrompt(deadVillager, w.hasSave, w.hasKill, aliveVillagers), w.villagerChatID)
	if err != nil {
		slog.Warn("werewolf: witch action failed", "member", w.Name(), "error", err)
		return ""
	}

	action := w.extractAction(reply)
	switch {
	case action == "SAVE":
		w.hasSave = false
	case strings.HasPrefix(action, "KILL:"):
		w.hasKill = false
	}
	return action
}

func (w *Witch) extractAction(text string) string {
	upper := strings.ToUpper(text)
	if strings.Contains(upper, "SAVE") {
		return "SAVE"
	}
	if target, ok := host.ExtractTag(text, "KILL"); ok {
		return "KILL:" + target
	}
	if strings.Contains(upper, "GIVEUP") {
		return "GIVEUP"
	}
	return ""
}
