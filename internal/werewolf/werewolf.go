package werewolf

import (
	"strings"

	"github.com/parley/parley/internal/agent"
	"github.com/parley/parley/internal/member"
)

const (
	werewolfAbility = "夜晚可与队友共同决定袭击目标"
	werewolfTarget  = "隐藏身份，消灭村民阵营，存活到最后"
)

// Werewolf is a villager who shares a private chat with its teammates and
// knows who they are.
type Werewolf struct {
	*Villager

	teammates      []string
	hostMemberID   string
	werewolfChatID string
}

// NewWerewolf constructs a werewolf and wires the bidirectional reference
// between its public villager chat and the private wolves chat, so replies
// in either draw on both transcripts.
func NewWerewolf(c *member.Client, model agent.ChatModel, name, style, villagerChatID, werewolfChatID, hostMemberID string) *Werewolf {
	w := &Werewolf{hostMemberID: hostMemberID, werewolfChatID: werewolfChatID}
	prompt := WerewolfPrompt(name, RoleWerewolf, werewolfAbility, werewolfTarget, style, w.teammatesPrompt())
	w.Villager = newSubRole(c, model, name, RoleWerewolf, style, werewolfAbility, werewolfTarget, villagerChatID, prompt)
	w.AddReferenceChat(villagerChatID, werewolfChatID)
	w.AddReferenceChat(werewolfChatID, villagerChatID)
	w.RegisterCommand("update-teammates", w.handleUpdateTeammates)
	return w
}

func (w *Werewolf) handleUpdateTeammates(data map[string]any) string {
	teammates := stringList(data["teammates"])
	w.teammates = removeName(teammates, w.Name())
	w.SetPrompt(WerewolfPrompt(w.Name(), RoleWerewolf, w.ability, w.target, w.style, w.teammatesPrompt()))
	return ""
}

func (w *Werewolf) teammatesPrompt() string {
	if len(w.teammates) == 0 {
		return "所有队友已出局，你是最后的狼人"
	}
	return strings.Join(w.teammates, ",")
}
