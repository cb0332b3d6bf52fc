package werewolf

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/parley/parley/internal/host"
	"github.com/parley/parley/internal/member"
	"github.com/parley/parley/internal/model"
)

// Game phases. NightStart, WolfKill, Speech, Voting and Will are dispatched
// by incoming messages via host.Engine; the rest are driven by direct calls
// chained together as the game progresses, matching the exemplar's mix of
// message-triggered and host-initiated transitions.
const (
	PhaseInit           = "init"
	PhaseDayStart       = "day_start"
	PhaseDeathReport    = "death_report"
	PhaseSpeech         = "speech"
	PhaseVoting         = "voting"
	PhaseVoteResult     = "vote_result"
	PhaseWill           = "will"
	PhaseNightStart     = "night_start"
	PhaseWolfKill       = "wolf_kill"
	PhaseWolfKillResult = "wolf_kill_result"
	PhaseProphetVerify  = "prophet_verify"
	PhaseWitchSave      = "witch_save"
	PhaseGameOver       = "game_over"
)

// GameHost runs a full Werewolf game over two chats: a public villagers
// chat everyone can hear, and a private wolves chat only werewolves see.
type GameHost struct {
	*host.Engine

	villagerIDs     []string
	villagers       []VillagerInfo
	gameTime        GameTime
	dayLog          *host.RoundLog[DayInfo]
	villagersChatID string
	wolvesChatID    string
}

// NewGameHost constructs a host for the given roster and chats. Call
// RefreshRoster once every player has registered its villager-info command
// before starting the game.
func NewGameHost(c *member.Client, villagerIDs []string, villagersChatID, wolvesChatID string) *GameHost {
	g := &GameHost{
		Engine:          host.NewEngine(c),
		villagerIDs:     villagerIDs,
		gameTime:        NewGameTime(),
		dayLog:          host.NewRoundLog(newDayInfo),
		villagersChatID: villagersChatID,
		wolvesChatID:    wolvesChatID,
	}
	g.Watch(villagersChatID, wolvesChatID)
	g.On(PhaseNightStart, g.handleNightStart)
	g.On(PhaseWolfKill, g.handleWolfKill)
	g.On(PhaseSpeech, g.handleSpeechPhase)
	g.On(PhaseVoting, g.handleVotingPhase)
	g.On(PhaseWill, g.handleWillPhase)
	g.SetPhase(PhaseInit)
	return g
}

// RefreshRoster asks every player for its current villager-info and
// replaces the cached roster.
func (g *GameHost) RefreshRoster(ctx context.Context) {
	results := g.SendCommand(ctx, "villager-info", g.villagerIDs, nil)
	roster := make([]VillagerInfo, 0, len(results))
	for _, r := range results {
		raw, ok := r.Result.(string)
		if !ok || raw == "" {
			continue
		}
		var info VillagerInfo
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			slog.Warn("werewolf: failed to decode villager-info", "error", err)
			continue
		}
		roster = append(roster, info)
	}
	g.villagers = roster
}

func (g *GameHost) getVillagerInfoByID(memberID string) (VillagerInfo, bool) {
	for _, v := range g.villagers {
		if v.MemberID == memberID {
			return v, true
		}
	}
	return VillagerInfo{}, false
}

func (g *GameHost) getVillagerInfoByName(name string) (VillagerInfo, bool) {
	for _, v := range g.villagers {
		if v.Name == name {
			return v, true
		}
	}
	return VillagerInfo{}, false
}

func (g *GameHost) getAliveVillagers() []VillagerInfo {
	out := make([]VillagerInfo, 0, len(g.villagers))
	for _, v := range g.villagers {
		if v.IsAlive {
			out = append(out, v)
		}
	}
	return out
}

func (g *GameHost) getWolves() []VillagerInfo {
	out := make([]VillagerInfo, 0, len(g.villagers))
	for _, v := range g.villagers {
		if v.Role == RoleWerewolf {
			out = append(out, v)
		}
	}
	return out
}

func (g *GameHost) getAliveWolves() []VillagerInfo {
	out := make([]VillagerInfo, 0, len(g.villagers))
	for _, v := range g.getWolves() {
		if v.IsAlive {
			out = append(out, v)
		}
	}
	return out
}

func (g *GameHost) getFirstAliveOfRole(role Role) (VillagerInfo, bool) {
	for _, v := range g.getAliveVillagers() {
		if v.Role == role {
			return v, true
		}
	}
	return VillagerInfo{}, false
}

func (g *GameHost) getFirstAlivePlayer() (VillagerInfo, bool) {
	alive := g.getAliveVillagers()
	if len(alive) == 0 {
		return VillagerInfo{}, false
	}
	return alive[0], true
}

func namesOf(villagers []VillagerInfo) []string {
	names := make([]string, len(villagers))
	for i, v := range villagers {
		names[i] = v.Name
	}
	return names
}

func idsOf(villagers []VillagerInfo) []string {
	ids := make([]string, len(villagers))
	for i, v := range villagers {
		ids[i] = v.MemberID
	}
	return ids
}

// out eliminates memberID and refreshes the cached roster.
func (g *GameHost) out(ctx context.Context, memberID string) {
	g.SendCommand(ctx, "out", []string{memberID}, nil)
	g.RefreshRoster(ctx)
}

func (g *GameHost) beSaved(ctx context.Context, memberID string) {
	g.SendCommand(ctx, "be-saved", []string{memberID}, nil)
	g.RefreshRoster(ctx)
}

// checkGameOver reports whether the wolves have been eliminated, or no
// longer outnumbered by the remaining villagers.
func (g *GameHost) checkGameOver() bool {
	aliveWolves := len(g.getAliveWolves())
	aliveTotal := len(g.getAliveVillagers())
	if aliveWolves == 0 {
		return true
	}
	return aliveWolves >= aliveTotal-aliveWolves
}

func (g *GameHost) handleGameOver(ctx context.Context) {
	g.SetPhase(PhaseGameOver)
	winner := "狼人阵营"
	if len(g.getAliveWolves()) == 0 {
		winner = "好人阵营"
	}
	g.SendMessage(ctx, "游戏结束，"+winner+"获胜！", g.villagersChatID)
}

// StartNightPhase begins the game: players close their eyes and the wolves
// start their private discussion.
func (g *GameHost) StartNightPhase(ctx context.Context) {
	g.SetPhase(PhaseNightStart)
	g.SendMessage(ctx, "天黑请闭眼", g.wolvesChatID)
	g.startWolfDiscussion(ctx)
}

func (g *GameHost) handleNightStart(ctx context.Context, msg model.Message) {
	slog.Info("werewolf: message received while transitioning into night, ignoring", "chat_id", msg.ChatID)
}

func (g *GameHost) startWolfDiscussion(ctx context.Context) {
	wolves := g.getAliveWolves()
	targets := g.getAliveVillagers()
	g.SendMessage(ctx, WolfNightPrompt(namesOf(wolves), namesOf(targets)), g.wolvesChatID)
	g.SetPhase(PhaseWolfKill)
	if first, ok := g.getFirstOf(wolves); ok {
		g.ChooseNextSpeaker(ctx, g.wolvesChatID, first.MemberID)
	}
}

func (g *GameHost) getFirstOf(villagers []VillagerInfo) (VillagerInfo, bool) {
	if len(villagers) == 0 {
		return VillagerInfo{}, false
	}
	return villagers[0], true
}

func (g *GameHost) handleWolfKill(ctx context.Context, msg model.Message) {
	day := g.dayLog.Update(g.gameTime.DayNumber, func(d DayInfo) DayInfo {
		return d.withNightMessage(msg.Message)
	})
	if _, ok := host.TerminationTarget(msg.Message, "ATTACK"); ok {
		g.handleWolfKillResult(ctx, day)
		return
	}
	wolfIDs := idsOf(g.getAliveWolves())
	if next, ok := host.NextInSequence(wolfIDs, msg.FromMemberID, true); ok {
		g.ChooseNextSpeaker(ctx, g.wolvesChatID, next)
	}
}

func (g *GameHost) handleWolfKillResult(ctx context.Context, day DayInfo) {
	target := ""
	for i := len(day.NightMessages) - 1; i >= 0; i-- {
		if t, ok := host.TerminationTarget(day.NightMessages[i], "ATTACK"); ok {
			target = t
			break
		}
	}
	if target == "" {
		slog.Warn("werewolf: wolves terminated discussion without naming a target")
	} else {
		day = g.dayLog.Update(g.gameTime.DayNumber, func(d DayInfo) DayInfo {
			return d.withWolfKill(target)
		})
		if victim, ok := g.getVillagerInfoByName(target); ok {
			g.out(ctx, victim.MemberID)
		}
	}
	g.handleProphetVerify(ctx)
}

func (g *GameHost) handleProphetVerify(ctx context.Context) {
	g.SetPhase(PhaseProphetVerify)
	prophet, ok := g.getFirstAliveOfRole(RoleProphet)
	if !ok {
		g.handleWitchSaveOrKill(ctx)
		return
	}
	candidates := make([]string, 0, len(g.villagers))
	for _, v := range g.getAliveVillagers() {
		if v.MemberID != prophet.MemberID {
			candidates = append(candidates, v.Name)
		}
	}
	results := g.SendCommand(ctx, "get-verify-target", []string{prophet.MemberID}, map[string]any{"candidates": candidates})
	target := resultString(results)
	if target != "" {
		if verified, ok := g.getVillagerInfoByName(target); ok {
			g.dayLog.Update(g.gameTime.DayNumber, func(d DayInfo) DayInfo {
				return d.withProphetVerify(target, string(verified.Role))
			})
			g.SendCommand(ctx, "verify-villager", []string{prophet.MemberID}, map[string]any{"name": target, "role": string(verified.Role)})
		}
	}
	g.handleWitchSaveOrKill(ctx)
}

func (g *GameHost) handleWitchSaveOrKill(ctx context.Context) {
	g.SetPhase(PhaseWitchSave)
	witch, ok := g.getFirstAliveOfRole(RoleWitch)
	if ok {
		day := g.dayLog.Get(g.gameTime.DayNumber)
		if day.KilledByWolves != "" {
			aliveNames := namesOf(g.getAliveVillagers())
			results := g.SendCommand(ctx, "save-or-kill", []string{witch.MemberID}, map[string]any{
				"dead-villager":   day.KilledByWolves,
				"alive-villagers": aliveNames,
			})
			action := resultString(results)
			switch {
			case action == "SAVE":
				g.dayLog.Update(g.gameTime.DayNumber, func(d DayInfo) DayInfo {
					return d.withWitchSave(day.KilledByWolves)
				})
				g.beSaved(ctx, witchVictimID(g, day.KilledByWolves))
			case strings.HasPrefix(action, "KILL:"):
				killed := strings.TrimPrefix(action, "KILL:")
				g.dayLog.Update(g.gameTime.DayNumber, func(d DayInfo) DayInfo {
					return d.withWitchKill(killed)
				})
				if victim, ok := g.getVillagerInfoByName(killed); ok {
					g.out(ctx, victim.MemberID)
				}
			}
		}
	}
	g.gameTime.NextPhase()
	g.handleDayStart(ctx)
}

func witchVictimID(g *GameHost, name string) string {
	if v, ok := g.getVillagerInfoByName(name); ok {
		return v.MemberID
	}
	return ""
}

func resultString(results []model.CommandResult) string {
	if len(results) == 0 {
		return ""
	}
	s, _ := results[0].Result.(string)
	return s
}

func (g *GameHost) handleDayStart(ctx context.Context) {
	g.SetPhase(PhaseDayStart)
	g.SendMessage(ctx, "天亮了，请大家睁眼", g.villagersChatID)
	g.handleDeathReport(ctx)
}

func (g *GameHost) handleDeathReport(ctx context.Context) {
	g.SetPhase(PhaseDeathReport)
	night := g.dayLog.Get(g.gameTime.DayNumber - 1)
	var deaths []string
	if night.KilledByWolves != "" && night.KilledByWolves != night.SavedByWitch {
		deaths = append(deaths, night.KilledByWolves)
	}
	if night.KilledByWitch != "" {
		deaths = append(deaths, night.KilledByWitch)
	}
	if len(deaths) == 0 {
		g.SendMessage(ctx, "平安夜，没有人死亡。", g.villagersChatID)
	} else {
		g.SendMessage(ctx, "昨晚死亡的玩家是："+strings.Join(deaths, "、"), g.villagersChatID)
	}
	if g.checkGameOver() {
		g.handleGameOver(ctx)
		return
	}
	g.SetPhase(PhaseSpeech)
	if first, ok := g.getFirstAlivePlayer(); ok {
		g.ChooseNextSpeaker(ctx, g.villagersChatID, first.MemberID)
	}
}

func (g *GameHost) handleSpeechPhase(ctx context.Context, msg model.Message) {
	aliveIDs := idsOf(g.getAliveVillagers())
	if next, ok := host.NextInSequence(aliveIDs, msg.FromMemberID, false); ok {
		g.ChooseNextSpeaker(ctx, g.villagersChatID, next)
		return
	}
	g.handleVotingPhaseStart(ctx)
}

func (g *GameHost) handleVotingPhaseStart(ctx context.Context) {
	g.SetPhase(PhaseVoting)
	alive := g.getAliveVillagers()
	names := namesOf(alive)
	results := g.SendCommand(ctx, "vote", idsOf(alive), map[string]any{"candidates": names})
	votes := make([]string, 0, len(results))
	for _, r := range results {
		if s, ok := r.Result.(string); ok && s != "" {
			votes = append(votes, s)
		}
	}
	target, ok := host.MostVoted(votes)
	if !ok {
		g.handleWillPhaseSkip(ctx)
		return
	}
	g.dayLog.Update(g.gameTime.DayNumber, func(d DayInfo) DayInfo {
		return d.withVoteOut(target)
	})
	victim, found := g.getVillagerInfoByName(target)
	if found {
		g.out(ctx, victim.MemberID)
	}
	g.SetPhase(PhaseVoteResult)
	g.SendMessage(ctx, "投票结果："+target+" 被驱逐出局。", g.villagersChatID)
	if g.checkGameOver() {
		g.handleGameOver(ctx)
		return
	}
	g.SetPhase(PhaseWill)
	if found {
		g.ChooseNextSpeaker(ctx, g.villagersChatID, victim.MemberID)
	} else {
		g.handleWillPhaseSkip(ctx)
	}
}

// handleVotingPhase exists so Voting is a registered phase like its
// siblings; votes are collected synchronously via SendCommand rather than
// by message, so a message arriving mid-vote is simply logged and ignored.
func (g *GameHost) handleVotingPhase(ctx context.Context, msg model.Message) {
	slog.Info("werewolf: message received during vote collection, ignoring", "chat_id", msg.ChatID)
}

func (g *GameHost) handleWillPhase(ctx context.Context, msg model.Message) {
	slog.Info("werewolf: last words given", "member", msg.FromMemberName, "text", msg.Message)
	g.handleWillPhaseSkip(ctx)
}

func (g *GameHost) handleWillPhaseSkip(ctx context.Context) {
	g.gameTime.NextPhase()
	g.StartNightPhase(ctx)
}
