// Package werewolf is the full exemplar: a game host and four player
// roles built on internal/host and internal/agent, demonstrating the
// framework end to end over a real multi-phase, multi-chat coordination
// problem.
package werewolf

import (
	"fmt"
	"strings"
)

// Role is a player's hidden assignment.
type Role string

const (
	RoleWerewolf Role = "狼人"
	RoleVillager Role = "村民"
	RoleProphet  Role = "预言家"
	RoleWitch    Role = "女巫"
)

// gameRule is shown to every player as part of their base prompt.
const gameRule = `
狼人杀游戏规则：
游戏人数： 9人
游戏角色： 狼人x3,村民x4,预言家x1,女巫x1
进入夜晚时：狼人需要投票选择杀害一位玩家；预言家可以验证一位玩家身份；女巫有一次救人机会和杀人机会，一晚上只能选择救人或者杀人。
白天时：玩家依次发言，发言完毕后全员投票选择要驱逐的玩家。驱逐的玩家可发表遗言。
`

const baseRoleTemplate = `%s
你是%s, 正在参与狼人杀游戏。
你的身份是【%s】
你的能力是【%s】
你的目标是【%s】
讲话风格：%s
发言要求：简短明了，条理清晰，不带任何前缀`

const werewolfTemplate = `%s
你是%s, 正在参与狼人杀游戏。
你的身份是【%s】
你的能力是【%s】
你的目标是【%s】
你的狼人队友是：【%s】(所有队友被淘汰时，请独自决定)
讲话风格：%s
发言要求：简短明了，条理清晰，不带任何前缀`

const voteTemplate = `本轮发言已结束。
根据上述聊天记录进行投票。
候选人：%s
要求：
1. 仔细分析每个玩家的发言
2. 给出投票理由
3. 在确定人选后输出格式：|VOTETO:NAME|`

const lastWordsTemplate = `你已被投票驱逐出局。
请发表你的遗言，可以：
1. 揭示自己的真实身份
2. 表达对其他玩家的看法
3. 给出你认为的凶手提示
要求：言简意赅，不超过100字`

const wolfNightTemplate = `夜晚降临，现在是狼人内部讨论时间。
你的队友：%s
可选目标：%s
要求：
1. 与队友商议要袭击的目标
2. 分析每个玩家的可能身份
3. 确定目标后输出格式：ATTACK NAME TERMINATE`

const prophetVerifyTemplate = `你作为预言家，现在可以验证一名玩家的身份。
可验证的玩家：%s
已验证的玩家：%s(重要！！！)
要求：
1. 分析验证的必要性
2. 选择最有价值的目标
3. 确定后输出格式：|VERIFY:全名|`

const witchSaveTemplate = `你作为女巫，今晚可以使用药水。
今晚死亡的玩家是：%s
你的药水状态：
- 解药：%s
- 毒药：%s
存活玩家：%s
要求：
1. 分析使用药水的价值
2. 做出选择：
   - 使用解药：输出 "SAVE"
   - 使用毒药：输出 "|KILL:NAME|"
   - 放弃使用：输出 "GIVEUP"
注意：每晚只能使用一种药水`

// BasePrompt builds the system prompt shared by Villager, Witch and
// Prophet.
func BasePrompt(name string, role Role, ability, target, style string) string {
	return fmt.Sprintf(baseRoleTemplate, gameRule, name, role, ability, target, style)
}

// WerewolfPrompt builds the werewolf variant, which additionally names the
// player's surviving teammates.
func WerewolfPrompt(name string, role Role, ability, target, style, teammates string) string {
	return fmt.Sprintf(werewolfTemplate, gameRule, name, role, ability, target, teammates, style)
}

// VotePrompt asks the player to cast a vote among candidates.
func VotePrompt(candidates []string) string {
	return fmt.Sprintf(voteTemplate, strings.Join(candidates, ","))
}

// LastWordsPrompt asks an eliminated player for their final statement.
func LastWordsPrompt() string { return lastWordsTemplate }

// WolfNightPrompt asks a werewolf to discuss the night's kill with their
// teammates.
func WolfNightPrompt(aliveWolves, alivePlayers []string) string {
	return fmt.Sprintf(wolfNightTemplate, strings.Join(aliveWolves, ","), strings.Join(alivePlayers, ","))
}

// ProphetVerifyPrompt asks the prophet to choose a verification target.
// verified maps an already-verified player's name to their revealed role.
func ProphetVerifyPrompt(candidates []string, verified map[string]string) string {
	info := make([]string, 0, len(verified))
	for name, role := range verified {
		info = append(info, name+"是"+role)
	}
	verifiedText := "无"
	if len(info) > 0 {
		verifiedText = strings.Join(info, ",")
	}
	return fmt.Sprintf(prophetVerifyTemplate, strings.Join(candidates, ","), verifiedText)
}

// WitchSavePrompt asks the witch to choose to save, poison, or pass.
func WitchSavePrompt(deadVillager string, hasSave, hasKill bool, aliveVillagers []string) string {
	return fmt.Sprintf(witchSaveTemplate, deadVillager, availability(hasSave), availability(hasKill), strings.Join(aliveVillagers, ","))
}

func availability(has bool) string {
	if has {
		return "可用"
	}
	return "已用完"
}
