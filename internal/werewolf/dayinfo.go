package werewolf

// DayInfo is one day's record: who died, who was saved, who was verified,
// who was voted out, and the night/day transcript. Values are replaced
// wholesale on each update via host.RoundLog.Update rather than mutated in
// place, mirroring the source's copy_with pattern.
type DayInfo struct {
	DayNumber         int
	Out               string // voted out
	KilledByWolves    string
	SavedByWitch      string
	KilledByWitch     string
	VerifiedByProphet map[string]string // {"name": "role"}
	DayMessages       []string
	NightMessages     []string
}

func newDayInfo(day int) DayInfo {
	return DayInfo{DayNumber: day}
}

func (d DayInfo) withWolfKill(target string) DayInfo {
	d.KilledByWolves = target
	return d
}

func (d DayInfo) withWitchSave(target string) DayInfo {
	d.SavedByWitch = target
	return d
}

func (d DayInfo) withWitchKill(target string) DayInfo {
	d.KilledByWitch = target
	return d
}

func (d DayInfo) withProphetVerify(name, role string) DayInfo {
	verified := make(map[string]string, len(d.VerifiedByProphet)+1)
	for k, v := range d.VerifiedByProphet {
		verified[k] = v
	}
	verified[name] = role
	d.VerifiedByProphet = verified
	return d
}

func (d DayInfo) withVoteOut(target string) DayInfo {
	d.Out = target
	return d
}

func (d DayInfo) withNightMessage(message string) DayInfo {
	d.NightMessages = append(append([]string(nil), d.NightMessages...), message)
	return d
}

// VillagerInfo is a player's roster entry, as reported by the
// "villager-info" command.
type VillagerInfo struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	IsAlive  bool   `json:"is_alive"`
}
