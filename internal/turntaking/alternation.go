package turntaking

import "context"

// Alternation is the automatic two-party fast path: on a chat with exactly
// two non-manager members, the next speaker is simply the other one. It
// applies unconditionally — a manager should consult it before falling
// back to its configured policy, regardless of which policy is configured.
type Alternation struct{}

func (Alternation) Name() string { return "alternation" }

// Applies reports whether in's chat qualifies for the two-party fast path.
func (Alternation) Applies(in Input) bool {
	return len(in.Chat.MembersExcept(in.SelfID)) == 2
}

func (a Alternation) Next(_ context.Context, in Input) (string, bool) {
	candidates := in.Chat.MembersExcept(in.SelfID)
	if len(candidates) != 2 {
		return "", false
	}
	if in.LastSpeakerID == candidates[0] {
		return candidates[1], true
	}
	return candidates[0], true
}
