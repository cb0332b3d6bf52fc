package turntaking

import (
	"context"
	"math/rand/v2"
)

// Random uniformly picks from chat.Members \ {manager, last_speaker}.
type Random struct{}

func (Random) Name() string { return "random" }

func (Random) Next(_ context.Context, in Input) (string, bool) {
	candidates := in.Chat.MembersExcept(in.SelfID, in.LastSpeakerID)
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[rand.IntN(len(candidates))], true
}
