package turntaking

import (
	"context"
	"log/slog"
)

// RoundRobin cycles through chat.Members \ {manager} in insertion order,
// choosing the successor of the last speaker and wrapping at the end.
//
// If the last speaker isn't found among the fixed order (e.g. a listener
// briefly sent into the chat) the source this is ported from would raise;
// here we skip the lookup failure by logging it and falling back to the
// first member in the fixed order, per the documented open-question
// decision.
type RoundRobin struct{}

func (RoundRobin) Name() string { return "round_robin" }

func (RoundRobin) Next(_ context.Context, in Input) (string, bool) {
	candidates := in.Chat.MembersExcept(in.SelfID)
	if len(candidates) == 0 {
		return "", false
	}

	idx := -1
	for i, id := range candidates {
		if id == in.LastSpeakerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		slog.Warn("turntaking: round_robin last speaker not in fixed order, falling back to first member",
			"chat_id", in.Chat.ChatID, "last_speaker", in.LastSpeakerID)
		return candidates[0], true
	}

	next := idx + 1
	if next >= len(candidates) {
		next = 0
	}
	return candidates[next], true
}
