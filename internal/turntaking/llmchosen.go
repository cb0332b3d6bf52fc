package turntaking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// LLMChosen builds a prompt of the form "transcript, then: select the next
// role from {candidates} to play. Only return the role", asks Complete,
// and resolves the reply back to a member id via in.ResolveName. If the
// name doesn't resolve the turn is skipped (ok=false) rather than guessed.
type LLMChosen struct {
	Complete CompleteFunc
}

func (*LLMChosen) Name() string { return "ai" }

func (s *LLMChosen) Next(ctx context.Context, in Input) (string, bool) {
	candidates := in.Chat.MembersExcept(in.SelfID)
	if len(candidates) == 0 {
		return "", false
	}

	names := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if name, ok := in.MemberNames[id]; ok {
			names = append(names, name)
		}
	}

	prompt := fmt.Sprintf(
		"%s\nRead the above conversation. Then select the next role from %s to play. Only return the role.",
		in.Transcript, formatRoleList(names),
	)

	reply, err := s.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("turntaking: ai next-speaker call failed", "chat_id", in.Chat.ChatID, "error", err)
		return "", false
	}

	name := strings.TrimSpace(reply)
	if in.ResolveName == nil {
		return "", false
	}
	memberID, ok := in.ResolveName(name)
	if !ok {
		slog.Warn("turntaking: ai-chosen name did not resolve to a member, skipping turn",
			"chat_id", in.Chat.ChatID, "name", name)
		return "", false
	}
	return memberID, true
}

func formatRoleList(names []string) string {
	return "[" + strings.Join(names, ", ") + "]"
}
