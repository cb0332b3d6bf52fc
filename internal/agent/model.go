package agent

import (
	"context"
	"fmt"

	"github.com/parley/parley/internal/model"
)

// Role distinguishes the agent's own past turns from everyone else's when
// an AgentChat is translated into an LLM prompt context.
type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// RoleMessage is one entry of a role-mapped context: derived from a
// model.Message, never stored.
type RoleMessage struct {
	Role    Role
	Content string
}

// RoleMap tags each message as RoleAssistant (the viewing member's own
// past turns) or RoleUser (everyone else's, prefixed with the speaker's
// name to disambiguate).
func RoleMap(viewerMemberID string, messages []model.Message) []RoleMessage {
	out := make([]RoleMessage, len(messages))
	for i, m := range messages {
		if m.FromMemberID == viewerMemberID {
			out[i] = RoleMessage{Role: RoleAssistant, Content: m.Message}
		} else {
			out[i] = RoleMessage{Role: RoleUser, Content: fmt.Sprintf("%s: %s", m.FromMemberName, m.Message)}
		}
	}
	return out
}

// ChatModel is the single extension point a concrete agent implements
// against its chosen LLM provider. history is the role-mapped context
// aggregated from the chat plus its reference chats.
type ChatModel interface {
	Complete(ctx context.Context, prompt string, history []RoleMessage) (string, error)
}
