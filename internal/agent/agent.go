// Package agent layers LLM-driven replies on top of a member client: every
// send and receive is mirrored into a local AgentChats store, a
// reference-chat relation augments context for prompting, and a
// next_speaker event addressed to this member triggers a reply built from
// the aggregated context.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/parley/parley/internal/member"
	"github.com/parley/parley/internal/memory"
	"github.com/parley/parley/internal/model"
	"github.com/parley/parley/internal/transport"
)

// Agent wraps a member.Client with memory mirroring and LLM-driven replies.
type Agent struct {
	*member.Client
	memory *memory.AgentChats
	model  ChatModel
	prompt string
}

// New constructs an Agent bound to an already-configured member client and
// binds memory mirroring plus the next_speaker handler.
func New(c *member.Client, chatModel ChatModel, prompt string) *Agent {
	a := &Agent{
		Client: c,
		memory: memory.New(c.MemberID()),
		model:  chatModel,
		prompt: prompt,
	}
	c.OnReceiveMessage(a.onReceiveMessage)
	c.Transport().On(transport.EventNextSpeaker, a.onNextSpeaker)
	return a
}

// Memory exposes the agent's local chat history store.
func (a *Agent) Memory() *memory.AgentChats { return a.memory }

// SetPrompt replaces the system prompt used for subsequent replies and
// Ask calls. Roles whose prompt depends on mutable game state (known
// teammates, verified players) call this after that state changes.
func (a *Agent) SetPrompt(prompt string) { a.prompt = prompt }

// SendMessage sends text to chatID and mirrors the resulting Message into
// local memory, then returns it.
func (a *Agent) SendMessage(ctx context.Context, text, chatID string) model.Message {
	m := a.Client.SendMessage(ctx, text, chatID)
	a.memory.AddMessage(m)
	return m
}

// AddReferenceChat declares that aggregating context for mainChatID should
// also draw on refChatID's messages (depth-1, never expanded further).
func (a *Agent) AddReferenceChat(mainChatID, refChatID string) {
	a.memory.AddReferenceChat(mainChatID, refChatID)
}

// RemoveReferenceChat undoes AddReferenceChat.
func (a *Agent) RemoveReferenceChat(mainChatID, refChatID string) {
	a.memory.RemoveReferenceChat(mainChatID, refChatID)
}

// GetReferenceChats lists the chats referenced by mainChatID.
func (a *Agent) GetReferenceChats(mainChatID string) []string {
	return a.memory.GetReferenceChats(mainChatID)
}

// Ask appends instruction as an ephemeral final turn to the context
// aggregated for chatID and returns the model's reply. Unlike reply, the
// instruction and the reply are never written to memory — this is the
// command-handler counterpart to the next_speaker-triggered reply, used
// when a caller needs an answer (a vote, a verify target) without that
// exchange becoming part of the visible conversation.
func (a *Agent) Ask(ctx context.Context, instruction, chatID string) (string, error) {
	history := RoleMap(a.MemberID(), a.memory.GetAllMessages(chatID))
	history = append(history, RoleMessage{Role: RoleUser, Content: instruction})
	return callWithRetry(ctx, func(ctx context.Context) (string, error) {
		return a.model.Complete(ctx, a.prompt, history)
	})
}

func (a *Agent) onReceiveMessage(m model.Message) {
	a.memory.AddMessage(m)
}

func (a *Agent) onNextSpeaker(ctx context.Context, payload json.RawMessage) (any, bool) {
	var event struct {
		ChatID   string `json:"chat_id"`
		MemberID string `json:"member_id"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		slog.Warn("agent: malformed next_speaker event", "error", err)
		return nil, true
	}
	if event.MemberID != a.MemberID() {
		return nil, true
	}

	// The reply may block on an LLM call for tens of seconds; spawn it so
	// the receive loop, which dispatches next_speaker inline, stays free.
	go a.reply(context.Background(), event.ChatID)
	return nil, true
}

// reply gathers the aggregated context for chatID, calls the model, and
// sends the result. If chatID has no local record at all the reply is
// skipped (mirrors the source's "chat not in chats" guard). A failed LLM
// call (after retries) leaves the agent silent for this turn rather than
// crashing the session.
func (a *Agent) reply(ctx context.Context, chatID string) {
	if !a.memory.Has(chatID) {
		slog.Info("agent: next_speaker for unknown chat, skipping reply", "chat_id", chatID, "member", a.Name())
		return
	}

	history := RoleMap(a.MemberID(), a.memory.GetAllMessages(chatID))

	reply, err := callWithRetry(ctx, func(ctx context.Context) (string, error) {
		return a.model.Complete(ctx, a.prompt, history)
	})
	if err != nil {
		slog.Warn("agent: reply failed, staying silent this turn", "chat_id", chatID, "member", a.Name(), "error", err)
		return
	}

	a.SendMessage(ctx, reply, chatID)
}
