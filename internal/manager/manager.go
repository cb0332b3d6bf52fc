// Package manager implements the chat-manager side of the protocol: the
// member registered as a chat's arbiter, responsible for choosing the next
// speaker after every message and relaying cross-chat notifications.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/parley/parley/internal/member"
	"github.com/parley/parley/internal/memory"
	"github.com/parley/parley/internal/model"
	"github.com/parley/parley/internal/sanitize"
	"github.com/parley/parley/internal/transport"
	"github.com/parley/parley/internal/turntaking"
)

// Manager wraps a member.Client with chat-arbitration behavior: it mirrors
// every message it observes into a local transcript, picks the next
// speaker via Alternation's two-party fast path or a configured Strategy,
// and relays notifications it is asked to deliver into a destination chat.
type Manager struct {
	*member.Client
	memory   *memory.AgentChats
	strategy turntaking.Strategy
}

// New constructs a Manager bound to an already-configured member client and
// the strategy consulted when a chat does not have exactly two non-manager
// members.
// Two-party chats always use Alternation regardless of strategy.
func New(c *member.Client, strategy turntaking.Strategy) *Manager {
	m := &Manager{
		Client:   c,
		memory:   memory.New(c.MemberID()),
		strategy: strategy,
	}
	c.OnReceiveMessage(m.onReceiveMessage)
	c.OnReceiveNotification(m.onReceiveNotification)
	return m
}

// RegisterChatManager tells the broker this client arbiters chatID.
func (m *Manager) RegisterChatManager(ctx context.Context, chatID string) {
	ok, msg, err := m.Client.RegisterChatManager(ctx, chatID)
	if err != nil {
		slog.Warn("manager: register_chat_manager failed", "chat_id", chatID, "error", err)
		return
	}
	if !ok {
		slog.Warn("manager: register_chat_manager failed", "chat_id", chatID, "message", msg)
		return
	}
	slog.Info("manager: register_chat_manager success", "chat_id", chatID, "message", msg)
}

// ChooseNextSpeaker emits a next_speaker event naming memberID as the one
// who should speak next in chatID.
func (m *Manager) ChooseNextSpeaker(ctx context.Context, chatID, memberID string) {
	err := m.Transport().Emit(ctx, transport.EventNextSpeaker, map[string]string{
		"chat_id":    chatID,
		"member_id":  memberID,
		"manager_id": m.MemberID(),
	})
	if err != nil {
		slog.Warn("manager: choose_next_speaker emit failed", "chat_id", chatID, "error", err)
	}
}

// SendNotificationToChat delivers text, attributed to chatID, to toChatID's
// manager.
func (m *Manager) SendNotificationToChat(ctx context.Context, chatID, toChatID, text string) error {
	n := model.NewNotification(chatID, toChatID, m.MemberID(), m.Name(), sanitize.Message(text))
	_, err := m.Transport().Call(ctx, transport.EventSendNotificationToChat, n, 0)
	if err != nil {
		return fmt.Errorf("manager: send_notification_to_chat: %w", err)
	}
	return nil
}

// onReceiveNotification is the default handler for a notification this
// manager is asked to relay: it looks up the originating chat's name and
// posts a single relay message into the notification's destination chat.
// The relay text is server-observable and intentionally not localized.
func (m *Manager) onReceiveNotification(n model.Notification) {
	ctx := context.Background()
	chat, err := m.GetChat(ctx, n.ChatID)
	if err != nil || chat == nil {
		slog.Warn("manager: receive_notification_from_chat: source chat not found", "chat_id", n.ChatID, "error", err)
		return
	}
	text := fmt.Sprintf("来自 %s 的通知: %s", chat.Name, n.Message.Message)
	m.SendMessage(ctx, text, n.ToChatID)
}

// onReceiveMessage mirrors m into the transcript used for LLM-chosen
// prompting, then picks and announces the next speaker.
func (m *Manager) onReceiveMessage(msg model.Message) {
	m.memory.AddMessage(msg)

	ctx := context.Background()
	chat, err := m.GetChat(ctx, msg.ChatID)
	if err != nil || chat == nil {
		slog.Warn("manager: receive_message: chat not found", "chat_id", msg.ChatID, "error", err)
		return
	}

	in := turntaking.Input{
		Chat:          *chat,
		SelfID:        m.MemberID(),
		LastSpeakerID: msg.FromMemberID,
	}

	strategy := m.strategy
	if (turntaking.Alternation{}).Applies(in) {
		strategy = turntaking.Alternation{}
	}

	// Transcript and member-name resolution cost a round trip each; only
	// the "ai" strategy consults them, so they're filled in lazily.
	if strategy.Name() == "ai" {
		in.Transcript = buildTranscript(m.memory.GetMessages(msg.ChatID))
		in.MemberNames = m.namesFor(ctx, *chat)
		in.ResolveName = func(name string) (string, bool) {
			resolved, err := m.GetMemberByName(ctx, name, msg.ChatID, true)
			if err != nil || resolved.MemberID == "" {
				return "", false
			}
			return resolved.MemberID, true
		}
	}

	next, ok := strategy.Next(ctx, in)
	if !ok {
		slog.Info("manager: no next speaker chosen, skipping turn", "chat_id", msg.ChatID, "strategy", strategy.Name())
		return
	}
	m.ChooseNextSpeaker(ctx, msg.ChatID, next)
}

// namesFor resolves chat.Members to a member id -> name map, served from
// the never-invalidated local cache (see member.Client.GetChatMembers).
func (m *Manager) namesFor(ctx context.Context, chat model.Chat) map[string]string {
	members, err := m.GetChatMembers(ctx, chat.ChatID, true, true)
	if err != nil {
		slog.Warn("manager: get_chat_members failed while building prompt context", "chat_id", chat.ChatID, "error", err)
		return nil
	}
	names := make(map[string]string, len(members))
	for _, mm := range members {
		names[mm.MemberID] = mm.Name
	}
	return names
}

func buildTranscript(messages []model.Message) string {
	lines := make([]string, len(messages))
	for i, msg := range messages {
		lines[i] = fmt.Sprintf("%s: %s", msg.FromMemberName, msg.Message)
	}
	return strings.Join(lines, "\n")
}
