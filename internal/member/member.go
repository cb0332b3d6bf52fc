// Package member implements the member-facing API: the full set of
// operations a chat participant can perform against the broker, the
// command-handler registry, and the default inbound-event handlers.
package member

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parley/parley/internal/metrics"
	"github.com/parley/parley/internal/model"
	"github.com/parley/parley/internal/sanitize"
	"github.com/parley/parley/internal/transport"
)

// CommandHandler answers one inbound command with a string result.
// Handlers are expected to be non-destructive: an error should be encoded
// into the returned string rather than panicking the receive path.
type CommandHandler func(data map[string]any) string

// Client wraps a transport.Client with the member-facing operation set.
// Memory and agent behavior are layered on top by internal/agent; a bare
// Client stays lean for participants that don't need an LLM or a history.
type Client struct {
	transport *transport.Client

	memberID    string
	name        string
	description string

	mu               sync.Mutex
	commandHandlers  map[string]CommandHandler
	localChatMembers map[string][]model.Member

	onReceiveMessage      func(model.Message)
	onReceiveNotification func(model.Notification)
}

// maxTitleLength bounds a sanitized display name or chat name.
const maxTitleLength = 128

// New constructs a member Client bound to an already-configured transport
// client and binds its default inbound handlers. The command registry
// starts empty; call RegisterCommand before Login to add commands.
func New(t *transport.Client, memberID, name, description string) *Client {
	c := &Client{
		transport:        t,
		memberID:         memberID,
		name:             sanitize.Title(name, maxTitleLength),
		description:      description,
		commandHandlers:  make(map[string]CommandHandler),
		localChatMembers: make(map[string][]model.Member),
	}
	c.bindHandlers()
	return c
}

// Transport exposes the underlying transport client so higher layers
// (agent, chat manager) can bind additional inbound handlers, such as
// next_speaker, that a bare member client has no use for.
func (c *Client) Transport() *transport.Client { return c.transport }

// MemberID returns this client's stable identity.
func (c *Client) MemberID() string { return c.memberID }

// Name returns this client's display name.
func (c *Client) Name() string { return c.name }

// RegisterCommand adds name to the command registry. The registry is built
// explicitly by callers rather than discovered via reflection/annotation:
// each capability (agent, chat manager, host) registers the commands it
// understands.
func (c *Client) RegisterCommand(name string, handler CommandHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commandHandlers[name] = handler
}

// OnReceiveMessage installs the handler invoked for every inbound message,
// including ones this client sent; no sender filtering is applied. The default member Client does nothing further;
// internal/agent overrides this to mirror messages into memory.
func (c *Client) OnReceiveMessage(fn func(model.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReceiveMessage = fn
}

// OnReceiveNotification installs the handler invoked for inbound
// cross-chat notifications. internal/manager overrides this with the
// default relay behavior.
func (c *Client) OnReceiveNotification(fn func(model.Notification)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReceiveNotification = fn
}

// Signup registers this member with the broker.
func (c *Client) Signup(ctx context.Context) (transport.SignupResult, error) {
	return c.transport.Signup(ctx)
}

// Login establishes the live session. See transport.Client.Login.
func (c *Client) Login(ctx context.Context) bool {
	return c.transport.Login(ctx)
}

// Wait blocks until the session ends.
func (c *Client) Wait() { c.transport.Wait() }

// SendMessage builds, stamps and sends a text message. The message is
// returned even if the underlying call times out — the side effect (the
// attempted send) always happens before the function returns.
func (c *Client) SendMessage(ctx context.Context, text, chatID string) model.Message {
	m := model.NewMessage(chatID, c.memberID, c.name, sanitize.Message(text))
	metrics.MessagesSentTotal.Inc()
	if _, err := c.transport.Call(ctx, transport.EventSendMessage, m, 0); err != nil {
		slog.Warn("member: send_message failed", "chat_id", chatID, "error", err)
	}
	return m
}

// SendCommand issues a command to one or more recipients and waits (30s)
// for the full set of results. Empty name or recipients are rejected
// locally with a warning and an empty list; any transport error also
// yields an empty list rather than propagating.
func (c *Client) SendCommand(ctx context.Context, name string, to []string, data map[string]any) []model.CommandResult {
	if name == "" {
		slog.Warn("member: send_command with empty command name", "member", c.name)
		return nil
	}
	if len(to) == 0 {
		slog.Warn("member: send_command with empty recipients", "member", c.name, "command", name)
		return nil
	}
	if data == nil {
		data = map[string]any{}
	}
	cmd := model.Command{Command: name, By: c.memberID, To: to, Data: data}

	metrics.CommandsSentTotal.WithLabelValues(name).Inc()
	reply, err := c.transport.Call(ctx, transport.EventSendCommand, cmd, 30*time.Second)
	if err != nil {
		slog.Warn("member: send_command failed", "command", name, "error", err)
		return nil
	}
	var results []model.CommandResult
	if err := json.Unmarshal(reply, &results); err != nil {
		slog.Warn("member: send_command: malformed reply", "command", name, "error", err)
		return nil
	}
	return results
}

// CreateChat creates a chat, optionally auto-joining it.
func (c *Client) CreateChat(ctx context.Context, name, description string, isGroup, join bool) (bool, model.Chat, error) {
	reply, err := c.transport.Call(ctx, transport.EventCreateChat, map[string]any{
		"name":        sanitize.Title(name, maxTitleLength),
		"description": description,
		"is_group":    isGroup,
	}, 0)
	if err != nil {
		return false, model.Chat{}, fmt.Errorf("member: create_chat: %w", err)
	}

	var resp struct {
		Status  string     `json:"status"`
		Data    model.Chat `json:"data"`
		Message string     `json:"message"`
	}
	if err := json.Unmarshal(reply, &resp); err != nil {
		return false, model.Chat{}, fmt.Errorf("member: create_chat: malformed reply: %w", err)
	}
	if resp.Status != "success" {
		return false, model.Chat{}, fmt.Errorf("member: create_chat failed: %s", resp.Message)
	}
	if join {
		if ok, _, err := c.JoinChat(ctx, resp.Data.ChatID); !ok {
			slog.Warn("member: auto-join after create_chat failed", "chat_id", resp.Data.ChatID, "error", err)
		}
	}
	return true, resp.Data, nil
}

type statusReply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JoinChat joins an existing chat.
func (c *Client) JoinChat(ctx context.Context, chatID string) (bool, statusReply, error) {
	reply, err := c.transport.Call(ctx, transport.EventJoinChat, map[string]string{"chat_id": chatID}, 0)
	if err != nil {
		return false, statusReply{}, fmt.Errorf("member: join_chat: %w", err)
	}
	var resp statusReply
	if err := json.Unmarshal(reply, &resp); err != nil {
		return false, statusReply{}, fmt.Errorf("member: join_chat: malformed reply: %w", err)
	}
	return resp.Status == "success", resp, nil
}

// ExitChat leaves a chat the member currently participates in.
func (c *Client) ExitChat(ctx context.Context, chatID string) error {
	_, err := c.transport.Call(ctx, transport.EventExitChat, map[string]string{"chat_id": chatID}, 0)
	return err
}

// DeleteChat deletes a chat this member created.
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	_, err := c.transport.Call(ctx, transport.EventDeleteChat, map[string]string{"chat_id": chatID}, 0)
	return err
}

// PullMembersIntoChat adds memberIDs to chatID.
func (c *Client) PullMembersIntoChat(ctx context.Context, chatID string, memberIDs []string) error {
	_, err := c.transport.Call(ctx, transport.EventPullMembersIntoChat, map[string]any{
		"chat_id": chatID,
		"members": memberIDs,
	}, 0)
	return err
}

// RemoveMemberFromChat removes memberID from chatID.
func (c *Client) RemoveMemberFromChat(ctx context.Context, chatID, memberID string) error {
	_, err := c.transport.Call(ctx, transport.EventRemoveMemberFromChat, map[string]string{
		"chat_id":   chatID,
		"member_id": memberID,
	}, 0)
	return err
}

// GetChat looks up a chat by id; returns (nil, nil) if the server has none.
func (c *Client) GetChat(ctx context.Context, chatID string) (*model.Chat, error) {
	reply, err := c.transport.Call(ctx, transport.EventGetChat, map[string]string{"chat_id": chatID}, 0)
	if err != nil {
		return nil, fmt.Errorf("member: get_chat: %w", err)
	}
	var resp struct {
		Status string      `json:"status"`
		Data   *model.Chat `json:"data"`
	}
	if err := json.Unmarshal(reply, &resp); err != nil {
		return nil, fmt.Errorf("member: get_chat: malformed reply: %w", err)
	}
	if resp.Status != "success" {
		return nil, nil
	}
	return resp.Data, nil
}

// GetChatMembers returns chatID's members. When tryLocal is true, the
// result is served from (and primes) a process-local cache keyed by
// chat id; the cache is never invalidated by pull/remove operations —
// callers that depend on freshness must pass tryLocal=false.
func (c *Client) GetChatMembers(ctx context.Context, chatID string, complete, tryLocal bool) ([]model.Member, error) {
	if tryLocal {
		c.mu.Lock()
		cached, ok := c.localChatMembers[chatID]
		c.mu.Unlock()
		if ok {
			return cached, nil
		}
		members, err := c.GetChatMembers(ctx, chatID, true, false)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.localChatMembers[chatID] = members
		c.mu.Unlock()
		return members, nil
	}

	reply, err := c.transport.Call(ctx, transport.EventGetChatMembers, map[string]any{
		"chat_id":  chatID,
		"complete": complete,
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("member: get_chat_members: %w", err)
	}
	if complete {
		var members []model.Member
		if err := json.Unmarshal(reply, &members); err != nil {
			return nil, fmt.Errorf("member: get_chat_members: malformed reply: %w", err)
		}
		return members, nil
	}
	var ids []string
	if err := json.Unmarshal(reply, &ids); err != nil {
		return nil, fmt.Errorf("member: get_chat_members: malformed reply: %w", err)
	}
	members := make([]model.Member, len(ids))
	for i, id := range ids {
		members[i] = model.Member{MemberID: id}
	}
	return members, nil
}

// GetJoinedChats returns the ids of chats this member currently joins.
func (c *Client) GetJoinedChats(ctx context.Context) ([]string, error) {
	reply, err := c.transport.Call(ctx, transport.EventGetJoinedChats, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("member: get_joined_chats: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(reply, &ids); err != nil {
		return nil, fmt.Errorf("member: get_joined_chats: malformed reply: %w", err)
	}
	return ids, nil
}

// GetCreatedChats returns chats this member created.
func (c *Client) GetCreatedChats(ctx context.Context) ([]model.Chat, error) {
	reply, err := c.transport.Call(ctx, transport.EventGetCreatedChats, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("member: get_created_chats: %w", err)
	}
	var chats []model.Chat
	if err := json.Unmarshal(reply, &chats); err != nil {
		return nil, fmt.Errorf("member: get_created_chats: malformed reply: %w", err)
	}
	return chats, nil
}

// GetMember looks up a single member by id.
func (c *Client) GetMember(ctx context.Context, memberID string) (model.Member, error) {
	reply, err := c.transport.Call(ctx, transport.EventGetMember, map[string]string{"member_id": memberID}, 0)
	if err != nil {
		return model.Member{}, fmt.Errorf("member: get_member: %w", err)
	}
	var m model.Member
	if err := json.Unmarshal(reply, &m); err != nil {
		return model.Member{}, fmt.Errorf("member: get_member: malformed reply: %w", err)
	}
	return m, nil
}

// GetMembers looks up multiple members by id.
func (c *Client) GetMembers(ctx context.Context, memberIDs []string) ([]model.Member, error) {
	reply, err := c.transport.Call(ctx, transport.EventGetMembers, map[string]any{"members": memberIDs}, 0)
	if err != nil {
		return nil, fmt.Errorf("member: get_members: %w", err)
	}
	var members []model.Member
	if err := json.Unmarshal(reply, &members); err != nil {
		return nil, fmt.Errorf("member: get_members: malformed reply: %w", err)
	}
	return members, nil
}

// GetMemberByName resolves a display name to a Member within chatID. When
// tryLocal is true (the default used by turn-taking name resolution) it
// consults the same never-invalidated local_chat_members cache as
// GetChatMembers.
func (c *Client) GetMemberByName(ctx context.Context, name, chatID string, tryLocal bool) (model.Member, error) {
	if tryLocal {
		members, err := c.GetChatMembers(ctx, chatID, true, true)
		if err != nil {
			return model.Member{}, err
		}
		for _, m := range members {
			if m.Name == name {
				return m, nil
			}
		}
	}
	reply, err := c.transport.Call(ctx, transport.EventGetMemberByName, map[string]string{
		"name":    name,
		"chat_id": chatID,
	}, 0)
	if err != nil {
		return model.Member{}, fmt.Errorf("member: get_member_by_name: %w", err)
	}
	var m model.Member
	if err := json.Unmarshal(reply, &m); err != nil {
		return model.Member{}, fmt.Errorf("member: get_member_by_name: malformed reply: %w", err)
	}
	return m, nil
}

// GetOnlineMembers lists every currently connected member.
func (c *Client) GetOnlineMembers(ctx context.Context) ([]model.Member, error) {
	reply, err := c.transport.Call(ctx, transport.EventGetOnlineMembers, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("member: get_online_members: %w", err)
	}
	var members []model.Member
	if err := json.Unmarshal(reply, &members); err != nil {
		return nil, fmt.Errorf("member: get_online_members: malformed reply: %w", err)
	}
	return members, nil
}

// GetChatOnlineMembers lists the currently connected members of chatID.
func (c *Client) GetChatOnlineMembers(ctx context.Context, chatID string) ([]model.Member, error) {
	reply, err := c.transport.Call(ctx, transport.EventGetChatOnlineMembers, map[string]string{"chat_id": chatID}, 0)
	if err != nil {
		return nil, fmt.Errorf("member: get_chat_online_members: %w", err)
	}
	var members []model.Member
	if err := json.Unmarshal(reply, &members); err != nil {
		return nil, fmt.Errorf("member: get_chat_online_members: malformed reply: %w", err)
	}
	return members, nil
}

// ListenInChat subscribes to chatID's messages without joining as a
// participant.
func (c *Client) ListenInChat(ctx context.Context, chatID string) error {
	_, err := c.transport.Call(ctx, transport.EventListenInChat, map[string]string{"chat_id": chatID}, 0)
	return err
}

// UnlistenInChat undoes ListenInChat.
func (c *Client) UnlistenInChat(ctx context.Context, chatID string) error {
	_, err := c.transport.Call(ctx, transport.EventUnlistenInChat, map[string]string{"chat_id": chatID}, 0)
	return err
}

// GetListenInChats lists the chats this member currently listens in.
func (c *Client) GetListenInChats(ctx context.Context) ([]string, error) {
	reply, err := c.transport.Call(ctx, transport.EventGetListenInChats, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("member: get_listen_in_chats: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(reply, &ids); err != nil {
		return nil, fmt.Errorf("member: get_listen_in_chats: malformed reply: %w", err)
	}
	return ids, nil
}

// LoadChatMessagesFromServer fetches chat history. count=-1 means all.
func (c *Client) LoadChatMessagesFromServer(ctx context.Context, chatID string, count int) ([]model.Message, error) {
	reply, err := c.transport.Call(ctx, transport.EventLoadChatMessages, map[string]any{
		"chat_id": chatID,
		"count":   count,
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("member: load_chat_messages_from_server: %w", err)
	}
	var messages []model.Message
	if err := json.Unmarshal(reply, &messages); err != nil {
		return nil, fmt.Errorf("member: load_chat_messages_from_server: malformed reply: %w", err)
	}
	return messages, nil
}

// RegisterChatManager tells the broker this member arbiters chatID. The
// broker enforces at most one manager per chat.
func (c *Client) RegisterChatManager(ctx context.Context, chatID string) (bool, string, error) {
	reply, err := c.transport.Call(ctx, transport.EventRegisterChatManager, map[string]string{"chat_id": chatID}, 0)
	if err != nil {
		return false, "", fmt.Errorf("member: register_chat_manager: %w", err)
	}
	var resp statusReply
	if err := json.Unmarshal(reply, &resp); err != nil {
		return false, "", fmt.Errorf("member: register_chat_manager: malformed reply: %w", err)
	}
	return resp.Status == "success", resp.Message, nil
}

func (c *Client) bindHandlers() {
	c.transport.On(transport.EventReceiveMessage, func(_ context.Context, payload json.RawMessage) (any, bool) {
		var m model.Message
		if err := json.Unmarshal(payload, &m); err != nil {
			slog.Warn("member: malformed receive_message", "error", err)
			return nil, true
		}
		metrics.MessagesReceivedTotal.Inc()
		c.mu.Lock()
		hook := c.onReceiveMessage
		c.mu.Unlock()
		if hook != nil {
			hook(m)
		}
		return nil, true
	})

	c.transport.On(transport.EventReceiveNotificationFromChat, func(_ context.Context, payload json.RawMessage) (any, bool) {
		var n model.Notification
		if err := json.Unmarshal(payload, &n); err != nil {
			slog.Warn("member: malformed receive_notification_from_chat", "error", err)
			return nil, true
		}
		c.mu.Lock()
		hook := c.onReceiveNotification
		c.mu.Unlock()
		if hook != nil {
			hook(n)
		}
		return nil, true
	})

	c.transport.On(transport.EventReceiveCommand, func(_ context.Context, payload json.RawMessage) (any, bool) {
		var cmd model.Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			slog.Warn("member: malformed receive_command", "error", err)
			return "", true
		}
		c.mu.Lock()
		handler, ok := c.commandHandlers[cmd.Command]
		c.mu.Unlock()
		if !ok {
			slog.Info("member: unknown command", "member", c.name, "command", cmd.Command)
			metrics.CommandsReceivedTotal.WithLabelValues(cmd.Command, "unknown").Inc()
			return fmt.Sprintf("unknown command,%s", cmd.Command), true
		}
		result := handler(cmd.Data)
		metrics.CommandsReceivedTotal.WithLabelValues(cmd.Command, "handled").Inc()
		return result, true
	})
}
