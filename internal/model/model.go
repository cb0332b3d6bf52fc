// Package model defines the wire-level records shared by every layer of
// the chat coordination framework: members, chats, messages, notifications
// and the command/result RPC envelope.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/parley/parley/internal/util/timefmt"
)

// Member is an identity record. MemberID is assigned at signup and is
// immutable for the lifetime of the account.
type Member struct {
	MemberID       string   `json:"member_id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	ListenInChats  []string `json:"listen_in_chats,omitempty"`
}

// Chat is a named room. Members is ordered by insertion; that order is the
// round-robin speaking order used by turntaking.RoundRobin.
type Chat struct {
	ChatID      string    `json:"chat_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsGroup     bool      `json:"is_group"`
	Members     []string  `json:"members"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	Manager     string    `json:"manager,omitempty"`
	Listeners   []string  `json:"listeners,omitempty"`
}

// HasMember reports whether memberID participates in the chat.
func (c *Chat) HasMember(memberID string) bool {
	for _, m := range c.Members {
		if m == memberID {
			return true
		}
	}
	return false
}

// MembersExcept returns Members with excluded ids removed, preserving order.
func (c *Chat) MembersExcept(excluded ...string) []string {
	skip := make(map[string]struct{}, len(excluded))
	for _, e := range excluded {
		skip[e] = struct{}{}
	}
	out := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		if _, ok := skip[m]; !ok {
			out = append(out, m)
		}
	}
	return out
}

// MessageType is the payload kind of a Message. The zero value ("") is
// rendered as TypeText by NewMessage.
type MessageType string

// TypeText is the default message type.
const TypeText MessageType = "text"

// Message is an atomic, immutable-once-produced utterance.
type Message struct {
	MessageID      string      `json:"message_id"`
	ChatID         string      `json:"chat_id"`
	FromMemberID   string      `json:"from_member_id"`
	FromMemberName string      `json:"from_member_name"`
	MessageType    MessageType `json:"message_type"`
	Message        string      `json:"message"`
	Timestamp      string      `json:"timestamp"`
}

// NewMessage stamps a freshly produced Message with a globally unique id
// and the current UTC timestamp, ISO-8601 encoded.
func NewMessage(chatID, fromMemberID, fromMemberName, text string) Message {
	return Message{
		MessageID:      uuid.NewString(),
		ChatID:         chatID,
		FromMemberID:   fromMemberID,
		FromMemberName: fromMemberName,
		MessageType:    TypeText,
		Message:        text,
		Timestamp:      timefmt.Format(time.Now()),
	}
}

// Notification is a Message carrying an additional destination chat,
// letting a manager on one chat inform the manager of another.
type Notification struct {
	Message
	ToChatID string `json:"to_chat_id"`
}

// NewNotification builds a Notification from a freshly produced Message.
func NewNotification(chatID, toChatID, fromMemberID, fromMemberName, text string) Notification {
	return Notification{
		Message:  NewMessage(chatID, fromMemberID, fromMemberName, text),
		ToChatID: toChatID,
	}
}

// Command is a typed RPC request sent to one or more recipients.
type Command struct {
	Command string         `json:"command"`
	By      string         `json:"by"`
	To      []string       `json:"to"`
	Data    map[string]any `json:"data,omitempty"`
}

// CommandInfo is the basic command identity echoed back inside a
// CommandResult.
type CommandInfo struct {
	Command string `json:"command"`
	By      string `json:"by"`
	To      string `json:"to"`
}

// CommandResult is one recipient's answer to a Command. Sending a command
// to N recipients must produce exactly N results, one per recipient, unless
// the call times out (see transport.Client.Call).
type CommandResult struct {
	Result  any         `json:"result"`
	Command CommandInfo `json:"command"`
}
