// Package memory implements the per-member, in-process chat history store
// (AgentChats): one append-only message log per chat plus a depth-1
// reference-chat relation used to aggregate context for LLM prompting.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/parley/parley/internal/model"
)

// Chat is one member's view of a single chat: an append-only ordered log.
type Chat struct {
	ChatID   string
	MemberID string
	Messages []model.Message
}

// AgentChats is a per-member map from chat id to Chat, plus the directed
// reference-chat relation used by context aggregation. All methods are
// safe for concurrent use; the receive loop and agent worker goroutines
// both mutate it.
type AgentChats struct {
	memberID string

	mu             sync.Mutex
	chats          map[string]*Chat
	referenceChats map[string][]string
}

// New constructs an empty store for memberID.
func New(memberID string) *AgentChats {
	return &AgentChats{
		memberID:       memberID,
		chats:          make(map[string]*Chat),
		referenceChats: make(map[string][]string),
	}
}

// AddMessage appends m to its chat, creating the chat record on first use.
func (a *AgentChats) AddMessage(m model.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	chat := a.getOrCreateLocked(m.ChatID)
	chat.Messages = append(chat.Messages, m)
}

// Has reports whether chatID has a record yet, without the sticky
// create-on-miss behavior of GetChat.
func (a *AgentChats) Has(chatID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.chats[chatID]
	return ok
}

// GetChat returns the chat, creating an empty record if it doesn't exist
// yet (a "sticky get" — the record persists for subsequent calls).
func (a *AgentChats) GetChat(chatID string) Chat {
	a.mu.Lock()
	defer a.mu.Unlock()
	return *a.getOrCreateLocked(chatID)
}

// GetMessages returns chatID's messages in arrival order.
func (a *AgentChats) GetMessages(chatID string) []model.Message {
	return a.GetChat(chatID).Messages
}

// RemoveMessage removes the message with messageID from chatID. It reports
// whether the chat existed, NOT whether a message was actually removed —
// preserved from the original implementation, which checks chat presence
// and unconditionally rebuilds the message slice.
func (a *AgentChats) RemoveMessage(messageID, chatID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	chat, ok := a.chats[chatID]
	if !ok {
		return false
	}
	kept := chat.Messages[:0:0]
	for _, m := range chat.Messages {
		if m.MessageID != messageID {
			kept = append(kept, m)
		}
	}
	chat.Messages = kept
	return true
}

// ClearChat empties chatID's messages, keeping the chat record itself.
func (a *AgentChats) ClearChat(chatID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if chat, ok := a.chats[chatID]; ok {
		chat.Messages = nil
	}
}

// AddReferenceChat records that aggregating context for mainChatID should
// also draw on refChatID's messages. The relation is depth-1: refChatID's
// own reference chats are never consulted.
func (a *AgentChats) AddReferenceChat(mainChatID, refChatID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, existing := range a.referenceChats[mainChatID] {
		if existing == refChatID {
			return
		}
	}
	a.referenceChats[mainChatID] = append(a.referenceChats[mainChatID], refChatID)
}

// RemoveReferenceChat undoes AddReferenceChat.
func (a *AgentChats) RemoveReferenceChat(mainChatID, refChatID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	refs := a.referenceChats[mainChatID]
	for i, existing := range refs {
		if existing == refChatID {
			a.referenceChats[mainChatID] = append(refs[:i], refs[i+1:]...)
			return
		}
	}
}

// GetReferenceChats returns the chat ids referenced by mainChatID.
func (a *AgentChats) GetReferenceChats(mainChatID string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	refs := a.referenceChats[mainChatID]
	out := make([]string, len(refs))
	copy(out, refs)
	return out
}

// GetAllMessages returns mainChatID's own messages plus those of every
// chat it directly references, sorted ascending by timestamp. A reference
// chat with no local record silently contributes nothing; the relation is
// never expanded past depth 1.
func (a *AgentChats) GetAllMessages(mainChatID string) []model.Message {
	a.mu.Lock()
	var all []model.Message
	if chat, ok := a.chats[mainChatID]; ok {
		all = append(all, chat.Messages...)
	}
	for _, refID := range a.referenceChats[mainChatID] {
		if chat, ok := a.chats[refID]; ok {
			all = append(all, chat.Messages...)
		}
	}
	a.mu.Unlock()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp < all[j].Timestamp
	})
	return all
}

// SaveToText writes chatID's messages to "<dir>/<chatID>.txt", one line per
// message: "[<timestamp>] <from_member_name>: <message>". The directory is
// created if it doesn't already exist.
func (a *AgentChats) SaveToText(chatID, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("memory: create log directory: %w", err)
	}

	messages := a.GetMessages(chatID)
	path := filepath.Join(dir, chatID+".txt")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("memory: create log file: %w", err)
	}
	defer f.Close()

	for _, m := range messages {
		if _, err := fmt.Fprintf(f, "[%s] %s: %s\n", m.Timestamp, m.FromMemberName, m.Message); err != nil {
			return fmt.Errorf("memory: write log line: %w", err)
		}
	}
	return nil
}

func (a *AgentChats) getOrCreateLocked(chatID string) *Chat {
	chat, ok := a.chats[chatID]
	if !ok {
		chat = &Chat{ChatID: chatID, MemberID: a.memberID}
		a.chats[chatID] = chat
	}
	return chat
}
