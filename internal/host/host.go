// Package host implements the phase-driven chat host: a member.Client
// whose behavior on each incoming message is dispatched by an explicit
// Phase rather than by a turntaking.Strategy. Where manager.Manager picks
// the next speaker automatically after every message, an Engine's handlers
// decide that for themselves — the shape a game host or any other
// multi-stage orchestrator needs.
package host

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/parley/parley/internal/member"
	"github.com/parley/parley/internal/model"
	"github.com/parley/parley/internal/transport"
)

// Handler processes one message while the engine is in a particular phase.
type Handler func(ctx context.Context, msg model.Message)

// Engine dispatches incoming messages, from a fixed set of watched chats,
// to the Handler registered for its current phase.
type Engine struct {
	*member.Client

	mu       sync.Mutex
	phase    string
	handlers map[string]Handler
	watch    map[string]struct{}
}

// NewEngine constructs an Engine bound to an already-configured member
// client and wires message dispatch.
func NewEngine(c *member.Client) *Engine {
	e := &Engine{
		Client:   c,
		handlers: make(map[string]Handler),
		watch:    make(map[string]struct{}),
	}
	c.OnReceiveMessage(e.dispatch)
	return e
}

// On registers the handler invoked for messages that arrive while the
// engine is in phase. Registering again for the same phase replaces the
// previous handler.
func (e *Engine) On(phase string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[phase] = h
}

// Watch restricts dispatch to messages from these chat ids; a message from
// any other chat is silently ignored, mirroring the exemplar's chat
// membership guard before it consults the phase handler table.
func (e *Engine) Watch(chatIDs ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range chatIDs {
		e.watch[id] = struct{}{}
	}
}

// SetPhase transitions the engine to phase.
func (e *Engine) SetPhase(phase string) {
	e.mu.Lock()
	e.phase = phase
	e.mu.Unlock()
}

// Phase returns the engine's current phase.
func (e *Engine) Phase() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) dispatch(msg model.Message) {
	e.mu.Lock()
	_, watched := e.watch[msg.ChatID]
	phase := e.phase
	handler := e.handlers[phase]
	e.mu.Unlock()

	if !watched {
		return
	}
	if handler == nil {
		slog.Info("host: no handler registered for phase", "phase", phase, "chat_id", msg.ChatID)
		return
	}
	handler(context.Background(), msg)
}

// ChooseNextSpeaker emits a next_speaker event naming memberID as the one
// who should speak next in chatID.
func (e *Engine) ChooseNextSpeaker(ctx context.Context, chatID, memberID string) {
	err := e.Transport().Emit(ctx, transport.EventNextSpeaker, map[string]string{
		"chat_id":    chatID,
		"member_id":  memberID,
		"manager_id": e.MemberID(),
	})
	if err != nil {
		slog.Warn("host: choose_next_speaker emit failed", "chat_id", chatID, "error", err)
	}
}

// RegisterChatManager tells the broker this engine arbiters chatID.
func (e *Engine) RegisterChatManager(ctx context.Context, chatID string) {
	ok, msg, err := e.Client.RegisterChatManager(ctx, chatID)
	if err != nil {
		slog.Warn("host: register_chat_manager failed", "chat_id", chatID, "error", err)
		return
	}
	if !ok {
		slog.Warn("host: register_chat_manager rejected", "chat_id", chatID, "message", msg)
		return
	}
	slog.Info("host: register_chat_manager success", "chat_id", chatID, "message", msg)
}

// RoundLog is a copy-on-write registry keyed by round number, generalizing
// the exemplar's per-day info record plus its manager: Get creates a round's
// value lazily via create, and Update replaces the stored value with the
// result of fn applied to the current (or freshly created) value.
type RoundLog[T any] struct {
	mu     sync.Mutex
	rounds map[int]T
	create func(round int) T
}

// NewRoundLog constructs an empty RoundLog whose rounds are seeded by create
// on first access.
func NewRoundLog[T any](create func(round int) T) *RoundLog[T] {
	return &RoundLog[T]{rounds: make(map[int]T), create: create}
}

// Get returns round's current value, creating it via create on first use.
func (r *RoundLog[T]) Get(round int) T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(round)
}

func (r *RoundLog[T]) getLocked(round int) T {
	v, ok := r.rounds[round]
	if !ok {
		v = r.create(round)
		r.rounds[round] = v
	}
	return v
}

// Update replaces round's value with fn applied to its current value,
// storing and returning the result.
func (r *RoundLog[T]) Update(round int, fn func(T) T) T {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := fn(r.getLocked(round))
	r.rounds[round] = v
	return v
}

// ExtractTag pulls the value out of a "|KEYWORD:value|" tag embedded
// anywhere in text, the convention free-form LLM replies use to name a
// vote, verify, or action target inline with their reasoning.
func ExtractTag(text, keyword string) (string, bool) {
	re := regexp.MustCompile(`\|` + regexp.QuoteMeta(keyword) + `:([^|]+)\|`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// TerminationTarget recognizes the sentinel convention that ends a
// free-form discussion whose length the host doesn't otherwise bound: an
// uppercase action verb and target together with the uppercase word
// TERMINATE, e.g. "ATTACK ALICE TERMINATE". Matching is case-insensitive
// against the whole message; ok is false if the sentinel isn't present.
func TerminationTarget(text, action string) (string, bool) {
	upper := strings.ToUpper(text)
	actionUpper := strings.ToUpper(action)
	if !strings.Contains(upper, "TERMINATE") || !strings.Contains(upper, actionUpper) {
		return "", false
	}
	re := regexp.MustCompile(regexp.QuoteMeta(actionUpper) + `\s+(\S+)\s+TERMINATE`)
	m := re.FindStringSubmatch(upper)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// MostVoted tallies votes and returns the option with the most votes. Ties
// are broken by first-seen order — among tied options, the one that appears
// first in votes wins — mirroring Python's max(dict, key=dict.get) over an
// insertion-ordered tally.
func MostVoted(votes []string) (string, bool) {
	if len(votes) == 0 {
		return "", false
	}
	order := make([]string, 0, len(votes))
	counts := make(map[string]int, len(votes))
	for _, v := range votes {
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
	}
	best := order[0]
	for _, v := range order[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best, true
}

// NextInSequence returns the member following currentID in ids. If
// currentID isn't found, it falls back to ids[0] (the exemplar's "start
// from the first" recovery for an unrecognized current speaker). If
// currentID is the last entry, wrap controls whether the sequence cycles
// back to ids[0] (alive-wolves discussion, which must cycle until
// terminated) or ends (alive-villagers speech order, which doesn't).
func NextInSequence(ids []string, currentID string, wrap bool) (string, bool) {
	if len(ids) == 0 {
		return "", false
	}
	idx := -1
	for i, id := range ids {
		if id == currentID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ids[0], true
	}
	if idx+1 < len(ids) {
		return ids[idx+1], true
	}
	if wrap {
		return ids[0], true
	}
	return "", false
}
