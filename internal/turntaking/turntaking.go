// Package turntaking implements the pluggable "who speaks next" policies a
// chat manager consults after observing a message: two-party alternation,
// round-robin, random, and LLM-chosen.
package turntaking

import (
	"context"

	"github.com/parley/parley/internal/model"
)

// CompleteFunc sends a prompt to an LLM and returns its reply. It is the
// single extension point LLMChosen depends on. internal/agent's
// ChatModel.Complete also takes a role-mapped history, so it does not
// have this shape without a wrapping closure.
type CompleteFunc func(ctx context.Context, prompt string) (string, error)

// Input bundles everything a Strategy may need to pick a next speaker.
// Strategies use only the fields relevant to their policy; Transcript,
// MemberNames and ResolveName exist solely for LLMChosen.
type Input struct {
	Chat          model.Chat
	SelfID        string // the manager's own member id, always excluded
	LastSpeakerID string

	// Transcript is the chat history rendered as plain text, newest last.
	Transcript string
	// MemberNames maps candidate member id -> display name, used to build
	// the LLM prompt's role list.
	MemberNames map[string]string
	// ResolveName maps a display name back to a member id, as returned by
	// a member lookup scoped to the chat.
	ResolveName func(name string) (memberID string, ok bool)
}

// Strategy picks the next speaker for a chat. It returns ok=false when no
// speaker can be determined (e.g. an LLM reply that doesn't resolve to a
// known member) — callers should log and skip the turn rather than treat
// this as fatal.
type Strategy interface {
	Name() string
	Next(ctx context.Context, in Input) (memberID string, ok bool)
}
