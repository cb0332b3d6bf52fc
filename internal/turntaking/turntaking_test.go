package turntaking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley/parley/internal/model"
)

func twoPartyChat() model.Chat {
	return model.Chat{ChatID: "c1", Manager: "M", Members: []string{"M", "A", "B"}}
}

func threeMemberChat() model.Chat {
	return model.Chat{ChatID: "c1", Manager: "M", Members: []string{"M", "A", "B", "C"}}
}

func TestAlternation_TwoPartyFastPath(t *testing.T) {
	chat := twoPartyChat()
	var strat Alternation
	require.True(t, strat.Applies(Input{Chat: chat, SelfID: "M"}))

	next, ok := strat.Next(context.Background(), Input{Chat: chat, SelfID: "M", LastSpeakerID: "A"})
	require.True(t, ok)
	assert.Equal(t, "B", next)

	next, ok = strat.Next(context.Background(), Input{Chat: chat, SelfID: "M", LastSpeakerID: "B"})
	require.True(t, ok)
	assert.Equal(t, "A", next)
}

func TestAlternation_DoesNotApplyToThreeMembers(t *testing.T) {
	var strat Alternation
	assert.False(t, strat.Applies(Input{Chat: threeMemberChat(), SelfID: "M"}))
}

func TestRoundRobin_FairnessOverNConsecutiveSelections(t *testing.T) {
	chat := threeMemberChat() // A, B, C
	var strat RoundRobin

	seen := map[string]int{}
	last := "A" // A just spoke
	for i := 0; i < 3; i++ {
		next, ok := strat.Next(context.Background(), Input{Chat: chat, SelfID: "M", LastSpeakerID: last})
		require.True(t, ok)
		seen[next]++
		last = next
	}
	assert.Equal(t, map[string]int{"B": 1, "C": 1, "A": 1}, seen)
}

func TestRoundRobin_WrapsAtEnd(t *testing.T) {
	chat := threeMemberChat()
	var strat RoundRobin
	next, ok := strat.Next(context.Background(), Input{Chat: chat, SelfID: "M", LastSpeakerID: "C"})
	require.True(t, ok)
	assert.Equal(t, "A", next)
}

func TestRoundRobin_UnknownLastSpeakerFallsBackToFirst(t *testing.T) {
	chat := threeMemberChat()
	var strat RoundRobin
	next, ok := strat.Next(context.Background(), Input{Chat: chat, SelfID: "M", LastSpeakerID: "stranger"})
	require.True(t, ok)
	assert.Equal(t, "A", next)
}

func TestRandom_ExcludesManagerAndLastSpeaker(t *testing.T) {
	chat := threeMemberChat()
	var strat Random
	for i := 0; i < 20; i++ {
		next, ok := strat.Next(context.Background(), Input{Chat: chat, SelfID: "M", LastSpeakerID: "A"})
		require.True(t, ok)
		assert.NotEqual(t, "M", next)
		assert.NotEqual(t, "A", next)
	}
}

func TestLLMChosen_ResolvesNameToMemberID(t *testing.T) {
	chat := threeMemberChat()
	strat := &LLMChosen{
		Complete: func(_ context.Context, prompt string) (string, error) {
			assert.Contains(t, prompt, "Alice")
			return "Bob", nil
		},
	}
	names := map[string]string{"A": "Alice", "B": "Bob", "C": "Carol"}
	resolve := func(name string) (string, bool) {
		for id, n := range names {
			if n == name {
				return id, true
			}
		}
		return "", false
	}

	next, ok := strat.Next(context.Background(), Input{
		Chat: chat, SelfID: "M", Transcript: "Alice: hello",
		MemberNames: names, ResolveName: resolve,
	})
	require.True(t, ok)
	assert.Equal(t, "B", next)
}

func TestLLMChosen_UnresolvedNameSkipsTurn(t *testing.T) {
	chat := threeMemberChat()
	strat := &LLMChosen{
		Complete: func(_ context.Context, _ string) (string, error) {
			return "Nobody", nil
		},
	}
	resolve := func(name string) (string, bool) { return "", false }

	_, ok := strat.Next(context.Background(), Input{Chat: chat, SelfID: "M", ResolveName: resolve})
	assert.False(t, ok)
}

func TestLLMChosen_CompleteErrorSkipsTurn(t *testing.T) {
	strat := &LLMChosen{
		Complete: func(_ context.Context, _ string) (string, error) {
			return "", errors.New("provider unavailable")
		},
	}
	_, ok := strat.Next(context.Background(), Input{Chat: threeMemberChat(), SelfID: "M"})
	assert.False(t, ok)
}
