package memory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley/parley/internal/model"
)

func msg(id, chatID, from, text, ts string) model.Message {
	return model.Message{
		MessageID:      id,
		ChatID:         chatID,
		FromMemberID:   from,
		FromMemberName: from,
		MessageType:    model.TypeText,
		Message:        text,
		Timestamp:      ts,
	}
}

func TestAddMessage_CreatesChatOnFirstUse(t *testing.T) {
	a := New("m1")
	a.AddMessage(msg("1", "c1", "alice", "hi", "2026-01-01T00:00:00.000Z"))
	assert.Equal(t, []model.Message{msg("1", "c1", "alice", "hi", "2026-01-01T00:00:00.000Z")}, a.GetMessages("c1"))
}

func TestGetChat_StickyCreatesEmptyChatOnMiss(t *testing.T) {
	a := New("m1")
	chat := a.GetChat("never-seen")
	assert.Empty(t, chat.Messages)
	// Second call returns the same sticky record, not a new empty one each time.
	a.AddMessage(msg("1", "never-seen", "alice", "hi", "t1"))
	assert.Len(t, a.GetChat("never-seen").Messages, 1)
}

func TestRemoveMessage_ReturnsChatExistenceNotMessagePresence(t *testing.T) {
	a := New("m1")
	a.AddMessage(msg("1", "c1", "alice", "hi", "t1"))

	// Removing a message id that isn't present still reports true because
	// the chat exists — preserved surprising semantics.
	ok := a.RemoveMessage("does-not-exist", "c1")
	assert.True(t, ok)
	assert.Len(t, a.GetMessages("c1"), 1)

	ok = a.RemoveMessage("1", "c1")
	assert.True(t, ok)
	assert.Empty(t, a.GetMessages("c1"))

	ok = a.RemoveMessage("1", "never-created")
	assert.False(t, ok)
}

func TestClearChat_EmptiesMessagesKeepsRecord(t *testing.T) {
	a := New("m1")
	a.AddMessage(msg("1", "c1", "alice", "hi", "t1"))
	a.ClearChat("c1")
	assert.Empty(t, a.GetMessages("c1"))
}

func TestGetAllMessages_AggregatesDepthOneOnly(t *testing.T) {
	a := New("m1")
	a.AddMessage(msg("1", "main", "alice", "first", "2026-01-01T00:00:03.000Z"))
	a.AddMessage(msg("2", "ref1", "bob", "second", "2026-01-01T00:00:01.000Z"))
	a.AddMessage(msg("3", "ref2", "carol", "third", "2026-01-01T00:00:02.000Z"))
	a.AddMessage(msg("4", "ref-of-ref", "dave", "fourth", "2026-01-01T00:00:00.000Z"))

	a.AddReferenceChat("main", "ref1")
	a.AddReferenceChat("main", "ref2")
	// ref1 -> ref-of-ref is depth 2 from main's perspective; must not appear.
	a.AddReferenceChat("ref1", "ref-of-ref")

	all := a.GetAllMessages("main")
	require.Len(t, all, 3)
	assert.Equal(t, []string{"2", "3", "1"}, []string{all[0].MessageID, all[1].MessageID, all[2].MessageID})
}

func TestGetAllMessages_MissingReferenceChatContributesNothing(t *testing.T) {
	a := New("m1")
	a.AddMessage(msg("1", "main", "alice", "hi", "t1"))
	a.AddReferenceChat("main", "never-populated")

	all := a.GetAllMessages("main")
	require.Len(t, all, 1)
	assert.Equal(t, "1", all[0].MessageID)
}

func TestAddReferenceChat_Deduplicates(t *testing.T) {
	a := New("m1")
	a.AddReferenceChat("main", "ref1")
	a.AddReferenceChat("main", "ref1")
	assert.Equal(t, []string{"ref1"}, a.GetReferenceChats("main"))
}

func TestRemoveReferenceChat(t *testing.T) {
	a := New("m1")
	a.AddReferenceChat("main", "ref1")
	a.AddReferenceChat("main", "ref2")
	a.RemoveReferenceChat("main", "ref1")
	assert.Equal(t, []string{"ref2"}, a.GetReferenceChats("main"))
}

func TestSaveToText_WritesExpectedFormat(t *testing.T) {
	a := New("m1")
	a.AddMessage(msg("1", "c1", "alice", "hello there", "2026-01-01T00:00:00.000Z"))

	dir := t.TempDir()
	require.NoError(t, a.SaveToText("c1", dir))

	data, err := os.ReadFile(filepath.Join(dir, "c1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "[2026-01-01T00:00:00.000Z] alice: hello there\n", string(data))
}
