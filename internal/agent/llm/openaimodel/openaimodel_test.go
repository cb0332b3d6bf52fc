package openaimodel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley/parley/internal/agent"
)

func TestComplete_SendsRoleMappedHistoryAndSystemPrompt(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 0,
			"model": "gpt-test",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "I suspect Bob"}, "finish_reason": "stop"}]
		}`))
	}))
	defer server.Close()

	m := New(Config{APIKey: "test-key", Model: "gpt-test", BaseURL: server.URL + "/v1"})

	history := []agent.RoleMessage{
		{Role: agent.RoleUser, Content: "villager: who is the wolf"},
		{Role: agent.RoleAssistant, Content: "I am still thinking"},
	}
	reply, err := m.Complete(t.Context(), "you are the prophet", history)
	require.NoError(t, err)
	assert.Equal(t, "I suspect Bob", reply)

	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 3)
	first := messages[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "you are the prophet", first["content"])
	second := messages[1].(map[string]any)
	assert.Equal(t, "user", second["role"])
	third := messages[2].(map[string]any)
	assert.Equal(t, "assistant", third["role"])
}

func TestComplete_EmptyChoicesIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","created":0,"model":"gpt-test","choices":[]}`))
	}))
	defer server.Close()

	m := New(Config{APIKey: "test-key", Model: "gpt-test", BaseURL: server.URL + "/v1"})
	_, err := m.Complete(t.Context(), "", []agent.RoleMessage{{Role: agent.RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.True(t, agent.IsRetryable(err))
}
