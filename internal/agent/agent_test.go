package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley/parley/internal/member"
	"github.com/parley/parley/internal/model"
	"github.com/parley/parley/internal/transport"
)

func fakeBroker(t *testing.T, handle func(ctx context.Context, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.CloseNow()
		handle(context.Background(), conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string { return "ws" + strings.TrimPrefix(server.URL, "http") }

func readEnvelope(t *testing.T, ctx context.Context, conn *websocket.Conn) transport.Envelope {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var env transport.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func writeEnvelope(t *testing.T, ctx context.Context, conn *websocket.Conn, env transport.Envelope) {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

type fakeModel struct {
	complete func(ctx context.Context, prompt string, history []RoleMessage) (string, error)
}

func (f *fakeModel) Complete(ctx context.Context, prompt string, history []RoleMessage) (string, error) {
	return f.complete(ctx, prompt, history)
}

func TestRoleMap_TagsOwnMessagesAsAssistant(t *testing.T) {
	messages := []model.Message{
		{FromMemberID: "me", FromMemberName: "prophet", Message: "I verified Alice"},
		{FromMemberID: "other", FromMemberName: "villager", Message: "who is the wolf"},
	}
	mapped := RoleMap("me", messages)
	require.Len(t, mapped, 2)
	assert.Equal(t, RoleAssistant, mapped[0].Role)
	assert.Equal(t, "I verified Alice", mapped[0].Content)
	assert.Equal(t, RoleUser, mapped[1].Role)
	assert.Equal(t, "villager: who is the wolf", mapped[1].Content)
}

func TestAgent_MirrorsSentAndReceivedMessagesIntoMemory(t *testing.T) {
	server := fakeBroker(t, func(ctx context.Context, conn *websocket.Conn) {
		readEnvelope(t, ctx, conn) // handshake
		writeEnvelope(t, ctx, conn, transport.Envelope{Event: transport.EventReceiveLoginResponse, Payload: json.RawMessage(`{"status":"ok"}`)})
		writeEnvelope(t, ctx, conn, transport.Envelope{
			Event:   transport.EventReceiveMessage,
			Payload: json.RawMessage(`{"message_id":"2","chat_id":"c1","from_member_id":"other","from_member_name":"villager","message":"hi"}`),
		})
		req := readEnvelope(t, ctx, conn) // send_message from the agent
		writeEnvelope(t, ctx, conn, transport.Envelope{Event: req.Event, RequestID: req.RequestID, Payload: json.RawMessage(`{"status":"ok"}`)})
		<-ctx.Done()
	})

	tc := transport.NewClient(transport.Config{WSURL: wsURL(server), MemberID: "me", MemberName: "prophet"})
	mc := member.New(tc, "me", "prophet", "")
	a := New(mc, &fakeModel{}, "")
	require.True(t, tc.Login(context.Background()))

	require.Eventually(t, func() bool {
		return len(a.Memory().GetMessages("c1")) == 1
	}, time.Second, 10*time.Millisecond, "received message never mirrored into memory")

	a.SendMessage(context.Background(), "hello", "c1")
	assert.Len(t, a.Memory().GetMessages("c1"), 2)
}

func TestAgent_NextSpeakerForSelfTriggersReplyUsingAggregatedContext(t *testing.T) {
	replyCh := make(chan string, 1)
	server := fakeBroker(t, func(ctx context.Context, conn *websocket.Conn) {
		readEnvelope(t, ctx, conn)
		writeEnvelope(t, ctx, conn, transport.Envelope{Event: transport.EventReceiveLoginResponse, Payload: json.RawMessage(`{"status":"ok"}`)})

		writeEnvelope(t, ctx, conn, transport.Envelope{
			Event:   transport.EventReceiveMessage,
			Payload: json.RawMessage(`{"message_id":"1","chat_id":"c1","from_member_id":"other","from_member_name":"villager","message":"who do we suspect"}`),
		})
		writeEnvelope(t, ctx, conn, transport.Envelope{
			Event:   transport.EventNextSpeaker,
			Payload: json.RawMessage(`{"chat_id":"c1","member_id":"me","manager_id":"mgr"}`),
		})

		req := readEnvelope(t, ctx, conn) // send_message carrying the reply
		var sentMsg model.Message
		require.NoError(t, json.Unmarshal(req.Payload, &sentMsg))
		replyCh <- sentMsg.Message
		writeEnvelope(t, ctx, conn, transport.Envelope{Event: req.Event, RequestID: req.RequestID, Payload: json.RawMessage(`{"status":"ok"}`)})
	})

	tc := transport.NewClient(transport.Config{WSURL: wsURL(server), MemberID: "me", MemberName: "prophet"})
	mc := member.New(tc, "me", "prophet", "")
	model := &fakeModel{complete: func(_ context.Context, _ string, history []RoleMessage) (string, error) {
		require.Len(t, history, 1)
		assert.Equal(t, "villager: who do we suspect", history[0].Content)
		return "I suspect Bob", nil
	}}
	New(mc, model, "you are the prophet")
	require.True(t, tc.Login(context.Background()))

	select {
	case text := <-replyCh:
		assert.Equal(t, "I suspect Bob", text)
	case <-time.After(time.Second):
		t.Fatal("agent never replied to next_speaker")
	}
}

func TestAgent_NextSpeakerForUnknownChatIsSkipped(t *testing.T) {
	server := fakeBroker(t, func(ctx context.Context, conn *websocket.Conn) {
		readEnvelope(t, ctx, conn)
		writeEnvelope(t, ctx, conn, transport.Envelope{Event: transport.EventReceiveLoginResponse, Payload: json.RawMessage(`{"status":"ok"}`)})
		writeEnvelope(t, ctx, conn, transport.Envelope{
			Event:   transport.EventNextSpeaker,
			Payload: json.RawMessage(`{"chat_id":"never-seen","member_id":"me","manager_id":"mgr"}`),
		})
		<-ctx.Done()
	})

	tc := transport.NewClient(transport.Config{WSURL: wsURL(server), MemberID: "me", MemberName: "prophet"})
	mc := member.New(tc, "me", "prophet", "")
	var called atomic.Bool
	New(mc, &fakeModel{complete: func(_ context.Context, _ string, _ []RoleMessage) (string, error) {
		called.Store(true)
		return "", nil
	}}, "")
	require.True(t, tc.Login(context.Background()))

	time.Sleep(100 * time.Millisecond)
	assert.False(t, called.Load())
}

func TestAgent_NextSpeakerForOtherMemberIsIgnored(t *testing.T) {
	server := fakeBroker(t, func(ctx context.Context, conn *websocket.Conn) {
		readEnvelope(t, ctx, conn)
		writeEnvelope(t, ctx, conn, transport.Envelope{Event: transport.EventReceiveLoginResponse, Payload: json.RawMessage(`{"status":"ok"}`)})
		writeEnvelope(t, ctx, conn, transport.Envelope{
			Event:   transport.EventNextSpeaker,
			Payload: json.RawMessage(`{"chat_id":"c1","member_id":"someone-else","manager_id":"mgr"}`),
		})
		<-ctx.Done()
	})

	tc := transport.NewClient(transport.Config{WSURL: wsURL(server), MemberID: "me", MemberName: "prophet"})
	mc := member.New(tc, "me", "prophet", "")
	var called atomic.Bool
	New(mc, &fakeModel{complete: func(_ context.Context, _ string, _ []RoleMessage) (string, error) {
		called.Store(true)
		return "", nil
	}}, "")
	require.True(t, tc.Login(context.Background()))

	time.Sleep(100 * time.Millisecond)
	assert.False(t, called.Load())
}

func TestAgent_AskAppendsInstructionWithoutPersistingToMemory(t *testing.T) {
	server := fakeBroker(t, func(ctx context.Context, conn *websocket.Conn) {
		readEnvelope(t, ctx, conn)
		writeEnvelope(t, ctx, conn, transport.Envelope{Event: transport.EventReceiveLoginResponse, Payload: json.RawMessage(`{"status":"ok"}`)})
		writeEnvelope(t, ctx, conn, transport.Envelope{
			Event:   transport.EventReceiveMessage,
			Payload: json.RawMessage(`{"message_id":"1","chat_id":"c1","from_member_id":"other","from_member_name":"villager","message":"who is the wolf"}`),
		})
		<-ctx.Done()
	})

	tc := transport.NewClient(transport.Config{WSURL: wsURL(server), MemberID: "me", MemberName: "prophet"})
	mc := member.New(tc, "me", "prophet", "")
	model := &fakeModel{complete: func(_ context.Context, prompt string, history []RoleMessage) (string, error) {
		assert.Equal(t, "you are the prophet", prompt)
		require.Len(t, history, 2)
		assert.Equal(t, "villager: who is the wolf", history[0].Content)
		assert.Equal(t, RoleUser, history[1].Role)
		assert.Equal(t, "please vote now", history[1].Content)
		return "|VOTETO:Bob|", nil
	}}
	a := New(mc, model, "you are the prophet")
	require.True(t, tc.Login(context.Background()))

	require.Eventually(t, func() bool {
		return len(a.Memory().GetMessages("c1")) == 1
	}, time.Second, 10*time.Millisecond, "received message never mirrored into memory")

	reply, err := a.Ask(context.Background(), "please vote now", "c1")
	require.NoError(t, err)
	assert.Equal(t, "|VOTETO:Bob|", reply)

	// Neither the instruction nor the reply is persisted.
	assert.Len(t, a.Memory().GetMessages("c1"), 1)
}

func TestAgent_SetPromptReplacesSystemPromptUsedByAsk(t *testing.T) {
	server := fakeBroker(t, func(ctx context.Context, conn *websocket.Conn) {
		readEnvelope(t, ctx, conn)
		writeEnvelope(t, ctx, conn, transport.Envelope{Event: transport.EventReceiveLoginResponse, Payload: json.RawMessage(`{"status":"ok"}`)})
		<-ctx.Done()
	})

	tc := transport.NewClient(transport.Config{WSURL: wsURL(server), MemberID: "me", MemberName: "werewolf"})
	mc := member.New(tc, "me", "werewolf", "")
	var seenPrompt string
	model := &fakeModel{complete: func(_ context.Context, prompt string, _ []RoleMessage) (string, error) {
		seenPrompt = prompt
		return "ok", nil
	}}
	a := New(mc, model, "original prompt")
	require.True(t, tc.Login(context.Background()))

	a.SetPrompt("updated prompt naming teammates")
	_, err := a.Ask(context.Background(), "who do we attack", "wolves")
	require.NoError(t, err)
	assert.Equal(t, "updated prompt naming teammates", seenPrompt)
}

func TestCallWithRetry_NonRetryableErrorReturnsImmediately(t *testing.T) {
	var attempts int
	_, err := callWithRetry(context.Background(), func(_ context.Context) (string, error) {
		attempts++
		return "", errors.New("bad request")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestCallWithRetry_RetriesRetryableErrorsUntilSuccess(t *testing.T) {
	var attempts int
	result, err := callWithRetry(context.Background(), func(_ context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", Retryable(errors.New("rate limited"))
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}
