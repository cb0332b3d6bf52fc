package werewolf

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley/parley/internal/agent"
	"github.com/parley/parley/internal/member"
	"github.com/parley/parley/internal/transport"
)

func newTestProphet(t *testing.T, model agent.ChatModel) *Prophet {
	t.Helper()
	server := fakeBroker(t, func(ctx context.Context, conn *websocket.Conn) {
		readEnvelope(t, ctx, conn)
		writeEnvelope(t, ctx, conn, transport.Envelope{Event: transport.EventReceiveLoginResponse, Payload: json.RawMessage(`{"status":"ok"}`)})
		<-ctx.Done()
	})
	tc := transport.NewClient(transport.Config{WSURL: wsURL(server), MemberID: "p1", MemberName: "Eve"})
	mc := member.New(tc, "p1", "Eve", "")
	require.True(t, tc.Login(context.Background()))
	return NewProphet(mc, model, "Eve", "机警", "villagers")
}

func TestProphet_GetVerifyTargetExcludesSelfAndAlreadyVerified(t *testing.T) {
	p := newTestProphet(t, &fakeModel{reply: "值得一验 |VERIFY:Bob|"})
	p.verifyDict["Carol"] = string(RoleVillager)

	target := p.handleGetVerifyTarget(map[string]any{"candidates": []any{"Eve", "Bob", "Carol"}})
	assert.Equal(t, "Bob", target)
}

func TestProphet_GetVerifyTargetReturnsEmptyWhenNoCandidatesRemain(t *testing.T) {
	p := newTestProphet(t, &fakeModel{reply: "|VERIFY:Eve|"})
	p.verifyDict["Bob"] = string(RoleWerewolf)

	target := p.handleGetVerifyTarget(map[string]any{"candidates": []any{"Eve", "Bob"}})
	assert.Empty(t, target)
}

// promptModel records the system prompt passed to its last Complete call.
type promptModel struct{ prompt string }

func (m *promptModel) Complete(_ context.Context, prompt string, _ []agent.RoleMessage) (string, error) {
	m.prompt = prompt
	return "ok", nil
}

func TestProphet_VerifyVillagerRecordsResultAndUpdatesPrompt(t *testing.T) {
	pm := &promptModel{}
	p := newTestProphet(t, pm)
	p.handleVerifyVillager(map[string]any{"name": "Bob", "role": string(RoleWerewolf)})
	assert.Equal(t, string(RoleWerewolf), p.verifyDict["Bob"])

	_, err := p.Ask(context.Background(), "next", "villagers")
	require.NoError(t, err)
	assert.Contains(t, pm.prompt, "已验证的村民身份")
}
