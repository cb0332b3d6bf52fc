package werewolf

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley/parley/internal/member"
	"github.com/parley/parley/internal/model"
	"github.com/parley/parley/internal/transport"
)

func TestGameHost_CheckGameOverWolvesEliminated(t *testing.T) {
	g := &GameHost{villagers: []VillagerInfo{
		{MemberID: "v1", Name: "Alice", Role: RoleVillager, IsAlive: true},
		{MemberID: "v2", Name: "Bob", Role: RoleWerewolf, IsAlive: false},
	}}
	assert.True(t, g.checkGameOver())
}

func TestGameHost_CheckGameOverWolvesOutnumberVillagers(t *testing.T) {
	g := &GameHost{villagers: []VillagerInfo{
		{MemberID: "v1", Name: "Alice", Role: RoleVillager, IsAlive: true},
		{MemberID: "v2", Name: "Bob", Role: RoleWerewolf, IsAlive: true},
		{MemberID: "v3", Name: "Carol", Role: RoleWerewolf, IsAlive: true},
	}}
	assert.True(t, g.checkGameOver())
}

func TestGameHost_CheckGameOverFalseWhenBalanceFavorsVillagers(t *testing.T) {
	g := &GameHost{villagers: []VillagerInfo{
		{MemberID: "v1", Name: "Alice", Role: RoleVillager, IsAlive: true},
		{MemberID: "v2", Name: "Bob", Role: RoleVillager, IsAlive: true},
		{MemberID: "v3", Name: "Carol", Role: RoleVillager, IsAlive: true},
		{MemberID: "v4", Name: "Dan", Role: RoleWerewolf, IsAlive: true},
	}}
	assert.False(t, g.checkGameOver())
}

func TestGameHost_RosterQueriesFilterByAliveAndRole(t *testing.T) {
	g := &GameHost{villagers: []VillagerInfo{
		{MemberID: "v1", Name: "Alice", Role: RoleVillager, IsAlive: true},
		{MemberID: "v2", Name: "Bob", Role: RoleWerewolf, IsAlive: true},
		{MemberID: "v3", Name: "Carol", Role: RoleWerewolf, IsAlive: false},
	}}
	assert.Len(t, g.getAliveVillagers(), 2)
	assert.Len(t, g.getWolves(), 2)
	assert.Len(t, g.getAliveWolves(), 1)

	info, ok := g.getVillagerInfoByName("Bob")
	require.True(t, ok)
	assert.Equal(t, "v2", info.MemberID)

	_, ok = g.getVillagerInfoByName("Nobody")
	assert.False(t, ok)
}

func TestGameHost_RefreshRosterDecodesVillagerInfoCommandResults(t *testing.T) {
	server := fakeBroker(t, func(ctx context.Context, conn *websocket.Conn) {
		readEnvelope(t, ctx, conn)
		writeEnvelope(t, ctx, conn, transport.Envelope{Event: transport.EventReceiveLoginResponse, Payload: json.RawMessage(`{"status":"ok"}`)})

		req := readEnvelope(t, ctx, conn) // send_command villager-info
		info := VillagerInfo{MemberID: "v1", Name: "Alice", Role: RoleVillager, IsAlive: true}
		encoded, err := json.Marshal(info)
		require.NoError(t, err)
		results := []model.CommandResult{{Result: string(encoded), Command: model.CommandInfo{Command: "villager-info", By: "host1", To: "v1"}}}
		payload, err := json.Marshal(results)
		require.NoError(t, err)
		writeEnvelope(t, ctx, conn, transport.Envelope{Event: req.Event, RequestID: req.RequestID, Payload: payload})
		<-ctx.Done()
	})

	tc := transport.NewClient(transport.Config{WSURL: wsURL(server), MemberID: "host1", MemberName: "主持人"})
	mc := member.New(tc, "host1", "主持人", "")
	require.True(t, tc.Login(context.Background()))

	g := NewGameHost(mc, []string{"v1"}, "villagers", "wolves")
	g.RefreshRoster(context.Background())

	require.Len(t, g.villagers, 1)
	assert.Equal(t, "Alice", g.villagers[0].Name)
	assert.True(t, g.villagers[0].IsAlive)
}

func TestGameHost_AliveVillagerIDsPreserveRosterOrderForSpeechSequencing(t *testing.T) {
	g := &GameHost{villagers: []VillagerInfo{
		{MemberID: "v1", Name: "Alice", Role: RoleVillager, IsAlive: true},
		{MemberID: "v2", Name: "Bob", Role: RoleVillager, IsAlive: false},
		{MemberID: "v3", Name: "Carol", Role: RoleVillager, IsAlive: true},
	}}
	assert.Equal(t, []string{"v1", "v3"}, idsOf(g.getAliveVillagers()))
}
