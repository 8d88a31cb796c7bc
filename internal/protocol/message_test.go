package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonpython/gridmatch/internal/model"
)

func TestClientMessageRoundtripsEachKind(t *testing.T) {
	token := "opaque-token"
	gameID := uint32(42)

	cases := []ClientMessage{
		{Token: &token},
		{QueueForMatch: &QueueForMatchRequest{GameType: model.GameType{Kind: model.TeamMatch, PerTeam: 2}, QueueMode: model.Competitive}},
		{LeaveQueue: true},
		{JoinGame: &gameID},
		{GameCommand: &model.CommandMessage{Tick: 5, Command: model.Command{Kind: model.CmdTurn, Direction: model.Left}}},
		{Ping: true},
	}

	for _, c := range cases {
		data, err := json.Marshal(c)
		require.NoError(t, err)

		var decoded ClientMessage
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, c, decoded)
	}
}

func TestClientMessageUnmarshalRejectsUnknownKind(t *testing.T) {
	var m ClientMessage
	err := json.Unmarshal([]byte(`{"Nonsense":null}`), &m)
	assert.Error(t, err)
}

func TestServerMessageRoundtripsEachKind(t *testing.T) {
	gameID := uint32(7)

	cases := []ServerMessage{
		ServerJoinGame(gameID),
		ServerMatchFound(gameID),
		ServerQueueUpdate(3, 12),
		ServerGameEvent(model.EventMessage{GameID: gameID, Tick: 1, Sequence: 1, Event: model.StatusUpdated(model.GameStatus{Kind: model.Started})}),
		ServerAccessDenied("not authenticated"),
		ServerShutdown(),
		ServerPong(),
	}

	for _, c := range cases {
		data, err := json.Marshal(c)
		require.NoError(t, err)

		var decoded ServerMessage
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, c, decoded)
	}
}

func TestQueueForMatchWireShape(t *testing.T) {
	msg := ClientMessage{QueueForMatch: &QueueForMatchRequest{GameType: model.GameType{Kind: model.Solo}, QueueMode: model.Quickmatch}}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"QueueForMatch":{"game_type":"Solo","queue_mode":"Quickmatch"}}`, string(data))
}
