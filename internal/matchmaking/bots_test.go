package matchmaking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sonpython/gridmatch/internal/matchmaking/memnotifier"
	"github.com/sonpython/gridmatch/internal/matchmaking/memqueue"
	"github.com/sonpython/gridmatch/internal/model"
	"github.com/sonpython/gridmatch/internal/pubsub/memfabric"
)

func TestLoopFillsRemainingSeatsWithBotsWhenEnabled(t *testing.T) {
	queue := memqueue.New()
	notifier := memnotifier.New()
	fabric := memfabric.New()
	pool := Pool{GameType: model.GameType{Kind: model.TeamMatch, PerTeam: 2}, QueueMode: model.Quickmatch}
	props := func(model.GameType) model.GameProperties {
		return model.GameProperties{Width: 40, Height: 40, TickDurationMs: 100, TargetFoodCount: 5}
	}
	loop := NewLoop(queue, notifier, fabric, 4, []Pool{pool}, props, true, nil, zap.NewNop())

	require.NoError(t, queue.Enqueue(context.Background(), QueuedLobby{
		LobbyCode: "AAAA", Members: []LobbyMember{{UserID: 1, Username: "alice", MMR: 1000}},
		AvgMMR: 1000, GameType: pool.GameType, QueueMode: pool.QueueMode, QueuedAtMs: 0,
	}))
	require.NoError(t, queue.Enqueue(context.Background(), QueuedLobby{
		LobbyCode: "BBBB", Members: []LobbyMember{{UserID: 2, Username: "bob", MMR: 1010}},
		AvgMMR: 1010, GameType: pool.GameType, QueueMode: pool.QueueMode, QueuedAtMs: 1,
	}))

	ctx := context.Background()
	// memqueue.NextGameID starts at 1, so the first formed game lands on
	// partition 1 % 4 with 4 partitions.
	sub, err := fabric.Subscribe(ctx, 1)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, loop.processPool(ctx, pool))

	select {
	case cmd := <-sub.Commands:
		require.Equal(t, model.SCGameCreated, cmd.Kind)
		require.NotNil(t, cmd.GameState)
		assert.Len(t, cmd.GameState.Players, pool.GameType.PlayerCount())
		var bots int
		for userID := range cmd.GameState.Players {
			if userID >= BotUserIDFloor {
				bots++
			}
		}
		assert.Equal(t, pool.GameType.PlayerCount()-2, bots)
	case <-time.After(time.Second):
		t.Fatal("no GameCreated command received")
	}
}

func TestFillWithBotsLeavesFullRequestsUntouched(t *testing.T) {
	gt := model.GameType{Kind: model.TeamMatch, PerTeam: 1}
	requests := assignTeams(Match{Lobbies: []QueuedLobby{
		{Members: []LobbyMember{{UserID: 1, Username: "a"}}},
		{Members: []LobbyMember{{UserID: 2, Username: "b"}}},
	}}, gt)
	filled := fillWithBots(requests, gt)
	assert.Len(t, filled, 2)
}
