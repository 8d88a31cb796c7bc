package executor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sonpython/gridmatch/internal/kv/memkv"
	"github.com/sonpython/gridmatch/internal/model"
	"github.com/sonpython/gridmatch/internal/pubsub"
	"github.com/sonpython/gridmatch/internal/pubsub/memfabric"
)

func soloState(gameID uint32, startMs int64) *model.GameState {
	return &model.GameState{
		GameID: gameID,
		Arena: model.Arena{
			Width: 50, Height: 50,
			Snakes: []*model.Snake{{
				ID: 0, OwnerUID: 1, Alive: true, Facing: model.Up,
				Body: []model.Position{{X: 25, Y: 25}, {X: 25, Y: 26}, {X: 25, Y: 27}},
			}},
		},
		Players: map[uint32]*model.Player{1: {UserID: 1, SnakeID: 0, DisplayName: "p1"}},
		Scores:  map[uint32]int{1: 0},
		Properties: model.GameProperties{
			Width: 50, Height: 50, TickDurationMs: 5, GameType: model.GameType{Kind: model.Solo}, TickCap: 3,
		},
		Status:  model.GameStatus{Kind: model.Stopped},
		StartMs: startMs,
	}
}

func TestExecutorSpawnsOwnedGamesOnly(t *testing.T) {
	fabric := memfabric.New()
	ex := New(0, 2, fabric, memkv.New(), nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ex.Run(ctx)

	sub, err := fabric.Subscribe(ctx, 0)
	require.NoError(t, err)
	defer sub.Close()

	// game_id 4 % 2 == 0: owned by this partition.
	require.NoError(t, fabric.PublishCommand(ctx, 0, model.GameCreatedCommand(4, soloState(4, time.Now().UnixMilli()))))
	// game_id 5 % 2 == 1: not owned.
	require.NoError(t, fabric.PublishCommand(ctx, 0, model.GameCreatedCommand(5, soloState(5, time.Now().UnixMilli()))))

	require.Eventually(t, func() bool {
		ex.mu.Lock()
		defer ex.mu.Unlock()
		_, ok := ex.games[4]
		_, notOwned := ex.games[5]
		return ok && !notOwned
	}, time.Second, 5*time.Millisecond)
}

func TestGameTaskPublishesCommandScheduledThenCompletes(t *testing.T) {
	fabric := memfabric.New()
	ex := New(0, 1, fabric, memkv.New(), nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ex.Run(ctx)

	sub, err := fabric.Subscribe(ctx, 0)
	require.NoError(t, err)
	defer sub.Close()

	start := time.Now().UnixMilli()
	require.NoError(t, fabric.PublishCommand(ctx, 0, model.GameCreatedCommand(1, soloState(1, start))))

	require.Eventually(t, func() bool {
		ex.mu.Lock()
		defer ex.mu.Unlock()
		_, ok := ex.games[1]
		return ok
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, fabric.PublishCommand(ctx, 0, model.GameCommandSubmitted(1, 1, model.Command{Kind: model.CmdTurn, SnakeID: 0, Direction: model.Right}, 0)))

	sawScheduled := false
	sawComplete := false
	timeout := time.After(2 * time.Second)
	for !sawComplete {
		select {
		case msg := <-sub.Events:
			if msg.Event.Kind == model.EvCommandScheduled {
				sawScheduled = true
			}
			if msg.Event.Kind == model.EvStatusUpdated && msg.Event.Status.Kind == model.Complete {
				sawComplete = true
			}
		case <-timeout:
			t.Fatal("timed out waiting for game completion")
		}
	}
	assert.True(t, sawScheduled)

	require.Eventually(t, func() bool {
		ex.mu.Lock()
		defer ex.mu.Unlock()
		_, ok := ex.games[1]
		return !ok
	}, time.Second, 5*time.Millisecond)
}

// TestExecutorResumesGamesFromPersistedSnapshotsOnStart reproduces a
// failover: a snapshot for an in-flight game this partition owns is
// already sitting in the store (as redispubsub.PublishSnapshot would have
// left it) when Run starts, with no GameCreated command coming through
// the fabric at all.
func TestExecutorResumesGamesFromPersistedSnapshotsOnStart(t *testing.T) {
	fabric := memfabric.New()
	store := memkv.New()

	owned := soloState(4, time.Now().UnixMilli())
	owned.Status = model.GameStatus{Kind: model.Started}
	notOwned := soloState(5, time.Now().UnixMilli())
	notOwned.Status = model.GameStatus{Kind: model.Started}
	finished := soloState(6, time.Now().UnixMilli())
	finished.Status = model.GameStatus{Kind: model.Complete}

	for _, s := range []*model.GameState{owned, notOwned, finished} {
		raw, err := json.Marshal(s)
		require.NoError(t, err)
		require.NoError(t, store.Set(context.Background(), pubsub.SnapshotKey(s.GameID), string(raw), 0))
	}

	ex := New(0, 2, fabric, store, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ex.Run(ctx)

	require.Eventually(t, func() bool {
		ex.mu.Lock()
		defer ex.mu.Unlock()
		_, resumed := ex.games[4]
		_, skippedOther := ex.games[5]
		_, skippedFinished := ex.games[6]
		return resumed && !skippedOther && !skippedFinished
	}, time.Second, 5*time.Millisecond)
}
