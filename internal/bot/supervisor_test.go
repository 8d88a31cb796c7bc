package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sonpython/gridmatch/internal/engine"
	"github.com/sonpython/gridmatch/internal/model"
	"github.com/sonpython/gridmatch/internal/pubsub/memfabric"
)

func TestSupervisorLaunchesDriverForReservedSeat(t *testing.T) {
	fabric := memfabric.New()
	gameID := uint32(3)
	partition := int(gameID) % partitions

	props := model.GameProperties{Width: 20, Height: 20, TickDurationMs: 20, TargetFoodCount: 1}
	eng := engine.New(gameID, props, time.Now().UnixMilli())
	botID := uint32(BotUserIDFloor + 1)
	require.NoError(t, eng.Spawn([]engine.SpawnRequest{
		{UserID: 1, DisplayName: "human"},
		{UserID: botID, DisplayName: "Bot 1"},
	}))

	bot := eng.State.Players[botID]
	snake := eng.State.Arena.SnakeByID(bot.SnakeID)
	snake.Body = []model.Position{{X: 10, Y: 1}, {X: 10, Y: 2}, {X: 10, Y: 3}}
	snake.Facing = model.Up

	sub, err := fabric.Subscribe(context.Background(), partition)
	require.NoError(t, err)
	defer sub.Close()

	sup := NewSupervisor(partition, partitions, fabric, 7, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = sup.Run(ctx) }()

	// Re-publish GameCreated on a short interval until the Supervisor's own
	// Subscribe call (racing against this goroutine's startup) has
	// registered, so the fan-out in memfabric actually reaches it.
	republish := time.NewTicker(20 * time.Millisecond)
	defer republish.Stop()
	deadline := time.After(time.Second)
	for {
		select {
		case <-republish.C:
			require.NoError(t, fabric.PublishCommand(ctx, partition, model.GameCreatedCommand(gameID, eng.State)))
		case msg := <-sub.Commands:
			if msg.Kind == model.SCGameCommandSubmitted && msg.UserID == botID {
				assert.Equal(t, model.CmdTurn, msg.RawCommand.Kind)
				assert.NotEqual(t, model.Up, msg.RawCommand.Direction)
				return
			}
		case <-deadline:
			t.Fatal("bot driver never submitted a turn command")
		}
	}
}
