package predictor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonpython/gridmatch/internal/engine"
	"github.com/sonpython/gridmatch/internal/model"
)

// authoritativeGame places a single snake dead center of a large arena,
// far enough from every wall that it cannot die within the tick ranges
// these tests run, so reconciliation behavior is tested in isolation from
// collision/win-loss timing.
func authoritativeGame(t *testing.T) *engine.Engine {
	t.Helper()
	e := engine.New(1, model.GameProperties{
		Width: 50, Height: 50, TargetFoodCount: 0, Seed: 7,
		GameType: model.GameType{Kind: model.Solo}, TickDurationMs: 100,
	}, 0)
	e.State.Arena.Snakes = []*model.Snake{{
		ID: 0, OwnerUID: 1, Alive: true, Facing: model.Up,
		Body: []model.Position{{X: 25, Y: 25}, {X: 25, Y: 26}, {X: 25, Y: 27}},
	}}
	e.State.Players = map[uint32]*model.Player{1: {UserID: 1, SnakeID: 0, DisplayName: "p1"}}
	e.State.Scores = map[uint32]int{1: 0}
	e.State.Status = model.GameStatus{Kind: model.Started}
	return e
}

// Reconciliation convergence: after the predictor consumes the authority's
// full event stream for a run, its committed_state matches the authority's
// state at the same tick.
func TestReconciliationConvergesOnCommittedState(t *testing.T) {
	auth := authoritativeGame(t)

	initial := auth.State.Clone()
	pred := NewFromSnapshot(initial, 0, 100, 0, 1)

	var sequence uint64
	for i := 0; i < 15; i++ {
		events, err := auth.ExecCommand(model.Command{Kind: model.CmdTick})
		require.NoError(t, err)
		for _, ev := range events {
			msg := model.EventMessage{GameID: 1, Tick: auth.State.Tick, Sequence: sequence, Event: ev}
			sequence++
			pred.ProcessServerEvent(msg)
		}
	}

	// Catch committed_state all the way up to the authority's tick by
	// running the committed engine directly past the last processed tick.
	pred.committed.RunUntilTick(auth.State.Tick)

	assert.Equal(t, auth.State.Tick, pred.CommittedState().Tick)
	assert.Equal(t, auth.State.Arena.Food, pred.CommittedState().Arena.Food)
	for i, s := range auth.State.Arena.Snakes {
		assert.Equal(t, s.Alive, pred.CommittedState().Arena.Snakes[i].Alive)
		assert.Equal(t, s.Body, pred.CommittedState().Arena.Snakes[i].Body)
	}
}

// A local Turn is recorded as unconfirmed and dropped once the matching
// CommandScheduled event for the same user arrives.
func TestLocalCommandConfirmedByScheduledEvent(t *testing.T) {
	auth := authoritativeGame(t)
	pred := NewFromSnapshot(auth.State.Clone(), 0, 100, 0, 1)

	msg := pred.ProcessLocalCommand(model.Command{Kind: model.CmdTurn, SnakeID: 0, Direction: model.Up})
	require.Len(t, pred.unconfirmedLocal, 1)

	userID := pred.localPlayerID
	pred.ProcessServerEvent(model.EventMessage{
		GameID: 1,
		Tick:   msg.Tick,
		UserID: &userID,
		Event:  model.CommandScheduled(msg),
	})

	assert.Empty(t, pred.unconfirmedLocal)
}

// RebuildPredictedState advances predicted_state strictly ahead of
// committed_state using the lag window.
func TestRebuildPredictedStateAdvancesAheadOfCommitted(t *testing.T) {
	auth := authoritativeGame(t)
	pred := NewFromSnapshot(auth.State.Clone(), 0, 100, 200, 1)

	pred.RebuildPredictedState(1500)

	assert.GreaterOrEqual(t, pred.PredictedState().Tick, pred.CommittedState().Tick)
	assert.Equal(t, uint32(15), pred.PredictedState().Tick)
	assert.Equal(t, uint32(13), pred.CommittedState().Tick)
}
