package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonpython/gridmatch/internal/model"
)

func newTestEngine(width, height int32, snakes ...*model.Snake) *Engine {
	state := &model.GameState{
		Arena: model.Arena{Width: width, Height: height, Snakes: snakes},
		Players: map[uint32]*model.Player{},
		Scores:  map[uint32]int{},
		Properties: model.GameProperties{
			TargetFoodCount: 0,
			Width:           width,
			Height:          height,
			GameType:        model.GameType{Kind: model.Solo},
		},
	}
	return &Engine{State: state, rng: newRNG(1)}
}

func snake(id uint32, facing model.Direction, body ...model.Position) *model.Snake {
	return &model.Snake{ID: id, OwnerUID: id, Body: body, Facing: facing, Alive: true}
}

func pos(x, y int32) model.Position { return model.Position{X: x, Y: y} }

// S1: simple turn then tick.
func TestSimpleTurn(t *testing.T) {
	e := newTestEngine(10, 10, snake(0, model.Right, pos(3, 3), pos(2, 3), pos(1, 3)))

	turnEvents, err := e.ExecCommand(model.Command{Kind: model.CmdTurn, SnakeID: 0, Direction: model.Up})
	require.NoError(t, err)
	require.Len(t, turnEvents, 1)
	assert.Equal(t, model.EvSnakeTurned, turnEvents[0].Kind)

	tickEvents, err := e.ExecCommand(model.Command{Kind: model.CmdTick})
	require.NoError(t, err)
	_ = tickEvents

	s := e.State.Arena.SnakeByID(0)
	require.True(t, s.Alive)
	assert.Equal(t, model.Up, s.Facing)
	assert.Equal(t, []model.Position{pos(3, 2), pos(3, 3), pos(2, 3)}, s.Body)
	assert.Equal(t, uint32(1), e.State.Tick)
}

// S2: food eating leaves a growth credit for the next tick.
func TestFoodEating(t *testing.T) {
	e := newTestEngine(10, 10, snake(0, model.Right, pos(3, 3), pos(2, 3), pos(1, 3)))
	e.State.Arena.Food = []model.Position{pos(4, 3)}

	events, err := e.ExecCommand(model.Command{Kind: model.CmdTick})
	require.NoError(t, err)

	var sawFoodEaten bool
	for _, ev := range events {
		if ev.Kind == model.EvFoodEaten {
			sawFoodEaten = true
			assert.Equal(t, uint32(0), ev.SnakeID)
			assert.Equal(t, pos(4, 3), ev.Position)
		}
	}
	assert.True(t, sawFoodEaten)
	assert.Empty(t, e.State.Arena.Food)

	s := e.State.Arena.SnakeByID(0)
	assert.Equal(t, []model.Position{pos(4, 3), pos(3, 3), pos(2, 3)}, s.Body)
	assert.Equal(t, uint32(1), s.Growth)

	// Next tick: tail does not retract, body grows by one.
	_, err = e.ExecCommand(model.Command{Kind: model.CmdTick})
	require.NoError(t, err)
	s = e.State.Arena.SnakeByID(0)
	assert.Len(t, s.Body, 4)
	assert.Equal(t, uint32(0), s.Growth)
}

// S3: running off the edge kills the snake and reverts its body.
func TestWallDeath(t *testing.T) {
	e := newTestEngine(10, 10, snake(0, model.Right, pos(9, 5), pos(8, 5), pos(7, 5)))

	events, err := e.ExecCommand(model.Command{Kind: model.CmdTick})
	require.NoError(t, err)

	var died bool
	for _, ev := range events {
		if ev.Kind == model.EvSnakeDied {
			died = true
			assert.Equal(t, uint32(0), ev.SnakeID)
		}
	}
	assert.True(t, died)

	s := e.State.Arena.SnakeByID(0)
	assert.False(t, s.Alive)
	assert.Equal(t, []model.Position{pos(9, 5), pos(8, 5), pos(7, 5)}, s.Body)
}

// S4: two snakes swapping head cells both die, in ascending snake_id order.
func TestHeadOnCollision(t *testing.T) {
	a := snake(0, model.Right, pos(4, 5), pos(3, 5))
	b := snake(1, model.Left, pos(5, 5), pos(6, 5))
	e := newTestEngine(10, 10, a, b)

	events, err := e.ExecCommand(model.Command{Kind: model.CmdTick})
	require.NoError(t, err)

	var diedOrder []uint32
	for _, ev := range events {
		if ev.Kind == model.EvSnakeDied {
			diedOrder = append(diedOrder, ev.SnakeID)
		}
	}
	require.Equal(t, []uint32{0, 1}, diedOrder)
	assert.False(t, e.State.Arena.SnakeByID(0).Alive)
	assert.False(t, e.State.Arena.SnakeByID(1).Alive)
}

// S5: a stale client_tick is clamped to current+1, never scheduled in the past.
func TestScheduleStaleCommandClamped(t *testing.T) {
	e := newTestEngine(10, 10, snake(0, model.Right, pos(3, 3), pos(2, 3), pos(1, 3)))
	e.State.Tick = 100

	msg, err := e.ScheduleCommand(model.Command{Kind: model.CmdTurn, SnakeID: 0, Direction: model.Up}, 0, 95)
	require.NoError(t, err)
	assert.Equal(t, uint32(101), msg.Tick)
}

func TestScheduleCommandTooFarInFutureRejected(t *testing.T) {
	e := newTestEngine(10, 10, snake(0, model.Right, pos(3, 3), pos(2, 3), pos(1, 3)))

	_, err := e.ScheduleCommand(model.Command{Kind: model.CmdTurn, SnakeID: 0, Direction: model.Up}, 0, FutureTickCap+50)
	require.Error(t, err)
	var badCmd *model.BadCommandError
	assert.ErrorAs(t, err, &badCmd)
}

// Turn onto a dead snake, the current facing, or the opposite facing is a
// silent no-op: no event, no error.
func TestTurnRejectsInvalidTargets(t *testing.T) {
	dead := snake(0, model.Right, pos(3, 3), pos(2, 3), pos(1, 3))
	dead.Alive = false
	e := newTestEngine(10, 10, dead)

	evs, err := e.ExecCommand(model.Command{Kind: model.CmdTurn, SnakeID: 0, Direction: model.Up})
	require.NoError(t, err)
	assert.Empty(t, evs)

	e2 := newTestEngine(10, 10, snake(0, model.Right, pos(3, 3), pos(2, 3), pos(1, 3)))
	evs, err = e2.ExecCommand(model.Command{Kind: model.CmdTurn, SnakeID: 0, Direction: model.Right})
	require.NoError(t, err)
	assert.Empty(t, evs)

	evs, err = e2.ExecCommand(model.Command{Kind: model.CmdTurn, SnakeID: 0, Direction: model.Left})
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestTurnUnknownSnakeIsBadCommand(t *testing.T) {
	e := newTestEngine(10, 10, snake(0, model.Right, pos(3, 3), pos(2, 3), pos(1, 3)))
	_, err := e.ExecCommand(model.Command{Kind: model.CmdTurn, SnakeID: 7, Direction: model.Up})
	require.Error(t, err)
}

// Self-collision is never fatal, matching the grounding source's collision
// loop which explicitly excludes snake_id == other_snake_id.
func TestSelfCollisionIsNotFatal(t *testing.T) {
	// A snake curled so that moving Up would land its new head on a cell
	// still occupied by its own body.
	s := snake(0, model.Up,
		pos(5, 5), pos(6, 5), pos(6, 4), pos(5, 4), pos(4, 4),
	)
	e := newTestEngine(10, 10, s)

	_, err := e.ExecCommand(model.Command{Kind: model.CmdTick})
	require.NoError(t, err)
	assert.True(t, e.State.Arena.SnakeByID(0).Alive)
}

// Snapshot is emitted exactly once, on the very first Tick.
func TestSnapshotEmittedOnlyOnFirstTick(t *testing.T) {
	e := newTestEngine(10, 10, snake(0, model.Right, pos(3, 3), pos(2, 3), pos(1, 3)))

	first, err := e.ExecCommand(model.Command{Kind: model.CmdTick})
	require.NoError(t, err)
	assert.Equal(t, model.EvSnapshot, first[0].Kind)

	second, err := e.ExecCommand(model.Command{Kind: model.CmdTick})
	require.NoError(t, err)
	for _, ev := range second {
		assert.NotEqual(t, model.EvSnapshot, ev.Kind)
	}
}

// Solo games complete the instant their only snake dies.
func TestSoloCompletionOnDeath(t *testing.T) {
	e := newTestEngine(10, 10, snake(0, model.Right, pos(9, 5), pos(8, 5), pos(7, 5)))
	events, err := e.ExecCommand(model.Command{Kind: model.CmdTick})
	require.NoError(t, err)

	var complete bool
	for _, ev := range events {
		if ev.Kind == model.EvStatusUpdated {
			complete = ev.Status.Kind == model.Complete
		}
	}
	assert.True(t, complete)
	assert.Equal(t, model.Complete, e.State.Status.Kind)
}

// Commands are no-ops once the game has concluded.
func TestCommandsAfterCompletionAreNoOps(t *testing.T) {
	e := newTestEngine(10, 10, snake(0, model.Right, pos(9, 5), pos(8, 5), pos(7, 5)))
	_, err := e.ExecCommand(model.Command{Kind: model.CmdTick})
	require.NoError(t, err)
	require.Equal(t, model.Complete, e.State.Status.Kind)

	tickBefore := e.State.Tick
	events, err := e.ExecCommand(model.Command{Kind: model.CmdTick})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, tickBefore, e.State.Tick)
}

// Replay law: replaying the exact same command sequence from the same seed
// produces byte-identical resulting state.
func TestReplayIsDeterministic(t *testing.T) {
	run := func() *model.GameState {
		e := New(1, model.GameProperties{
			Width: 10, Height: 10, TargetFoodCount: 3, Seed: 42,
			GameType: model.GameType{Kind: model.Solo}, TickDurationMs: 100,
		}, 0)
		require.NoError(t, e.Spawn([]SpawnRequest{{UserID: 1, DisplayName: "a"}}))
		e.State.Status = model.GameStatus{Kind: model.Started}
		for i := 0; i < 20; i++ {
			_, _ = e.ExecCommand(model.Command{Kind: model.CmdTick})
		}
		return e.State
	}

	s1 := run()
	s2 := run()
	assert.Equal(t, s1.Arena.Food, s2.Arena.Food)
	assert.Equal(t, s1.Arena.Snakes, s2.Arena.Snakes)
	assert.Equal(t, s1.Tick, s2.Tick)
	assert.Equal(t, s1.RNGState, s2.RNGState)
}

// Snapshot idempotence: applying a Snapshot event twice converges to the
// same state as applying it once.
func TestSnapshotApplicationIsIdempotent(t *testing.T) {
	e := newTestEngine(10, 10, snake(0, model.Right, pos(3, 3), pos(2, 3), pos(1, 3)))
	snap := model.Snapshot(e.State.Clone())

	replica := NewFromState(&model.GameState{
		Arena:      model.Arena{Width: 10, Height: 10},
		Players:    map[uint32]*model.Player{},
		Scores:     map[uint32]int{},
		Properties: e.State.Properties,
	})
	replica.ApplyEvent(snap)
	first := replica.State.Clone()
	replica.ApplyEvent(snap)
	assert.Equal(t, first, replica.State)
}
