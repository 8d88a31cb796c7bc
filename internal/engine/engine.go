// Package engine implements the deterministic tick-based game state machine
// described in spec.md section 4.A: a pure function (GameState, Command) ->
// (GameState', []Event) that runs identically on authoritative servers and
// clients. No I/O, no clocks, no randomness other than via GameState's
// rng_state.
package engine

import (
	"container/heap"

	"github.com/sonpython/gridmatch/internal/model"
)

// FutureTickCap bounds how far ahead of the current tick a scheduled
// command may land; commands requesting more are rejected.
const FutureTickCap = 64

// SnapshotIntervalTicks is how often the executor asks a game to publish a
// full snapshot, per spec.md section 4.D.
const SnapshotIntervalTicks = 10

// Engine owns one GameState and the pending-command schedule used to turn
// inbound CommandMessages into ticks. It is not safe for concurrent use;
// the owning game task (or the client's single-threaded predictor) is the
// sole mutator, per spec.md section 5's shared-resource policy.
type Engine struct {
	State          *model.GameState
	rng            *rng
	pending        commandHeap
	commandCounter uint32
}

// New creates the initial GameState for a fresh game: tick=0, empty snakes,
// zero scores. The authoritative RNG is seeded from properties.Seed.
func New(gameID uint32, props model.GameProperties, startMs int64) *Engine {
	seed := props.Seed
	state := &model.GameState{
		GameID: gameID,
		Tick:   0,
		Arena: model.Arena{
			Width:  props.Width,
			Height: props.Height,
		},
		Players:    map[uint32]*model.Player{},
		Scores:     map[uint32]int{},
		Properties: props,
		Status:     model.GameStatus{Kind: model.Stopped},
		StartMs:    startMs,
	}
	r := newRNG(seed)
	snap := r.snapshot()
	state.RNGState = &snap
	return &Engine{State: state, rng: r}
}

// NewFromState re-seeds an Engine deterministically from an existing
// GameState: used for replicas (which start with RNGState == nil) and for
// a partition executor resuming authority after failover (RNGState
// preserved from the latest snapshot).
func NewFromState(state *model.GameState) *Engine {
	e := &Engine{State: state}
	if state.RNGState != nil {
		e.rng = restoreRNG(*state.RNGState)
	}
	return e
}

// IsAuthoritative reports whether this engine instance owns the RNG and may
// therefore spawn food and advance the authoritative timeline.
func (e *Engine) IsAuthoritative() bool {
	return e.rng != nil
}

// ExecCommand mutates State and returns the events emitted, in application
// order. Every returned event has already been applied (event_sequence
// incremented) exactly as apply_event would.
func (e *Engine) ExecCommand(cmd model.Command) ([]model.Event, error) {
	if e.State.Status.Kind == model.Complete {
		// Further commands (including Tick) are no-ops once the game has
		// concluded, per spec.md section 4.A step 9.
		return nil, nil
	}
	switch cmd.Kind {
	case model.CmdTick:
		return e.tick()
	case model.CmdTurn:
		return e.turn(cmd.SnakeID, cmd.Direction)
	case model.CmdPositionQueueReplace:
		return e.positionQueueReplace(cmd.SnakeID, cmd.Positions)
	case model.CmdRequestSnapshot:
		return nil, nil
	default:
		return nil, &model.BadCommandError{Reason: "unrecognized command kind"}
	}
}

// emit applies ev to State (mutating it and incrementing event_sequence)
// and returns it, the shape every internal tick/turn helper uses to build
// its output slice.
func (e *Engine) emit(ev model.Event) model.Event {
	applyEvent(e.State, ev)
	e.State.EventSequence++
	return ev
}

// ApplyEvent deterministically applies an externally-received event (used
// by replicas and the predictor, which do not call ExecCommand directly for
// server-originated events).
func (e *Engine) ApplyEvent(ev model.Event) {
	applyEvent(e.State, ev)
	e.State.EventSequence++
}

// ScheduleCommand implements the command-scheduling algorithm of spec.md
// section 4.D: assign tick = max(current+1, client_tick), reject a tick
// more than FutureTickCap ticks ahead, assign the next received_order,
// and push onto the pending min-heap. Returns the stamped
// CommandMessage (to be emitted as a CommandScheduled event) or a
// BadCommandError if the requested tick is too far in the future.
func (e *Engine) ScheduleCommand(cmd model.Command, userID uint32, clientTick uint32) (model.CommandMessage, error) {
	minTick := e.State.Tick + 1
	targetTick := clientTick
	if targetTick < minTick {
		targetTick = minTick
	}
	if targetTick > e.State.Tick+FutureTickCap {
		return model.CommandMessage{}, &model.BadCommandError{Reason: "scheduled tick too far in the future"}
	}
	msg := model.CommandMessage{
		Tick:          targetTick,
		ReceivedOrder: e.commandCounter,
		UserID:        userID,
		Command:       cmd,
	}
	e.commandCounter++
	heap.Push(&e.pending, msg)
	return msg, nil
}

// RunUntil advances the engine's timeline to the tick implied by nowMs,
// draining due pending commands at each tick boundary, and returns every
// event produced along the way (commit-only; no prediction). Used by
// predictor.Predictor.RunUntil for replay and headless bot play.
func (e *Engine) RunUntil(nowMs int64) []model.Event {
	targetTick := uint32(0)
	if nowMs > e.State.StartMs {
		targetTick = uint32((nowMs - e.State.StartMs) / int64(e.State.Properties.TickDurationMs))
	}
	return e.RunUntilTick(targetTick)
}

// RunUntilTick drives Tick commands (draining due pending commands at each
// boundary) until State.Tick reaches targetTick or the game completes.
// The predictor uses this directly, tick-indexed rather than wall-clock
// indexed, to replay deterministically up to an incoming event's tick.
func (e *Engine) RunUntilTick(targetTick uint32) []model.Event {
	var out []model.Event
	e.RunUntilTickWithCallback(targetTick, func(_ uint32, events []model.Event) {
		out = append(out, events...)
	})
	return out
}

// RunUntilTickWithCallback behaves like RunUntilTick but invokes onTick once
// per completed tick with that tick's resulting tick number and the events
// produced during it (including drained due commands), letting a caller
// that needs per-event tick attribution — the partition executor
// publishing EventMessages — avoid losing that information across a
// catch-up batch of several ticks.
func (e *Engine) RunUntilTickWithCallback(targetTick uint32, onTick func(tick uint32, events []model.Event)) {
	for e.State.Tick < targetTick {
		if e.State.Status.Kind == model.Complete {
			break
		}
		tickEvents, _ := e.ExecCommand(model.Command{Kind: model.CmdTick})
		tickEvents = append(tickEvents, e.drainDueCommands()...)
		onTick(e.State.Tick, tickEvents)
	}
}

// EnqueueScheduled pushes an already-stamped CommandMessage directly onto
// the pending heap, bypassing ScheduleCommand's tick computation. Used by
// the predictor to re-seed a committed or predicted engine with commands
// learned from CommandScheduled events or local speculative input, per
// spec.md section 4.B.
func (e *Engine) EnqueueScheduled(msg model.CommandMessage) {
	heap.Push(&e.pending, msg)
}

// ClonePending returns a snapshot of every command still waiting in the
// pending heap, in no particular order. The predictor uses this to seed a
// freshly forked predicted-state engine with the same "copy of
// pending_commands" the committed engine is holding.
func (e *Engine) ClonePending() []model.CommandMessage {
	out := make([]model.CommandMessage, len(e.pending))
	copy(out, e.pending)
	return out
}

// drainDueCommands pops every pending command scheduled for the current
// tick (dropping ones that target a tick already passed) and applies them,
// per spec.md section 4.D: "At each Tick phase, drain all heap entries
// whose tick equals current_tick ... and apply them before the next Tick."
func (e *Engine) drainDueCommands() []model.Event {
	var out []model.Event
	for e.pending.Len() > 0 {
		top := e.pending.Peek()
		if top.Tick > e.State.Tick {
			break
		}
		msg := heap.Pop(&e.pending).(model.CommandMessage)
		if msg.Tick < e.State.Tick {
			continue // stale: command targeted a tick already executed
		}
		evs, err := e.ExecCommand(msg.Command)
		if err != nil {
			continue // BadCommand: dropped with a warning by the caller's logger
		}
		out = append(out, evs...)
	}
	return out
}
