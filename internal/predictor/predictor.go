// Package predictor implements spec.md section 4.B's client-side
// prediction and reconciliation loop: a committed state kept in lockstep
// with the authority's event stream, and a predicted state advanced ahead
// of it using both confirmed scheduled commands and the caller's own
// unconfirmed local inputs.
//
// Grounded on original_source/client/src/lib.rs's GameClient wrapper and
// original_source/common/src/game_engine.rs's run_until, whose
// committed/predicted split and lagged-target-tick arithmetic this package
// reproduces against the current GameState/Engine API (the rest of that
// file targets an older, now-abandoned GameState shape and is not used as
// grounding beyond that one method).
package predictor

import (
	"github.com/sonpython/gridmatch/internal/engine"
	"github.com/sonpython/gridmatch/internal/model"
)

// Predictor owns one committed and one predicted Engine, both
// non-authoritative (no RNG), per spec.md's "replicas and clients run with
// rng_state=None" rule.
type Predictor struct {
	localPlayerID       uint32
	tickDurationMs      uint32
	committedStateLagMs uint32
	startMs             int64

	committed *engine.Engine
	predicted *engine.Engine

	unconfirmedLocal []model.CommandMessage
	localCounter     uint32
}

// NewFromSnapshot builds a Predictor whose committed and predicted states
// both start from state (typically the first Snapshot event received after
// joining a game).
func NewFromSnapshot(state *model.GameState, startMs int64, tickDurationMs, committedStateLagMs, localPlayerID uint32) *Predictor {
	state.Properties.TickDurationMs = tickDurationMs
	state.StartMs = startMs
	replica := state.Clone()
	replica.RNGState = nil
	p := &Predictor{
		localPlayerID:       localPlayerID,
		tickDurationMs:      tickDurationMs,
		committedStateLagMs: committedStateLagMs,
		startMs:             startMs,
		committed:           engine.NewFromState(replica),
	}
	p.predicted = engine.NewFromState(replica.Clone())
	return p
}

// CommittedState returns the last authoritative-confirmed state.
func (p *Predictor) CommittedState() *model.GameState { return p.committed.State }

// PredictedState returns the speculative state as of the last
// RebuildPredictedState call.
func (p *Predictor) PredictedState() *model.GameState { return p.predicted.State }

// ProcessServerEvent implements spec.md 4.B operation 1: advance
// committed_state to msg.Tick-1 by playing Tick commands deterministically
// (discarding the events that replay produces — the incoming stream is
// authoritative), then apply the event itself.
func (p *Predictor) ProcessServerEvent(msg model.EventMessage) {
	if msg.Event.Kind == model.EvSnapshot && msg.Event.State != nil {
		snap := msg.Event.State.Clone()
		snap.RNGState = nil
		p.committed = engine.NewFromState(snap)
		return
	}

	target := uint32(0)
	if msg.Tick > 0 {
		target = msg.Tick - 1
	}
	p.committed.RunUntilTick(target)
	p.committed.ApplyEvent(msg.Event)

	if msg.Event.Kind == model.EvCommandScheduled && msg.Event.Command != nil {
		p.committed.EnqueueScheduled(*msg.Event.Command)
		if msg.UserID != nil && *msg.UserID == p.localPlayerID {
			p.confirmLocal(*msg.Event.Command)
		}
	}
}

// confirmLocal drops the first unconfirmed local input matching the
// server's scheduled command by (tick, kind), per spec.md 4.B's
// "remove any matching unconfirmed local input" rule.
func (p *Predictor) confirmLocal(confirmed model.CommandMessage) {
	for i, m := range p.unconfirmedLocal {
		if m.Tick == confirmed.Tick && m.Command.Kind == confirmed.Command.Kind && m.Command.SnakeID == confirmed.Command.SnakeID {
			p.unconfirmedLocal = append(p.unconfirmedLocal[:i], p.unconfirmedLocal[i+1:]...)
			return
		}
	}
}

// ProcessLocalCommand implements spec.md 4.B operation 2: stamp cmd with
// the next predicted tick and a locally monotonic sequence number, record
// it as unconfirmed, and return the message to transmit to the authority.
func (p *Predictor) ProcessLocalCommand(cmd model.Command) model.CommandMessage {
	msg := model.CommandMessage{
		Tick:          p.predicted.State.Tick + 1,
		ReceivedOrder: p.localCounter,
		UserID:        p.localPlayerID,
		Command:       cmd,
	}
	p.localCounter++
	p.unconfirmedLocal = append(p.unconfirmedLocal, msg)
	return msg
}

// RebuildPredictedState implements spec.md 4.B operation 3. It first
// catches committed_state up to lagged_target_tick (the authoritative
// catch-up, using the committed engine's own pending schedule), then forks
// a predicted engine from the result and continues advancing it — using a
// copy of the committed pending schedule plus the still-unconfirmed local
// inputs — up to predicted_target_tick.
func (p *Predictor) RebuildPredictedState(nowMs int64) {
	predictedTarget := tickForTime(nowMs, p.startMs, p.tickDurationMs)

	lagTicks := uint32(0)
	if p.tickDurationMs > 0 {
		lagTicks = p.committedStateLagMs / p.tickDurationMs
	}
	laggedTarget := uint32(0)
	if predictedTarget > lagTicks {
		laggedTarget = predictedTarget - lagTicks
	}
	if laggedTarget < p.committed.State.Tick {
		laggedTarget = p.committed.State.Tick
	}
	p.committed.RunUntilTick(laggedTarget)

	// Commands whose tick has already passed are discarded silently.
	p.unconfirmedLocal = pruneStale(p.unconfirmedLocal, p.committed.State.Tick)

	p.predicted = engine.NewFromState(p.committed.State.Clone())
	for _, m := range p.committed.ClonePending() {
		p.predicted.EnqueueScheduled(m)
	}
	for _, m := range p.unconfirmedLocal {
		if m.Tick >= p.predicted.State.Tick {
			p.predicted.EnqueueScheduled(m)
		}
	}
	p.predicted.RunUntilTick(predictedTarget)
}

// RunUntil implements spec.md 4.B operation 4: advance committed_state only
// (no prediction), for replay and headless bot play.
func (p *Predictor) RunUntil(nowMs int64) []model.Event {
	return p.committed.RunUntil(nowMs)
}

func tickForTime(nowMs, startMs int64, tickDurationMs uint32) uint32 {
	if nowMs <= startMs || tickDurationMs == 0 {
		return 0
	}
	return uint32((nowMs - startMs) / int64(tickDurationMs))
}

func pruneStale(cmds []model.CommandMessage, committedTick uint32) []model.CommandMessage {
	out := cmds[:0]
	for _, m := range cmds {
		if m.Tick >= committedTick {
			out = append(out, m)
		}
	}
	return out
}
