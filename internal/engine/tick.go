package engine

import (
	"sort"

	"github.com/sonpython/gridmatch/internal/model"
)

// tick executes spec.md section 4.A's nine-step Tick semantics and returns
// every event produced, already applied to e.State.
func (e *Engine) tick() ([]model.Event, error) {
	var out []model.Event

	// Step 1: seed replicas with a full snapshot on the very first tick.
	if e.State.Tick == 0 {
		out = append(out, e.emit(model.Snapshot(e.State.Clone())))
	}

	// Step 2: snapshot old snake bodies so crashed snakes can be reverted.
	oldSnakes := make(map[uint32]*model.Snake, len(e.State.Arena.Snakes))
	for _, s := range e.State.Arena.Snakes {
		if s != nil {
			oldSnakes[s.ID] = s.Clone()
		}
	}

	// Step 3: advance every alive snake one cell; shrink the tail unless a
	// growth credit is pending.
	for _, s := range e.State.Arena.Snakes {
		if s == nil || !s.Alive {
			continue
		}
		newHead := s.Head().Add(s.Facing.Vector())
		if s.Growth > 0 {
			s.Growth--
			s.Body = append([]model.Position{newHead}, s.Body...)
		} else {
			s.Body = append([]model.Position{newHead}, s.Body[:len(s.Body)-1]...)
		}
	}

	// Step 4: collision detection against other alive snakes' post-step
	// bodies and arena bounds. Self-collision is not checked here: moving
	// into one's own body is never fatal in this engine (see DESIGN.md's
	// Open Question decision, grounded on original_source's
	// collision loop, which explicitly skips snake_id == other_snake_id).
	var crashed []uint32
	for _, s := range e.State.Arena.Snakes {
		if s == nil || !s.Alive {
			continue
		}
		head := s.Head()
		if !head.InBounds(e.State.Arena.Width, e.State.Arena.Height) {
			crashed = append(crashed, s.ID)
			continue
		}
		id := s.ID
		if e.State.Arena.AnyAliveSnakeOccupies(head, &id) {
			crashed = append(crashed, s.ID)
		}
	}

	// Step 5: revert crashed snakes' bodies to their pre-step shape and
	// emit SnakeDied in ascending snake_id order. Ties (head-on-head) kill
	// both participants naturally: each snake's post-step head lands on
	// the other's still-present former-head segment.
	sort.Slice(crashed, func(i, j int) bool { return crashed[i] < crashed[j] })
	for _, id := range crashed {
		if old, ok := oldSnakes[id]; ok {
			if s := e.State.Arena.SnakeByID(id); s != nil {
				s.Body = old.Body
			}
		}
		out = append(out, e.emit(model.SnakeDied(id)))
	}

	// Step 6: surviving snakes whose new head sits on food eat it, in
	// ascending snake_id order. Ties on the same food cell resolve to the
	// lower snake_id because RemoveFood is idempotent — a later snake's
	// attempt on an already-removed cell is silently a no-op.
	var fedIDs []uint32
	for _, s := range e.State.Arena.Snakes {
		if s == nil || !s.Alive {
			continue
		}
		if e.State.Arena.HasFood(s.Head()) {
			fedIDs = append(fedIDs, s.ID)
		}
	}
	sort.Slice(fedIDs, func(i, j int) bool { return fedIDs[i] < fedIDs[j] })
	for _, id := range fedIDs {
		s := e.State.Arena.SnakeByID(id)
		if s == nil || !s.Alive {
			continue
		}
		pos := s.Head()
		if !e.State.Arena.HasFood(pos) {
			continue
		}
		out = append(out, e.emit(model.FoodEaten(id, pos)))
	}

	// Step 7: authoritative food spawn. While food is below target, one
	// candidate (two RNG words: x, then y) is drawn and RNGState advanced
	// on every tick regardless of hit or miss, so every node advances the
	// same number of draws (the third Open Question in spec.md section 9).
	// No draw is made on a tick that starts with food already at target.
	if e.rng != nil && len(e.State.Arena.Food) < e.State.Properties.TargetFoodCount {
		candidate := model.Position{
			X: e.rng.intn(e.State.Arena.Width),
			Y: e.rng.intn(e.State.Arena.Height),
		}
		snap := e.rng.snapshot()
		e.State.RNGState = &snap
		if !e.State.Arena.HasFood(candidate) && !e.State.Arena.AnyAliveSnakeOccupies(candidate, nil) {
			out = append(out, e.emit(model.FoodSpawned(candidate)))
		}
	}

	// Step 8: increment tick.
	e.State.Tick++

	// Step 9: evaluate win/loss.
	if status, ok := e.evaluateCompletion(); ok {
		out = append(out, e.emit(model.StatusUpdated(status)))
	}

	return out, nil
}

// turn rejects (no event) a Turn that targets a dead snake, the current
// direction, or its direct opposite; otherwise emits SnakeTurned.
func (e *Engine) turn(snakeID uint32, dir model.Direction) ([]model.Event, error) {
	s := e.State.Arena.SnakeByID(snakeID)
	if s == nil {
		return nil, &model.BadCommandError{Reason: "snake not found"}
	}
	if !s.Alive || dir == s.Facing || dir == s.Facing.Opposite() {
		return nil, nil
	}
	return []model.Event{e.emit(model.SnakeTurned(snakeID, dir))}, nil
}

// positionQueueReplace unconditionally replaces the queued positions for an
// alive snake; a dead snake silently rejects, mirroring Turn's style.
func (e *Engine) positionQueueReplace(snakeID uint32, positions []model.Position) ([]model.Event, error) {
	s := e.State.Arena.SnakeByID(snakeID)
	if s == nil {
		return nil, &model.BadCommandError{Reason: "snake not found"}
	}
	if !s.Alive {
		return nil, nil
	}
	return []model.Event{e.emit(model.PositionQueueUpdate(snakeID, positions))}, nil
}
