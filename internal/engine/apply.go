package engine

import "github.com/sonpython/gridmatch/internal/model"

// applyEvent is the single deterministic mutation function shared by
// ExecCommand (which generates and applies events in one step) and the
// public ApplyEvent (which applies events received from elsewhere, e.g. a
// replica consuming the authority's event stream). It never fails: every
// event it is asked to apply is assumed well-formed, matching the
// determinism contract in spec.md section 4.A.
func applyEvent(state *model.GameState, ev model.Event) {
	switch ev.Kind {
	case model.EvSnapshot:
		if ev.State != nil {
			*state = *ev.State.Clone()
		}

	case model.EvSnakeTurned:
		if s := state.Arena.SnakeByID(ev.SnakeID); s != nil {
			s.Facing = ev.Direction
		}

	case model.EvSnakeDied:
		if s := state.Arena.SnakeByID(ev.SnakeID); s != nil {
			s.Alive = false
		}

	case model.EvFoodSpawned:
		if !state.Arena.HasFood(ev.Position) {
			state.Arena.Food = append(state.Arena.Food, ev.Position)
		}

	case model.EvFoodEaten:
		if state.Arena.RemoveFood(ev.Position) {
			if s := state.Arena.SnakeByID(ev.SnakeID); s != nil {
				s.Growth++
				state.Scores[s.OwnerUID]++
			}
		}

	case model.EvPositionQueueUpdate:
		if s := state.Arena.SnakeByID(ev.SnakeID); s != nil {
			s.Positions = ev.Positions
		}

	case model.EvStatusUpdated:
		if ev.Status != nil {
			state.Status = *ev.Status
		}

	case model.EvCommandScheduled:
		// Informational only; replicas/predictor consume this from the
		// pending-command side, not by mutating GameState fields.
	}
}
