package engine

import "github.com/sonpython/gridmatch/internal/model"

// evaluateCompletion implements spec.md section 4.A step 9: decide whether
// the game has just concluded and, if so, build the GameStatus to emit.
// Returns ok=false when the game should keep running.
func (e *Engine) evaluateCompletion() (model.GameStatus, bool) {
	if e.State.Status.Kind == model.Complete {
		return model.GameStatus{}, false
	}

	alive := aliveSnakes(e.State.Arena.Snakes)

	tickCapped := e.State.Properties.TickCap > 0 && e.State.Tick >= e.State.Properties.TickCap

	switch e.State.Properties.GameType.Kind {
	case model.Solo:
		if len(alive) == 0 || tickCapped {
			return model.GameStatus{Kind: model.Complete}, true
		}
		return model.GameStatus{}, false

	case model.TeamMatch:
		teamsAlive := map[uint8]bool{}
		for _, s := range alive {
			if s.TeamID != nil {
				teamsAlive[*s.TeamID] = true
			}
		}
		if len(teamsAlive) <= 1 || tickCapped {
			return model.GameStatus{Kind: model.Complete, WinningSnakeID: soleSurvivor(alive)}, true
		}
		return model.GameStatus{}, false

	case model.FreeForAll:
		if len(alive) <= 1 || tickCapped {
			return model.GameStatus{Kind: model.Complete, WinningSnakeID: soleSurvivor(alive)}, true
		}
		return model.GameStatus{}, false

	default:
		return model.GameStatus{}, false
	}
}

func aliveSnakes(snakes []*model.Snake) []*model.Snake {
	var out []*model.Snake
	for _, s := range snakes {
		if s != nil && s.Alive {
			out = append(out, s)
		}
	}
	return out
}

// soleSurvivor returns a pointer to the single alive snake's id, or nil when
// zero or more than one snake remains (a draw, or a team win too coarse to
// attribute to one snake).
func soleSurvivor(alive []*model.Snake) *uint32 {
	if len(alive) != 1 {
		return nil
	}
	id := alive[0].ID
	return &id
}
