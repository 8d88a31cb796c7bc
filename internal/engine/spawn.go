package engine

import "github.com/sonpython/gridmatch/internal/model"

// InitialBodyLength is how many segments a freshly spawned snake has.
const InitialBodyLength = 3

// SpawnMargin keeps spawn heads this many cells away from the arena edge so
// the initial body (extended opposite its facing) always fits in bounds.
const SpawnMargin = 2

// spawnAttempts bounds how many candidate cells are tried before giving up
// on placing a snake without overlap; a well-sized arena never exhausts it.
const spawnAttempts = 200

// SpawnRequest describes one seat to fill when a game is created.
type SpawnRequest struct {
	UserID      uint32
	DisplayName string
	Team        *uint8
}

// Spawn places one snake per request into a freshly created (tick==0, no
// snakes yet) Engine's arena, assigning ascending SnakeIDs so SnakeByID's
// id-as-index invariant holds, and records the matching Player entries.
// Positions are drawn from the authoritative RNG the same way spawnInitialFood
// draws food in the teacher's world, adapted from continuous-coordinate
// sampling to rejection sampling over discrete cells clear of every other
// snake's body. Spawn is only ever called by the authority (Engine.rng !=
// nil); replicas receive the resulting Snapshot event instead.
func (e *Engine) Spawn(requests []SpawnRequest) error {
	if e.rng == nil {
		return &model.BadCommandError{Reason: "spawn requires an authoritative engine"}
	}
	arena := &e.State.Arena
	for i, req := range requests {
		id := uint32(i)
		facing := model.Direction(e.rng.intn(4))
		head, ok := e.findSpawnCell(arena, facing)
		if !ok {
			return &model.PostConditionError{Reason: "no free spawn cell found"}
		}
		body := make([]model.Position, InitialBodyLength)
		step := facing.Opposite().Vector()
		pos := head
		for j := 0; j < InitialBodyLength; j++ {
			body[j] = pos
			pos = pos.Add(step)
		}
		snake := &model.Snake{
			ID:       id,
			OwnerUID: req.UserID,
			Body:     body,
			Facing:   facing,
			Alive:    true,
			TeamID:   req.Team,
		}
		arena.Snakes = append(arena.Snakes, snake)
		e.State.Players[req.UserID] = &model.Player{
			UserID:      req.UserID,
			SnakeID:     id,
			DisplayName: req.DisplayName,
			Team:        req.Team,
		}
		e.State.Scores[req.UserID] = 0
	}
	return nil
}

// findSpawnCell rejection-samples a head position at least SpawnMargin cells
// from the arena edge (so the initial body, extended opposite facing, stays
// in bounds) and clear of every already-placed snake's body.
func (e *Engine) findSpawnCell(arena *model.Arena, facing model.Direction) (model.Position, bool) {
	lowX, highX := SpawnMargin, arena.Width-SpawnMargin
	lowY, highY := SpawnMargin, arena.Height-SpawnMargin
	if lowX >= highX || lowY >= highY {
		lowX, highX = 0, arena.Width
		lowY, highY = 0, arena.Height
	}
	span := highX - lowX
	spanY := highY - lowY
	for attempt := 0; attempt < spawnAttempts; attempt++ {
		candidate := model.Position{
			X: lowX + e.rng.intn(span),
			Y: lowY + e.rng.intn(spanY),
		}
		if !candidate.InBounds(arena.Width, arena.Height) {
			continue
		}
		if arena.AnyAliveSnakeOccupies(candidate, nil) || arena.HasFood(candidate) {
			continue
		}
		return candidate, true
	}
	return model.Position{}, false
}
