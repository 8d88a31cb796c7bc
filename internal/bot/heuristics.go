package bot

import (
	"math/rand"

	"github.com/sonpython/gridmatch/internal/model"
)

var allDirections = [4]model.Direction{model.Up, model.Down, model.Left, model.Right}

// decide picks the next facing for snake, in priority order: stay in
// bounds, avoid an imminent collision, steer toward the nearest
// reachable food, otherwise keep heading (occasionally picking a new
// random safe heading to avoid an infinite straight line into nothing).
// Mirrors the teacher's decideBotInput priority ladder, discretized.
func decide(rng *rand.Rand, arena *model.Arena, snake *model.Snake) model.Direction {
	head := snake.Head()
	safe := safeDirections(arena, snake, head)
	if len(safe) == 0 {
		return snake.Facing
	}

	if dir, ok := pickAwayFromDanger(arena, snake, head, safe); ok {
		return dir
	}

	if dir, ok := seekFood(arena, head, safe); ok {
		return dir
	}

	if containsDirection(safe, snake.Facing) && rng.Float64() >= WanderChangeChance {
		return snake.Facing
	}
	return safe[rng.Intn(len(safe))]
}

// safeDirections returns every direction that doesn't immediately
// reverse into the snake's own neck and whose next cell is in bounds
// and unoccupied.
func safeDirections(arena *model.Arena, snake *model.Snake, head model.Position) []model.Direction {
	var out []model.Direction
	for _, dir := range allDirections {
		if len(snake.Body) > 1 && dir == snake.Facing.Opposite() {
			continue
		}
		next := head.Add(dir.Vector())
		if !next.InBounds(arena.Width, arena.Height) {
			continue
		}
		if occupied(arena, next) {
			continue
		}
		out = append(out, dir)
	}
	return out
}

// pickAwayFromDanger steers toward whichever safe direction has the most
// open space ahead within DangerRadius, the discrete analog of the
// teacher's body-proximity turn-away rule. Only engages when the
// snake's current facing runs into danger within that radius.
func pickAwayFromDanger(arena *model.Arena, snake *model.Snake, head model.Position, safe []model.Direction) (model.Direction, bool) {
	if openRun(arena, head, snake.Facing) >= DangerRadius {
		return model.Up, false
	}
	best := safe[0]
	bestRun := -1
	for _, dir := range safe {
		run := openRun(arena, head, dir)
		if run > bestRun {
			bestRun, best = run, dir
		}
	}
	return best, true
}

// openRun counts consecutive unoccupied, in-bounds cells starting one
// step from pos in direction dir, capped at DangerRadius.
func openRun(arena *model.Arena, pos model.Position, dir model.Direction) int {
	cur := pos
	for i := 0; i < DangerRadius; i++ {
		cur = cur.Add(dir.Vector())
		if !cur.InBounds(arena.Width, arena.Height) || occupied(arena, cur) {
			return i
		}
	}
	return DangerRadius
}

// seekFood finds the nearest food within FoodSeekRadius and returns the
// safe direction that most reduces Manhattan distance to it.
func seekFood(arena *model.Arena, head model.Position, safe []model.Direction) (model.Direction, bool) {
	var target model.Position
	bestDist := FoodSeekRadius + 1
	found := false
	for _, f := range arena.Food {
		d := manhattan(head, f)
		if d < bestDist {
			bestDist, target, found = d, f, true
		}
	}
	if !found {
		return model.Up, false
	}

	bestDir := safe[0]
	bestAfter := manhattan(head.Add(bestDir.Vector()), target)
	for _, dir := range safe[1:] {
		after := manhattan(head.Add(dir.Vector()), target)
		if after < bestAfter {
			bestAfter, bestDir = after, dir
		}
	}
	return bestDir, true
}

func occupied(arena *model.Arena, pos model.Position) bool {
	return arena.AnyAliveSnakeOccupies(pos, nil)
}

func manhattan(a, b model.Position) int {
	dx := int(a.X - b.X)
	dy := int(a.Y - b.Y)
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

func containsDirection(dirs []model.Direction, d model.Direction) bool {
	for _, x := range dirs {
		if x == d {
			return true
		}
	}
	return false
}
