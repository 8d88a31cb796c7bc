package model

// EventKind tags the Event union.
type EventKind int

const (
	EvSnakeTurned EventKind = iota
	EvSnakeDied
	EvFoodSpawned
	EvFoodEaten
	EvPositionQueueUpdate
	EvSnapshot
	EvCommandScheduled
	EvStatusUpdated
)

// Event is the tagged union the engine emits and replicas apply.
type Event struct {
	Kind      EventKind       `json:"kind"`
	SnakeID   uint32          `json:"snake_id,omitempty"`
	Direction Direction       `json:"direction,omitempty"`
	Position  Position        `json:"position,omitempty"`
	Positions []Position      `json:"positions,omitempty"`
	State     *GameState      `json:"state,omitempty"`
	Command   *CommandMessage `json:"command,omitempty"`
	Status    *GameStatus     `json:"status,omitempty"`
}

// SnakeTurned builds a SnakeTurned event.
func SnakeTurned(snakeID uint32, dir Direction) Event {
	return Event{Kind: EvSnakeTurned, SnakeID: snakeID, Direction: dir}
}

// SnakeDied builds a SnakeDied event.
func SnakeDied(snakeID uint32) Event {
	return Event{Kind: EvSnakeDied, SnakeID: snakeID}
}

// FoodSpawned builds a FoodSpawned event.
func FoodSpawned(pos Position) Event {
	return Event{Kind: EvFoodSpawned, Position: pos}
}

// FoodEaten builds a FoodEaten event.
func FoodEaten(snakeID uint32, pos Position) Event {
	return Event{Kind: EvFoodEaten, SnakeID: snakeID, Position: pos}
}

// PositionQueueUpdate builds a PositionQueueUpdate event.
func PositionQueueUpdate(snakeID uint32, positions []Position) Event {
	return Event{Kind: EvPositionQueueUpdate, SnakeID: snakeID, Positions: positions}
}

// Snapshot builds a Snapshot event carrying a full state copy.
func Snapshot(state *GameState) Event {
	return Event{Kind: EvSnapshot, State: state}
}

// CommandScheduled builds a CommandScheduled event.
func CommandScheduled(cmd CommandMessage) Event {
	return Event{Kind: EvCommandScheduled, Command: &cmd}
}

// StatusUpdated builds a StatusUpdated event.
func StatusUpdated(status GameStatus) Event {
	return Event{Kind: EvStatusUpdated, Status: &status}
}

// EventMessage is an Event addressed to a specific game, tick, and
// sequence, optionally attributed to a user.
type EventMessage struct {
	GameID   uint32  `json:"game_id"`
	Tick     uint32  `json:"tick"`
	Sequence uint64  `json:"sequence"`
	UserID   *uint32 `json:"user_id,omitempty"`
	Event    Event   `json:"event"`
}

// Less orders EventMessages by (tick, sequence), the order reconciliation
// must apply them in.
func (m EventMessage) Less(other EventMessage) bool {
	if m.Tick != other.Tick {
		return m.Tick < other.Tick
	}
	return m.Sequence < other.Sequence
}
