package model

// GameProperties holds the per-game configuration fixed at creation time.
type GameProperties struct {
	TickDurationMs  uint32   `json:"tick_duration_ms"`
	TargetFoodCount int      `json:"target_food_count"`
	Width           int32    `json:"width"`
	Height          int32    `json:"height"`
	GameType        GameType `json:"game_type"`
	QueueMode       QueueMode `json:"queue_mode"`
	Seed            uint64   `json:"seed"`
	TickCap         uint32   `json:"tick_cap,omitempty"`
}

// GameState is the full authoritative (or replica) state of one match.
//
// RNGState is present only on the authoritative state; replicas and clients
// run with RNGState == nil and therefore never draw food-spawn events
// locally — they receive FoodSpawned from the authority.
type GameState struct {
	GameID        uint32          `json:"game_id"`
	Tick          uint32          `json:"tick"`
	Arena         Arena           `json:"arena"`
	Players       map[uint32]*Player `json:"players"`
	Scores        map[uint32]int  `json:"scores"`
	TeamScores    map[uint8]int   `json:"team_scores,omitempty"`
	Properties    GameProperties  `json:"properties"`
	Status        GameStatus      `json:"status"`
	EventSequence uint64          `json:"event_sequence"`
	RNGState      *uint64         `json:"rng_state,omitempty"`
	StartMs       int64           `json:"start_ms"`
}

// Clone returns a deep copy of the state, suitable as the basis for a
// predicted-state fork or a replica snapshot application.
func (s *GameState) Clone() *GameState {
	out := &GameState{
		GameID:        s.GameID,
		Tick:          s.Tick,
		Properties:    s.Properties,
		Status:        s.Status,
		EventSequence: s.EventSequence,
		StartMs:       s.StartMs,
	}
	out.Arena = Arena{
		Width:  s.Arena.Width,
		Height: s.Arena.Height,
	}
	out.Arena.Food = append([]Position(nil), s.Arena.Food...)
	out.Arena.Snakes = make([]*Snake, len(s.Arena.Snakes))
	for i, sn := range s.Arena.Snakes {
		if sn != nil {
			out.Arena.Snakes[i] = sn.Clone()
		}
	}
	if s.Arena.TeamZone != nil {
		tz := *s.Arena.TeamZone
		out.Arena.TeamZone = &tz
	}
	out.Players = make(map[uint32]*Player, len(s.Players))
	for k, v := range s.Players {
		p := *v
		out.Players[k] = &p
	}
	out.Scores = make(map[uint32]int, len(s.Scores))
	for k, v := range s.Scores {
		out.Scores[k] = v
	}
	if s.TeamScores != nil {
		out.TeamScores = make(map[uint8]int, len(s.TeamScores))
		for k, v := range s.TeamScores {
			out.TeamScores[k] = v
		}
	}
	if s.RNGState != nil {
		v := *s.RNGState
		out.RNGState = &v
	}
	return out
}

// CommandKind tags the Command union.
type CommandKind int

const (
	CmdTick CommandKind = iota
	CmdTurn
	CmdPositionQueueReplace
	CmdRequestSnapshot
)

// Command is the tagged union the engine consumes: Tick, Turn,
// PositionQueueReplace, RequestSnapshot.
type Command struct {
	Kind      CommandKind `json:"kind"`
	SnakeID   uint32      `json:"snake_id,omitempty"`
	Direction Direction   `json:"direction,omitempty"`
	Positions []Position  `json:"positions,omitempty"`
}

// CommandMessage wraps a Command with its scheduling metadata. Total order:
// lower Tick first, then lower ReceivedOrder.
type CommandMessage struct {
	Tick          uint32  `json:"tick"`
	ReceivedOrder uint32  `json:"received_order"`
	UserID        uint32  `json:"user_id"`
	Command       Command `json:"command"`
}

// Less implements the CommandMessage total order used by the pending-command
// min-heap: lower tick first, then lower received_order.
func (c CommandMessage) Less(other CommandMessage) bool {
	if c.Tick != other.Tick {
		return c.Tick < other.Tick
	}
	return c.ReceivedOrder < other.ReceivedOrder
}
