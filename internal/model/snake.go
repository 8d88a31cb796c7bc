package model

// Snake is an ordered body (head at index 0, tail last), with a facing
// direction, liveness, optional team, growth credit, and owning player.
//
// Invariant: consecutive body positions are grid-adjacent; body positions
// are unique within a snake. Callers that mutate Body directly (engine
// internals only) must preserve this.
type Snake struct {
	ID        uint32     `json:"id"`
	OwnerUID  uint32     `json:"owner_user_id"`
	Body      []Position `json:"body"`
	Facing    Direction  `json:"facing"`
	Alive     bool       `json:"alive"`
	TeamID    *uint8     `json:"team_id,omitempty"`
	Growth    uint32     `json:"growth"`
	Positions []Position `json:"-"` // queued positions for PositionQueueReplace, not serialized in snapshots
}

// Head returns the snake's head position. Callers must not call this on an
// empty body; the engine never produces one.
func (s *Snake) Head() Position {
	return s.Body[0]
}

// Clone returns a deep copy suitable for the old-bodies snapshot taken at
// the start of each tick.
func (s *Snake) Clone() *Snake {
	body := make([]Position, len(s.Body))
	copy(body, s.Body)
	var team *uint8
	if s.TeamID != nil {
		t := *s.TeamID
		team = &t
	}
	return &Snake{
		ID:       s.ID,
		OwnerUID: s.OwnerUID,
		Body:     body,
		Facing:   s.Facing,
		Alive:    s.Alive,
		TeamID:   team,
		Growth:   s.Growth,
	}
}

// Occupies reports whether any body segment of the snake sits at pos.
func (s *Snake) Occupies(pos Position) bool {
	for _, seg := range s.Body {
		if seg == pos {
			return true
		}
	}
	return false
}

// Player maps an external user id to its in-game assignment.
type Player struct {
	UserID      uint32  `json:"user_id"`
	SnakeID     uint32  `json:"snake_id"`
	DisplayName string  `json:"display_name"`
	Team        *uint8  `json:"team,omitempty"`
}

// TeamZoneConfig describes a symmetric end-zone for team modes.
type TeamZoneConfig struct {
	EndZoneDepth int32 `json:"end_zone_depth"`
	GoalWidth    int32 `json:"goal_width"`
}

// Arena holds the grid dimensions, food, and the stable-indexed snake list.
type Arena struct {
	Width    int32        `json:"width"`
	Height   int32        `json:"height"`
	Food     []Position   `json:"food"`
	Snakes   []*Snake     `json:"snakes"`
	TeamZone *TeamZoneConfig `json:"team_zone,omitempty"`
}

// HasFood reports whether a food item sits at pos.
func (a *Arena) HasFood(pos Position) bool {
	for _, f := range a.Food {
		if f == pos {
			return true
		}
	}
	return false
}

// RemoveFood deletes the food item at pos, if present, and reports whether
// it removed anything.
func (a *Arena) RemoveFood(pos Position) bool {
	for i, f := range a.Food {
		if f == pos {
			a.Food = append(a.Food[:i], a.Food[i+1:]...)
			return true
		}
	}
	return false
}

// SnakeByID returns the snake with the given id, or nil.
func (a *Arena) SnakeByID(id uint32) *Snake {
	if int(id) < 0 || int(id) >= len(a.Snakes) {
		return nil
	}
	return a.Snakes[id]
}

// AnyAliveSnakeOccupies reports whether any living snake (other than
// excludeID when excludeID != nil) occupies pos.
func (a *Arena) AnyAliveSnakeOccupies(pos Position, excludeID *uint32) bool {
	for _, s := range a.Snakes {
		if s == nil || !s.Alive {
			continue
		}
		if excludeID != nil && s.ID == *excludeID {
			continue
		}
		if s.Occupies(pos) {
			return true
		}
	}
	return false
}
