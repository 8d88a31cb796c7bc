package model

import (
	"encoding/json"
	"strconv"
)

// GameTypeKind tags the variants of GameType.
type GameTypeKind int

const (
	Solo GameTypeKind = iota
	TeamMatch
	FreeForAll
)

// GameType is a tagged union: Solo, TeamMatch{per_team}, or
// FreeForAll{max_players}. Duel is TeamMatch{PerTeam: 1}.
type GameType struct {
	Kind       GameTypeKind `json:"-"`
	PerTeam    uint8        `json:"per_team,omitempty"`
	MaxPlayers uint8        `json:"max_players,omitempty"`
}

// IsDuel reports whether this game type is the two-team, one-per-team duel.
func (g GameType) IsDuel() bool {
	return g.Kind == TeamMatch && g.PerTeam == 1
}

// PlayerCount returns the number of players a match of this type seats.
func (g GameType) PlayerCount() int {
	switch g.Kind {
	case Solo:
		return 1
	case TeamMatch:
		return 2 * int(g.PerTeam)
	case FreeForAll:
		return int(g.MaxPlayers)
	default:
		return 0
	}
}

// MarshalJSON renders GameType per spec.md section 6:
//
//	"Solo" | {"TeamMatch":{"per_team":u8}} | {"FreeForAll":{"max_players":u8}}
func (g GameType) MarshalJSON() ([]byte, error) {
	switch g.Kind {
	case Solo:
		return []byte(`"Solo"`), nil
	case TeamMatch:
		return []byte(`{"TeamMatch":{"per_team":` + strconv.Itoa(int(g.PerTeam)) + `}}`), nil
	case FreeForAll:
		return []byte(`{"FreeForAll":{"max_players":` + strconv.Itoa(int(g.MaxPlayers)) + `}}`), nil
	default:
		return []byte(`"Solo"`), nil
	}
}

// UnmarshalJSON parses the tagged-union shapes documented above.
func (g *GameType) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == `"Solo"` {
		*g = GameType{Kind: Solo}
		return nil
	}
	var wrapper struct {
		TeamMatch *struct {
			PerTeam uint8 `json:"per_team"`
		} `json:"TeamMatch"`
		FreeForAll *struct {
			MaxPlayers uint8 `json:"max_players"`
		} `json:"FreeForAll"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	switch {
	case wrapper.TeamMatch != nil:
		*g = GameType{Kind: TeamMatch, PerTeam: wrapper.TeamMatch.PerTeam}
	case wrapper.FreeForAll != nil:
		*g = GameType{Kind: FreeForAll, MaxPlayers: wrapper.FreeForAll.MaxPlayers}
	default:
		return &BadCommandError{Reason: "unrecognized game type: " + s}
	}
	return nil
}

// QueueMode selects the matchmaking pool a lobby queues into.
type QueueMode int

const (
	Quickmatch QueueMode = iota
	Competitive
)

func (m QueueMode) String() string {
	if m == Competitive {
		return "Competitive"
	}
	return "Quickmatch"
}

func (m QueueMode) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *QueueMode) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"Competitive"`:
		*m = Competitive
	case `"Quickmatch"`:
		*m = Quickmatch
	default:
		return &BadCommandError{Reason: "unknown queue mode: " + string(data)}
	}
	return nil
}

// GameStatusKind tags GameStatus's variants.
type GameStatusKind int

const (
	Stopped GameStatusKind = iota
	Started
	Complete
)

// GameStatus is Stopped, Started{server_id}, or Complete{winning_snake_id?}.
type GameStatus struct {
	Kind            GameStatusKind `json:"kind"`
	ServerID        string         `json:"server_id,omitempty"`
	WinningSnakeID  *uint32        `json:"winning_snake_id,omitempty"`
}
