// Package protocol defines the session gateway's wire format: a framed
// JSON, tagged-kind protocol per spec.md section 6. Each frame is a
// single-key JSON object naming its kind; Ping/LeaveQueue/Shutdown/Pong
// carry a JSON null payload.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/sonpython/gridmatch/internal/model"
)

// ClientMessage is the tagged union of frames a session may send.
// Exactly one field is populated per message.
type ClientMessage struct {
	Token         *string               `json:"-"`
	QueueForMatch *QueueForMatchRequest `json:"-"`
	LeaveQueue    bool                  `json:"-"`
	JoinGame      *uint32               `json:"-"`
	GameCommand   *model.CommandMessage `json:"-"`
	Ping          bool                  `json:"-"`
}

// QueueForMatchRequest is the payload of a QueueForMatch client frame.
type QueueForMatchRequest struct {
	GameType  model.GameType  `json:"game_type"`
	QueueMode model.QueueMode `json:"queue_mode"`
}

func (m ClientMessage) MarshalJSON() ([]byte, error) {
	switch {
	case m.Token != nil:
		return json.Marshal(struct {
			Token string `json:"Token"`
		}{*m.Token})
	case m.QueueForMatch != nil:
		return json.Marshal(struct {
			QueueForMatch QueueForMatchRequest `json:"QueueForMatch"`
		}{*m.QueueForMatch})
	case m.LeaveQueue:
		return []byte(`{"LeaveQueue":null}`), nil
	case m.JoinGame != nil:
		return json.Marshal(struct {
			JoinGame uint32 `json:"JoinGame"`
		}{*m.JoinGame})
	case m.GameCommand != nil:
		return json.Marshal(struct {
			GameCommand model.CommandMessage `json:"GameCommand"`
		}{*m.GameCommand})
	case m.Ping:
		return []byte(`{"Ping":null}`), nil
	default:
		return nil, fmt.Errorf("protocol: empty client message")
	}
}

func (m *ClientMessage) UnmarshalJSON(data []byte) error {
	var wrapper struct {
		Token         *string               `json:"Token"`
		QueueForMatch *QueueForMatchRequest `json:"QueueForMatch"`
		LeaveQueue    json.RawMessage       `json:"LeaveQueue"`
		JoinGame      *uint32               `json:"JoinGame"`
		GameCommand   *model.CommandMessage `json:"GameCommand"`
		Ping          json.RawMessage       `json:"Ping"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	*m = ClientMessage{}
	switch {
	case wrapper.Token != nil:
		m.Token = wrapper.Token
	case wrapper.QueueForMatch != nil:
		m.QueueForMatch = wrapper.QueueForMatch
	case wrapper.LeaveQueue != nil:
		m.LeaveQueue = true
	case wrapper.JoinGame != nil:
		m.JoinGame = wrapper.JoinGame
	case wrapper.GameCommand != nil:
		m.GameCommand = wrapper.GameCommand
	case wrapper.Ping != nil:
		m.Ping = true
	default:
		return fmt.Errorf("protocol: unrecognized client message: %s", data)
	}
	return nil
}

// ServerMessage is the tagged union of frames the gateway sends.
type ServerMessage struct {
	JoinGame     *uint32               `json:"-"`
	MatchFound   *MatchFoundPayload    `json:"-"`
	QueueUpdate  *QueueUpdatePayload   `json:"-"`
	GameEvent    *model.EventMessage   `json:"-"`
	AccessDenied *AccessDeniedPayload  `json:"-"`
	Shutdown     bool                  `json:"-"`
	Pong         bool                  `json:"-"`
}

// MatchFoundPayload is the payload of a MatchFound server frame.
type MatchFoundPayload struct {
	GameID uint32 `json:"game_id"`
}

// QueueUpdatePayload is the payload of a QueueUpdate server frame.
type QueueUpdatePayload struct {
	Position             uint32 `json:"position"`
	EstimatedWaitSeconds uint32 `json:"estimated_wait_seconds"`
}

// AccessDeniedPayload is the payload of an AccessDenied server frame.
type AccessDeniedPayload struct {
	Reason string `json:"reason"`
}

func (m ServerMessage) MarshalJSON() ([]byte, error) {
	switch {
	case m.JoinGame != nil:
		return json.Marshal(struct {
			JoinGame uint32 `json:"JoinGame"`
		}{*m.JoinGame})
	case m.MatchFound != nil:
		return json.Marshal(struct {
			MatchFound MatchFoundPayload `json:"MatchFound"`
		}{*m.MatchFound})
	case m.QueueUpdate != nil:
		return json.Marshal(struct {
			QueueUpdate QueueUpdatePayload `json:"QueueUpdate"`
		}{*m.QueueUpdate})
	case m.GameEvent != nil:
		return json.Marshal(struct {
			GameEvent model.EventMessage `json:"GameEvent"`
		}{*m.GameEvent})
	case m.AccessDenied != nil:
		return json.Marshal(struct {
			AccessDenied AccessDeniedPayload `json:"AccessDenied"`
		}{*m.AccessDenied})
	case m.Shutdown:
		return []byte(`{"Shutdown":null}`), nil
	case m.Pong:
		return []byte(`{"Pong":null}`), nil
	default:
		return nil, fmt.Errorf("protocol: empty server message")
	}
}

func (m *ServerMessage) UnmarshalJSON(data []byte) error {
	var wrapper struct {
		JoinGame     *uint32               `json:"JoinGame"`
		MatchFound   *MatchFoundPayload    `json:"MatchFound"`
		QueueUpdate  *QueueUpdatePayload   `json:"QueueUpdate"`
		GameEvent    *model.EventMessage   `json:"GameEvent"`
		AccessDenied *AccessDeniedPayload  `json:"AccessDenied"`
		Shutdown     json.RawMessage       `json:"Shutdown"`
		Pong         json.RawMessage       `json:"Pong"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	*m = ServerMessage{}
	switch {
	case wrapper.JoinGame != nil:
		m.JoinGame = wrapper.JoinGame
	case wrapper.MatchFound != nil:
		m.MatchFound = wrapper.MatchFound
	case wrapper.QueueUpdate != nil:
		m.QueueUpdate = wrapper.QueueUpdate
	case wrapper.GameEvent != nil:
		m.GameEvent = wrapper.GameEvent
	case wrapper.AccessDenied != nil:
		m.AccessDenied = wrapper.AccessDenied
	case wrapper.Shutdown != nil:
		m.Shutdown = true
	case wrapper.Pong != nil:
		m.Pong = true
	default:
		return fmt.Errorf("protocol: unrecognized server message: %s", data)
	}
	return nil
}

// Convenience constructors, matching the shape callers want at each
// publish site in internal/gateway.

func ServerJoinGame(gameID uint32) ServerMessage { return ServerMessage{JoinGame: &gameID} }

func ServerMatchFound(gameID uint32) ServerMessage {
	return ServerMessage{MatchFound: &MatchFoundPayload{GameID: gameID}}
}

func ServerQueueUpdate(position, estimatedWaitSeconds uint32) ServerMessage {
	return ServerMessage{QueueUpdate: &QueueUpdatePayload{Position: position, EstimatedWaitSeconds: estimatedWaitSeconds}}
}

func ServerGameEvent(msg model.EventMessage) ServerMessage { return ServerMessage{GameEvent: &msg} }

func ServerAccessDenied(reason string) ServerMessage {
	return ServerMessage{AccessDenied: &AccessDeniedPayload{Reason: reason}}
}

func ServerShutdown() ServerMessage { return ServerMessage{Shutdown: true} }

func ServerPong() ServerMessage { return ServerMessage{Pong: true} }
