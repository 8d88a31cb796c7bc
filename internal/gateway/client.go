package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sonpython/gridmatch/internal/matchmaking"
	"github.com/sonpython/gridmatch/internal/protocol"
)

// State is one of the four session states of spec.md section 4.H.
type State int

const (
	Unauthenticated State = iota
	Authenticated
	InGame
	Closed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	case InGame:
		return "in_game"
	default:
		return "closed"
	}
}

// sendBufferCapacity bounds a client's outbound queue. A slow reader
// gets disconnected rather than letting the hub block indefinitely on
// its behalf.
const sendBufferCapacity = 256

// Client is a single WebSocket session: one goroutine pumping reads,
// one pumping writes, coordinated by a send channel and a cancellable
// per-session context the rest of the gateway uses to tear down game
// subscriptions on disconnect or state transition.
type Client struct {
	SessionID string
	ws        *websocket.Conn
	send      chan protocol.ServerMessage
	log       *zap.Logger

	mu       sync.RWMutex
	state    State
	userID   uint32
	username string

	// gameCtx/gameCancel scope the goroutine forwarding one game's
	// events to this client; cancelled on disconnect or when the game
	// completes, and replaced on the next JoinGame.
	gameCtx    context.Context
	gameCancel context.CancelFunc

	// queuedLobby is the exact QueuedLobby payload last handed to
	// Queue.Enqueue, nil when not queued. Remove needs this same value
	// back (not just the lobby code) to ZREM the exact sorted-set member
	// it ZADD'd, per matchmaking.Queue.Remove's contract.
	queuedLobby *matchmaking.QueuedLobby

	currentGameID uint32
	lastSequence  uint64

	closeOnce sync.Once
	closed    bool
}

// newClient wraps an upgraded WebSocket connection.
func newClient(ws *websocket.Conn, log *zap.Logger) *Client {
	return &Client{
		SessionID: uuid.New().String(),
		ws:        ws,
		send:      make(chan protocol.ServerMessage, sendBufferCapacity),
		log:       log,
		state:     Unauthenticated,
	}
}

// State returns the client's current session state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// Identity returns the authenticated user id and display name, or
// (0, "", false) if the session hasn't authenticated yet.
func (c *Client) Identity() (uint32, string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == Unauthenticated {
		return 0, "", false
	}
	return c.userID, c.username, true
}

func (c *Client) authenticate(userID uint32, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.username = username
	c.state = Authenticated
}

// Send enqueues msg for delivery. Non-blocking: a full buffer closes the
// connection rather than stalling the caller. The closed check and the
// channel send share c.mu with Close so a send can never race a close of
// the same channel.
func (c *Client) Send(msg protocol.ServerMessage) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	select {
	case c.send <- msg:
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		c.log.Warn("client send buffer full, closing", zap.String("session_id", c.SessionID))
		c.Close()
	}
}

// Close shuts the connection down exactly once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.state = Closed
		if c.gameCancel != nil {
			c.gameCancel()
		}
		close(c.send)
		c.mu.Unlock()
		_ = c.ws.Close()
	})
}

func (c *Client) startGameSubscription(ctx context.Context) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gameCancel != nil {
		c.gameCancel()
	}
	gameCtx, cancel := context.WithCancel(ctx)
	c.gameCtx, c.gameCancel = gameCtx, cancel
	return gameCtx
}

func (c *Client) stopGameSubscription() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gameCancel != nil {
		c.gameCancel()
		c.gameCancel = nil
		c.gameCtx = nil
	}
}

// writePump drains the send channel to the socket until it closes.
// Mirrors the teacher's Conn.Send, generalized from a single ad hoc
// write call into a dedicated pump so writes never interleave with the
// read goroutine's error path.
func (c *Client) writePump() {
	for msg := range c.send {
		data, err := json.Marshal(msg)
		if err != nil {
			c.log.Error("failed to marshal outgoing message", zap.Error(err))
			continue
		}
		if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
