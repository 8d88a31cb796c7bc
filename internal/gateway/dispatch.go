package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sonpython/gridmatch/internal/matchmaking"
	"github.com/sonpython/gridmatch/internal/model"
	"github.com/sonpython/gridmatch/internal/protocol"
	"github.com/sonpython/gridmatch/internal/pubsub"
)

// dispatch routes one decoded client frame through the session state
// machine of spec.md section 4.H: Unauthenticated -> Authenticated ->
// InGame -> (Authenticated|Closed).
func (h *Hub) dispatch(ctx context.Context, c *Client, msg protocol.ClientMessage) {
	switch {
	case msg.Token != nil:
		h.handleToken(ctx, c, *msg.Token)
	case msg.Ping:
		c.Send(protocol.ServerPong())
	case msg.QueueForMatch != nil:
		h.handleQueueForMatch(ctx, c, *msg.QueueForMatch)
	case msg.LeaveQueue:
		h.handleLeaveQueue(ctx, c)
	case msg.JoinGame != nil:
		h.handleJoinGame(ctx, c, *msg.JoinGame)
	case msg.GameCommand != nil:
		h.handleGameCommand(ctx, c, *msg.GameCommand)
	}
}

func (h *Hub) handleToken(ctx context.Context, c *Client, token string) {
	if c.State() != Unauthenticated {
		return
	}
	userID, username, err := h.Auth.Authenticate(ctx, token)
	if err != nil {
		c.Send(protocol.ServerAccessDenied("invalid token"))
		c.Close()
		return
	}
	c.authenticate(userID, username)
	h.startNotificationForwarder(ctx, c)
}

// startNotificationForwarder subscribes the now-authenticated session to
// its per-user matchmaking notification channel for the lifetime of the
// connection, forwarding a MatchFound followed by a server-instructed
// JoinGame per spec.md section 6's server message table.
func (h *Hub) startNotificationForwarder(ctx context.Context, c *Client) {
	if h.Notifier == nil {
		return
	}
	notifyCh, closeFn, err := h.Notifier.Subscribe(ctx, c.userID)
	if err != nil {
		h.Log.Warn("failed to subscribe to match notifications", zap.Uint32("user_id", c.userID), zap.Error(err))
		return
	}
	go func() {
		defer closeFn()
		for {
			select {
			case <-ctx.Done():
				return
			case note, ok := <-notifyCh:
				if !ok {
					return
				}
				c.Send(protocol.ServerMatchFound(note.GameID))
				c.Send(protocol.ServerJoinGame(note.GameID))
			}
		}
	}()
}

func (h *Hub) handleQueueForMatch(ctx context.Context, c *Client, req protocol.QueueForMatchRequest) {
	userID, username, ok := c.Identity()
	if !ok {
		c.Send(protocol.ServerAccessDenied("authenticate first"))
		return
	}
	if c.State() == InGame {
		c.Send(protocol.ServerAccessDenied("already in a game"))
		return
	}

	mmr := DefaultMMR
	if h.MMR != nil {
		if v, err := h.MMR.MMR(ctx, userID); err == nil {
			mmr = v
		}
	}

	lobbyCode := uuid.New().String()
	lobby := matchmaking.QueuedLobby{
		LobbyCode:        lobbyCode,
		Members:          []matchmaking.LobbyMember{{UserID: userID, Username: username, MMR: mmr}},
		AvgMMR:           mmr,
		GameType:         req.GameType,
		QueueMode:        req.QueueMode,
		QueuedAtMs:       time.Now().UnixMilli(),
		RequestingUserID: userID,
	}
	if err := h.Queue.Enqueue(ctx, lobby); err != nil {
		h.Log.Warn("failed to enqueue for matchmaking", zap.Uint32("user_id", userID), zap.Error(err))
		c.Send(protocol.ServerAccessDenied("matchmaking unavailable"))
		return
	}

	c.mu.Lock()
	c.queuedLobby = &lobby
	c.mu.Unlock()
}

func (h *Hub) handleLeaveQueue(ctx context.Context, c *Client) {
	c.mu.Lock()
	lobby := c.queuedLobby
	c.queuedLobby = nil
	c.mu.Unlock()
	if lobby == nil {
		return
	}

	if err := h.Queue.Remove(ctx, *lobby); err != nil {
		h.Log.Warn("failed to leave matchmaking queue", zap.String("lobby_code", lobby.LobbyCode), zap.Error(err))
	}
}

// handleJoinGame subscribes the session to its game's partition events,
// bootstraps it with the latest snapshot, and forwards every subsequent
// event with a higher sequence number, per spec.md section 4.H.
func (h *Hub) handleJoinGame(ctx context.Context, c *Client, gameID uint32) {
	if _, _, ok := c.Identity(); !ok {
		c.Send(protocol.ServerAccessDenied("authenticate first"))
		return
	}

	partition := int(gameID) % h.Partitions
	sub, err := h.Fabric.Subscribe(ctx, partition)
	if err != nil {
		h.Log.Warn("failed to subscribe to partition", zap.Int("partition", partition), zap.Error(err))
		c.Send(protocol.ServerAccessDenied("game unavailable"))
		return
	}

	gameCtx := c.startGameSubscription(ctx)
	c.setState(InGame)
	c.mu.Lock()
	c.currentGameID = gameID
	c.lastSequence = 0
	c.mu.Unlock()

	state, found, err := h.Fabric.GetSnapshot(ctx, gameID)
	if err != nil {
		h.Log.Warn("failed to fetch snapshot", zap.Uint32("game_id", gameID), zap.Error(err))
	}
	if !found {
		if err := h.Fabric.RequestPartitionSnapshots(ctx, partition); err != nil {
			h.Log.Warn("failed to request snapshot", zap.Int("partition", partition), zap.Error(err))
		}
	} else {
		snapshotMsg := model.EventMessage{GameID: gameID, Tick: state.Tick, Sequence: state.EventSequence, Event: model.Snapshot(state)}
		c.Send(protocol.ServerGameEvent(snapshotMsg))
		c.mu.Lock()
		c.lastSequence = state.EventSequence
		c.mu.Unlock()
	}

	go h.forwardGameEvents(gameCtx, c, sub, gameID)
}

// forwardGameEvents pumps a partition subscription's events channel,
// filtering to gameID and to sequences past whatever snapshot already
// bootstrapped the client, until the game context is cancelled (a new
// JoinGame, a disconnect, or a completed game).
func (h *Hub) forwardGameEvents(ctx context.Context, c *Client, sub *pubsub.Subscription, gameID uint32) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Events:
			if !ok {
				return
			}
			if msg.GameID != gameID {
				continue
			}
			c.mu.RLock()
			last := c.lastSequence
			c.mu.RUnlock()
			if msg.Sequence <= last {
				continue
			}
			c.Send(protocol.ServerGameEvent(msg))
			c.mu.Lock()
			c.lastSequence = msg.Sequence
			c.mu.Unlock()

			if msg.Event.Kind == model.EvStatusUpdated && msg.Event.Status != nil && msg.Event.Status.Kind == model.Complete {
				c.stopGameSubscription()
				c.setState(Authenticated)
				return
			}
		}
	}
}

func (h *Hub) handleGameCommand(ctx context.Context, c *Client, cmd model.CommandMessage) {
	userID, _, ok := c.Identity()
	if !ok || c.State() != InGame {
		c.Send(protocol.ServerAccessDenied("not in a game"))
		return
	}
	c.mu.RLock()
	gameID := c.currentGameID
	c.mu.RUnlock()

	partition := int(gameID) % h.Partitions
	stream := model.GameCommandSubmitted(gameID, userID, cmd.Command, cmd.Tick)
	if err := h.Fabric.PublishCommand(ctx, partition, stream); err != nil {
		h.Log.Warn("failed to publish game command", zap.Uint32("game_id", gameID), zap.Error(err))
	}
}
