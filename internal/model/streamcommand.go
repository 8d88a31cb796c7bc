package model

// StreamCommandKind tags the envelope messages carried on a partition's
// commands(p) channel, per spec.md section 4.C.
type StreamCommandKind int

const (
	SCGameCommandSubmitted StreamCommandKind = iota
	SCGameCreated
	SCStatusUpdated
)

// StreamCommand is the tagged union {GameCommandSubmitted, GameCreated,
// StatusUpdated} published onto commands(p). GameCommandSubmitted carries a
// raw Command plus the submitter's claimed client_tick; the executor, not
// the gateway, assigns the authoritative tick and received_order.
type StreamCommand struct {
	Kind       StreamCommandKind
	GameID     uint32
	UserID     uint32
	RawCommand Command
	ClientTick uint32
	GameState  *GameState
	Status     *GameStatus
}

// GameCommandSubmitted builds the envelope a session gateway publishes for
// a client-originated command.
func GameCommandSubmitted(gameID, userID uint32, cmd Command, clientTick uint32) StreamCommand {
	return StreamCommand{
		Kind: SCGameCommandSubmitted, GameID: gameID, UserID: userID,
		RawCommand: cmd, ClientTick: clientTick,
	}
}

// GameCreatedCommand builds the envelope matchmaking publishes when it
// forms a new match.
func GameCreatedCommand(gameID uint32, state *GameState) StreamCommand {
	return StreamCommand{Kind: SCGameCreated, GameID: gameID, GameState: state}
}

// StatusUpdatedCommand builds the envelope a game task publishes on
// completion, announcing the game's final status to subscribers of the
// partition's command channel.
func StatusUpdatedCommand(gameID uint32, status GameStatus) StreamCommand {
	return StreamCommand{Kind: SCStatusUpdated, GameID: gameID, Status: &status}
}
