package matchmaking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonpython/gridmatch/internal/model"
)

var lobbySeq uint32

func soloLobby(code string, mmr int, queuedAtMs int64) QueuedLobby {
	lobbySeq++
	return QueuedLobby{
		LobbyCode:  code,
		Members:    []LobbyMember{{UserID: lobbySeq, Username: code, MMR: mmr}},
		AvgMMR:     mmr,
		GameType:   model.GameType{Kind: model.Solo},
		QueueMode:  model.Quickmatch,
		QueuedAtMs: queuedAtMs,
	}
}

func TestGreedyGroupMatchesSoloPairsWithinTolerance(t *testing.T) {
	gt := model.GameType{Kind: model.TeamMatch, PerTeam: 1}
	lobbies := []QueuedLobby{
		soloLobby("A", 1000, 0),
		soloLobby("B", 1050, 10),
	}
	matches, unmatched := GreedyGroup(lobbies, gt, 1000)
	require.Len(t, matches, 1)
	assert.Empty(t, unmatched)
	assert.Len(t, matches[0].Players(), 2)
}

func TestGreedyGroupLeavesOutOfToleranceLobbiesUnmatched(t *testing.T) {
	gt := model.GameType{Kind: model.TeamMatch, PerTeam: 1}
	lobbies := []QueuedLobby{
		soloLobby("A", 1000, 0),
		soloLobby("B", 3000, 10),
	}
	matches, unmatched := GreedyGroup(lobbies, gt, 1000)
	assert.Empty(t, matches)
	assert.Len(t, unmatched, 2)
}

func TestGreedyGroupWidensToleranceWithWaitTime(t *testing.T) {
	gt := model.GameType{Kind: model.TeamMatch, PerTeam: 1}
	// A has waited a long time; by "now" the tolerance should have widened
	// enough to absorb B's much higher MMR.
	oldQueuedAt := int64(0)
	now := oldQueuedAt + int64(MaxMMRTolerance/ToleranceGrowthPerSecond+10)*1000
	lobbies := []QueuedLobby{
		soloLobby("A", 1000, oldQueuedAt),
		soloLobby("B", 1000+MaxMMRTolerance-1, oldQueuedAt),
	}
	matches, unmatched := GreedyGroup(lobbies, gt, now)
	require.Len(t, matches, 1)
	assert.Empty(t, unmatched)
}

func TestGreedyGroupFillsFreeForAllExactly(t *testing.T) {
	gt := model.GameType{Kind: model.FreeForAll, MaxPlayers: 3}
	lobbies := []QueuedLobby{
		soloLobby("A", 1000, 0),
		soloLobby("B", 1010, 1),
		soloLobby("C", 1020, 2),
		soloLobby("D", 1030, 3),
	}
	matches, unmatched := GreedyGroup(lobbies, gt, 1000)
	require.Len(t, matches, 1)
	assert.Len(t, matches[0].Players(), 3)
	assert.Len(t, unmatched, 1)
}
