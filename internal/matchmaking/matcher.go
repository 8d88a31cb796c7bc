package matchmaking

import (
	"sort"

	"github.com/sonpython/gridmatch/internal/model"
)

// BaseMMRTolerance is the MMR spread allowed for a freshly queued group.
const BaseMMRTolerance = 100

// MaxMMRTolerance is the tolerance ceiling a long wait can widen to.
const MaxMMRTolerance = 800

// ToleranceGrowthPerSecond is how fast the allowed MMR spread widens per
// second the oldest lobby in a candidate group has waited, per spec.md
// section 4.F step 3's "tolerance grows linearly to a cap".
const ToleranceGrowthPerSecond = 15

// Match is a formed group of lobbies ready to become one game.
type Match struct {
	GameType model.GameType
	Lobbies  []QueuedLobby
}

// Players flattens every member across the match's lobbies, in lobby
// order then member order — the order spawn assigns snake ids in.
func (m Match) Players() []LobbyMember {
	var out []LobbyMember
	for _, l := range m.Lobbies {
		out = append(out, l.Members...)
	}
	return out
}

func tolerance(oldestQueuedAtMs, nowMs int64) int {
	waitSeconds := float64(nowMs-oldestQueuedAtMs) / 1000
	if waitSeconds < 0 {
		waitSeconds = 0
	}
	t := BaseMMRTolerance + int(waitSeconds*ToleranceGrowthPerSecond)
	if t > MaxMMRTolerance {
		return MaxMMRTolerance
	}
	return t
}

func memberCount(lobbies []QueuedLobby) int {
	n := 0
	for _, l := range lobbies {
		n += len(l.Members)
	}
	return n
}

// GreedyGroup implements spec.md section 4.F steps 2-3: walk candidates
// oldest-first, seed a group with each unmatched lobby, and greedily add
// the closest-MMR remaining lobbies until the group's member count
// exactly fills gt's required size, subject to an MMR tolerance that
// widens with the oldest member's wait time. Returns the matches formed
// and the candidates left unmatched.
func GreedyGroup(candidates []QueuedLobby, gt model.GameType, nowMs int64) (matches []Match, unmatched []QueuedLobby) {
	required := gt.PlayerCount()
	if required <= 0 {
		return nil, candidates
	}

	remaining := append([]QueuedLobby(nil), candidates...)
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].QueuedAtMs < remaining[j].QueuedAtMs })

	used := make([]bool, len(remaining))

	for i := range remaining {
		if used[i] {
			continue
		}
		if len(remaining[i].Members) > required {
			continue
		}

		group := []int{i}
		total := len(remaining[i].Members)
		seedMMR := remaining[i].AvgMMR
		tol := tolerance(remaining[i].QueuedAtMs, nowMs)

		for total < required {
			bestIdx := -1
			bestDelta := 0
			for j := range remaining {
				if used[j] || j == i || containsInt(group, j) {
					continue
				}
				room := required - total
				if len(remaining[j].Members) > room {
					continue
				}
				delta := remaining[j].AvgMMR - seedMMR
				if delta < 0 {
					delta = -delta
				}
				if delta > tol {
					continue
				}
				if bestIdx == -1 || delta < bestDelta {
					bestIdx, bestDelta = j, delta
				}
			}
			if bestIdx == -1 {
				break
			}
			group = append(group, bestIdx)
			total += len(remaining[bestIdx].Members)
		}

		if total != required {
			continue
		}

		m := Match{GameType: gt}
		for _, idx := range group {
			used[idx] = true
			m.Lobbies = append(m.Lobbies, remaining[idx])
		}
		matches = append(matches, m)
	}

	for i, l := range remaining {
		if !used[i] {
			unmatched = append(unmatched, l)
		}
	}
	return matches, unmatched
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
