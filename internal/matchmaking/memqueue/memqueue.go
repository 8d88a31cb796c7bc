// Package memqueue is an in-process matchmaking.Queue for tests. Instead
// of matchmaking_manager.rs's Redis sorted-set pair it keeps one map per
// (game_type, queue_mode) pool keyed by lobby code, sorted by queue time
// when sampled.
package memqueue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sonpython/gridmatch/internal/matchmaking"
	"github.com/sonpython/gridmatch/internal/model"
)

type poolKey struct {
	gameType  string
	queueMode model.QueueMode
}

func keyFor(gt model.GameType, qm model.QueueMode) poolKey {
	return poolKey{gameType: gameTypeKey(gt), queueMode: qm}
}

func gameTypeKey(gt model.GameType) string {
	switch gt.Kind {
	case model.Solo:
		return "solo"
	case model.TeamMatch:
		return "team"
	case model.FreeForAll:
		return "ffa"
	default:
		return "unknown"
	}
}

// Queue is an in-memory matchmaking.Queue.
type Queue struct {
	mu      sync.Mutex
	entries map[poolKey]map[string]matchmaking.QueuedLobby
	nextID  uint32
}

// New returns an empty, ready-to-use Queue.
func New() *Queue {
	return &Queue{entries: map[poolKey]map[string]matchmaking.QueuedLobby{}}
}

var _ matchmaking.Queue = (*Queue)(nil)

func (q *Queue) Enqueue(_ context.Context, lobby matchmaking.QueuedLobby) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	key := keyFor(lobby.GameType, lobby.QueueMode)
	pool, ok := q.entries[key]
	if !ok {
		pool = map[string]matchmaking.QueuedLobby{}
		q.entries[key] = pool
	}
	pool[lobby.LobbyCode] = lobby
	return nil
}

func (q *Queue) Remove(_ context.Context, lobby matchmaking.QueuedLobby) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if pool, ok := q.entries[keyFor(lobby.GameType, lobby.QueueMode)]; ok {
		delete(pool, lobby.LobbyCode)
	}
	return nil
}

// SampleCandidates returns every entry in the pool. An in-memory pool
// never grows large enough in tests to need the 2000-candidate strategic
// sample the Redis backend performs; it still dedupes by lobby code
// because the same map guarantees that already.
func (q *Queue) SampleCandidates(_ context.Context, gt model.GameType, qm model.QueueMode) ([]matchmaking.QueuedLobby, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pool := q.entries[keyFor(gt, qm)]
	out := make([]matchmaking.QueuedLobby, 0, len(pool))
	for _, l := range pool {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueuedAtMs < out[j].QueuedAtMs })
	return out, nil
}

func (q *Queue) EvictStale(_ context.Context, maxAge time.Duration, now time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	evicted := 0
	nowMs := now.UnixMilli()
	maxAgeMs := maxAge.Milliseconds()
	for _, pool := range q.entries {
		for code, l := range pool {
			if nowMs-l.QueuedAtMs > maxAgeMs {
				delete(pool, code)
				evicted++
			}
		}
	}
	return evicted, nil
}

// Depth reports how many lobbies currently sit in the pool.
func (q *Queue) Depth(_ context.Context, gt model.GameType, qm model.QueueMode) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries[keyFor(gt, qm)]), nil
}

func (q *Queue) NextGameID(_ context.Context) (uint32, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	return q.nextID, nil
}
