// Package redisqueue is the cluster matchmaking.Queue backend: Redis
// sorted sets, directly grounded on
// original_source/server/src/matchmaking_manager.rs's MatchmakingManager
// (ZADD into a time-sorted queue and an MMR-sorted index per add, and
// get_queued_lobbies's exact four-way strategic sample) and
// original_source/server/src/redis_keys.rs's key naming
// (matchmaking:lobby:queue:{mode}:{hash}, matchmaking:lobby:mmr:{mode}:{hash}).
package redisqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sonpython/gridmatch/internal/matchmaking"
	"github.com/sonpython/gridmatch/internal/model"
)

func modeStr(qm model.QueueMode) string {
	if qm == model.Competitive {
		return "comp"
	}
	return "quick"
}

func gameTypeHash(gt model.GameType) string {
	return fmt.Sprintf("%d-%d-%d", gt.Kind, gt.PerTeam, gt.MaxPlayers)
}

func queueKey(gt model.GameType, qm model.QueueMode) string {
	return fmt.Sprintf("matchmaking:lobby:queue:%s:%s", modeStr(qm), gameTypeHash(gt))
}

func mmrKey(gt model.GameType, qm model.QueueMode) string {
	return fmt.Sprintf("matchmaking:lobby:mmr:%s:%s", modeStr(qm), gameTypeHash(gt))
}

const gameIDCounterKey = "game:id:counter"

// Queue is a matchmaking.Queue backed by go-redis sorted sets.
type Queue struct {
	client *redis.Client
}

// New wraps an already-configured go-redis client.
func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

var _ matchmaking.Queue = (*Queue)(nil)

func (q *Queue) Enqueue(ctx context.Context, lobby matchmaking.QueuedLobby) error {
	payload, err := json.Marshal(lobby)
	if err != nil {
		return fmt.Errorf("marshal queued lobby: %w", err)
	}
	qk := queueKey(lobby.GameType, lobby.QueueMode)
	mk := mmrKey(lobby.GameType, lobby.QueueMode)

	pipe := q.client.TxPipeline()
	pipe.ZAdd(ctx, qk, redis.Z{Score: float64(lobby.QueuedAtMs), Member: payload})
	pipe.ZAdd(ctx, mk, redis.Z{Score: float64(lobby.AvgMMR), Member: payload})
	if _, err := pipe.Exec(ctx); err != nil {
		return &model.TransientBackendError{Op: "matchmaking.enqueue", Err: err}
	}
	return nil
}

// Remove removes lobby's exact sorted-set member from both the
// time-sorted queue and the MMR index. lobby must carry the same field
// values it was Enqueue'd with (same JSON encoding), since ZREM matches
// members by exact value, not by LobbyCode alone — resampling via
// SampleCandidates to rediscover the member would miss it once queue
// depth exceeds the sample window, or once concurrent removals in the
// same matching pass shift which entries the sample happens to cover.
func (q *Queue) Remove(ctx context.Context, lobby matchmaking.QueuedLobby) error {
	payload, err := json.Marshal(lobby)
	if err != nil {
		return fmt.Errorf("marshal queued lobby: %w", err)
	}
	qk := queueKey(lobby.GameType, lobby.QueueMode)
	mk := mmrKey(lobby.GameType, lobby.QueueMode)

	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, qk, payload)
	pipe.ZRem(ctx, mk, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return &model.TransientBackendError{Op: "matchmaking.remove", Err: err}
	}
	return nil
}

// SampleCandidates replicates get_queued_lobbies's strategic sample: up to
// SampleSubsetSize longest-waiting, highest-MMR, lowest-MMR, and
// median-MMR entries, deduplicated by lobby code.
func (q *Queue) SampleCandidates(ctx context.Context, gt model.GameType, qm model.QueueMode) ([]matchmaking.QueuedLobby, error) {
	qk := queueKey(gt, qm)
	mk := mmrKey(gt, qm)
	limit := int64(matchmaking.SampleSubsetSize - 1)

	longestWaiting, err := q.client.ZRange(ctx, qk, 0, limit).Result()
	if err != nil {
		return nil, &model.TransientBackendError{Op: "matchmaking.sample.longest_waiting", Err: err}
	}
	highestMMR, err := q.client.ZRevRange(ctx, mk, 0, limit).Result()
	if err != nil {
		return nil, &model.TransientBackendError{Op: "matchmaking.sample.highest_mmr", Err: err}
	}
	lowestMMR, err := q.client.ZRange(ctx, mk, 0, limit).Result()
	if err != nil {
		return nil, &model.TransientBackendError{Op: "matchmaking.sample.lowest_mmr", Err: err}
	}

	total, err := q.client.ZCard(ctx, mk).Result()
	if err != nil {
		return nil, &model.TransientBackendError{Op: "matchmaking.sample.zcard", Err: err}
	}
	var medianMMR []string
	if total > matchmaking.SampleSubsetSize {
		midStart := total/2 - matchmaking.SampleSubsetSize/2
		midEnd := midStart + limit
		medianMMR, err = q.client.ZRange(ctx, mk, midStart, midEnd).Result()
		if err != nil {
			return nil, &model.TransientBackendError{Op: "matchmaking.sample.median_mmr", Err: err}
		}
	}

	seen := map[string]bool{}
	var out []matchmaking.QueuedLobby
	appendUnique := func(raw []string) {
		for _, s := range raw {
			var l matchmaking.QueuedLobby
			if err := json.Unmarshal([]byte(s), &l); err != nil {
				continue
			}
			if seen[l.LobbyCode] {
				continue
			}
			seen[l.LobbyCode] = true
			out = append(out, l)
		}
	}
	appendUnique(longestWaiting)
	appendUnique(highestMMR)
	appendUnique(lowestMMR)
	appendUnique(medianMMR)
	return out, nil
}

func (q *Queue) EvictStale(ctx context.Context, maxAge time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-maxAge).UnixMilli()
	evicted := 0
	// Every (game_type, queue_mode) queue this process has touched shares
	// the matchmaking:lobby:queue: prefix; scanning it directly avoids
	// needing a separate registry of which pairs are active.
	iter := q.client.Scan(ctx, 0, "matchmaking:lobby:queue:*", 100).Iterator()
	for iter.Next(ctx) {
		qk := iter.Val()
		stale, err := q.client.ZRangeByScore(ctx, qk, &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%d", cutoff)}).Result()
		if err != nil {
			return evicted, &model.TransientBackendError{Op: "matchmaking.evict.scan", Err: err}
		}
		if len(stale) == 0 {
			continue
		}
		// The same payloads were ZADD'd to both qk and its paired MMR
		// index under Enqueue; evicting only from qk orphans them in the
		// index forever, where SampleCandidates's MMR-ranked windows
		// would keep surfacing a long-stale lobby into new matches.
		mk := mmrKeyFromQueueKey(qk)
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, qk, toInterfaceSlice(stale)...)
		pipe.ZRem(ctx, mk, toInterfaceSlice(stale)...)
		if _, err := pipe.Exec(ctx); err != nil {
			return evicted, &model.TransientBackendError{Op: "matchmaking.evict.zrem", Err: err}
		}
		evicted += len(stale)
	}
	if err := iter.Err(); err != nil {
		return evicted, &model.TransientBackendError{Op: "matchmaking.evict.iter", Err: err}
	}
	return evicted, nil
}

// mmrKeyFromQueueKey derives a time-sorted queue key's paired MMR index
// key. Both share every segment but one (queueKey/mmrKey above), so a
// scanned qk can be mapped to its mk without re-deriving the game type
// hash from the key string.
func mmrKeyFromQueueKey(qk string) string {
	return strings.Replace(qk, "lobby:queue:", "lobby:mmr:", 1)
}

// Depth reports the current size of the time-sorted queue for (gt, qm).
func (q *Queue) Depth(ctx context.Context, gt model.GameType, qm model.QueueMode) (int, error) {
	n, err := q.client.ZCard(ctx, queueKey(gt, qm)).Result()
	if err != nil {
		return 0, &model.TransientBackendError{Op: "matchmaking.depth", Err: err}
	}
	return int(n), nil
}

func (q *Queue) NextGameID(ctx context.Context) (uint32, error) {
	id, err := q.client.Incr(ctx, gameIDCounterKey).Result()
	if err != nil {
		return 0, &model.TransientBackendError{Op: "matchmaking.next_game_id", Err: err}
	}
	return uint32(id), nil
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
