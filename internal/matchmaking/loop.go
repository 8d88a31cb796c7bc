package matchmaking

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/sonpython/gridmatch/internal/backoff"
	"github.com/sonpython/gridmatch/internal/engine"
	"github.com/sonpython/gridmatch/internal/metrics"
	"github.com/sonpython/gridmatch/internal/model"
	"github.com/sonpython/gridmatch/internal/pubsub"
)

// PollInterval is how often the loop attempts matching for each tracked
// (game_type, queue_mode) pair, per spec.md section 4.F ("every ~500ms").
const PollInterval = 500 * time.Millisecond

// EvictionInterval is how often the loop sweeps for stale queue entries.
// Coarser than PollInterval since MaxWaitAge is minutes, not milliseconds.
const EvictionInterval = 30 * time.Second

// Pool identifies one tracked matching pool.
type Pool struct {
	GameType  model.GameType
	QueueMode model.QueueMode
}

// PropertiesFactory builds the GameProperties for a freshly formed match
// of the given type, letting the caller fix arena size, tick rate, and
// food target per game type.
type PropertiesFactory func(gt model.GameType) model.GameProperties

// BotUserIDFloor is the first user id reserved for fill-bot seats, high
// enough to never collide with a real authenticated user id. A game
// formed with fewer humans than its GameType seats gets the remainder
// filled with ids at and above this floor; internal/bot.Supervisor
// recognizes them the same way.
const BotUserIDFloor = 1 << 31

// Loop is the matchmaking service of spec.md section 4.F, run under a
// internal/lease.Lease since it is single-instance per cluster.
type Loop struct {
	queue      Queue
	notifier   Notifier
	fabric     pubsub.Fabric
	partitions int
	pools      []Pool
	props      PropertiesFactory
	fillBots   bool
	metrics    *metrics.Metrics
	log        *zap.Logger
}

// NewLoop wires a matchmaking Loop. partitions is N, the number of
// partition executors commands(game_id % N) is routed across. m may be
// nil, in which case no metrics are recorded. fillBots seats
// BotUserIDFloor-and-above placeholder players into any match formed
// short of its GameType's full capacity, for local development without
// enough real players queued.
func NewLoop(queue Queue, notifier Notifier, fabric pubsub.Fabric, partitions int, pools []Pool, props PropertiesFactory, fillBots bool, m *metrics.Metrics, log *zap.Logger) *Loop {
	return &Loop{queue: queue, notifier: notifier, fabric: fabric, partitions: partitions, pools: pools, props: props, fillBots: fillBots, metrics: m, log: log}
}

// Run is the ManagedService body a lease.Lease.Run hands leadership to.
func (l *Loop) Run(ctx context.Context) error {
	matchTicker := time.NewTicker(PollInterval)
	defer matchTicker.Stop()
	evictTicker := time.NewTicker(EvictionInterval)
	defer evictTicker.Stop()

	l.log.Info("matchmaking loop started")
	defer l.log.Info("matchmaking loop stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-matchTicker.C:
			for _, pool := range l.pools {
				if err := l.processPool(ctx, pool); err != nil {
					l.log.Warn("matching pass failed", zap.Error(err))
				}
			}
		case <-evictTicker.C:
			var n int
			err := backoff.Retry(ctx, func() error {
				var evictErr error
				n, evictErr = l.queue.EvictStale(ctx, MaxWaitAge, time.Now())
				return evictErr
			})
			if err != nil {
				l.log.Warn("eviction sweep failed", zap.Error(err))
			} else if n > 0 {
				l.log.Info("evicted stale queue entries", zap.Int("count", n))
			}
		}
	}
}

func (l *Loop) processPool(ctx context.Context, pool Pool) error {
	var candidates []QueuedLobby
	err := backoff.Retry(ctx, func() error {
		var sampleErr error
		candidates, sampleErr = l.queue.SampleCandidates(ctx, pool.GameType, pool.QueueMode)
		return sampleErr
	})
	if err != nil {
		return err
	}
	l.reportDepth(ctx, pool)
	if len(candidates) == 0 {
		return nil
	}

	matches, unmatched := GreedyGroup(candidates, pool.GameType, time.Now().UnixMilli())
	if l.fillBots {
		required := pool.GameType.PlayerCount()
		partial := Match{GameType: pool.GameType}
		for _, u := range unmatched {
			if len(u.Members) > required {
				continue
			}
			if memberCount(partial.Lobbies)+len(u.Members) > required {
				matches = append(matches, partial)
				partial = Match{GameType: pool.GameType}
			}
			partial.Lobbies = append(partial.Lobbies, u)
		}
		if len(partial.Lobbies) > 0 {
			matches = append(matches, partial)
		}
	}
	for _, m := range matches {
		if err := l.formGame(ctx, pool, m); err != nil {
			l.log.Warn("failed to form game from match", zap.Error(err))
		}
	}
	return nil
}

func (l *Loop) reportDepth(ctx context.Context, pool Pool) {
	if l.metrics == nil {
		return
	}
	depth, err := l.queue.Depth(ctx, pool.GameType, pool.QueueMode)
	if err != nil {
		return
	}
	l.metrics.QueueDepth.WithLabelValues(gameTypeLabel(pool.GameType), pool.QueueMode.String()).Set(float64(depth))
}

// gameTypeLabel gives GameType a stable, low-cardinality metric label;
// GameType has no Stringer of its own since its wire encoding
// (model.GameType.MarshalJSON) already serializes the full struct.
func gameTypeLabel(gt model.GameType) string {
	switch gt.Kind {
	case model.Solo:
		return "Solo"
	case model.TeamMatch:
		return "TeamMatch"
	case model.FreeForAll:
		return "FreeForAll"
	default:
		return "Unknown"
	}
}

func (l *Loop) formGame(ctx context.Context, pool Pool, m Match) error {
	for _, lobby := range m.Lobbies {
		err := backoff.Retry(ctx, func() error {
			return l.queue.Remove(ctx, lobby)
		})
		if err != nil {
			l.log.Warn("failed to remove matched lobby from queue", zap.String("lobby_code", lobby.LobbyCode), zap.Error(err))
		}
	}

	var gameID uint32
	err := backoff.Retry(ctx, func() error {
		var idErr error
		gameID, idErr = l.queue.NextGameID(ctx)
		return idErr
	})
	if err != nil {
		return err
	}

	props := l.props(pool.GameType)
	props.GameType = pool.GameType
	props.QueueMode = pool.QueueMode
	if props.Seed == 0 {
		props.Seed = rand.Uint64()
	}

	startMs := time.Now().UnixMilli()
	eng := engine.New(gameID, props, startMs)

	requests := assignTeams(m, pool.GameType)
	if l.fillBots {
		requests = fillWithBots(requests, pool.GameType)
	}
	if err := eng.Spawn(requests); err != nil {
		return err
	}

	partition := int(gameID) % l.partitions
	err = backoff.Retry(ctx, func() error {
		return l.fabric.PublishCommand(ctx, partition, model.GameCreatedCommand(gameID, eng.State))
	})
	if err != nil {
		return err
	}

	for _, req := range requests {
		if req.UserID >= BotUserIDFloor {
			continue
		}
		err := backoff.Retry(ctx, func() error {
			return l.notifier.NotifyMatchFound(ctx, req.UserID, MatchFoundNotification{GameID: gameID, Partition: partition})
		})
		if err != nil {
			l.log.Warn("failed to notify matched player", zap.Uint32("user_id", req.UserID), zap.Error(err))
		}
	}
	if l.metrics != nil {
		l.metrics.MatchesFormed.WithLabelValues(gameTypeLabel(pool.GameType)).Inc()
	}
	return nil
}

// assignTeams builds the engine spawn requests for a formed match,
// alternating members across teams for TeamMatch so each side gets an
// even split.
func assignTeams(m Match, gt model.GameType) []engine.SpawnRequest {
	players := m.Players()
	requests := make([]engine.SpawnRequest, 0, len(players))
	for i, p := range players {
		var team *uint8
		if gt.Kind == model.TeamMatch {
			t := uint8(i % 2)
			team = &t
		}
		requests = append(requests, engine.SpawnRequest{UserID: p.UserID, DisplayName: p.Username, Team: team})
	}
	return requests
}

// fillWithBots pads requests up to gt's full seat count with
// BotUserIDFloor-and-above placeholder requests, alternating teams the
// same way assignTeams does for real players, so internal/bot.Supervisor
// can recognize and drive them once the game is created.
func fillWithBots(requests []engine.SpawnRequest, gt model.GameType) []engine.SpawnRequest {
	want := gt.PlayerCount()
	if want <= len(requests) {
		return requests
	}
	for i := len(requests); i < want; i++ {
		var team *uint8
		if gt.Kind == model.TeamMatch {
			t := uint8(i % 2)
			team = &t
		}
		botID := uint32(BotUserIDFloor + i)
		requests = append(requests, engine.SpawnRequest{
			UserID:      botID,
			DisplayName: fmt.Sprintf("Bot %d", i+1),
			Team:        team,
		})
	}
	return requests
}
