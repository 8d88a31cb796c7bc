// Package executor is the partition executor of spec.md section 4.D: a
// per-partition singleton that owns every game whose id modulo the
// partition count equals its assigned partition, drives each via a
// per-game task loop, and publishes the resulting events onto the
// partition pubsub fabric. Grounded on the teacher's GameLoop
// (sonpython-slether/server/game_loop.go): a ticker-driven per-tick
// routine holding a registry of live games, generalized from one
// process-wide world to many independently-ticking game tasks, each
// wrapping its own internal/engine.Engine instead of a shared World.
package executor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sonpython/gridmatch/internal/engine"
	"github.com/sonpython/gridmatch/internal/kv"
	"github.com/sonpython/gridmatch/internal/metrics"
	"github.com/sonpython/gridmatch/internal/model"
	"github.com/sonpython/gridmatch/internal/pubsub"
)

// PollInterval is how often a game task advances its Engine, per spec.md
// section 4.D's "fast polling loop (e.g., every ~15 ms)".
const PollInterval = 15 * time.Millisecond

// Executor owns every game assigned to one partition.
type Executor struct {
	partition      int
	partitionCount int
	fabric         pubsub.Fabric
	store          kv.Store
	log            *zap.Logger
	metrics        *metrics.Metrics

	mu    sync.Mutex
	games map[uint32]*gameTask
}

// New returns an Executor for the given partition. partitionCount is N in
// spec.md's `game_id % N == p` routing rule. store is the snapshot
// side-channel's backing kv.Store, scanned on Run startup to resume games
// already in flight when this executor (re)acquires partition leadership.
// m may be nil, in which case no metrics are recorded.
func New(partition, partitionCount int, fabric pubsub.Fabric, store kv.Store, m *metrics.Metrics, log *zap.Logger) *Executor {
	return &Executor{
		partition:      partition,
		partitionCount: partitionCount,
		fabric:         fabric,
		store:          store,
		metrics:        m,
		log:            log.With(zap.Int("partition", partition)),
		games:          map[uint32]*gameTask{},
	}
}

// Run is the ManagedService body a lease.Lease.Run hands leadership to:
// it subscribes to the partition, resumes every game this partition
// already owns a persisted snapshot for, then dispatches StreamCommands
// until ctx is cancelled, at which point every running game task is
// stopped. Grounded on spec.md section 8 scenario S6: "Node-B subscribes
// to partition 3 commands, reads the latest snapshot for each game, and
// resumes ticks."
func (ex *Executor) Run(ctx context.Context) error {
	sub, err := ex.fabric.Subscribe(ctx, ex.partition)
	if err != nil {
		return err
	}
	defer sub.Close()

	ex.resumeOwnedGames(ctx)

	ex.log.Info("partition executor started")
	defer ex.log.Info("partition executor stopped")

	for {
		select {
		case <-ctx.Done():
			ex.stopAll()
			return nil

		case cmd, ok := <-sub.Commands:
			if !ok {
				return nil
			}
			ex.handleStreamCommand(ctx, cmd)

		case <-sub.SnapshotRequests:
			ex.forEachGame(func(g *gameTask) { g.requestSnapshot() })
		}
	}
}

func (ex *Executor) handleStreamCommand(ctx context.Context, cmd model.StreamCommand) {
	switch cmd.Kind {
	case model.SCGameCreated:
		if int(cmd.GameID)%ex.partitionCount != ex.partition {
			return
		}
		ex.spawnGame(ctx, cmd.GameID, cmd.GameState)
	case model.SCGameCommandSubmitted:
		ex.mu.Lock()
		g, ok := ex.games[cmd.GameID]
		ex.mu.Unlock()
		if ok {
			g.submit(cmd.UserID, cmd.RawCommand, cmd.ClientTick)
		}
	}
}

// resumeOwnedGames scans the snapshot side-channel's backing store for
// every game this partition owns and spawns a task for each, so a node
// that just acquired partition leadership (fresh start or failover)
// continues ticks instead of waiting for the next command or snapshot
// request to arrive.
func (ex *Executor) resumeOwnedGames(ctx context.Context) {
	if ex.store == nil {
		return
	}
	snapshots, err := ex.store.ScanPrefix(ctx, pubsub.SnapshotKeyPrefix)
	if err != nil {
		ex.log.Warn("failed to scan persisted snapshots for resume", zap.Error(err))
		return
	}
	for key, raw := range snapshots {
		var state model.GameState
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			ex.log.Warn("failed to unmarshal persisted snapshot", zap.String("key", key), zap.Error(err))
			continue
		}
		if int(state.GameID)%ex.partitionCount != ex.partition {
			continue
		}
		if state.Status.Kind == model.Complete {
			continue
		}
		ex.log.Info("resuming game from persisted snapshot", zap.Uint32("game_id", state.GameID), zap.Uint32("tick", state.Tick))
		ex.spawnGame(ctx, state.GameID, &state)
	}
}

func (ex *Executor) spawnGame(ctx context.Context, gameID uint32, state *model.GameState) {
	ex.mu.Lock()
	if _, exists := ex.games[gameID]; exists {
		ex.mu.Unlock()
		return
	}
	ex.mu.Unlock()

	eng := engine.NewFromState(state)
	if eng.State.Status.Kind == model.Stopped {
		eng.State.Status = model.GameStatus{Kind: model.Started}
		started := model.StatusUpdated(eng.State.Status)
		msg := model.EventMessage{GameID: gameID, Tick: eng.State.Tick, Sequence: eng.State.EventSequence, Event: started}
		eng.ApplyEvent(started)
		_ = ex.fabric.PublishEvent(ctx, ex.partition, msg)
	}

	task := newGameTask(gameID, ex.partition, eng, ex.fabric, ex.metrics, ex.log.With(zap.Uint32("game_id", gameID)))
	ex.mu.Lock()
	ex.games[gameID] = task
	ex.mu.Unlock()

	go func() {
		task.run(ctx)
		ex.mu.Lock()
		delete(ex.games, gameID)
		ex.mu.Unlock()
	}()
}

func (ex *Executor) forEachGame(fn func(*gameTask)) {
	ex.mu.Lock()
	tasks := make([]*gameTask, 0, len(ex.games))
	for _, g := range ex.games {
		tasks = append(tasks, g)
	}
	ex.mu.Unlock()
	for _, g := range tasks {
		fn(g)
	}
}

func (ex *Executor) stopAll() {
	ex.forEachGame(func(g *gameTask) { g.stop() })
}
