package executor

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sonpython/gridmatch/internal/engine"
	"github.com/sonpython/gridmatch/internal/metrics"
	"github.com/sonpython/gridmatch/internal/model"
	"github.com/sonpython/gridmatch/internal/pubsub"
)

type submittedCommand struct {
	userID     uint32
	cmd        model.Command
	clientTick uint32
}

// gameTask drives one game's Engine: the per-game state the partition
// executor holds, per spec.md section 4.D ("an Engine instance, the input
// mpsc channel carrying commands for that game, a snapshot-request
// channel").
type gameTask struct {
	gameID    uint32
	partition int
	eng       *engine.Engine
	fabric    pubsub.Fabric
	metrics   *metrics.Metrics
	log       *zap.Logger

	commands    chan submittedCommand
	snapshotReq chan struct{}
	stopOnce    sync.Once
	stopCh      chan struct{}
}

const commandQueueCapacity = 256

func newGameTask(gameID uint32, partition int, eng *engine.Engine, fabric pubsub.Fabric, m *metrics.Metrics, log *zap.Logger) *gameTask {
	return &gameTask{
		gameID:      gameID,
		partition:   partition,
		eng:         eng,
		fabric:      fabric,
		metrics:     m,
		log:         log,
		commands:    make(chan submittedCommand, commandQueueCapacity),
		snapshotReq: make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
	}
}

func (g *gameTask) partitionLabel() string {
	return strconv.Itoa(g.partition)
}

func (g *gameTask) submit(userID uint32, cmd model.Command, clientTick uint32) {
	select {
	case g.commands <- submittedCommand{userID: userID, cmd: cmd, clientTick: clientTick}:
	case <-g.stopCh:
	}
}

func (g *gameTask) requestSnapshot() {
	select {
	case g.snapshotReq <- struct{}{}:
	default:
	}
}

func (g *gameTask) stop() {
	g.stopOnce.Do(func() { close(g.stopCh) })
}

// run is the per-game task loop of spec.md section 4.D.
func (g *gameTask) run(ctx context.Context) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stopCh:
			return

		case <-g.snapshotReq:
			g.publishSnapshot(ctx)

		case sc := <-g.commands:
			g.handleCommand(ctx, sc)

		case <-ticker.C:
			if g.handleTimerTick(ctx) {
				return
			}
		}
	}
}

func (g *gameTask) handleCommand(ctx context.Context, sc submittedCommand) {
	msg, err := g.eng.ScheduleCommand(sc.cmd, sc.userID, sc.clientTick)
	if err != nil {
		g.log.Warn("dropping command", zap.Error(err))
		if g.metrics != nil {
			g.metrics.CommandRejections.WithLabelValues(rejectionReason(err)).Inc()
		}
		return
	}
	ev := model.CommandScheduled(msg)
	g.eng.ApplyEvent(ev)
	evMsg := model.EventMessage{
		GameID:   g.gameID,
		Tick:     g.eng.State.Tick,
		Sequence: g.eng.State.EventSequence,
		UserID:   &sc.userID,
		Event:    ev,
	}
	g.publishEvent(ctx, evMsg)
}

// rejectionReason classifies an engine error for the command_rejections_total
// label without leaking the full, potentially high-cardinality error text.
func rejectionReason(err error) string {
	switch err.(type) {
	case *model.BadCommandError:
		return "bad_command"
	default:
		return "other"
	}
}

func (g *gameTask) publishEvent(ctx context.Context, msg model.EventMessage) {
	if err := g.fabric.PublishEvent(ctx, g.partition, msg); err != nil {
		g.log.Warn("publish event failed", zap.Error(err))
		return
	}
	if g.metrics != nil {
		g.metrics.EventsPublished.WithLabelValues(g.partitionLabel()).Inc()
	}
}

// handleTimerTick advances the engine to the current wall-clock tick,
// publishing every produced event tagged with the tick it belongs to, and
// a periodic full snapshot every SnapshotIntervalTicks. Returns true if
// the game completed and the task should terminate.
func (g *gameTask) handleTimerTick(ctx context.Context) bool {
	nowMs := time.Now().UnixMilli()
	target := uint32(0)
	if nowMs > g.eng.State.StartMs {
		target = uint32((nowMs - g.eng.State.StartMs) / int64(g.eng.State.Properties.TickDurationMs))
	}

	completed := false
	g.eng.RunUntilTickWithCallback(target, func(tick uint32, events []model.Event) {
		if g.metrics != nil {
			g.metrics.TicksProcessed.WithLabelValues(g.partitionLabel()).Inc()
		}
		startSeq := g.eng.State.EventSequence - uint64(len(events))
		for i, ev := range events {
			msg := model.EventMessage{GameID: g.gameID, Tick: tick, Sequence: startSeq + uint64(i) + 1, Event: ev}
			g.publishEvent(ctx, msg)
			if ev.Kind == model.EvStatusUpdated && ev.Status != nil && ev.Status.Kind == model.Complete {
				completed = true
			}
		}
		if tick%engine.SnapshotIntervalTicks == 0 {
			g.publishSnapshot(ctx)
		}
	})

	if completed {
		g.publishSnapshot(ctx)
		status := g.eng.State.Status
		_ = g.fabric.PublishCommand(ctx, g.partition, model.StatusUpdatedCommand(g.gameID, status))
		g.log.Info("game completed", zap.Any("status", status))
		return true
	}
	return false
}

func (g *gameTask) publishSnapshot(ctx context.Context) {
	if err := g.fabric.PublishSnapshot(ctx, g.partition, g.gameID, g.eng.State); err != nil {
		g.log.Warn("publish snapshot failed", zap.Error(err))
	}
}
