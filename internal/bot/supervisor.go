package bot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sonpython/gridmatch/internal/model"
	"github.com/sonpython/gridmatch/internal/predictor"
	"github.com/sonpython/gridmatch/internal/pubsub"
)

// BotUserIDFloor mirrors internal/matchmaking.BotUserIDFloor as a local
// constant, so this package does not import matchmaking; both packages
// must agree on the reserved range for fill-bot seats.
const BotUserIDFloor = 1 << 31

// SupervisorLagMs is the committed-state lag a Supervisor-launched
// Driver's Predictor runs with. Bots run in-process against the same
// Fabric the executor publishes to, so there is no network jitter to
// absorb and zero lag converges fastest.
const SupervisorLagMs = 0

// Supervisor watches one partition's GameCreated commands and launches a
// Driver for every reserved-range player a freshly formed match was
// seated with, filling matches matchmaking.Loop formed short of their
// GameType's full capacity. Grounded on SPEC_FULL.md's fill-bot note for
// component K: the supervisor needs no special hook into matchmaking
// beyond the command stream every partition subscriber already sees.
type Supervisor struct {
	partition  int
	partitions int
	fabric     pubsub.Fabric
	seed       int64
	log        *zap.Logger
}

// NewSupervisor wires a Supervisor for one partition.
func NewSupervisor(partition, partitions int, fabric pubsub.Fabric, seed int64, log *zap.Logger) *Supervisor {
	return &Supervisor{partition: partition, partitions: partitions, fabric: fabric, seed: seed, log: log}
}

// Run subscribes to the partition's command stream and launches bot
// Drivers as GameCreated commands arrive, until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	sub, err := s.fabric.Subscribe(ctx, s.partition)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-sub.Commands:
			if !ok {
				return nil
			}
			if cmd.Kind != model.SCGameCreated || cmd.GameState == nil {
				continue
			}
			s.spawnBots(ctx, cmd.GameState)
		}
	}
}

func (s *Supervisor) spawnBots(ctx context.Context, state *model.GameState) {
	for userID, player := range state.Players {
		if userID < BotUserIDFloor {
			continue
		}
		pred := predictor.NewFromSnapshot(state.Clone(), time.Now().UnixMilli(), state.Properties.TickDurationMs, SupervisorLagMs, userID)
		driver := NewDriver(userID, state.GameID, s.partitions, s.fabric, pred, s.seed^int64(player.SnakeID), s.log)
		tickMs := state.Properties.TickDurationMs
		go func(d *Driver) {
			if err := d.Run(ctx, tickMs); err != nil {
				s.log.Warn("bot driver exited", zap.Uint32("game_id", state.GameID), zap.Uint32("user_id", userID), zap.Error(err))
			}
		}(driver)
	}
}
