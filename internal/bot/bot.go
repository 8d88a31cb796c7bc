// Package bot is a non-interactive driver that plays a game the same
// way a client would: it runs a internal/predictor.Predictor off the
// partition event stream and submits Turn commands through
// internal/pubsub.Fabric, never touching engine state directly.
//
// Grounded on sonpython-slether/server/bot.go's BotManager for the
// "always one decision per tick, radius-based danger/food heuristics"
// shape, adapted from continuous angle steering to a discrete grid
// Direction choice, and on original_source/bot/src/main.rs for wiring
// through a client-side predictor rather than mutating world state
// in-process — the teacher's bots can touch World directly because it
// has no client/server split for bots; this repo's bots are full
// sessions of the partitioned cluster, so they drive a Predictor like
// any other client.
package bot

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/sonpython/gridmatch/internal/model"
	"github.com/sonpython/gridmatch/internal/predictor"
	"github.com/sonpython/gridmatch/internal/pubsub"
)

// DangerRadius is how many cells ahead a bot scans for an occupied cell
// before it treats a direction as unsafe, the discrete analog of the
// teacher's BotDangerRadius.
const DangerRadius = 4

// FoodSeekRadius bounds how far a bot will path toward a food item
// before giving up and wandering, the discrete analog of the teacher's
// BotFoodSeekRadius.
const FoodSeekRadius = 15

// WanderChangeChance is the per-tick probability a wandering bot with no
// more urgent priority picks a new random heading, keeping its path from
// degenerating into a single infinite straight line.
const WanderChangeChance = 0.05

// Driver plays one snake in one game non-interactively.
type Driver struct {
	userID     uint32
	gameID     uint32
	partitions int
	fabric     pubsub.Fabric
	pred       *predictor.Predictor
	rng        *rand.Rand
	log        *zap.Logger
}

// NewDriver wires a Driver around an already-initialized Predictor. seed
// controls only this bot's decision randomness (wander direction,
// tie-breaks), independent of the authoritative game RNG.
func NewDriver(userID, gameID uint32, partitions int, fabric pubsub.Fabric, pred *predictor.Predictor, seed int64, log *zap.Logger) *Driver {
	return &Driver{
		userID: userID, gameID: gameID, partitions: partitions,
		fabric: fabric, pred: pred, rng: rand.New(rand.NewSource(seed)), log: log,
	}
}

// Run subscribes to the game's partition events, feeds them into the
// Predictor, and submits one Turn decision per tickDurationMs until ctx
// is cancelled or the game completes.
func (d *Driver) Run(ctx context.Context, tickDurationMs uint32) error {
	partition := int(d.gameID) % d.partitions
	sub, err := d.fabric.Subscribe(ctx, partition)
	if err != nil {
		return err
	}
	defer sub.Close()

	ticker := time.NewTicker(time.Duration(tickDurationMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Events:
			if !ok {
				return nil
			}
			if msg.GameID != d.gameID {
				continue
			}
			d.pred.ProcessServerEvent(msg)
			if msg.Event.Kind == model.EvStatusUpdated && msg.Event.Status != nil && msg.Event.Status.Kind == model.Complete {
				return nil
			}
		case <-ticker.C:
			d.pred.RunUntil(nowMs())
			if err := d.decideAndAct(ctx); err != nil {
				d.log.Warn("bot decision failed", zap.Uint32("game_id", d.gameID), zap.Error(err))
			}
		}
	}
}

func nowMs() int64 { return time.Now().UnixMilli() }

func (d *Driver) decideAndAct(ctx context.Context) error {
	state := d.pred.CommittedState()
	player, ok := state.Players[d.userID]
	if !ok {
		return nil
	}
	snake := state.Arena.SnakeByID(player.SnakeID)
	if snake == nil || !snake.Alive {
		return nil
	}

	dir := decide(d.rng, &state.Arena, snake)
	if dir == snake.Facing {
		return nil
	}

	cmd := model.Command{Kind: model.CmdTurn, SnakeID: snake.ID, Direction: dir}
	msg := d.pred.ProcessLocalCommand(cmd)

	partition := int(d.gameID) % d.partitions
	return d.fabric.PublishCommand(ctx, partition, model.GameCommandSubmitted(d.gameID, d.userID, cmd, msg.Tick))
}
