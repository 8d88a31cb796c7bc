// Package redispubsub is the cluster pubsub.Fabric backend: Redis Pub/Sub
// channels per partition plus a SETEX-backed snapshot side-channel, per
// spec.md section 4.C. Grounded on the go-redis usage patterns in
// other_examples/manifests/r3e-network-service_layer and
// other_examples/manifests/MOHCentral-opm-stats-api — the teacher itself
// has no distributed backend, so this is an enrichment from the rest of
// the retrieval pack, and channel/key naming follows
// original_source/server/src/redis_keys.rs's colon-delimited convention.
package redispubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sonpython/gridmatch/internal/model"
	"github.com/sonpython/gridmatch/internal/pubsub"
)

func eventsChannel(partition int) string           { return fmt.Sprintf("events:partition:%d", partition) }
func commandsChannel(partition int) string         { return fmt.Sprintf("commands:partition:%d", partition) }
func snapshotRequestsChannel(partition int) string { return fmt.Sprintf("snapshot_requests:partition:%d", partition) }

// Fabric is a pubsub.Fabric backed by a single go-redis client shared with
// internal/kv.
type Fabric struct {
	client *redis.Client
}

// New wraps an already-configured go-redis client.
func New(client *redis.Client) *Fabric {
	return &Fabric{client: client}
}

var _ pubsub.Fabric = (*Fabric)(nil)

func (f *Fabric) PublishEvent(ctx context.Context, partition int, msg model.EventMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event message: %w", err)
	}
	if err := f.client.Publish(ctx, eventsChannel(partition), payload).Err(); err != nil {
		return &model.TransientBackendError{Op: "pubsub.publish_event", Err: err}
	}
	return nil
}

func (f *Fabric) PublishCommand(ctx context.Context, partition int, cmd model.StreamCommand) error {
	payload, err := json.Marshal(streamCommandWire{
		Kind:       cmd.Kind,
		GameID:     cmd.GameID,
		UserID:     cmd.UserID,
		RawCommand: cmd.RawCommand,
		ClientTick: cmd.ClientTick,
		GameState:  cmd.GameState,
		Status:     cmd.Status,
	})
	if err != nil {
		return fmt.Errorf("marshal stream command: %w", err)
	}
	if err := f.client.Publish(ctx, commandsChannel(partition), payload).Err(); err != nil {
		return &model.TransientBackendError{Op: "pubsub.publish_command", Err: err}
	}
	return nil
}

func (f *Fabric) PublishSnapshot(ctx context.Context, partition int, gameID uint32, state *model.GameState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := f.client.Set(ctx, pubsub.SnapshotKey(gameID), payload, pubsub.SnapshotTTLSeconds*time.Second).Err(); err != nil {
		return &model.TransientBackendError{Op: "pubsub.snapshot_setex", Err: err}
	}
	msg := model.EventMessage{GameID: gameID, Tick: state.Tick, Sequence: state.EventSequence, Event: model.Snapshot(state)}
	return f.PublishEvent(ctx, partition, msg)
}

func (f *Fabric) RequestPartitionSnapshots(ctx context.Context, partition int) error {
	if err := f.client.Publish(ctx, snapshotRequestsChannel(partition), "1").Err(); err != nil {
		return &model.TransientBackendError{Op: "pubsub.request_snapshots", Err: err}
	}
	return nil
}

func (f *Fabric) GetSnapshot(ctx context.Context, gameID uint32) (*model.GameState, bool, error) {
	raw, err := f.client.Get(ctx, pubsub.SnapshotKey(gameID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &model.TransientBackendError{Op: "pubsub.snapshot_get", Err: err}
	}
	var state model.GameState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &state, true, nil
}

// Subscribe opens three Redis subscriptions for the partition and fans
// their deliveries into bounded Go channels, applying the
// non-blocking-then-blocking backpressure policy of spec.md section 4.C so
// a slow subscriber stalls only its own delivery.
func (f *Fabric) Subscribe(ctx context.Context, partition int) (*pubsub.Subscription, error) {
	eventsSub := f.client.Subscribe(ctx, eventsChannel(partition))
	commandsSub := f.client.Subscribe(ctx, commandsChannel(partition))
	snapReqSub := f.client.Subscribe(ctx, snapshotRequestsChannel(partition))

	events := make(chan model.EventMessage, pubsub.BufferCapacity)
	commands := make(chan model.StreamCommand, pubsub.BufferCapacity)
	snapshotReq := make(chan struct{}, pubsub.BufferCapacity)

	go pumpEvents(eventsSub.Channel(), events)
	go pumpCommands(commandsSub.Channel(), commands)
	go pumpSnapshotRequests(snapReqSub.Channel(), snapshotReq)

	return &pubsub.Subscription{
		Events:           events,
		Commands:         commands,
		SnapshotRequests: snapshotReq,
		Close: func() {
			_ = eventsSub.Close()
			_ = commandsSub.Close()
			_ = snapReqSub.Close()
		},
	}, nil
}

func pumpEvents(src <-chan *redis.Message, dst chan<- model.EventMessage) {
	for m := range src {
		var msg model.EventMessage
		if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
			continue
		}
		enqueueBlocking(dst, msg)
	}
}

// streamCommandWire is the JSON shape StreamCommand travels over Redis in;
// StreamCommand itself has no json tags because it is never marshaled
// directly (RawCommand/GameState need no special treatment, but keeping a
// dedicated wire struct here documents the boundary explicitly).
type streamCommandWire struct {
	Kind       model.StreamCommandKind `json:"kind"`
	GameID     uint32                  `json:"game_id"`
	UserID     uint32                  `json:"user_id,omitempty"`
	RawCommand model.Command           `json:"raw_command,omitempty"`
	ClientTick uint32                  `json:"client_tick,omitempty"`
	GameState  *model.GameState        `json:"game_state,omitempty"`
	Status     *model.GameStatus       `json:"status,omitempty"`
}

func pumpCommands(src <-chan *redis.Message, dst chan<- model.StreamCommand) {
	for m := range src {
		var wire streamCommandWire
		if err := json.Unmarshal([]byte(m.Payload), &wire); err != nil {
			continue
		}
		enqueueBlocking(dst, model.StreamCommand{
			Kind: wire.Kind, GameID: wire.GameID, UserID: wire.UserID,
			RawCommand: wire.RawCommand, ClientTick: wire.ClientTick,
			GameState: wire.GameState, Status: wire.Status,
		})
	}
}

func pumpSnapshotRequests(src <-chan *redis.Message, dst chan<- struct{}) {
	for range src {
		enqueueBlocking(dst, struct{}{})
	}
}

func enqueueBlocking[T any](ch chan<- T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	ch <- v
}
