// Package memfabric is an in-process pubsub.Fabric backed by Go channels,
// used by tests and the headless bot driver so they never require a Redis
// instance. Grounded on the teacher's channel-per-connection style in
// sonpython-slether/server/connection.go, generalized from one channel per
// client connection to one channel set per partition subscriber.
package memfabric

import (
	"context"
	"sync"

	"github.com/sonpython/gridmatch/internal/model"
	"github.com/sonpython/gridmatch/internal/pubsub"
)

type subscriber struct {
	events      chan model.EventMessage
	commands    chan model.StreamCommand
	snapshotReq chan struct{}
	closeOnce   sync.Once
}

// Fabric is an in-memory pubsub.Fabric. The zero value is not usable; call
// New.
type Fabric struct {
	mu   sync.Mutex
	subs map[int][]*subscriber

	snapMu    sync.Mutex
	snapshots map[uint32]*model.GameState
}

// New returns an empty, ready-to-use Fabric.
func New() *Fabric {
	return &Fabric{
		subs:      map[int][]*subscriber{},
		snapshots: map[uint32]*model.GameState{},
	}
}

var _ pubsub.Fabric = (*Fabric)(nil)

func (f *Fabric) PublishEvent(_ context.Context, partition int, msg model.EventMessage) error {
	for _, s := range f.snapshot(partition) {
		enqueueBlocking(s.events, msg)
	}
	return nil
}

func (f *Fabric) PublishCommand(_ context.Context, partition int, cmd model.StreamCommand) error {
	for _, s := range f.snapshot(partition) {
		enqueueBlocking(s.commands, cmd)
	}
	return nil
}

func (f *Fabric) PublishSnapshot(_ context.Context, partition int, gameID uint32, state *model.GameState) error {
	f.snapMu.Lock()
	f.snapshots[gameID] = state.Clone()
	f.snapMu.Unlock()
	msg := model.EventMessage{GameID: gameID, Tick: state.Tick, Sequence: state.EventSequence, Event: model.Snapshot(state.Clone())}
	return f.PublishEvent(context.Background(), partition, msg)
}

func (f *Fabric) RequestPartitionSnapshots(_ context.Context, partition int) error {
	for _, s := range f.snapshot(partition) {
		enqueueBlocking(s.snapshotReq, struct{}{})
	}
	return nil
}

func (f *Fabric) Subscribe(_ context.Context, partition int) (*pubsub.Subscription, error) {
	s := &subscriber{
		events:      make(chan model.EventMessage, pubsub.BufferCapacity),
		commands:    make(chan model.StreamCommand, pubsub.BufferCapacity),
		snapshotReq: make(chan struct{}, pubsub.BufferCapacity),
	}
	f.mu.Lock()
	f.subs[partition] = append(f.subs[partition], s)
	f.mu.Unlock()

	return &pubsub.Subscription{
		Events:           s.events,
		Commands:         s.commands,
		SnapshotRequests: s.snapshotReq,
		Close: func() {
			f.removeSubscriber(partition, s)
		},
	}, nil
}

func (f *Fabric) GetSnapshot(_ context.Context, gameID uint32) (*model.GameState, bool, error) {
	f.snapMu.Lock()
	defer f.snapMu.Unlock()
	s, ok := f.snapshots[gameID]
	if !ok {
		return nil, false, nil
	}
	return s.Clone(), true, nil
}

func (f *Fabric) snapshot(partition int) []*subscriber {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*subscriber, len(f.subs[partition]))
	copy(out, f.subs[partition])
	return out
}

func (f *Fabric) removeSubscriber(partition int, target *subscriber) {
	target.closeOnce.Do(func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.subs[partition]
		for i, s := range subs {
			if s == target {
				f.subs[partition] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	})
}

// enqueueBlocking implements spec.md section 4.C's backpressure contract:
// try a non-blocking send first, then fall back to a blocking send so no
// message is ever silently dropped.
func enqueueBlocking[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	ch <- v
}
