// Package pubsub defines the Fabric capability interface spec.md section
// 4.C describes: three ordered, at-most-once-per-session partition
// channels (events, commands, snapshot requests) plus a snapshot
// side-channel. Concrete backends live in the memfabric (in-process,
// tests and bots) and redispubsub (cluster) subpackages; callers depend
// only on this interface, swapped in at construction per spec.md
// section 9's capability-interface design note.
package pubsub

import (
	"context"
	"fmt"

	"github.com/sonpython/gridmatch/internal/model"
)

// BufferCapacity is the documented per-receiver bounded buffer size from
// spec.md section 4.C. A full buffer blocks the publisher rather than
// dropping the message.
const BufferCapacity = 2000

// SnapshotTTLSeconds is how long the snapshot side-channel retains a
// game's most recent state for late subscribers to bootstrap from.
const SnapshotTTLSeconds = 300

// SnapshotKeyPrefix namespaces the snapshot side-channel's persisted keys
// within the same backing store a kv.Store implementation also uses
// (redispubsub and rediskv share one go-redis client), so a partition
// executor can enumerate every game it owns a snapshot for via
// kv.Store.ScanPrefix.
const SnapshotKeyPrefix = "game_snapshot:"

// SnapshotKey returns the side-channel key a game's snapshot is stored
// under.
func SnapshotKey(gameID uint32) string {
	return fmt.Sprintf("%s%d", SnapshotKeyPrefix, gameID)
}

// Subscription carries the three channels a partition subscriber reads
// from. Close releases the subscriber's buffers and stops further
// delivery; it is safe to call more than once.
type Subscription struct {
	Events           <-chan model.EventMessage
	Commands         <-chan model.StreamCommand
	SnapshotRequests <-chan struct{}
	Close            func()
}

// Fabric is the capability interface every component that talks to the
// partition pubsub layer depends on.
type Fabric interface {
	PublishEvent(ctx context.Context, partition int, msg model.EventMessage) error
	PublishCommand(ctx context.Context, partition int, cmd model.StreamCommand) error
	PublishSnapshot(ctx context.Context, partition int, gameID uint32, state *model.GameState) error
	RequestPartitionSnapshots(ctx context.Context, partition int) error
	Subscribe(ctx context.Context, partition int) (*Subscription, error)

	// GetSnapshot reads the side-channel directly, for a late subscriber
	// bootstrapping before it starts consuming events(p).
	GetSnapshot(ctx context.Context, gameID uint32) (*model.GameState, bool, error)
}
