// Package redisnotifier is the cluster matchmaking.Notifier backend:
// plain Redis Pub/Sub on the matchmaking:notification:{user_id} channel
// original_source/server/src/redis_keys.rs defines.
package redisnotifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sonpython/gridmatch/internal/matchmaking"
	"github.com/sonpython/gridmatch/internal/model"
)

func channelFor(userID uint32) string {
	return fmt.Sprintf("matchmaking:notification:%d", userID)
}

// Notifier is a matchmaking.Notifier backed by a go-redis client.
type Notifier struct {
	client *redis.Client
}

// New wraps an already-configured go-redis client.
func New(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

var _ matchmaking.Notifier = (*Notifier)(nil)

func (n *Notifier) NotifyMatchFound(ctx context.Context, userID uint32, note matchmaking.MatchFoundNotification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal match notification: %w", err)
	}
	if err := n.client.Publish(ctx, channelFor(userID), payload).Err(); err != nil {
		return &model.TransientBackendError{Op: "matchmaking.notify", Err: err}
	}
	return nil
}

func (n *Notifier) Subscribe(ctx context.Context, userID uint32) (<-chan matchmaking.MatchFoundNotification, func(), error) {
	sub := n.client.Subscribe(ctx, channelFor(userID))
	out := make(chan matchmaking.MatchFoundNotification, 4)
	go func() {
		defer close(out)
		for m := range sub.Channel() {
			var note matchmaking.MatchFoundNotification
			if err := json.Unmarshal([]byte(m.Payload), &note); err != nil {
				continue
			}
			out <- note
		}
	}()
	return out, func() { _ = sub.Close() }, nil
}
