// Package redisupdates is the cluster lobby.Updates backend: plain
// Redis Pub/Sub on the lobby:{code}:updates channel. Notifications carry
// no payload; a listener that receives one just re-fetches the roster
// from internal/kv.
package redisupdates

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sonpython/gridmatch/internal/lobby"
	"github.com/sonpython/gridmatch/internal/model"
)

func channelFor(code string) string {
	return fmt.Sprintf("lobby:%s:updates", code)
}

// Updates is a lobby.Updates backed by a go-redis client.
type Updates struct {
	client *redis.Client
}

// New wraps an already-configured go-redis client.
func New(client *redis.Client) *Updates {
	return &Updates{client: client}
}

var _ lobby.Updates = (*Updates)(nil)

func (u *Updates) Publish(ctx context.Context, code string) error {
	if err := u.client.Publish(ctx, channelFor(code), "1").Err(); err != nil {
		return &model.TransientBackendError{Op: "lobby.publish", Err: err}
	}
	return nil
}

func (u *Updates) Subscribe(ctx context.Context, code string) (<-chan struct{}, func(), error) {
	sub := u.client.Subscribe(ctx, channelFor(code))
	out := make(chan struct{}, 4)
	go func() {
		defer close(out)
		for range sub.Channel() {
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out, func() { _ = sub.Close() }, nil
}
