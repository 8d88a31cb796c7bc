// Package rediskv is the cluster kv.Store backend: go-redis's SET NX PX
// for conditional acquisition and a small Lua script (via EVAL) for the
// compare-and-swap-TTL renewal primitive, the standard go-redis lease
// recipe also used by other_examples/manifests/r3e-network-service_layer.
package rediskv

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sonpython/gridmatch/internal/kv"
	"github.com/sonpython/gridmatch/internal/model"
)

// renewScript refreshes key's TTL only if its current value still equals
// the caller's held value, so a holder that already lost the key (value
// changed, or it expired and someone else acquired it) cannot clobber the
// new holder.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`)

// Store is a kv.Store backed by a go-redis client.
type Store struct {
	client *redis.Client
}

// New wraps an already-configured go-redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

var _ kv.Store = (*Store)(nil)

// Ping satisfies lease.Pinger, letting the leader loop detect a dead
// connection proactively instead of waiting for the next renew to fail.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &model.TransientBackendError{Op: "kv.ping", Err: err}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, &model.TransientBackendError{Op: "kv.get", Err: err}
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return &model.TransientBackendError{Op: "kv.set", Err: err}
	}
	return nil
}

func (s *Store) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, &model.TransientBackendError{Op: "kv.setnx", Err: err}
	}
	return ok, nil
}

func (s *Store) CompareAndSwapTTL(ctx context.Context, key, expect string, ttl time.Duration) (bool, error) {
	res, err := renewScript.Run(ctx, s.client, []string{key}, expect, ttl.Milliseconds()).Int()
	if err != nil {
		return false, &model.TransientBackendError{Op: "kv.renew", Err: err}
	}
	return res == 1, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return &model.TransientBackendError{Op: "kv.delete", Err: err}
	}
	return nil
}

func (s *Store) ScanPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	out := map[string]string{}
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		v, err := s.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, &model.TransientBackendError{Op: "kv.scan_get", Err: err}
		}
		out[key] = v
	}
	if err := iter.Err(); err != nil {
		return nil, &model.TransientBackendError{Op: "kv.scan", Err: err}
	}
	return out, nil
}
