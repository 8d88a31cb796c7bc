// Package kv defines the Store capability interface backing singleton
// leases, the snapshot side-channel, and lobby presence, per spec.md
// sections 4.E and 4.G. Concrete backends live in the memkv (tests) and
// rediskv (cluster) subpackages.
package kv

import (
	"context"
	"time"
)

// Store is the minimal conditional-KV surface the rest of the system
// needs: TTL'd values, a compare-and-set primitive for lease acquisition,
// and prefix scanning for presence membership.
type Store interface {
	// Get returns the value stored at key, or ok=false if absent or
	// expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value at key with the given TTL. A zero TTL means no
	// expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetIfAbsent stores value at key with the given TTL only if key does
	// not currently hold a live value, returning whether the set took
	// effect. This is the primitive singleton lease acquisition is built
	// on ("conditional put").
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (acquired bool, err error)

	// CompareAndSwapTTL refreshes key's TTL only if its current value
	// equals expect, returning whether the refresh took effect. Used for
	// lease renewal: a holder that lost its lease (value changed or key
	// expired) fails the renewal rather than clobbering a new holder.
	CompareAndSwapTTL(ctx context.Context, key, expect string, ttl time.Duration) (renewed bool, err error)

	// Delete removes key unconditionally.
	Delete(ctx context.Context, key string) error

	// ScanPrefix returns every live key with the given prefix and its
	// value, for presence membership derivation.
	ScanPrefix(ctx context.Context, prefix string) (map[string]string, error)
}
