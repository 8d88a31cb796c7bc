package lease

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonpython/gridmatch/internal/kv/memkv"
)

func TestTryAcquireIsExclusive(t *testing.T) {
	store := memkv.New()
	a := New(store, "singleton_lease:matchmaker", "holder-a", time.Minute)
	b := New(store, "singleton_lease:matchmaker", "holder-b", time.Minute)

	acquired, err := a.TryAcquire(context.Background())
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, a.IsLeader())

	acquired, err = b.TryAcquire(context.Background())
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.False(t, b.IsLeader())
}

func TestRenewFailsAfterAnotherHolderTakesOver(t *testing.T) {
	store := memkv.New()
	key := "singleton_lease:matchmaker"
	a := New(store, key, "holder-a", time.Minute)

	acquired, err := a.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)

	// Simulate holder-a's lease expiring and a new holder winning the race.
	require.NoError(t, store.Delete(context.Background(), key))
	b := New(store, key, "holder-b", time.Minute)
	acquired, err = b.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)

	renewed, err := a.Renew(context.Background())
	require.NoError(t, err)
	assert.False(t, renewed)
	assert.False(t, a.IsLeader())
	assert.True(t, b.IsLeader())
}

// The leader loop starts the managed service once it acquires the lease,
// and cancelling the loop's context tears the service down within the
// grace period.
func TestRunStartsServiceOnlyOnAcquisition(t *testing.T) {
	store := memkv.New()
	key := "singleton_lease:matchmaker"
	l := New(store, key, "holder-a", 200*time.Millisecond)

	started := make(chan struct{}, 1)
	stopped := make(chan struct{}, 1)
	service := func(ctx context.Context) error {
		started <- struct{}{}
		<-ctx.Done()
		stopped <- struct{}{}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx, service, nil)
		close(done)
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("service never started")
	}
	assert.True(t, l.IsLeader())

	cancel()

	select {
	case <-stopped:
	case <-time.After(ShutdownGrace + time.Second):
		t.Fatal("service never stopped")
	}
	<-done
	assert.False(t, l.IsLeader())
}

func TestReleaseOnlyRemovesOwnHold(t *testing.T) {
	store := memkv.New()
	key := "singleton_lease:matchmaker"
	a := New(store, key, "holder-a", time.Minute)
	_, err := a.TryAcquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), key))
	b := New(store, key, "holder-b", time.Minute)
	_, err = b.TryAcquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, a.Release(context.Background()))

	v, ok, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "holder-b", v)
}
