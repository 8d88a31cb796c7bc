package memkv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetIfAbsentIsConditional(t *testing.T) {
	s := New()
	ctx := context.Background()

	acquired, err := s.SetIfAbsent(ctx, "lease:x", "holder-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = s.SetIfAbsent(ctx, "lease:x", "holder-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	v, ok, err := s.Get(ctx, "lease:x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "holder-a", v)
}

func TestSetIfAbsentSucceedsAfterExpiry(t *testing.T) {
	s := New()
	fakeNow := time.Now()
	s.now = func() time.Time { return fakeNow }
	ctx := context.Background()

	acquired, err := s.SetIfAbsent(ctx, "lease:x", "holder-a", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	fakeNow = fakeNow.Add(2 * time.Second)

	acquired, err = s.SetIfAbsent(ctx, "lease:x", "holder-b", time.Second)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestCompareAndSwapTTLRejectsMismatch(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.SetIfAbsent(ctx, "lease:x", "holder-a", time.Minute)
	require.NoError(t, err)

	renewed, err := s.CompareAndSwapTTL(ctx, "lease:x", "holder-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, renewed)

	renewed, err = s.CompareAndSwapTTL(ctx, "lease:x", "holder-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, renewed)
}

func TestScanPrefixReturnsOnlyLiveMatches(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "lobby:ABCD:member:1:s1", "alive", time.Minute))
	require.NoError(t, s.Set(ctx, "lobby:ABCD:member:2:s2", "alive", time.Minute))
	require.NoError(t, s.Set(ctx, "lobby:WXYZ:member:3:s3", "alive", time.Minute))

	members, err := s.ScanPrefix(ctx, "lobby:ABCD:member:")
	require.NoError(t, err)
	assert.Len(t, members, 2)
	assert.Contains(t, members, "lobby:ABCD:member:1:s1")
	assert.Contains(t, members, "lobby:ABCD:member:2:s2")
	assert.NotContains(t, members, "lobby:WXYZ:member:3:s3")
}

func TestDelete(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "v", 0))
	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
