package kvmmr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonpython/gridmatch/internal/kv/memkv"
)

func TestMMRReturnsDefaultForUnseenUser(t *testing.T) {
	store := memkv.New()
	p := New(store, 1200)

	v, err := p.MMR(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 1200, v)
}

func TestMMRReturnsStoredValue(t *testing.T) {
	store := memkv.New()
	require.NoError(t, store.Set(context.Background(), mmrKey(42), "1875", time.Hour))
	p := New(store, 1200)

	v, err := p.MMR(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 1875, v)
}

func TestMMRFallsBackToDefaultOnUnparsableValue(t *testing.T) {
	store := memkv.New()
	require.NoError(t, store.Set(context.Background(), mmrKey(7), "not-a-number", time.Hour))
	p := New(store, 1200)

	v, err := p.MMR(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1200, v)
}
