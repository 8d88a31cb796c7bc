package lobby

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonpython/gridmatch/internal/kv/memkv"
	"github.com/sonpython/gridmatch/internal/lobby/memupdates"
	"github.com/sonpython/gridmatch/internal/model"
)

func newTestManager() *Manager {
	return New(memkv.New(), memupdates.New())
}

func TestCreateLobbyAndFetchMetadata(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	gt := model.GameType{Kind: model.TeamMatch, PerTeam: 2}

	require.NoError(t, m.CreateLobby(ctx, "ABCD", 7, gt, model.Competitive, 1000))

	meta, ok, err := m.Metadata(ctx, "ABCD")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(7), meta.HostUserID)
	assert.Equal(t, model.Competitive, meta.QueueMode)
	assert.Equal(t, gt, meta.GameType)
}

func TestJoinAndMembersRoundtrip(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	require.NoError(t, m.Join(ctx, "ABCD", Member{UserID: 1, SessionID: "s1", Username: "alice"}))
	require.NoError(t, m.Join(ctx, "ABCD", Member{UserID: 2, SessionID: "s2", Username: "bob"}))

	members, err := m.Members(ctx, "ABCD")
	require.NoError(t, err)
	assert.Len(t, members, 2)

	isMember, err := m.IsMember(ctx, "ABCD", 1)
	require.NoError(t, err)
	assert.True(t, isMember)

	require.NoError(t, m.Leave(ctx, "ABCD", 1, "s1"))
	members, err = m.Members(ctx, "ABCD")
	require.NoError(t, err)
	assert.Len(t, members, 1)
	assert.Equal(t, uint32(2), members[0].UserID)
}

func TestJoinPublishesUpdateNotification(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	updates, closeFn, err := m.Subscribe(ctx, "ABCD")
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, m.Join(ctx, "ABCD", Member{UserID: 1, SessionID: "s1", Username: "alice"}))

	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("expected update notification on join")
	}
}

func TestDisbandLobbyRemovesMetadataAndNotifies(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	require.NoError(t, m.CreateLobby(ctx, "ABCD", 1, model.GameType{Kind: model.Solo}, model.Quickmatch, 0))

	updates, closeFn, err := m.Subscribe(ctx, "ABCD")
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, m.DisbandLobby(ctx, "ABCD"))

	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("expected update notification on disband")
	}

	_, ok, err := m.Metadata(ctx, "ABCD")
	require.NoError(t, err)
	assert.False(t, ok)
}
