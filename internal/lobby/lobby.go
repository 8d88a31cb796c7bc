// Package lobby manages small pre-match groups per spec.md section 4.G:
// a lobby has a code, a host, and members, with membership derived from
// TTL'd presence keys in internal/kv rather than an explicit roster the
// gateway must keep consistent on disconnect.
package lobby

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sonpython/gridmatch/internal/kv"
	"github.com/sonpython/gridmatch/internal/model"
)

// PresenceTTL is how long a member's presence key survives without a
// refresh before it is considered to have left.
const PresenceTTL = 30 * time.Second

// RefreshInterval is how often the session gateway is expected to renew
// a member's presence key. Comfortably under PresenceTTL so one or two
// missed refreshes (a slow tick, a brief network hiccup) don't drop the
// member.
const RefreshInterval = 10 * time.Second

// Member is one lobby occupant, recorded as the value of its presence
// key so readers that only have the key prefix scan can still recover
// who is present without a second lookup.
type Member struct {
	UserID    uint32 `json:"user_id"`
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
}

// Metadata is the lobby's host and match configuration, stored
// separately from presence since it doesn't expire with a member.
type Metadata struct {
	Code       string          `json:"code"`
	HostUserID uint32          `json:"host_user_id"`
	GameType   model.GameType  `json:"game_type"`
	QueueMode  model.QueueMode `json:"queue_mode"`
	CreatedMs  int64           `json:"created_ms"`
}

func metadataKey(code string) string {
	return fmt.Sprintf("lobby:%s:metadata", code)
}

func memberKey(code string, userID uint32, sessionID string) string {
	return fmt.Sprintf("lobby:%s:member:%d:%s", code, userID, sessionID)
}

func memberPrefix(code string) string {
	return fmt.Sprintf("lobby:%s:member:", code)
}

// Manager is the lobby presence service: conditional-KV-backed
// membership plus an update notification fanned out on every join,
// refresh, or leave so listening sessions know to re-fetch the roster.
type Manager struct {
	store   kv.Store
	updates Updates
}

// New wires a Manager over a kv.Store and an Updates notifier.
func New(store kv.Store, updates Updates) *Manager {
	return &Manager{store: store, updates: updates}
}

// CreateLobby records a new lobby's metadata. The host still needs to
// Join separately; CreateLobby only establishes who owns the lobby and
// what it's queuing for.
func (m *Manager) CreateLobby(ctx context.Context, code string, hostUserID uint32, gt model.GameType, qm model.QueueMode, nowMs int64) error {
	meta := Metadata{Code: code, HostUserID: hostUserID, GameType: gt, QueueMode: qm, CreatedMs: nowMs}
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal lobby metadata: %w", err)
	}
	return m.store.Set(ctx, metadataKey(code), string(payload), 0)
}

// Metadata fetches a lobby's host and match configuration.
func (m *Manager) Metadata(ctx context.Context, code string) (Metadata, bool, error) {
	raw, ok, err := m.store.Get(ctx, metadataKey(code))
	if err != nil || !ok {
		return Metadata{}, false, err
	}
	var meta Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return Metadata{}, false, fmt.Errorf("unmarshal lobby metadata: %w", err)
	}
	return meta, true, nil
}

// DisbandLobby removes a lobby's metadata and notifies listeners. Member
// presence keys are left to expire on their own TTL.
func (m *Manager) DisbandLobby(ctx context.Context, code string) error {
	if err := m.store.Delete(ctx, metadataKey(code)); err != nil {
		return err
	}
	return m.updates.Publish(ctx, code)
}

// Join records or refreshes a member's presence for PresenceTTL and
// notifies listeners; calling it again for the same session refreshes
// the TTL.
func (m *Manager) Join(ctx context.Context, code string, member Member) error {
	payload, err := json.Marshal(member)
	if err != nil {
		return fmt.Errorf("marshal lobby member: %w", err)
	}
	if err := m.store.Set(ctx, memberKey(code, member.UserID, member.SessionID), string(payload), PresenceTTL); err != nil {
		return err
	}
	return m.updates.Publish(ctx, code)
}

// Leave removes a member's presence key ahead of its TTL, for a clean
// disconnect or explicit "leave lobby" action.
func (m *Manager) Leave(ctx context.Context, code string, userID uint32, sessionID string) error {
	if err := m.store.Delete(ctx, memberKey(code, userID, sessionID)); err != nil {
		return err
	}
	return m.updates.Publish(ctx, code)
}

// Members derives the live roster by scanning presence keys under the
// lobby's prefix. A member with more than one live session appears once
// per session, since each session is independently present.
func (m *Manager) Members(ctx context.Context, code string) ([]Member, error) {
	matches, err := m.store.ScanPrefix(ctx, memberPrefix(code))
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(matches))
	for _, raw := range matches {
		var mem Member
		if err := json.Unmarshal([]byte(raw), &mem); err != nil {
			continue
		}
		members = append(members, mem)
	}
	return members, nil
}

// IsMember reports whether userID has a live presence key in the lobby,
// regardless of which session established it.
func (m *Manager) IsMember(ctx context.Context, code string, userID uint32) (bool, error) {
	members, err := m.Members(ctx, code)
	if err != nil {
		return false, err
	}
	for _, mem := range members {
		if mem.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// Subscribe listens for lobby update notifications, delegating to the
// configured Updates backend.
func (m *Manager) Subscribe(ctx context.Context, code string) (<-chan struct{}, func(), error) {
	return m.updates.Subscribe(ctx, code)
}
