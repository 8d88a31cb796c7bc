package matchmaking

import "context"

// MatchFoundNotification is sent to a matched user's session gateway so it
// can transition the client out of the queue, per spec.md section 4.F
// step 4 ("notify each user's gateway via a per-user notification
// channel") — named after matchmaking_manager.rs's MatchNotification enum,
// simplified to the one variant the gateway actually needs to act on.
type MatchFoundNotification struct {
	GameID    uint32
	Partition int
}

// Notifier delivers per-user match notifications out of band from the
// partition pubsub fabric, grounded on
// original_source/server/src/redis_keys.rs's
// matchmaking:notification:{user_id} channel.
type Notifier interface {
	NotifyMatchFound(ctx context.Context, userID uint32, n MatchFoundNotification) error
	Subscribe(ctx context.Context, userID uint32) (<-chan MatchFoundNotification, func(), error)
}
