// Package memnotifier is an in-process matchmaking.Notifier for tests.
package memnotifier

import (
	"context"
	"sync"

	"github.com/sonpython/gridmatch/internal/matchmaking"
)

// Notifier is an in-memory matchmaking.Notifier.
type Notifier struct {
	mu   sync.Mutex
	subs map[uint32][]chan matchmaking.MatchFoundNotification
}

// New returns an empty, ready-to-use Notifier.
func New() *Notifier {
	return &Notifier{subs: map[uint32][]chan matchmaking.MatchFoundNotification{}}
}

var _ matchmaking.Notifier = (*Notifier)(nil)

func (n *Notifier) NotifyMatchFound(_ context.Context, userID uint32, note matchmaking.MatchFoundNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs[userID] {
		select {
		case ch <- note:
		default:
			go func(c chan matchmaking.MatchFoundNotification) { c <- note }(ch)
		}
	}
	return nil
}

func (n *Notifier) Subscribe(_ context.Context, userID uint32) (<-chan matchmaking.MatchFoundNotification, func(), error) {
	ch := make(chan matchmaking.MatchFoundNotification, 4)
	n.mu.Lock()
	n.subs[userID] = append(n.subs[userID], ch)
	n.mu.Unlock()

	closeFn := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		subs := n.subs[userID]
		for i, c := range subs {
			if c == ch {
				n.subs[userID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return ch, closeFn, nil
}
