// Package memupdates is an in-process lobby.Updates for tests.
package memupdates

import (
	"context"
	"sync"

	"github.com/sonpython/gridmatch/internal/lobby"
)

// Updates is an in-memory lobby.Updates.
type Updates struct {
	mu   sync.Mutex
	subs map[string][]chan struct{}
}

// New returns an empty, ready-to-use Updates.
func New() *Updates {
	return &Updates{subs: map[string][]chan struct{}{}}
}

var _ lobby.Updates = (*Updates)(nil)

func (u *Updates) Publish(_ context.Context, code string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, ch := range u.subs[code] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (u *Updates) Subscribe(_ context.Context, code string) (<-chan struct{}, func(), error) {
	ch := make(chan struct{}, 4)
	u.mu.Lock()
	u.subs[code] = append(u.subs[code], ch)
	u.mu.Unlock()

	closeFn := func() {
		u.mu.Lock()
		defer u.mu.Unlock()
		subs := u.subs[code]
		for i, c := range subs {
			if c == ch {
				u.subs[code] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return ch, closeFn, nil
}
