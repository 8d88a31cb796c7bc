// Package memauth is a static-table gateway.Authenticator for tests and
// local development: tokens map directly to a fixed identity.
package memauth

import (
	"context"
	"errors"
	"sync"

	"github.com/sonpython/gridmatch/internal/gateway"
)

type identity struct {
	userID   uint32
	username string
}

// Authenticator is a fixed token-to-identity table.
type Authenticator struct {
	mu     sync.RWMutex
	tokens map[string]identity
}

// New returns an empty Authenticator; register identities with Register.
func New() *Authenticator {
	return &Authenticator{tokens: map[string]identity{}}
}

var _ gateway.Authenticator = (*Authenticator)(nil)

// Register associates token with userID/username for future Authenticate
// calls.
func (a *Authenticator) Register(token string, userID uint32, username string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens[token] = identity{userID: userID, username: username}
}

func (a *Authenticator) Authenticate(_ context.Context, token string) (uint32, string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.tokens[token]
	if !ok {
		return 0, "", errors.New("unknown token")
	}
	return id.userID, id.username, nil
}
