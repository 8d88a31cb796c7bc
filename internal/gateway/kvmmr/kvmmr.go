// Package kvmmr is a kv.Store-backed gateway.MMRProvider: a player's
// rating lives at a single unkeyed-TTL key, the same conditional-KV
// surface internal/lease and internal/lobby already use. Rating
// updates (win/loss adjustment) are out of scope here per
// internal/gateway's MMRProvider comment ("persistence and decay are
// delegated to the external collaborator"); this package only serves
// the read path plus a seed-on-first-sight default.
package kvmmr

import (
	"context"
	"strconv"

	"github.com/sonpython/gridmatch/internal/gateway"
	"github.com/sonpython/gridmatch/internal/kv"
)

func mmrKey(userID uint32) string {
	return "mmr:" + strconv.FormatUint(uint64(userID), 10)
}

// Provider is a gateway.MMRProvider reading from a kv.Store, defaulting
// unseen users to defaultMMR without writing it back.
type Provider struct {
	store      kv.Store
	defaultMMR int
}

// New returns a Provider over store, seeding unseen users with defaultMMR.
func New(store kv.Store, defaultMMR int) *Provider {
	return &Provider{store: store, defaultMMR: defaultMMR}
}

var _ gateway.MMRProvider = (*Provider)(nil)

func (p *Provider) MMR(ctx context.Context, userID uint32) (int, error) {
	raw, ok, err := p.store.Get(ctx, mmrKey(userID))
	if err != nil {
		return 0, err
	}
	if !ok {
		return p.defaultMMR, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return p.defaultMMR, nil
	}
	return v, nil
}
