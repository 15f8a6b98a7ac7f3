// Package access gates administrative pool queries behind a credential badge.
// Trading operations are not wrapped: they stay permissionless on the engine.
package access

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ammPool/internal/pool"
)

var ErrUnauthorized = errors.New("credential does not grant admin access")

// Engine is the subset of pool.Engine a Guard exposes.
type Engine interface {
	SpotPrice() (*big.Rat, error)
	Snapshot() pool.State
}

// Guard requires proof of a badge before serving administrative queries.
type Guard struct {
	engine Engine
	badge  common.Address
}

func NewGuard(engine Engine, badge common.Address) *Guard {
	return &Guard{engine: engine, badge: badge}
}

func (g *Guard) Badge() common.Address {
	return g.badge
}

// SpotPrice returns the pool price of A in B for a holder of the badge.
func (g *Guard) SpotPrice(credential pool.Bucket) (*big.Rat, error) {
	if err := g.authorize(credential); err != nil {
		return nil, err
	}
	return g.engine.SpotPrice()
}

// Report returns the reserves and claim supply for a holder of the badge.
func (g *Guard) Report(credential pool.Bucket) (pool.State, error) {
	if err := g.authorize(credential); err != nil {
		return pool.State{}, err
	}
	return g.engine.Snapshot(), nil
}

func (g *Guard) authorize(credential pool.Bucket) error {
	if credential.Asset != g.badge {
		return fmt.Errorf("%w: %s", ErrUnauthorized, credential.Asset.Hex())
	}
	if credential.Amount == nil || credential.Amount.Cmp(big.NewRat(1, 1)) < 0 {
		return fmt.Errorf("%w: empty credential", ErrUnauthorized)
	}
	return nil
}
