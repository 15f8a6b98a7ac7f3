package ledger

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"ammPool/internal/pool"
)

// ClaimToken tracks the supply of one fungible claim resource.
type ClaimToken struct {
	identity common.Address

	mu     sync.RWMutex
	supply *big.Rat
}

func NewClaimToken(identity common.Address) *ClaimToken {
	return &ClaimToken{identity: identity, supply: new(big.Rat)}
}

func (c *ClaimToken) Identity() common.Address {
	return c.identity
}

func (c *ClaimToken) TotalSupply() *big.Rat {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return new(big.Rat).Set(c.supply)
}

func (c *ClaimToken) Mint(amount *big.Rat) (pool.Bucket, error) {
	if amount == nil || amount.Sign() < 0 {
		return pool.Bucket{}, ErrNegativeAmount
	}
	c.mu.Lock()
	c.supply.Add(c.supply, amount)
	c.mu.Unlock()
	return pool.NewBucket(c.identity, amount), nil
}

func (c *ClaimToken) Burn(claims pool.Bucket) error {
	if claims.Asset != c.identity {
		return fmt.Errorf("%w: %s", ErrWrongResource, claims.Asset.Hex())
	}
	if claims.Amount == nil || claims.Amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if claims.Amount.Cmp(c.supply) > 0 {
		return fmt.Errorf("%w: burn %s of supply %s",
			ErrInsufficientBalance, pool.FormatAmount(claims.Amount), pool.FormatAmount(c.supply))
	}
	c.supply.Sub(c.supply, claims.Amount)
	return nil
}
