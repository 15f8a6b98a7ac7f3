package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ammPool/internal/pool"
)

// Custody hands out fresh in-memory vaults, claim tokens and credentials.
type Custody struct{}

func NewCustody() *Custody {
	return &Custody{}
}

func (c *Custody) NewVault(asset common.Address) pool.Vault {
	return NewVault(asset)
}

func (c *Custody) NewClaimToken(identity common.Address) pool.ClaimToken {
	return NewClaimToken(identity)
}

// NewBadge issues a single indivisible credential unit.
func (c *Custody) NewBadge(identity common.Address) pool.Bucket {
	return pool.NewBucket(identity, big.NewRat(1, 1))
}
