package pool

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Vault holds the custodied balance of a single asset.
type Vault interface {
	Asset() common.Address
	Balance() *big.Rat
	Deposit(amount *big.Rat) error
	// Withdraw fails when amount exceeds Balance.
	Withdraw(amount *big.Rat) (*big.Rat, error)
}

// ClaimToken issues and retires the pool-unit claims handed to liquidity providers.
type ClaimToken interface {
	Identity() common.Address
	TotalSupply() *big.Rat
	Mint(amount *big.Rat) (Bucket, error)
	Burn(claims Bucket) error
}
