// Package ledger provides in-memory custody, claim issuance and wallets for
// hosts that run pools without an external ledger.
package ledger

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"ammPool/internal/pool"
)

// Vault custodies a single asset.
type Vault struct {
	asset common.Address

	mu      sync.RWMutex
	balance *big.Rat
}

func NewVault(asset common.Address) *Vault {
	return &Vault{asset: asset, balance: new(big.Rat)}
}

func (v *Vault) Asset() common.Address {
	return v.asset
}

func (v *Vault) Balance() *big.Rat {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return new(big.Rat).Set(v.balance)
}

func (v *Vault) Deposit(amount *big.Rat) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	v.mu.Lock()
	v.balance.Add(v.balance, amount)
	v.mu.Unlock()
	return nil
}

func (v *Vault) Withdraw(amount *big.Rat) (*big.Rat, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if amount.Cmp(v.balance) > 0 {
		return nil, fmt.Errorf("%w: withdraw %s of %s from %s",
			ErrInsufficientBalance, pool.FormatAmount(amount), pool.FormatAmount(v.balance), v.asset.Hex())
	}
	v.balance.Sub(v.balance, amount)
	return new(big.Rat).Set(amount), nil
}
