package ledger

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"ammPool/internal/pool"
)

// Wallet holds the buckets an account has received.
type Wallet struct {
	mu       sync.RWMutex
	holdings map[common.Address]*big.Rat
}

func NewWallet() *Wallet {
	return &Wallet{holdings: make(map[common.Address]*big.Rat)}
}

// Credit adds a bucket to the wallet.
func (w *Wallet) Credit(bucket pool.Bucket) error {
	if bucket.Amount == nil || bucket.Amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	held, ok := w.holdings[bucket.Asset]
	if !ok {
		held = new(big.Rat)
		w.holdings[bucket.Asset] = held
	}
	held.Add(held, bucket.Amount)
	return nil
}

// Take removes amount of asset from the wallet and returns it as a bucket.
func (w *Wallet) Take(asset common.Address, amount *big.Rat) (pool.Bucket, error) {
	if amount == nil || amount.Sign() < 0 {
		return pool.Bucket{}, ErrNegativeAmount
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	held, ok := w.holdings[asset]
	if !ok {
		held = new(big.Rat)
	}
	if amount.Cmp(held) > 0 {
		return pool.Bucket{}, fmt.Errorf("%w: need %s of %s, have %s",
			ErrInsufficientBalance, pool.FormatAmount(amount), asset.Hex(), pool.FormatAmount(held))
	}
	held.Sub(held, amount)
	return pool.NewBucket(asset, amount), nil
}

func (w *Wallet) Balance(asset common.Address) *big.Rat {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if held, ok := w.holdings[asset]; ok {
		return new(big.Rat).Set(held)
	}
	return new(big.Rat)
}

// Assets lists held assets in address order.
func (w *Wallet) Assets() []common.Address {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]common.Address, 0, len(w.holdings))
	for asset := range w.holdings {
		out = append(out, asset)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Cmp(out[j]) < 0
	})
	return out
}
