package pool

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// State is a point-in-time view of a pool.
type State struct {
	Address     common.Address
	AssetA      common.Address
	AssetB      common.Address
	ClaimToken  common.Address
	ReserveA    *big.Rat
	ReserveB    *big.Rat
	ClaimSupply *big.Rat
	FeeRate     *big.Rat
}

// Dormant reports a fully drained pool: both reserves and the claim supply are zero.
func (s State) Dormant() bool {
	return s.ReserveA.Sign() == 0 && s.ReserveB.Sign() == 0 && s.ClaimSupply.Sign() == 0
}
