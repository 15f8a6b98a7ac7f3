package pool

import (
	"fmt"
	"math/big"
)

// bootstrapClaims is the claim supply issued to the first depositor of an empty pool.
// Later issuance is proportional, so the value only sets the unit scale.
const bootstrapClaims = 100

var one = big.NewRat(1, 1)

func BootstrapClaimSupply() *big.Rat {
	return big.NewRat(bootstrapClaims, 1)
}

// SwapOutput prices amountIn against the constant-product curve after charging
// fee on the input side:
//
//	out = reserveOut * (1 - fee) * amountIn / (reserveIn + amountIn * (1 - fee))
//
// The result is exact and strictly below reserveOut for any live pool.
func SwapOutput(reserveIn, reserveOut, amountIn, fee *big.Rat) (*big.Rat, error) {
	if amountIn.Sign() == 0 {
		return new(big.Rat), nil
	}

	effective := new(big.Rat).Sub(one, fee)
	effective.Mul(effective, amountIn)

	denominator := new(big.Rat).Add(reserveIn, effective)
	if denominator.Sign() == 0 {
		return nil, fmt.Errorf("%w: input reserve is empty", ErrDivideByZero)
	}

	out := new(big.Rat).Mul(reserveOut, effective)
	out.Quo(out, denominator)

	if reserveOut.Sign() > 0 && out.Cmp(reserveOut) >= 0 {
		return nil, fmt.Errorf("%w: output %s would drain reserve %s",
			ErrInsufficientReserve, FormatAmount(out), FormatAmount(reserveOut))
	}
	return out, nil
}

// AcceptedDeposit decides how much of a deposit (dm, dn) the pool takes given
// reserves (m, n), so that a deposit never moves the reserve ratio. Ratios are
// compared by cross-multiplication, so a zero deposit on either side is safe.
func AcceptedDeposit(m, n, dm, dn *big.Rat) (*big.Rat, *big.Rat) {
	if m.Sign() == 0 || n.Sign() == 0 {
		return copyRat(dm), copyRat(dn)
	}

	current := new(big.Rat).Mul(m, dn)
	deposit := new(big.Rat).Mul(dm, n)

	switch current.Cmp(deposit) {
	case 0:
		return copyRat(dm), copyRat(dn)
	case -1:
		// asset A is overabundant in the deposit
		amountA := new(big.Rat).Mul(dn, m)
		amountA.Quo(amountA, n)
		return amountA, copyRat(dn)
	default:
		amountB := new(big.Rat).Mul(dm, n)
		amountB.Quo(amountB, m)
		return copyRat(dm), amountB
	}
}

// ClaimsToMint returns the claims owed for amountA accepted into reserve A,
// where m is reserve A before the deposit.
func ClaimsToMint(amountA, m, supply *big.Rat) (*big.Rat, error) {
	if supply.Sign() == 0 {
		return BootstrapClaimSupply(), nil
	}
	if m.Sign() == 0 {
		return nil, fmt.Errorf("%w: claims outstanding against an empty reserve", ErrInsufficientReserve)
	}
	minted := new(big.Rat).Mul(amountA, supply)
	return minted.Quo(minted, m), nil
}

// ShareOf returns reserve * claims / supply.
func ShareOf(reserve, claims, supply *big.Rat) (*big.Rat, error) {
	if supply.Sign() == 0 {
		return nil, fmt.Errorf("%w: no claims outstanding", ErrDivideByZero)
	}
	if claims.Cmp(supply) > 0 {
		return nil, fmt.Errorf("%w: claims %s exceed supply %s",
			ErrInsufficientReserve, FormatAmount(claims), FormatAmount(supply))
	}
	share := new(big.Rat).Mul(reserve, claims)
	return share.Quo(share, supply), nil
}
