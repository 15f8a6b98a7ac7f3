package aggregate

import (
	"math/big"
	"strings"
	"time"

	"ammPool/internal/pool"
)

const ratioScale = 18

var yearSeconds = big.NewRat(int64(365*24*time.Hour/time.Second), 1)

func formatAmount(value *big.Rat) string {
	return pool.FormatAmount(value)
}

func optionalAmount(value *big.Rat) *string {
	if value == nil {
		return nil
	}
	text := formatAmount(value)
	return &text
}

// computeFeeRates returns fees earned per unit of reserve for each side.
func computeFeeRates(feeA, feeB, tvlA, tvlB *big.Rat) (*string, *string) {
	return computeRate(feeA, tvlA), computeRate(feeB, tvlB)
}

func computeRate(fee, tvl *big.Rat) *string {
	if fee == nil || fee.Sign() == 0 || tvl == nil || tvl.Sign() == 0 {
		return nil
	}
	rate := new(big.Rat).Quo(fee, tvl).FloatString(ratioScale)
	return &rate
}

// computeAPR annualises the window's fee yield. Both sides are valued in
// asset A at the closing reserve ratio, so the pool is worth 2*tvlA.
func computeAPR(feeA, feeB, tvlA, tvlB *big.Rat, windowSeconds uint64) *string {
	if windowSeconds == 0 || tvlA == nil || tvlB == nil || tvlA.Sign() == 0 || tvlB.Sign() == 0 {
		return nil
	}

	earned := new(big.Rat).Set(feeA)
	priceB := new(big.Rat).Quo(tvlA, tvlB)
	earned.Add(earned, new(big.Rat).Mul(feeB, priceB))
	if earned.Sign() == 0 {
		return nil
	}

	value := new(big.Rat).Mul(tvlA, big.NewRat(2, 1))
	apr := new(big.Rat).Quo(earned, value)
	apr.Mul(apr, yearSeconds)
	apr.Quo(apr, big.NewRat(int64(windowSeconds), 1))
	text := apr.FloatString(ratioScale)
	return &text
}

func sameAddress(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
