package pool

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const displayScale = 18

// Bucket is a fungible holding of one asset in transit between a caller and a pool.
type Bucket struct {
	Asset  common.Address
	Amount *big.Rat
}

// NewBucket copies amount so later mutation by the caller cannot reach pool state.
func NewBucket(asset common.Address, amount *big.Rat) Bucket {
	return Bucket{Asset: asset, Amount: copyRat(amount)}
}

func EmptyBucket(asset common.Address) Bucket {
	return Bucket{Asset: asset, Amount: new(big.Rat)}
}

func (b Bucket) IsEmpty() bool {
	return b.Amount == nil || b.Amount.Sign() == 0
}

func (b Bucket) String() string {
	return FormatAmount(b.Amount) + " " + b.Asset.Hex()
}

func (b Bucket) validate() error {
	if b.Amount == nil || b.Amount.Sign() < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, b.Asset.Hex())
	}
	return nil
}

// ParseAmount parses a non-negative decimal ("12.5") or fraction ("1/3").
func ParseAmount(input string) (*big.Rat, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return new(big.Rat), nil
	}
	value, ok := new(big.Rat).SetString(input)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", input)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, input)
	}
	return value, nil
}

// FormatAmount renders an exact amount with 18 decimal places, trimming trailing zeros.
func FormatAmount(value *big.Rat) string {
	if value == nil {
		return "0"
	}
	if value.IsInt() {
		return value.Num().String()
	}
	text := value.FloatString(displayScale)
	text = strings.TrimRight(text, "0")
	return strings.TrimSuffix(text, ".")
}

func copyRat(value *big.Rat) *big.Rat {
	if value == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(value)
}
