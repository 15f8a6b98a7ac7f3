package simulate

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"ammPool/internal/pool"
)

// ParseAddress converts a hex string into common.Address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	return common.HexToAddress(input), nil
}

func parseBucket(asset, amount string) (pool.Bucket, error) {
	address, err := ParseAddress(asset)
	if err != nil {
		return pool.Bucket{}, err
	}
	value, err := pool.ParseAmount(amount)
	if err != nil {
		return pool.Bucket{}, err
	}
	return pool.NewBucket(address, value), nil
}

func accountKey(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}
