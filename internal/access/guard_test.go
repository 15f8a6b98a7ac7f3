package access

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammPool/internal/pool"
)

type stubEngine struct {
	price *big.Rat
	state pool.State
}

func (s stubEngine) SpotPrice() (*big.Rat, error) { return s.price, nil }

func (s stubEngine) Snapshot() pool.State { return s.state }

var badge = common.HexToAddress("0x00000000000000000000000000000000000000b1")

func TestGuardAuthorizes(t *testing.T) {
	engine := stubEngine{
		price: big.NewRat(3, 2),
		state: pool.State{ReserveA: big.NewRat(300, 1), ReserveB: big.NewRat(200, 1)},
	}
	guard := NewGuard(engine, badge)
	assert.Equal(t, badge, guard.Badge())

	price, err := guard.SpotPrice(pool.NewBucket(badge, big.NewRat(1, 1)))
	require.NoError(t, err)
	assert.Zero(t, price.Cmp(big.NewRat(3, 2)))

	state, err := guard.Report(pool.NewBucket(badge, big.NewRat(2, 1)))
	require.NoError(t, err)
	assert.Zero(t, state.ReserveA.Cmp(big.NewRat(300, 1)))
}

func TestGuardRejects(t *testing.T) {
	guard := NewGuard(stubEngine{price: big.NewRat(1, 1)}, badge)

	_, err := guard.SpotPrice(pool.NewBucket(common.HexToAddress("0xb2"), big.NewRat(1, 1)))
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = guard.SpotPrice(pool.NewBucket(badge, big.NewRat(1, 2)))
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = guard.Report(pool.Bucket{Asset: badge})
	require.ErrorIs(t, err, ErrUnauthorized)
}
