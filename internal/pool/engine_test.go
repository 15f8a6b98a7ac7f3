package pool_test

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ammPool/internal/ledger"
	"ammPool/internal/pool"
)

var (
	assetA     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	assetB     = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	foreign    = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	claimID    = common.HexToAddress("0x00000000000000000000000000000000000000dd")
	poolAddr   = common.HexToAddress("0x0000000000000000000000000000000000000abc")
	otherClaim = common.HexToAddress("0x00000000000000000000000000000000000000ee")
)

func rat(value string) *big.Rat {
	r, ok := new(big.Rat).SetString(value)
	if !ok {
		panic("bad rat: " + value)
	}
	return r
}

func bucket(asset common.Address, amount string) pool.Bucket {
	return pool.NewBucket(asset, rat(amount))
}

func newParams(fee string) pool.Params {
	return pool.Params{
		Address: poolAddr,
		VaultA:  ledger.NewVault(assetA),
		VaultB:  ledger.NewVault(assetB),
		Claims:  ledger.NewClaimToken(claimID),
		FeeRate: rat(fee),
		Logger:  zap.NewNop(),
	}
}

func newPool(t require.TestingT, a, b, fee string) (*pool.Engine, pool.Bucket) {
	engine, claims, err := pool.Create(newParams(fee), bucket(assetA, a), bucket(assetB, b))
	require.NoError(t, err)
	return engine, claims
}

func requireRat(t require.TestingT, want string, got *big.Rat) {
	require.Zero(t, rat(want).Cmp(got), "want %s got %s", want, got.RatString())
}

func TestCreate(t *testing.T) {
	engine, claims := newPool(t, "1000", "1000", "0.003")

	assert.Equal(t, claimID, claims.Asset)
	requireRat(t, "100", claims.Amount)

	state := engine.Snapshot()
	requireRat(t, "1000", state.ReserveA)
	requireRat(t, "1000", state.ReserveB)
	requireRat(t, "100", state.ClaimSupply)
	requireRat(t, "0.003", state.FeeRate)
	assert.False(t, state.Dormant())
}

func TestCreateValidation(t *testing.T) {
	t.Run("EmptyInitialSupply", func(t *testing.T) {
		_, _, err := pool.Create(newParams("0"), bucket(assetA, "0"), bucket(assetB, "10"))
		require.ErrorIs(t, err, pool.ErrInvalidInitialSupply)
	})

	t.Run("NilInitialSupply", func(t *testing.T) {
		_, _, err := pool.Create(newParams("0"), pool.Bucket{Asset: assetA}, bucket(assetB, "10"))
		require.ErrorIs(t, err, pool.ErrInvalidInitialSupply)
	})

	t.Run("FeeAboveOne", func(t *testing.T) {
		_, _, err := pool.Create(newParams("1.01"), bucket(assetA, "1"), bucket(assetB, "1"))
		require.ErrorIs(t, err, pool.ErrInvalidFeeRate)
	})

	t.Run("NegativeFee", func(t *testing.T) {
		_, _, err := pool.Create(newParams("-0.1"), bucket(assetA, "1"), bucket(assetB, "1"))
		require.ErrorIs(t, err, pool.ErrInvalidFeeRate)
	})

	t.Run("FeeBoundsInclusive", func(t *testing.T) {
		_, _, err := pool.Create(newParams("1"), bucket(assetA, "1"), bucket(assetB, "1"))
		require.NoError(t, err)
		_, _, err = pool.Create(newParams("0"), bucket(assetA, "1"), bucket(assetB, "1"))
		require.NoError(t, err)
	})

	t.Run("MismatchedVault", func(t *testing.T) {
		_, _, err := pool.Create(newParams("0"), bucket(assetB, "1"), bucket(assetA, "1"))
		require.ErrorIs(t, err, pool.ErrForeignAsset)
	})

	t.Run("IdenticalAssets", func(t *testing.T) {
		_, _, err := pool.Create(newParams("0"), bucket(assetA, "1"), bucket(assetA, "1"))
		require.ErrorIs(t, err, pool.ErrIdenticalAssets)
	})

	t.Run("NoStateOnFailure", func(t *testing.T) {
		params := newParams("2")
		_, _, err := pool.Create(params, bucket(assetA, "5"), bucket(assetB, "5"))
		require.Error(t, err)
		assert.Zero(t, params.VaultA.Balance().Sign())
		assert.Zero(t, params.Claims.TotalSupply().Sign())
	})
}

// Scenario: (1000, 1000) at 0.3% fee, swap 100 of A.
func TestSwapScenario(t *testing.T) {
	engine, _ := newPool(t, "1000", "1000", "0.003")

	out, err := engine.Swap(bucket(assetA, "100"))
	require.NoError(t, err)
	assert.Equal(t, assetB, out.Asset)

	want := big.NewRat(997000, 10997)
	require.Zero(t, want.Cmp(out.Amount), "got %s", out.Amount.RatString())

	state := engine.Snapshot()
	requireRat(t, "1100", state.ReserveA)
	require.Zero(t, new(big.Rat).Sub(rat("1000"), want).Cmp(state.ReserveB))
}

func TestSwapEitherDirection(t *testing.T) {
	engine, _ := newPool(t, "1000", "4000", "0")

	out, err := engine.Swap(bucket(assetB, "1000"))
	require.NoError(t, err)
	assert.Equal(t, assetA, out.Asset)
	// 1000 * 1000 / (4000 + 1000)
	requireRat(t, "200", out.Amount)
}

func TestSwapZeroInput(t *testing.T) {
	engine, _ := newPool(t, "1000", "1000", "0.003")
	before := engine.Snapshot()

	out, err := engine.Swap(bucket(assetA, "0"))
	require.NoError(t, err)
	assert.True(t, out.IsEmpty())
	assert.Equal(t, assetB, out.Asset)

	after := engine.Snapshot()
	assert.Zero(t, before.ReserveA.Cmp(after.ReserveA))
	assert.Zero(t, before.ReserveB.Cmp(after.ReserveB))
}

func TestSwapRejections(t *testing.T) {
	engine, _ := newPool(t, "1000", "1000", "0.003")

	_, err := engine.Swap(bucket(foreign, "1"))
	require.ErrorIs(t, err, pool.ErrForeignAsset)

	_, err = engine.Swap(pool.Bucket{Asset: assetA, Amount: big.NewRat(-1, 1)})
	require.ErrorIs(t, err, pool.ErrInvalidAmount)

	state := engine.Snapshot()
	requireRat(t, "1000", state.ReserveA)
	requireRat(t, "1000", state.ReserveB)
}

func TestQuoteDoesNotMutate(t *testing.T) {
	engine, _ := newPool(t, "1000", "1000", "0.003")

	quote, err := engine.Quote(bucket(assetA, "100"))
	require.NoError(t, err)

	state := engine.Snapshot()
	requireRat(t, "1000", state.ReserveA)

	out, err := engine.Swap(bucket(assetA, "100"))
	require.NoError(t, err)
	assert.Zero(t, quote.Amount.Cmp(out.Amount))
}

// Scenarios: ratio-matching deposit mints 50 claims; burning them returns the deposit.
func TestAddThenRemoveLiquidityScenario(t *testing.T) {
	engine, _ := newPool(t, "1000", "1000", "0")

	leftA, leftB, claims, err := engine.AddLiquidity(bucket(assetA, "500"), bucket(assetB, "500"))
	require.NoError(t, err)
	assert.True(t, leftA.IsEmpty())
	assert.True(t, leftB.IsEmpty())
	requireRat(t, "50", claims.Amount)
	requireRat(t, "150", engine.Snapshot().ClaimSupply)

	outA, outB, err := engine.RemoveLiquidity(claims)
	require.NoError(t, err)
	assert.Equal(t, assetA, outA.Asset)
	assert.Equal(t, assetB, outB.Asset)
	requireRat(t, "500", outA.Amount)
	requireRat(t, "500", outB.Amount)

	state := engine.Snapshot()
	requireRat(t, "1000", state.ReserveA)
	requireRat(t, "1000", state.ReserveB)
	requireRat(t, "100", state.ClaimSupply)
}

func TestAddLiquidityReversedOrder(t *testing.T) {
	engine, _ := newPool(t, "1000", "2000", "0")

	leftA, leftB, claims, err := engine.AddLiquidity(bucket(assetB, "200"), bucket(assetA, "100"))
	require.NoError(t, err)
	assert.Equal(t, assetA, leftA.Asset)
	assert.Equal(t, assetB, leftB.Asset)
	assert.True(t, leftA.IsEmpty())
	assert.True(t, leftB.IsEmpty())
	requireRat(t, "10", claims.Amount)
}

func TestAddLiquidityReturnsLeftover(t *testing.T) {
	engine, _ := newPool(t, "1000", "1000", "0")

	leftA, leftB, claims, err := engine.AddLiquidity(bucket(assetA, "300"), bucket(assetB, "100"))
	require.NoError(t, err)
	requireRat(t, "200", leftA.Amount)
	requireRat(t, "0", leftB.Amount)
	requireRat(t, "10", claims.Amount)

	leftA, leftB, claims, err = engine.AddLiquidity(bucket(assetA, "110"), bucket(assetB, "500"))
	require.NoError(t, err)
	requireRat(t, "0", leftA.Amount)
	requireRat(t, "390", leftB.Amount)
	requireRat(t, "11", claims.Amount)

	price, err := engine.SpotPrice()
	require.NoError(t, err)
	requireRat(t, "1", price)
}

func TestAddLiquidityZeroSide(t *testing.T) {
	engine, _ := newPool(t, "1000", "1000", "0")

	leftA, leftB, claims, err := engine.AddLiquidity(bucket(assetA, "50"), bucket(assetB, "0"))
	require.NoError(t, err)
	requireRat(t, "50", leftA.Amount)
	requireRat(t, "0", leftB.Amount)
	assert.True(t, claims.IsEmpty())

	leftA, leftB, claims, err = engine.AddLiquidity(bucket(assetA, "0"), bucket(assetB, "50"))
	require.NoError(t, err)
	requireRat(t, "0", leftA.Amount)
	requireRat(t, "50", leftB.Amount)
	assert.True(t, claims.IsEmpty())
	requireRat(t, "100", engine.Snapshot().ClaimSupply)
}

func TestAddLiquidityForeign(t *testing.T) {
	engine, _ := newPool(t, "1000", "1000", "0")

	_, _, _, err := engine.AddLiquidity(bucket(assetA, "1"), bucket(foreign, "1"))
	require.ErrorIs(t, err, pool.ErrForeignAsset)

	_, _, _, err = engine.AddLiquidity(bucket(assetA, "1"), bucket(assetA, "1"))
	require.ErrorIs(t, err, pool.ErrForeignAsset)
}

func TestRemoveLiquidityDrainsAndRevives(t *testing.T) {
	engine, claims := newPool(t, "1000", "250", "0.01")

	outA, outB, err := engine.RemoveLiquidity(claims)
	require.NoError(t, err)
	requireRat(t, "1000", outA.Amount)
	requireRat(t, "250", outB.Amount)

	state := engine.Snapshot()
	assert.True(t, state.Dormant())

	_, err = engine.SpotPrice()
	require.ErrorIs(t, err, pool.ErrDivideByZero)

	_, _, _, err = engine.AddLiquidity(bucket(assetA, "10"), bucket(assetB, "0"))
	require.ErrorIs(t, err, pool.ErrInvalidInitialSupply)

	_, err = engine.Swap(bucket(assetA, "10"))
	require.ErrorIs(t, err, pool.ErrInsufficientReserve)

	_, _, revived, err := engine.AddLiquidity(bucket(assetA, "40"), bucket(assetB, "10"))
	require.NoError(t, err)
	requireRat(t, "100", revived.Amount)

	price, err := engine.SpotPrice()
	require.NoError(t, err)
	requireRat(t, "4", price)
}

func TestRemoveLiquidityRejections(t *testing.T) {
	engine, claims := newPool(t, "1000", "1000", "0")

	_, _, err := engine.RemoveLiquidity(bucket(otherClaim, "10"))
	require.ErrorIs(t, err, pool.ErrWrongClaimToken)

	_, _, err = engine.RemoveLiquidity(bucket(claimID, "101"))
	require.ErrorIs(t, err, pool.ErrInsufficientReserve)

	outA, outB, err := engine.RemoveLiquidity(bucket(claimID, "0"))
	require.NoError(t, err)
	assert.True(t, outA.IsEmpty())
	assert.True(t, outB.IsEmpty())

	requireRat(t, "100", engine.Snapshot().ClaimSupply)
	requireRat(t, "100", claims.Amount)
}

func TestSpotPriceIdempotent(t *testing.T) {
	engine, _ := newPool(t, "300", "200", "0.003")

	first, err := engine.SpotPrice()
	require.NoError(t, err)
	second, err := engine.SpotPrice()
	require.NoError(t, err)

	requireRat(t, "1.5", first)
	assert.Zero(t, first.Cmp(second))
}

type failingVault struct {
	*ledger.Vault
	failWithdraw bool
	failDeposit  bool
}

func (f *failingVault) Deposit(amount *big.Rat) error {
	if f.failDeposit {
		return errors.New("vault offline")
	}
	return f.Vault.Deposit(amount)
}

func (f *failingVault) Withdraw(amount *big.Rat) (*big.Rat, error) {
	if f.failWithdraw {
		return nil, errors.New("vault offline")
	}
	return f.Vault.Withdraw(amount)
}

func TestSwapRevertsOnCustodyFailure(t *testing.T) {
	vaultB := &failingVault{Vault: ledger.NewVault(assetB)}
	params := newParams("0")
	params.VaultB = vaultB

	engine, _, err := pool.Create(params, bucket(assetA, "1000"), bucket(assetB, "1000"))
	require.NoError(t, err)

	vaultB.failWithdraw = true
	_, err = engine.Swap(bucket(assetA, "10"))
	require.Error(t, err)

	state := engine.Snapshot()
	requireRat(t, "1000", state.ReserveA)
	requireRat(t, "1000", state.ReserveB)
}

func TestRemoveRevertsOnCustodyFailure(t *testing.T) {
	vaultB := &failingVault{Vault: ledger.NewVault(assetB)}
	params := newParams("0")
	params.VaultB = vaultB

	engine, claims, err := pool.Create(params, bucket(assetA, "1000"), bucket(assetB, "1000"))
	require.NoError(t, err)

	vaultB.failWithdraw = true
	_, _, err = engine.RemoveLiquidity(claims)
	require.Error(t, err)

	state := engine.Snapshot()
	requireRat(t, "1000", state.ReserveA)
	requireRat(t, "1000", state.ReserveB)
	requireRat(t, "100", state.ClaimSupply)
}

type failingClaims struct {
	*ledger.ClaimToken
	failMint bool
}

func (f *failingClaims) Mint(amount *big.Rat) (pool.Bucket, error) {
	if f.failMint {
		return pool.Bucket{}, errors.New("mint paused")
	}
	return f.ClaimToken.Mint(amount)
}

func TestAddLiquidityRevertsOnCustodyFailure(t *testing.T) {
	t.Run("DepositB", func(t *testing.T) {
		vaultB := &failingVault{Vault: ledger.NewVault(assetB)}
		params := newParams("0")
		params.VaultB = vaultB

		engine, _, err := pool.Create(params, bucket(assetA, "1000"), bucket(assetB, "500"))
		require.NoError(t, err)

		vaultB.failDeposit = true
		_, _, _, err = engine.AddLiquidity(bucket(assetA, "100"), bucket(assetB, "50"))
		require.Error(t, err)

		state := engine.Snapshot()
		requireRat(t, "1000", state.ReserveA)
		requireRat(t, "500", state.ReserveB)
		requireRat(t, "100", state.ClaimSupply)
	})

	t.Run("Mint", func(t *testing.T) {
		claims := &failingClaims{ClaimToken: ledger.NewClaimToken(claimID)}
		params := newParams("0")
		params.Claims = claims

		engine, _, err := pool.Create(params, bucket(assetA, "1000"), bucket(assetB, "500"))
		require.NoError(t, err)

		claims.failMint = true
		_, _, _, err = engine.AddLiquidity(bucket(assetA, "100"), bucket(assetB, "50"))
		require.Error(t, err)

		state := engine.Snapshot()
		requireRat(t, "1000", state.ReserveA)
		requireRat(t, "500", state.ReserveB)
		requireRat(t, "100", state.ClaimSupply)
	})
}

func TestConcurrentOperationsConserveHoldings(t *testing.T) {
	const (
		workers    = 4
		iterations = 20
	)

	engine, creatorClaims := newPool(t, "1000", "1000", "0")

	wallets := make([]*ledger.Wallet, workers)
	for i := range wallets {
		wallets[i] = ledger.NewWallet()
		require.NoError(t, wallets[i].Credit(bucket(assetA, "1000")))
		require.NoError(t, wallets[i].Credit(bucket(assetB, "1000")))
	}

	step := func(w *ledger.Wallet, i int) error {
		asset := assetA
		if i%2 == 1 {
			asset = assetB
		}
		in, err := w.Take(asset, rat("10"))
		if err != nil {
			return err
		}
		out, err := engine.Swap(in)
		if err != nil {
			return err
		}
		if err := w.Credit(out); err != nil {
			return err
		}

		if i%5 != 0 {
			return nil
		}
		depositA, err := w.Take(assetA, rat("5"))
		if err != nil {
			return err
		}
		depositB, err := w.Take(assetB, rat("5"))
		if err != nil {
			return err
		}
		leftA, leftB, minted, err := engine.AddLiquidity(depositB, depositA)
		if err != nil {
			return err
		}
		for _, b := range []pool.Bucket{leftA, leftB} {
			if err := w.Credit(b); err != nil {
				return err
			}
		}
		if i%10 != 0 {
			return w.Credit(minted)
		}
		outA, outB, err := engine.RemoveLiquidity(minted)
		if err != nil {
			return err
		}
		if err := w.Credit(outA); err != nil {
			return err
		}
		return w.Credit(outB)
	}

	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				if err := step(wallets[id], j); err != nil {
					errs[id] = fmt.Errorf("worker %d step %d: %w", id, j, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	state := engine.Snapshot()
	totalA := new(big.Rat).Set(state.ReserveA)
	totalB := new(big.Rat).Set(state.ReserveB)
	held := new(big.Rat).Set(creatorClaims.Amount)
	for _, w := range wallets {
		totalA.Add(totalA, w.Balance(assetA))
		totalB.Add(totalB, w.Balance(assetB))
		held.Add(held, w.Balance(claimID))
	}
	requireRat(t, "5000", totalA)
	requireRat(t, "5000", totalB)
	assert.Zero(t, held.Cmp(state.ClaimSupply))
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	params := newParams("0")
	params.Metrics = pool.NewMetrics(reg)

	engine, _, err := pool.Create(params, bucket(assetA, "1000"), bucket(assetB, "1000"))
	require.NoError(t, err)

	_, err = engine.Swap(bucket(assetA, "10"))
	require.NoError(t, err)
	_, err = engine.Swap(bucket(foreign, "10"))
	require.Error(t, err)

	m := params.Metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PoolsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Swaps.WithLabelValues(poolAddr.Hex(), assetA.Hex(), "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Swaps.WithLabelValues(poolAddr.Hex(), "foreign", "rejected")))
	assert.Equal(t, 1010.0, testutil.ToFloat64(m.Reserves.WithLabelValues(poolAddr.Hex(), assetA.Hex())))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.ClaimSupply.WithLabelValues(poolAddr.Hex())))
}
