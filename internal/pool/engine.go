package pool

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	liquidityAdd    = "add"
	liquidityRemove = "remove"
)

// Params wires an Engine to its collaborators.
type Params struct {
	Address common.Address
	VaultA  Vault
	VaultB  Vault
	Claims  ClaimToken
	FeeRate *big.Rat
	Logger  *zap.Logger
	Metrics *Metrics
}

// Engine is the accounting core of one two-asset pool. Every exported method
// runs under the engine mutex and either completes or leaves the pool untouched.
type Engine struct {
	mu      sync.Mutex
	address common.Address
	vaultA  Vault
	vaultB  Vault
	claims  ClaimToken
	fee     *big.Rat
	logger  *zap.Logger
	metrics *Metrics
}

// ValidateCreate checks construction parameters without touching any collaborator.
func ValidateCreate(initialA, initialB Bucket, fee *big.Rat) error {
	if initialA.Amount == nil || initialA.Amount.Sign() <= 0 ||
		initialB.Amount == nil || initialB.Amount.Sign() <= 0 {
		return ErrInvalidInitialSupply
	}
	if fee == nil || fee.Sign() < 0 || fee.Cmp(one) > 0 {
		return ErrInvalidFeeRate
	}
	if initialA.Asset == initialB.Asset {
		return ErrIdenticalAssets
	}
	return nil
}

// Create deposits the initial reserves and issues the bootstrap claim supply
// to the creator.
func Create(p Params, initialA, initialB Bucket) (*Engine, Bucket, error) {
	if err := ValidateCreate(initialA, initialB, p.FeeRate); err != nil {
		return nil, Bucket{}, err
	}
	if p.VaultA == nil || p.VaultB == nil || p.Claims == nil {
		return nil, Bucket{}, fmt.Errorf("pool collaborators are required")
	}
	if p.VaultA.Asset() != initialA.Asset || p.VaultB.Asset() != initialB.Asset {
		return nil, Bucket{}, fmt.Errorf("%w: initial buckets do not match vault assets", ErrForeignAsset)
	}
	if p.VaultA.Balance().Sign() != 0 || p.VaultB.Balance().Sign() != 0 || p.Claims.TotalSupply().Sign() != 0 {
		return nil, Bucket{}, fmt.Errorf("pool collaborators must start empty")
	}

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		address: p.Address,
		vaultA:  p.VaultA,
		vaultB:  p.VaultB,
		claims:  p.Claims,
		fee:     copyRat(p.FeeRate),
		logger:  logger.With(zap.String("pool", p.Address.Hex())),
		metrics: p.Metrics,
	}

	if err := e.vaultA.Deposit(initialA.Amount); err != nil {
		return nil, Bucket{}, fmt.Errorf("deposit initial a: %w", err)
	}
	if err := e.vaultB.Deposit(initialB.Amount); err != nil {
		e.revertDeposit(e.vaultA, initialA.Amount)
		return nil, Bucket{}, fmt.Errorf("deposit initial b: %w", err)
	}
	claims, err := e.claims.Mint(BootstrapClaimSupply())
	if err != nil {
		e.revertDeposit(e.vaultA, initialA.Amount)
		e.revertDeposit(e.vaultB, initialB.Amount)
		return nil, Bucket{}, fmt.Errorf("mint bootstrap claims: %w", err)
	}

	state := e.snapshot()
	e.logger.Info("pool created",
		zap.String("asset_a", state.AssetA.Hex()),
		zap.String("asset_b", state.AssetB.Hex()),
		zap.String("reserve_a", FormatAmount(state.ReserveA)),
		zap.String("reserve_b", FormatAmount(state.ReserveB)),
		zap.String("fee_rate", FormatAmount(e.fee)),
	)
	e.metrics.observeCreate(state)

	return e, claims, nil
}

func (e *Engine) Address() common.Address { return e.address }

func (e *Engine) AssetA() common.Address { return e.vaultA.Asset() }

func (e *Engine) AssetB() common.Address { return e.vaultB.Asset() }

func (e *Engine) ClaimIdentity() common.Address { return e.claims.Identity() }

func (e *Engine) FeeRate() *big.Rat { return copyRat(e.fee) }

// Swap exchanges input for the other asset of the pool.
func (e *Engine) Swap(input Bucket) (Bucket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	in, out, amountOut, err := e.price(input)
	if err != nil {
		e.metrics.observeSwapRejected(e.snapshot(), input.Asset)
		return Bucket{}, err
	}
	if input.Amount.Sign() == 0 {
		return EmptyBucket(out.Asset()), nil
	}

	if err := in.Deposit(input.Amount); err != nil {
		return Bucket{}, fmt.Errorf("deposit swap input: %w", err)
	}
	withdrawn, err := out.Withdraw(amountOut)
	if err != nil {
		e.revertDeposit(in, input.Amount)
		return Bucket{}, fmt.Errorf("withdraw swap output: %w", err)
	}

	state := e.snapshot()
	e.logger.Debug("swap",
		zap.String("asset_in", in.Asset().Hex()),
		zap.String("amount_in", FormatAmount(input.Amount)),
		zap.String("asset_out", out.Asset().Hex()),
		zap.String("amount_out", FormatAmount(withdrawn)),
	)
	e.metrics.observeSwap(state, in.Asset(), input.Amount)

	return NewBucket(out.Asset(), withdrawn), nil
}

// Quote prices a swap without executing it.
func (e *Engine) Quote(input Bucket) (Bucket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, out, amountOut, err := e.price(input)
	if err != nil {
		return Bucket{}, err
	}
	return NewBucket(out.Asset(), amountOut), nil
}

func (e *Engine) price(input Bucket) (Vault, Vault, *big.Rat, error) {
	if err := input.validate(); err != nil {
		return nil, nil, nil, err
	}

	var in, out Vault
	switch input.Asset {
	case e.vaultA.Asset():
		in, out = e.vaultA, e.vaultB
	case e.vaultB.Asset():
		in, out = e.vaultB, e.vaultA
	default:
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrForeignAsset, input.Asset.Hex())
	}

	if input.Amount.Sign() > 0 && out.Balance().Sign() == 0 {
		return nil, nil, nil, fmt.Errorf("%w: pool is empty", ErrInsufficientReserve)
	}

	amountOut, err := SwapOutput(in.Balance(), out.Balance(), input.Amount, e.fee)
	if err != nil {
		return nil, nil, nil, err
	}
	return in, out, amountOut, nil
}

// AddLiquidity deposits the ratio-preserving part of (x, y), in either asset
// order, and returns the unaccepted remainders in (A, B) order plus the
// minted claims.
func (e *Engine) AddLiquidity(x, y Bucket) (Bucket, Bucket, Bucket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	depositA, depositB, err := e.canonical(x, y)
	if err != nil {
		return Bucket{}, Bucket{}, Bucket{}, err
	}

	m := e.vaultA.Balance()
	n := e.vaultB.Balance()
	supply := e.claims.TotalSupply()
	dm := depositA.Amount
	dn := depositB.Amount

	switch {
	case m.Sign() == 0 && n.Sign() == 0:
		if dm.Sign() == 0 || dn.Sign() == 0 {
			return Bucket{}, Bucket{}, Bucket{}, fmt.Errorf("%w: dormant pool needs both assets", ErrInvalidInitialSupply)
		}
	case m.Sign() == 0 || n.Sign() == 0:
		return Bucket{}, Bucket{}, Bucket{}, fmt.Errorf("%w: one-sided reserves", ErrInsufficientReserve)
	}

	amountA, amountB := AcceptedDeposit(m, n, dm, dn)
	minted, err := ClaimsToMint(amountA, m, supply)
	if err != nil {
		return Bucket{}, Bucket{}, Bucket{}, err
	}

	if err := e.vaultA.Deposit(amountA); err != nil {
		return Bucket{}, Bucket{}, Bucket{}, fmt.Errorf("deposit a: %w", err)
	}
	if err := e.vaultB.Deposit(amountB); err != nil {
		e.revertDeposit(e.vaultA, amountA)
		return Bucket{}, Bucket{}, Bucket{}, fmt.Errorf("deposit b: %w", err)
	}
	claims, err := e.claims.Mint(minted)
	if err != nil {
		e.revertDeposit(e.vaultA, amountA)
		e.revertDeposit(e.vaultB, amountB)
		return Bucket{}, Bucket{}, Bucket{}, fmt.Errorf("mint claims: %w", err)
	}

	leftoverA := NewBucket(depositA.Asset, new(big.Rat).Sub(dm, amountA))
	leftoverB := NewBucket(depositB.Asset, new(big.Rat).Sub(dn, amountB))

	state := e.snapshot()
	e.logger.Debug("liquidity added",
		zap.String("amount_a", FormatAmount(amountA)),
		zap.String("amount_b", FormatAmount(amountB)),
		zap.String("leftover_a", FormatAmount(leftoverA.Amount)),
		zap.String("leftover_b", FormatAmount(leftoverB.Amount)),
		zap.String("claims", FormatAmount(claims.Amount)),
	)
	e.metrics.observeLiquidity(state, liquidityAdd)

	return leftoverA, leftoverB, claims, nil
}

func (e *Engine) canonical(x, y Bucket) (Bucket, Bucket, error) {
	if err := x.validate(); err != nil {
		return Bucket{}, Bucket{}, err
	}
	if err := y.validate(); err != nil {
		return Bucket{}, Bucket{}, err
	}

	a, b := e.vaultA.Asset(), e.vaultB.Asset()
	switch {
	case x.Asset == a && y.Asset == b:
		return x, y, nil
	case x.Asset == b && y.Asset == a:
		return y, x, nil
	default:
		return Bucket{}, Bucket{}, fmt.Errorf("%w: %s/%s", ErrForeignAsset, x.Asset.Hex(), y.Asset.Hex())
	}
}

// RemoveLiquidity burns claims and returns the matching share of both reserves.
func (e *Engine) RemoveLiquidity(claims Bucket) (Bucket, Bucket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if claims.Asset != e.claims.Identity() {
		return Bucket{}, Bucket{}, fmt.Errorf("%w: %s", ErrWrongClaimToken, claims.Asset.Hex())
	}
	if err := claims.validate(); err != nil {
		return Bucket{}, Bucket{}, err
	}

	assetA, assetB := e.vaultA.Asset(), e.vaultB.Asset()
	if claims.Amount.Sign() == 0 {
		return EmptyBucket(assetA), EmptyBucket(assetB), nil
	}

	supply := e.claims.TotalSupply()
	amountA, err := ShareOf(e.vaultA.Balance(), claims.Amount, supply)
	if err != nil {
		return Bucket{}, Bucket{}, err
	}
	amountB, err := ShareOf(e.vaultB.Balance(), claims.Amount, supply)
	if err != nil {
		return Bucket{}, Bucket{}, err
	}

	if err := e.claims.Burn(claims); err != nil {
		return Bucket{}, Bucket{}, fmt.Errorf("burn claims: %w", err)
	}
	withdrawnA, err := e.vaultA.Withdraw(amountA)
	if err != nil {
		e.revertBurn(claims.Amount)
		return Bucket{}, Bucket{}, fmt.Errorf("withdraw a: %w", err)
	}
	withdrawnB, err := e.vaultB.Withdraw(amountB)
	if err != nil {
		e.revertWithdraw(e.vaultA, withdrawnA)
		e.revertBurn(claims.Amount)
		return Bucket{}, Bucket{}, fmt.Errorf("withdraw b: %w", err)
	}

	state := e.snapshot()
	e.logger.Debug("liquidity removed",
		zap.String("claims", FormatAmount(claims.Amount)),
		zap.String("amount_a", FormatAmount(withdrawnA)),
		zap.String("amount_b", FormatAmount(withdrawnB)),
		zap.Bool("dormant", state.Dormant()),
	)
	e.metrics.observeLiquidity(state, liquidityRemove)

	return NewBucket(assetA, withdrawnA), NewBucket(assetB, withdrawnB), nil
}

// SpotPrice returns the price of asset A in units of asset B.
func (e *Engine) SpotPrice() (*big.Rat, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	reserveB := e.vaultB.Balance()
	if reserveB.Sign() == 0 {
		return nil, fmt.Errorf("%w: pool is dormant", ErrDivideByZero)
	}
	return new(big.Rat).Quo(e.vaultA.Balance(), reserveB), nil
}

// Snapshot returns the current reserves and claim supply.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

func (e *Engine) snapshot() State {
	return State{
		Address:     e.address,
		AssetA:      e.vaultA.Asset(),
		AssetB:      e.vaultB.Asset(),
		ClaimToken:  e.claims.Identity(),
		ReserveA:    copyRat(e.vaultA.Balance()),
		ReserveB:    copyRat(e.vaultB.Balance()),
		ClaimSupply: copyRat(e.claims.TotalSupply()),
		FeeRate:     copyRat(e.fee),
	}
}

func (e *Engine) revertDeposit(vault Vault, amount *big.Rat) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	if _, err := vault.Withdraw(amount); err != nil {
		e.logger.Error("failed to revert deposit",
			zap.String("asset", vault.Asset().Hex()),
			zap.String("amount", FormatAmount(amount)),
			zap.Error(err),
		)
	}
}

func (e *Engine) revertWithdraw(vault Vault, amount *big.Rat) {
	if err := vault.Deposit(amount); err != nil {
		e.logger.Error("failed to revert withdrawal",
			zap.String("asset", vault.Asset().Hex()),
			zap.String("amount", FormatAmount(amount)),
			zap.Error(err),
		)
	}
}

func (e *Engine) revertBurn(amount *big.Rat) {
	if _, err := e.claims.Mint(amount); err != nil {
		e.logger.Error("failed to revert claim burn",
			zap.String("amount", FormatAmount(amount)),
			zap.Error(err),
		)
	}
}
