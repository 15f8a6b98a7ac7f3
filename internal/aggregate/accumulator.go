package aggregate

import (
	"fmt"
	"math/big"

	"ammPool/internal/model"
	"ammPool/internal/pool"
)

// Accumulator holds aggregate values for one pool window.
type Accumulator struct {
	PoolAddress string
	PoolAlias   string
	AssetA      string
	AssetB      string
	ClaimToken  string
	FeeRate     *big.Rat

	WindowStart uint64
	WindowEnd   uint64

	SwapCount     uint64
	RejectedCount uint64
	AddCount      uint64
	RemoveCount   uint64
	VolumeA       *big.Rat
	VolumeB       *big.Rat
	FeeA          *big.Rat
	FeeB          *big.Rat

	// closing state, nil until an applied event reports it
	ReserveA    *big.Rat
	ReserveB    *big.Rat
	ClaimSupply *big.Rat

	FirstSeq uint64
	FirstTS  uint64
	LastSeq  uint64
}

func NewAccumulator(event model.PoolEvent, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolAddress: event.Pool,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		VolumeA:     new(big.Rat),
		VolumeB:     new(big.Rat),
		FeeA:        new(big.Rat),
		FeeB:        new(big.Rat),
		FirstSeq:    event.Seq,
		FirstTS:     event.Timestamp,
	}
}

// AddEvent folds one journal event into the window.
func (a *Accumulator) AddEvent(event model.PoolEvent) error {
	a.absorbIdentity(event)

	if !event.OK() {
		if event.EventName == model.EventSwap {
			a.RejectedCount++
		}
		return nil
	}

	switch event.EventName {
	case model.EventSwap:
		if err := a.applySwap(event); err != nil {
			return err
		}
	case model.EventAddLiquidity:
		a.AddCount++
	case model.EventRemoveLiquidity:
		a.RemoveCount++
	}

	if event.Seq >= a.LastSeq && event.ReserveA != "" {
		if err := a.applyState(event); err != nil {
			return err
		}
		a.LastSeq = event.Seq
	}
	return nil
}

func (a *Accumulator) absorbIdentity(event model.PoolEvent) {
	if a.PoolAlias == "" {
		a.PoolAlias = event.PoolAlias
	}
	if a.AssetA == "" {
		a.AssetA = event.AssetA
	}
	if a.AssetB == "" {
		a.AssetB = event.AssetB
	}
	if a.ClaimToken == "" {
		a.ClaimToken = event.ClaimToken
	}
	if a.FeeRate == nil && event.FeeRate != "" {
		if fee, err := parseRat(event.FeeRate); err == nil {
			a.FeeRate = fee
		}
	}
	if a.FirstSeq == 0 || event.Seq < a.FirstSeq {
		a.FirstSeq = event.Seq
		a.FirstTS = event.Timestamp
	}
}

func (a *Accumulator) applySwap(event model.PoolEvent) error {
	amountIn, err := parseRat(event.AmountIn)
	if err != nil {
		return fmt.Errorf("swap amount_in: %w", err)
	}

	var volume, fees *big.Rat
	switch {
	case sameAddress(event.AssetIn, a.AssetA):
		volume, fees = a.VolumeA, a.FeeA
	case sameAddress(event.AssetIn, a.AssetB):
		volume, fees = a.VolumeB, a.FeeB
	default:
		return fmt.Errorf("swap input %s is not a pool asset", event.AssetIn)
	}

	volume.Add(volume, amountIn)
	if a.FeeRate != nil {
		fees.Add(fees, new(big.Rat).Mul(amountIn, a.FeeRate))
	}
	a.SwapCount++
	return nil
}

func (a *Accumulator) applyState(event model.PoolEvent) error {
	reserveA, err := parseRat(event.ReserveA)
	if err != nil {
		return fmt.Errorf("reserve_a: %w", err)
	}
	reserveB, err := parseRat(event.ReserveB)
	if err != nil {
		return fmt.Errorf("reserve_b: %w", err)
	}
	supply, err := parseRat(event.ClaimSupply)
	if err != nil {
		return fmt.Errorf("claim_supply: %w", err)
	}
	a.ReserveA, a.ReserveB, a.ClaimSupply = reserveA, reserveB, supply
	return nil
}

// carry keeps pool identity and closing state across window boundaries so a
// quiet window still reports the last known reserves.
func (acc *Accumulator) carry(prev *Accumulator) {
	acc.PoolAlias = prev.PoolAlias
	acc.AssetA = prev.AssetA
	acc.AssetB = prev.AssetB
	acc.ClaimToken = prev.ClaimToken
	acc.FeeRate = prev.FeeRate
	acc.ReserveA = prev.ReserveA
	acc.ReserveB = prev.ReserveB
	acc.ClaimSupply = prev.ClaimSupply
	acc.LastSeq = prev.LastSeq
}

func parseRat(value string) (*big.Rat, error) {
	return pool.ParseAmount(value)
}
