package pool

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const foreignAssetLabel = "foreign"

// Metrics holds Prometheus collectors shared by every pool of a process.
// A nil *Metrics disables recording.
type Metrics struct {
	Swaps           *prometheus.CounterVec
	SwapVolume      *prometheus.CounterVec
	LiquidityEvents *prometheus.CounterVec
	Reserves        *prometheus.GaugeVec
	ClaimSupply     *prometheus.GaugeVec
	PoolsCreated    prometheus.Counter
}

// NewMetrics registers the pool collectors on reg. A nil registerer yields
// working but unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Swaps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ammpool",
				Subsystem: "pool",
				Name:      "swaps_total",
				Help:      "Total number of swaps by outcome",
			},
			[]string{"pool", "asset_in", "status"},
		),
		SwapVolume: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ammpool",
				Subsystem: "pool",
				Name:      "swap_volume_total",
				Help:      "Total swap input volume per asset",
			},
			[]string{"pool", "asset"},
		),
		LiquidityEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ammpool",
				Subsystem: "pool",
				Name:      "liquidity_events_total",
				Help:      "Total add/remove liquidity operations",
			},
			[]string{"pool", "kind"},
		),
		Reserves: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ammpool",
				Subsystem: "pool",
				Name:      "reserve",
				Help:      "Current pool reserve per asset",
			},
			[]string{"pool", "asset"},
		),
		ClaimSupply: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ammpool",
				Subsystem: "pool",
				Name:      "claim_supply",
				Help:      "Outstanding pool-unit claims",
			},
			[]string{"pool"},
		),
		PoolsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "ammpool",
				Subsystem: "pool",
				Name:      "created_total",
				Help:      "Total number of pools created",
			},
		),
	}
}

func (m *Metrics) observeCreate(state State) {
	if m == nil {
		return
	}
	m.PoolsCreated.Inc()
	m.observeState(state)
}

func (m *Metrics) observeSwap(state State, assetIn common.Address, amountIn *big.Rat) {
	if m == nil {
		return
	}
	pool := state.Address.Hex()
	m.Swaps.WithLabelValues(pool, assetIn.Hex(), "ok").Inc()
	m.SwapVolume.WithLabelValues(pool, assetIn.Hex()).Add(toFloat(amountIn))
	m.observeState(state)
}

// observeSwapRejected labels inputs outside the pair as foreignAssetLabel so
// callers cannot grow the series set.
func (m *Metrics) observeSwapRejected(state State, assetIn common.Address) {
	if m == nil {
		return
	}
	label := foreignAssetLabel
	if assetIn == state.AssetA || assetIn == state.AssetB {
		label = assetIn.Hex()
	}
	m.Swaps.WithLabelValues(state.Address.Hex(), label, "rejected").Inc()
}

func (m *Metrics) observeLiquidity(state State, kind string) {
	if m == nil {
		return
	}
	m.LiquidityEvents.WithLabelValues(state.Address.Hex(), kind).Inc()
	m.observeState(state)
}

func (m *Metrics) observeState(state State) {
	pool := state.Address.Hex()
	m.Reserves.WithLabelValues(pool, state.AssetA.Hex()).Set(toFloat(state.ReserveA))
	m.Reserves.WithLabelValues(pool, state.AssetB.Hex()).Set(toFloat(state.ReserveB))
	m.ClaimSupply.WithLabelValues(pool).Set(toFloat(state.ClaimSupply))
}

func toFloat(value *big.Rat) float64 {
	if value == nil {
		return 0
	}
	f, _ := value.Float64()
	return f
}
