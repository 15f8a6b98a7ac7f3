package model

// Event names written to the journal.
const (
	EventCreate          = "Create"
	EventSwap            = "Swap"
	EventAddLiquidity    = "AddLiquidity"
	EventRemoveLiquidity = "RemoveLiquidity"
	EventPrice           = "Price"
	EventFund            = "Fund"
)

// Event outcomes.
const (
	StatusOK       = "ok"
	StatusRejected = "rejected"
)

// PoolEvent is one journal line describing an operation against a pool.
// Amounts are exact decimal strings; reserves and supply are taken after the
// operation completes.
type PoolEvent struct {
	Seq       uint64 `json:"seq"`
	Timestamp uint64 `json:"timestamp"`
	EventName string `json:"event_name"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`

	Pool      string `json:"pool,omitempty"`
	PoolAlias string `json:"pool_alias,omitempty"`
	Account   string `json:"account,omitempty"`

	AssetA     string `json:"asset_a,omitempty"`
	AssetB     string `json:"asset_b,omitempty"`
	ClaimToken string `json:"claim_token,omitempty"`
	FeeRate    string `json:"fee_rate,omitempty"`

	AssetIn   string `json:"asset_in,omitempty"`
	AmountIn  string `json:"amount_in,omitempty"`
	AssetOut  string `json:"asset_out,omitempty"`
	AmountOut string `json:"amount_out,omitempty"`

	AmountA   string `json:"amount_a,omitempty"`
	AmountB   string `json:"amount_b,omitempty"`
	LeftoverA string `json:"leftover_a,omitempty"`
	LeftoverB string `json:"leftover_b,omitempty"`
	Claims    string `json:"claims,omitempty"`
	Price     string `json:"price,omitempty"`
	PriceText string `json:"price_text,omitempty"`

	ReserveA    string `json:"reserve_a,omitempty"`
	ReserveB    string `json:"reserve_b,omitempty"`
	ClaimSupply string `json:"claim_supply,omitempty"`
}

// OK reports whether the operation was applied.
func (e PoolEvent) OK() bool {
	return e.Status == StatusOK
}
