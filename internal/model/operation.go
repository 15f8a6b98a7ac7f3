package model

// Operation kinds accepted in a scenario file.
const (
	OpFund            = "fund"
	OpCreate          = "create"
	OpSwap            = "swap"
	OpAddLiquidity    = "add_liquidity"
	OpRemoveLiquidity = "remove_liquidity"
	OpPrice           = "price"
)

// Operation is one scenario line.
//
// fund credits Amount of Asset to Account. create seeds pool alias Pool with
// AmountA of AssetA and AmountB of AssetB at Fee. swap sells Amount of Asset.
// add_liquidity deposits AmountA/AmountB of AssetA/AssetB in the given order.
// remove_liquidity burns Amount claims. price queries the admin spot price.
type Operation struct {
	Op        string `json:"op"`
	Timestamp uint64 `json:"timestamp,omitempty"`
	Account   string `json:"account"`
	Pool      string `json:"pool,omitempty"`

	Asset  string `json:"asset,omitempty"`
	Amount string `json:"amount,omitempty"`

	AssetA  string `json:"asset_a,omitempty"`
	AmountA string `json:"amount_a,omitempty"`
	AssetB  string `json:"asset_b,omitempty"`
	AmountB string `json:"amount_b,omitempty"`
	Fee     string `json:"fee,omitempty"`
}
