package model

// Pool is the registry record of a deployed pool.
type Pool struct {
	Address      string `json:"address"`
	Alias        string `json:"alias,omitempty"`
	AssetA       string `json:"asset_a"`
	AssetB       string `json:"asset_b"`
	ClaimToken   string `json:"claim_token"`
	FeeRate      string `json:"fee_rate"`
	FirstSeenSeq uint64 `json:"first_seen_seq"`
	FirstSeenTS  uint64 `json:"first_seen_ts"`
}
