package model

// AggregateCursor records how far the journal has been folded into window
// metrics. AfterSeq sits just before the first event of the earliest window
// that may still receive events, so resuming rebuilds that window in full.
type AggregateCursor struct {
	AfterSeq      uint64 `json:"after_seq"`
	WindowSeconds uint64 `json:"window_seconds"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}
