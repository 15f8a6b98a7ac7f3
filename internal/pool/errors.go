package pool

import "errors"

var (
	ErrInvalidInitialSupply = errors.New("initial supply of each asset must be non-empty")
	ErrInvalidFeeRate       = errors.New("fee rate must be between 0 and 1")
	ErrIdenticalAssets      = errors.New("pool assets must differ")
	ErrInvalidAmount        = errors.New("amount must be non-negative")
	ErrForeignAsset         = errors.New("asset does not belong to this pool")
	ErrWrongClaimToken      = errors.New("claim token does not belong to this pool")
	ErrInsufficientReserve  = errors.New("insufficient reserve")
	ErrDivideByZero         = errors.New("reserve is zero")
)
