package ledger

import "errors"

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNegativeAmount      = errors.New("amount must be non-negative")
	ErrWrongResource       = errors.New("bucket resource does not match")
)
