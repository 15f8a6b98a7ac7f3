package simulate

import "errors"

var (
	ErrUnknownOperation = errors.New("unknown operation")
	ErrUnknownPool      = errors.New("unknown pool alias")
	ErrPoolExists       = errors.New("pool alias already exists")
	ErrMissingAccount   = errors.New("operation has no account")
)
