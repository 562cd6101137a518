package order

import "errors"

var (
	ErrAccountNotFound   = errors.New("order: account not found")
	ErrContractNotFound  = errors.New("order: contract not found")
	ErrContractNotActive = errors.New("order: contract not active")
	ErrAccountRejected   = errors.New("order: account cannot trade")
	ErrInvalidSize       = errors.New("order: size must be positive")
	ErrInvalidSide       = errors.New("order: unknown side")
	ErrOrderNotFound     = errors.New("order: order not found")
	ErrNotOwner          = errors.New("order: order belongs to another account")
	ErrInvalidStatus     = errors.New("order: invalid status for operation")
	ErrPositionNotFound  = errors.New("order: position not found")
	ErrInvalidCloseSize  = errors.New("order: close size must be less than position size")
	ErrEngineClosed      = errors.New("order: engine closed")
)
