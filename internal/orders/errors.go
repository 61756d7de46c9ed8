package orders

import "errors"

// Sentinels returned (wrapped in a typed error) by the ledger and state
// machine. Match them with errors.Is.
var (
	ErrEmptyCart         = errors.New("empty cart")
	ErrItemUnavailable   = errors.New("item unavailable")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidQuantity   = errors.New("invalid quantity")
)
