package payments

import "errors"

var (
	ErrUnknownProvider   = errors.New("unknown payment provider")
	ErrNotOrderOwner     = errors.New("order belongs to another user")
	ErrOrderNotPayable   = errors.New("order is not payable")
	ErrSessionMismatch   = errors.New("payment session mismatch")
	ErrAlreadyCaptured   = errors.New("payment already captured")
	ErrCaptureRejected   = errors.New("payment capture rejected")
	ErrCaptureMismatch   = errors.New("captured payment does not match order")
	ErrNonPositiveAmount = errors.New("order total must be greater than zero")

	// ErrCapturedAfterClose means money was taken for an order that had
	// already left PENDING.
	ErrCapturedAfterClose = errors.New("payment captured for a closed order")
)
