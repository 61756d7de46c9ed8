package enums

import "fmt"

// PaymentStatus is the processor-facing label stored on an order.
type PaymentStatus string

const (
	PaymentStatusCreated           PaymentStatus = "CREATED"
	PaymentStatusRequiresAction    PaymentStatus = "PAYER_ACTION_REQUIRED"
	PaymentStatusCompleted         PaymentStatus = "COMPLETED"
	PaymentStatusFailed            PaymentStatus = "FAILED"
	PaymentStatusDeclined          PaymentStatus = "DECLINED"
	PaymentStatusAmountMismatch    PaymentStatus = "AMOUNT_MISMATCH"
	PaymentStatusReferenceMismatch PaymentStatus = "REFERENCE_MISMATCH"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusCreated,
	PaymentStatusRequiresAction,
	PaymentStatusCompleted,
	PaymentStatusFailed,
	PaymentStatusDeclined,
	PaymentStatusAmountMismatch,
	PaymentStatusReferenceMismatch,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsOpen reports whether a session in this state may still be captured.
func (p PaymentStatus) IsOpen() bool {
	return p == PaymentStatusCreated || p == PaymentStatusRequiresAction
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
