package orders

import (
	"fmt"

	"github.com/brewline/brewline-backend/pkg/enums"
	pkgerrors "github.com/brewline/brewline-backend/pkg/errors"
)

var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:        {enums.OrderStatusAccepted, enums.OrderStatusCanceled},
	enums.OrderStatusAccepted:       {enums.OrderStatusInPreparation, enums.OrderStatusCanceled},
	enums.OrderStatusInPreparation:  {enums.OrderStatusReadyForPickup},
	enums.OrderStatusReadyForPickup: {enums.OrderStatusCompleted},
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
// Terminal states have no outgoing edges and self-transitions are never valid.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from the given one.
func NextStatuses(from enums.OrderStatus) []enums.OrderStatus {
	next := allowedTransitions[from]
	out := make([]enums.OrderStatus, len(next))
	copy(out, next)
	return out
}

func validateTransition(from, to enums.OrderStatus) error {
	if !to.IsValid() {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidTransition, fmt.Sprintf("unknown status %q", to))
	}
	if CanTransition(from, to) {
		return nil
	}
	msg := fmt.Sprintf("cannot move order from %s to %s", from, to)
	if from.IsTerminal() {
		msg = fmt.Sprintf("order is %s and can no longer change", from)
	}
	return pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrInvalidTransition, msg).
		WithDetails(map[string]any{
			"from":    from,
			"to":      to,
			"allowed": NextStatuses(from),
		})
}
