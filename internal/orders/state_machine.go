package orders

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/brewline/brewline-backend/internal/tracking"
	"github.com/brewline/brewline-backend/pkg/db/models"
	"github.com/brewline/brewline-backend/pkg/enums"
	pkgerrors "github.com/brewline/brewline-backend/pkg/errors"
	"github.com/brewline/brewline-backend/pkg/logger"
)

// PaymentUpdate carries processor fields written alongside a transition.
type PaymentUpdate struct {
	Provider  *enums.PaymentProvider
	Status    *enums.PaymentStatus
	SessionID *string
	CaptureID *string
}

func (p *PaymentUpdate) columns() map[string]any {
	updates := map[string]any{}
	if p == nil {
		return updates
	}
	if p.Provider != nil {
		updates["payment_provider"] = *p.Provider
	}
	if p.Status != nil {
		updates["payment_status"] = *p.Status
	}
	if p.SessionID != nil {
		updates["payment_session_id"] = *p.SessionID
	}
	if p.CaptureID != nil {
		updates["payment_capture_id"] = *p.CaptureID
	}
	return updates
}

func (p *PaymentUpdate) apply(order *models.Order) {
	if p == nil {
		return
	}
	if p.Provider != nil {
		order.PaymentProvider = p.Provider
	}
	if p.Status != nil {
		order.PaymentStatus = p.Status
	}
	if p.SessionID != nil {
		order.PaymentSessionID = p.SessionID
	}
	if p.CaptureID != nil {
		order.PaymentCaptureID = p.CaptureID
	}
}

// TransitionInput describes a requested status change.
type TransitionInput struct {
	OrderID     int64
	Status      enums.OrderStatus
	ActorUserID int64
	// Precondition, when set, runs against the locked order before the
	// transition is validated. Returning an error aborts without changes.
	Precondition func(order *models.Order) error
	Payment      *PaymentUpdate
}

// StateMachine validates and applies order status transitions.
type StateMachine interface {
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	// UpdatePayment writes processor fields under the same per-order lock
	// without changing status.
	UpdatePayment(ctx context.Context, orderID int64, precondition func(order *models.Order) error, update PaymentUpdate) (*models.Order, error)
}

type stateMachine struct {
	ledger   Ledger
	repo     Repository
	tx       txRunner
	notifier StatusNotifier
	logg     *logger.Logger
	locks    *keyedMutex
}

// NewStateMachine wires the transition engine. A nil notifier disables
// broadcasts.
func NewStateMachine(ledger Ledger, repo Repository, tx txRunner, notifier StatusNotifier, logg *logger.Logger) (StateMachine, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &stateMachine{
		ledger:   ledger,
		repo:     repo,
		tx:       tx,
		notifier: notifier,
		logg:     logg,
		locks:    newKeyedMutex(),
	}, nil
}

func (m *stateMachine) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidTransition, fmt.Sprintf("unknown status %q", input.Status))
	}

	release := m.locks.Lock(input.OrderID)
	defer release()

	var (
		order *models.Order
		entry *models.OrderStatusHistory
	)
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := m.repo.WithTx(tx)
		locked, err := repo.FindOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return mapLookupError(err, input.OrderID)
		}
		if input.Precondition != nil {
			if err := input.Precondition(locked); err != nil {
				return err
			}
		}
		if err := validateTransition(locked.Status, input.Status); err != nil {
			return err
		}

		if input.Payment != nil {
			if err := repo.UpdateOrder(ctx, locked.ID, input.Payment.columns()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update payment fields")
			}
			input.Payment.apply(locked)
		}

		entry, err = m.ledger.AppendStatus(ctx, tx, locked, input.Status, input.ActorUserID)
		if err != nil {
			return err
		}
		order = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Still under the per-order lock so broadcasts leave in commit order.
	m.publish(ctx, tracking.StatusEvent{
		OrderID: order.ID,
		Status:  order.Status,
		Time:    entry.ChangedAt,
	})
	return order, nil
}

func (m *stateMachine) UpdatePayment(ctx context.Context, orderID int64, precondition func(order *models.Order) error, update PaymentUpdate) (*models.Order, error) {
	if orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	release := m.locks.Lock(orderID)
	defer release()

	var order *models.Order
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := m.repo.WithTx(tx)
		locked, err := repo.FindOrderForUpdate(ctx, orderID)
		if err != nil {
			return mapLookupError(err, orderID)
		}
		if precondition != nil {
			if err := precondition(locked); err != nil {
				return err
			}
		}
		if err := repo.UpdateOrder(ctx, orderID, update.columns()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update payment fields")
		}
		update.apply(locked)
		order = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (m *stateMachine) publish(ctx context.Context, event tracking.StatusEvent) {
	if m.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logg.Error(m.logg.WithOrderID(ctx, event.OrderID), "status notifier panicked", fmt.Errorf("panic: %v", r))
		}
	}()
	if err := m.notifier.Publish(ctx, event); err != nil {
		m.logg.Warn(m.logg.WithFields(ctx, map[string]any{
			"order_id": event.OrderID,
			"status":   event.Status,
			"error":    err.Error(),
		}), "status broadcast skipped")
	}
}

// IsNotFound reports whether err resolves to a missing order.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}
