package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/brewline/brewline-backend/internal/orders"
	"github.com/brewline/brewline-backend/pkg/db/models"
	"github.com/brewline/brewline-backend/pkg/enums"
	pkgerrors "github.com/brewline/brewline-backend/pkg/errors"
	"github.com/brewline/brewline-backend/pkg/logger"
	"github.com/brewline/brewline-backend/pkg/metrics"
)

const defaultCallTimeout = 15 * time.Second

type orderReader interface {
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
}

// Service creates and captures processor payments for orders.
type Service interface {
	CreateSession(ctx context.Context, provider string, orderID, userID int64) (*SessionResult, error)
	CaptureSession(ctx context.Context, provider string, orderID int64, sessionID string, userID int64) (*CaptureResult, error)
}

// SessionResult is returned after a processor session is opened.
type SessionResult struct {
	ExternalSessionID string
	Status            enums.PaymentStatus
}

// CaptureResult is returned after a successful capture.
type CaptureResult struct {
	Status        enums.PaymentStatus
	TransactionID string
	Order         *models.Order
}

// ServiceParams groups dependencies for the payment service.
type ServiceParams struct {
	Orders   orderReader
	Machine  orders.StateMachine
	Gateways *Registry
	Timeout  time.Duration
	Logger   *logger.Logger
	Metrics  *metrics.PaymentMetrics
}

type service struct {
	orders   orderReader
	machine  orders.StateMachine
	gateways *Registry
	timeout  time.Duration
	logg     *logger.Logger
	metrics  *metrics.PaymentMetrics
}

// NewService builds the payment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if params.Machine == nil {
		return nil, fmt.Errorf("state machine required")
	}
	if params.Gateways == nil {
		return nil, fmt.Errorf("gateway registry required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &service{
		orders:   params.Orders,
		machine:  params.Machine,
		gateways: params.Gateways,
		timeout:  timeout,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

func (s *service) CreateSession(ctx context.Context, provider string, orderID, userID int64) (*SessionResult, error) {
	gw, err := s.gateway(provider)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := checkPayable(order, userID); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	started := time.Now()
	session, err := gw.CreateSession(callCtx, order)
	cancel()
	if err != nil {
		s.observe(gw, "create", outcomeFor(err), started)
		s.logg.Warn(s.logFields(ctx, gw, order.ID, err), "payment session create failed")
		return nil, externalError(err, "payment session could not be created")
	}
	s.observe(gw, "create", "ok", started)

	providerName := gw.Provider()
	status := session.Status
	sessionID := session.ID
	_, err = s.machine.UpdatePayment(ctx, order.ID, func(locked *models.Order) error {
		return checkPayable(locked, userID)
	}, orders.PaymentUpdate{
		Provider:  &providerName,
		Status:    &status,
		SessionID: &sessionID,
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logFields(ctx, gw, order.ID, nil), "payment session created")
	return &SessionResult{ExternalSessionID: session.ID, Status: session.Status}, nil
}

func (s *service) CaptureSession(ctx context.Context, provider string, orderID int64, sessionID string, userID int64) (*CaptureResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "externalSessionId is required")
	}
	gw, err := s.gateway(provider)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	guard := func(o *models.Order) error {
		return checkCapturable(o, userID, sessionID)
	}
	if err := guard(order); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	started := time.Now()
	capture, err := gw.CaptureSession(callCtx, order, sessionID)
	cancel()
	if err != nil {
		s.observe(gw, "capture", outcomeFor(err), started)
		s.logg.Warn(s.logFields(ctx, gw, order.ID, err), "payment capture failed")
		switch {
		case isTransient(err):
			return nil, externalError(err, "payment processor unavailable")
		case errors.Is(err, ErrProcessorAuth):
			s.logg.Error(s.logFields(ctx, gw, order.ID, nil), "payment processor refused merchant credentials", err)
			return nil, externalError(err, "payment processor unavailable")
		}
		return nil, s.compensate(ctx, gw, order, userID, sessionID, enums.PaymentStatusFailed,
			pkgerrors.CodeExternal, ErrCaptureRejected, "payment capture failed")
	}
	s.observe(gw, "capture", "ok", started)

	if capture.Status != enums.PaymentStatusCompleted {
		label := capture.Status
		if label == "" || label == enums.PaymentStatusCreated {
			label = enums.PaymentStatusFailed
		}
		return nil, s.compensate(ctx, gw, order, userID, sessionID, label,
			pkgerrors.CodeExternal, ErrCaptureRejected, "payment capture not completed")
	}
	if capture.Reference != strconv.FormatInt(order.ID, 10) {
		return nil, s.compensate(ctx, gw, order, userID, sessionID, enums.PaymentStatusReferenceMismatch,
			pkgerrors.CodeConsistency, ErrCaptureMismatch, "captured payment reference mismatch")
	}
	if !sameCurrency(capture.Currency, order.Currency.String()) || !capture.Amount.Equal(order.TotalAmount) {
		return nil, s.compensate(ctx, gw, order, userID, sessionID, enums.PaymentStatusAmountMismatch,
			pkgerrors.CodeConsistency, ErrCaptureMismatch, "captured amount mismatch")
	}

	providerName := gw.Provider()
	completed := enums.PaymentStatusCompleted
	transactionID := capture.TransactionID
	accepted, err := s.machine.Transition(ctx, orders.TransitionInput{
		OrderID:      order.ID,
		Status:       enums.OrderStatusAccepted,
		ActorUserID:  order.UserID,
		Precondition: guard,
		Payment: &orders.PaymentUpdate{
			Provider:  &providerName,
			Status:    &completed,
			SessionID: &sessionID,
			CaptureID: &transactionID,
		},
	})
	if err != nil {
		if errors.Is(err, ErrOrderNotPayable) {
			return nil, s.recordOrphanedCapture(ctx, gw, order.ID, sessionID, transactionID, err)
		}
		s.logg.Error(s.logFields(ctx, gw, order.ID, nil), "captured payment could not be applied to order", err)
		return nil, err
	}

	s.logg.Info(s.logFields(ctx, gw, order.ID, nil), "payment captured")
	return &CaptureResult{Status: completed, TransactionID: transactionID, Order: accepted}, nil
}

// recordOrphanedCapture stores a capture that landed after the order left
// PENDING. Status is untouched; the payment needs a manual refund.
func (s *service) recordOrphanedCapture(ctx context.Context, gw Gateway, orderID int64, sessionID, transactionID string, cause error) error {
	providerName := gw.Provider()
	completed := enums.PaymentStatusCompleted
	stored, err := s.machine.UpdatePayment(ctx, orderID, func(locked *models.Order) error {
		if locked.IsCaptured() {
			return pkgerrors.Wrap(pkgerrors.CodePayment, ErrAlreadyCaptured, "order payment already captured")
		}
		return nil
	}, orders.PaymentUpdate{
		Provider:  &providerName,
		Status:    &completed,
		SessionID: &sessionID,
		CaptureID: &transactionID,
	})

	fields := map[string]any{
		"order_id":       orderID,
		"provider":       providerName.Slug(),
		"transaction_id": transactionID,
		"event":          "payment.refund_required",
	}
	details := map[string]any{"transactionId": transactionID, "refundRequired": true}
	if err == nil {
		fields["order_status"] = stored.Status
		details["orderStatus"] = stored.Status
	}
	logCtx := s.logg.WithFields(ctx, fields)
	if err != nil {
		s.logg.Error(logCtx, "captured payment could not be recorded on order", err)
	} else {
		s.logg.Error(logCtx, "payment captured for an order that is no longer payable", cause)
	}

	return pkgerrors.Wrap(pkgerrors.CodeConsistency, ErrCapturedAfterClose, "payment captured after the order closed; it will be refunded").
		WithRetryable(false).
		WithDetails(details)
}

// compensate records the failure label and cancels the order in one
// transition, then reports the cancellation to the caller. The cancel only
// applies while the locked order is still capturable with this session, so a
// concurrent capture that already landed is never undone.
func (s *service) compensate(ctx context.Context, gw Gateway, order *models.Order, userID int64, sessionID string, label enums.PaymentStatus, code pkgerrors.Code, sentinel error, message string) error {
	providerName := gw.Provider()
	stillCapturable := func(locked *models.Order) error {
		return checkCapturable(locked, userID, sessionID)
	}
	_, err := s.machine.Transition(ctx, orders.TransitionInput{
		OrderID:      order.ID,
		Status:       enums.OrderStatusCanceled,
		ActorUserID:  order.UserID,
		Precondition: stillCapturable,
		Payment: &orders.PaymentUpdate{
			Provider:  &providerName,
			Status:    &label,
			SessionID: &sessionID,
		},
	})
	switch {
	case err != nil && pkgerrors.CodeOf(err) == pkgerrors.CodePayment:
		s.logg.Warn(s.logFields(ctx, gw, order.ID, err), "order moved on during capture; cancel skipped")
		return err
	case err != nil:
		s.logg.Error(s.logFields(ctx, gw, order.ID, nil), "compensating cancel failed", err)
	default:
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"order_id":       order.ID,
			"provider":       providerName.Slug(),
			"payment_status": label,
		}), "order canceled after payment failure")
	}

	return pkgerrors.Wrap(code, sentinel, message).
		WithRetryable(false).
		WithDetails(map[string]any{"paymentStatus": label, "orderStatus": enums.OrderStatusCanceled})
}

func (s *service) gateway(provider string) (Gateway, error) {
	gw, ok := s.gateways.Lookup(provider)
	if !ok {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrUnknownProvider, fmt.Sprintf("payment provider %q is not available", provider)).
			WithDetails(map[string]any{"available": s.gateways.Providers()})
	}
	return gw, nil
}

func (s *service) observe(gw Gateway, op, outcome string, started time.Time) {
	s.metrics.Observe(gw.Provider().Slug(), op, outcome, time.Since(started))
}

func (s *service) logFields(ctx context.Context, gw Gateway, orderID int64, err error) context.Context {
	fields := map[string]any{
		"order_id": orderID,
		"provider": gw.Provider().Slug(),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	return s.logg.WithFields(ctx, fields)
}

func checkPayable(order *models.Order, userID int64) error {
	if order.UserID != userID {
		return pkgerrors.Wrap(pkgerrors.CodePayment, ErrNotOrderOwner, "you do not have access to this order")
	}
	if order.Status != enums.OrderStatusPending {
		return pkgerrors.Wrap(pkgerrors.CodePayment, ErrOrderNotPayable, "order must be PENDING before initiating payment").
			WithDetails(map[string]any{"status": order.Status})
	}
	if order.IsCaptured() {
		return pkgerrors.Wrap(pkgerrors.CodePayment, ErrAlreadyCaptured, "order payment already captured")
	}
	if !order.TotalAmount.IsPositive() {
		return pkgerrors.Wrap(pkgerrors.CodePayment, ErrNonPositiveAmount, "order total must be greater than zero")
	}
	return nil
}

func checkCapturable(order *models.Order, userID int64, sessionID string) error {
	if order.UserID != userID {
		return pkgerrors.Wrap(pkgerrors.CodePayment, ErrNotOrderOwner, "you do not have access to this order")
	}
	if order.PaymentSessionID != nil && *order.PaymentSessionID != "" && *order.PaymentSessionID != sessionID {
		return pkgerrors.Wrap(pkgerrors.CodePayment, ErrSessionMismatch, "payment session does not belong to this order")
	}
	if order.IsCaptured() {
		return pkgerrors.Wrap(pkgerrors.CodePayment, ErrAlreadyCaptured, "order payment already captured")
	}
	if order.Status != enums.OrderStatusPending {
		return pkgerrors.Wrap(pkgerrors.CodePayment, ErrOrderNotPayable, "order must be PENDING to capture payment").
			WithDetails(map[string]any{"status": order.Status})
	}
	return nil
}

func externalError(err error, message string) error {
	return pkgerrors.Wrap(pkgerrors.CodeExternal, err, message).WithRetryable(isTransient(err))
}

func outcomeFor(err error) string {
	if isTransient(err) {
		return "transient_error"
	}
	return "error"
}
