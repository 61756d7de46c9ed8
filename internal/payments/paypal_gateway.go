package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/brewline/brewline-backend/pkg/db/models"
	"github.com/brewline/brewline-backend/pkg/enums"
	"github.com/brewline/brewline-backend/pkg/paypal"
)

type paypalAPI interface {
	CreateOrder(ctx context.Context, req paypal.CreateOrderRequest) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.CaptureResult, error)
}

type paypalGateway struct {
	api paypalAPI
}

// NewPayPalGateway adapts the PayPal Orders client.
func NewPayPalGateway(api paypalAPI) Gateway {
	if api == nil {
		return nil
	}
	return &paypalGateway{api: api}
}

func (g *paypalGateway) Provider() enums.PaymentProvider {
	return enums.PaymentProviderPayPal
}

func (g *paypalGateway) CreateSession(ctx context.Context, order *models.Order) (*Session, error) {
	reference := strconv.FormatInt(order.ID, 10)
	created, err := g.api.CreateOrder(ctx, paypal.CreateOrderRequest{
		Intent: paypal.IntentCapture,
		PurchaseUnits: []paypal.PurchaseUnit{{
			ReferenceID: reference,
			CustomID:    reference,
			Amount: paypal.Amount{
				CurrencyCode: order.Currency.String(),
				Value:        order.TotalAmount.StringFixed(order.Currency.MinorUnits()),
			},
		}},
	})
	if err != nil {
		return nil, g.wrap("create session", err)
	}
	return &Session{ID: created.ID, Status: paypalStatus(created.Status)}, nil
}

func (g *paypalGateway) CaptureSession(ctx context.Context, _ *models.Order, sessionID string) (*Capture, error) {
	result, err := g.api.CaptureOrder(ctx, sessionID)
	if err != nil {
		return nil, g.wrap("capture session", err)
	}

	capture := &Capture{
		Status:        paypalStatus(result.Status),
		Reference:     result.CustomID,
		TransactionID: result.CaptureID,
		Currency:      result.Amount.CurrencyCode,
	}
	if capture.Reference == "" {
		capture.Reference = result.ReferenceID
	}
	if capture.Status == enums.PaymentStatusCompleted {
		amount, err := decimal.NewFromString(result.Amount.Value)
		if err != nil {
			return nil, &GatewayError{Provider: g.Provider(), Op: "capture session", StatusCode: http.StatusOK, Err: ErrMalformedResponse}
		}
		capture.Amount = amount
	}
	return capture, nil
}

func (g *paypalGateway) wrap(op string, err error) error {
	gwErr := &GatewayError{Provider: g.Provider(), Op: op, Err: err}
	var apiErr *paypal.Error
	if errors.As(err, &apiErr) {
		gwErr.StatusCode = apiErr.HTTPStatus()
		switch {
		case errors.Is(err, paypal.ErrAuthentication), isCredentialStatus(apiErr.HTTPStatus()):
			gwErr.Err = fmt.Errorf("%w: %w", ErrProcessorAuth, err)
		case errors.Is(err, paypal.ErrMalformedResponse):
			gwErr.Err = ErrMalformedResponse
		}
	}
	return gwErr
}

func paypalStatus(raw string) enums.PaymentStatus {
	switch raw {
	case paypal.StatusCreated, paypal.StatusApproved:
		return enums.PaymentStatusCreated
	case paypal.StatusPayerAction:
		return enums.PaymentStatusRequiresAction
	case paypal.StatusCompleted:
		return enums.PaymentStatusCompleted
	case paypal.StatusDeclined:
		return enums.PaymentStatusDeclined
	default:
		return enums.PaymentStatusFailed
	}
}
