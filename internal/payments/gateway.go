// Package payments mediates two-phase processor payments and reconciles
// their outcome into order state.
package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/brewline/brewline-backend/pkg/db/models"
	"github.com/brewline/brewline-backend/pkg/enums"
)

var (
	// ErrMalformedResponse marks a processor reply that could not be interpreted.
	ErrMalformedResponse = errors.New("malformed processor response")
	// ErrProcessorAuth marks a rejection of the merchant's own credentials.
	// The payment itself was never evaluated.
	ErrProcessorAuth = errors.New("payment processor rejected merchant credentials")
)

// Session is a processor-side payment created for an order.
type Session struct {
	ID     string
	Status enums.PaymentStatus
}

// Capture is the processor's view of a captured session.
type Capture struct {
	Status        enums.PaymentStatus
	Reference     string
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
}

// Gateway is one payment processor integration.
type Gateway interface {
	Provider() enums.PaymentProvider
	CreateSession(ctx context.Context, order *models.Order) (*Session, error)
	CaptureSession(ctx context.Context, order *models.Order, sessionID string) (*Capture, error)
}

// GatewayError is a normalized processor failure. StatusCode is zero when
// no response was received.
type GatewayError struct {
	Provider   enums.PaymentProvider
	Op         string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", e.Provider.Slug(), e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: status %d: %v", e.Provider.Slug(), e.Op, e.StatusCode, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Transient reports whether the call may succeed if repeated unchanged.
func (e *GatewayError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
}

// isTransient treats anything a gateway did not classify as transient so
// that an unknown failure never cancels an order.
func isTransient(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Transient()
	}
	return true
}

func isCredentialStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// Registry resolves gateways by provider name.
type Registry struct {
	gateways map[enums.PaymentProvider]Gateway
}

// NewRegistry indexes the provided gateways. Nil entries are skipped.
func NewRegistry(gateways ...Gateway) (*Registry, error) {
	r := &Registry{gateways: map[enums.PaymentProvider]Gateway{}}
	for _, gw := range gateways {
		if gw == nil {
			continue
		}
		provider := gw.Provider()
		if _, dup := r.gateways[provider]; dup {
			return nil, fmt.Errorf("payment gateway %s registered twice", provider)
		}
		r.gateways[provider] = gw
	}
	return r, nil
}

// Lookup accepts the URL slug or stored provider name.
func (r *Registry) Lookup(name string) (Gateway, bool) {
	if r == nil {
		return nil, false
	}
	provider, err := enums.ParsePaymentProvider(name)
	if err != nil {
		return nil, false
	}
	gw, ok := r.gateways[provider]
	return gw, ok
}

// Providers lists the registered provider slugs, sorted.
func (r *Registry) Providers() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.gateways))
	for provider := range r.gateways {
		out = append(out, provider.Slug())
	}
	sort.Strings(out)
	return out
}

func sameCurrency(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
