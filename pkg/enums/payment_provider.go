package enums

import (
	"fmt"
	"strings"
)

// PaymentProvider identifies an external payment processor.
type PaymentProvider string

const (
	PaymentProviderPayPal PaymentProvider = "PAYPAL"
	PaymentProviderStripe PaymentProvider = "STRIPE"
)

var validPaymentProviders = []PaymentProvider{
	PaymentProviderPayPal,
	PaymentProviderStripe,
}

// String implements fmt.Stringer.
func (p PaymentProvider) String() string {
	return string(p)
}

// Slug is the lowercase form used in URLs.
func (p PaymentProvider) Slug() string {
	return strings.ToLower(string(p))
}

// IsValid reports whether the value is a known PaymentProvider.
func (p PaymentProvider) IsValid() bool {
	for _, candidate := range validPaymentProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentProvider accepts either the stored or the URL form.
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	upper := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validPaymentProviders {
		if string(candidate) == upper {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment provider %q", value)
}
