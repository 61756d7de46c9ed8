package enums

import "testing"

func TestOrderStatusTerminal(t *testing.T) {
	terminal := map[OrderStatus]bool{
		OrderStatusPending:        false,
		OrderStatusAccepted:       false,
		OrderStatusInPreparation:  false,
		OrderStatusReadyForPickup: false,
		OrderStatusCompleted:      true,
		OrderStatusCanceled:       true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Fatalf("%s terminal=%v want %v", status, got, want)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	if _, err := ParseOrderStatus("READY_FOR_PICKUP"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseOrderStatus("ready_for_pickup"); err == nil {
		t.Fatal("status parsing is exact")
	}
}

func TestParsePaymentProvider(t *testing.T) {
	p, err := ParsePaymentProvider("paypal")
	if err != nil || p != PaymentProviderPayPal {
		t.Fatalf("expected paypal, got %q err=%v", p, err)
	}
	if p.Slug() != "paypal" {
		t.Fatalf("unexpected slug %q", p.Slug())
	}
	if _, err := ParsePaymentProvider("venmo"); err == nil {
		t.Fatal("expected unknown provider to fail")
	}
}

func TestUserRoleIsStaff(t *testing.T) {
	if UserRoleCustomer.IsStaff() {
		t.Fatal("customers are not staff")
	}
	if !UserRoleStaff.IsStaff() || !UserRoleAdmin.IsStaff() {
		t.Fatal("staff and admin manage orders")
	}
}

func TestCurrencyMinorUnits(t *testing.T) {
	cases := map[Currency]int32{
		CurrencyUSD: 2,
		CurrencyEUR: 2,
		CurrencyGBP: 2,
		CurrencyJPY: 0,
	}
	for currency, want := range cases {
		if got := currency.MinorUnits(); got != want {
			t.Fatalf("%s minor units=%d want %d", currency, got, want)
		}
	}
	parsed, err := ParseCurrency(" jpy ")
	if err != nil || parsed != CurrencyJPY {
		t.Fatalf("parse jpy: %v %v", parsed, err)
	}
}

func TestPaymentStatusIsOpen(t *testing.T) {
	open := map[PaymentStatus]bool{
		PaymentStatusCreated:           true,
		PaymentStatusRequiresAction:    true,
		PaymentStatusCompleted:         false,
		PaymentStatusFailed:            false,
		PaymentStatusDeclined:          false,
		PaymentStatusAmountMismatch:    false,
		PaymentStatusReferenceMismatch: false,
	}
	for status, want := range open {
		if got := status.IsOpen(); got != want {
			t.Fatalf("%s open=%v want %v", status, got, want)
		}
	}
}
