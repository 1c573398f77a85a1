package service

import (
	"errors"
	"testing"
)

func TestFeePolicyRoundTrip(t *testing.T) {
	policy, err := NewFeePolicy("0.25")
	if err != nil {
		t.Fatalf("new fee policy failed: %v", err)
	}
	for _, raw := range []string{"0.26", "1.00", "1500.00", "987654.31", "12.345"} {
		amount := mustMoney(t, raw)
		fee, net := policy.Compute(amount)
		if !net.Equal(amount.Sub(fee).Decimal) {
			t.Fatalf("%s: net should be amount - fee, got %s", raw, net.String())
		}
		if !net.Add(fee).Equal(amount.Decimal) {
			t.Fatalf("%s: net + fee should round-trip to amount, got %s", raw, net.Add(fee).String())
		}
	}
}

func TestNewFeePolicyValidation(t *testing.T) {
	if _, err := NewFeePolicy("-1"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("negative fee should be rejected, got %v", err)
	}
	if _, err := NewFeePolicy("abc"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("malformed fee should be rejected, got %v", err)
	}
	policy, err := NewFeePolicy("")
	if err != nil {
		t.Fatalf("empty fee should default to zero: %v", err)
	}
	fee, net := policy.Compute(moneyOf(10))
	if !fee.IsZero() || net.String() != "10.00" {
		t.Fatalf("zero fee should leave net unchanged, got %s/%s", fee.String(), net.String())
	}
}
