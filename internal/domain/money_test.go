package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewMoneyRejectsNegativeAmount(t *testing.T) {
	_, err := NewMoney(decimal.NewFromInt(-1), "EUR")
	if !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestNewMoneyRequiresCurrency(t *testing.T) {
	_, err := NewMoney(decimal.NewFromInt(10), "   ")
	if !errors.Is(err, ErrCurrencyRequired) {
		t.Fatalf("expected ErrCurrencyRequired, got %v", err)
	}
}

func TestNewMoneyNormalisesCurrency(t *testing.T) {
	m, err := NewMoney(decimal.NewFromInt(10), " eur ")
	if err != nil {
		t.Fatalf("NewMoney returned error: %v", err)
	}
	if m.Currency() != "EUR" {
		t.Fatalf("expected EUR, got %s", m.Currency())
	}
}

func TestMoneyAddMismatchedCurrencies(t *testing.T) {
	a := MustMoney("10.00", "EUR")
	b := MustMoney("5.00", "USD")
	if _, err := a.Add(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
}

func TestMoneyAdd(t *testing.T) {
	a := MustMoney("10.50", "EUR")
	b := MustMoney("4.25", "EUR")
	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if got := sum.String(); got != "14.75 EUR" {
		t.Fatalf("unexpected sum: %s", got)
	}
}

func TestMoneySubNeverGoesNegative(t *testing.T) {
	a := MustMoney("4.00", "EUR")
	b := MustMoney("5.00", "EUR")
	if _, err := a.Sub(b); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestMoneyMul(t *testing.T) {
	price := MustMoney("19.99", "EUR")
	total, err := price.Mul(3)
	if err != nil {
		t.Fatalf("Mul returned error: %v", err)
	}
	if got := total.String(); got != "59.97 EUR" {
		t.Fatalf("unexpected total: %s", got)
	}
	if _, err := price.Mul(-1); err == nil {
		t.Fatal("expected error for negative multiplier")
	}
}

func TestMoneyMinorUnits(t *testing.T) {
	cases := map[string]int64{
		"120.00": 12000,
		"0.99":   99,
		"10.505": 1051,
	}
	for value, want := range cases {
		m := MustMoney(value, "EUR")
		if got := m.MinorUnits(); got != want {
			t.Fatalf("MinorUnits(%s) = %d, want %d", value, got, want)
		}
	}
}

func TestMoneyMarshalJSON(t *testing.T) {
	m := MustMoney("120.5", "EUR")
	data, err := m.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON returned error: %v", err)
	}
	if got := string(data); got != `{"amount":"120.50","currency":"EUR"}` {
		t.Fatalf("unexpected JSON: %s", got)
	}
}

func TestMoneyIsSet(t *testing.T) {
	var unset Money
	if unset.IsSet() {
		t.Fatal("zero Money must report unset")
	}
	if unset.Currency() != DefaultCurrency {
		t.Fatalf("Currency() substitutes the default, got %q", unset.Currency())
	}
	if !MustMoney("0.00", "EUR").IsSet() {
		t.Fatal("constructed zero amount must report set")
	}
}

func TestCartSnapshotTotal(t *testing.T) {
	cart := Cart{Items: []CartItem{
		{ProductID: "p1", Quantity: 2, UnitPrice: MustMoney("10.00", "EUR")},
		{ProductID: "p2", Quantity: 1, UnitPrice: MustMoney("5.50", "EUR")},
	}}
	if got := cart.SnapshotTotal().String(); got != "25.50 EUR" {
		t.Fatalf("unexpected snapshot total: %s", got)
	}
}

func TestProductOrderable(t *testing.T) {
	p := Product{Active: true, AvailableQuantity: 3}
	if !p.Orderable(3) {
		t.Fatal("expected orderable at exact stock")
	}
	if p.Orderable(4) {
		t.Fatal("expected not orderable beyond stock")
	}
	p.Active = false
	if p.Orderable(1) {
		t.Fatal("inactive product must not be orderable")
	}
}
