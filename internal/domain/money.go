package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the storefront currency used when none is supplied.
const DefaultCurrency = "EUR"

var (
	// ErrNegativeAmount is returned when constructing money with a negative amount.
	ErrNegativeAmount = errors.New("domain: money amount must not be negative")
	// ErrCurrencyRequired is returned when the currency code is blank.
	ErrCurrencyRequired = errors.New("domain: money currency is required")
	// ErrCurrencyMismatch is returned when combining money values of different currencies.
	ErrCurrencyMismatch = errors.New("domain: money currency mismatch")
)

// Money is an immutable monetary value: a decimal amount paired with an
// ISO-4217 currency code. Arithmetic across currencies is an error, never a
// silent coercion.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney constructs a Money value. Negative amounts and blank currencies
// are rejected.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return Money{}, ErrCurrencyRequired
	}
	if amount.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	return Money{amount: amount, currency: code}, nil
}

// MustMoney is a constructor for literals in tests and seed data. It panics
// on invalid input.
func MustMoney(value string, currency string) Money {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		panic(fmt.Sprintf("domain: invalid money literal %q: %v", value, err))
	}
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// ZeroMoney returns a zero value in the given currency, defaulting to EUR.
func ZeroMoney(currency string) Money {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = DefaultCurrency
	}
	return Money{amount: decimal.Zero, currency: code}
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the ISO-4217 currency code.
func (m Money) Currency() string {
	if m.currency == "" {
		return DefaultCurrency
	}
	return m.currency
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsSet distinguishes a constructed value from the zero Money. Constructors
// never leave the currency blank, so an unset value is detectable even though
// Currency() substitutes the default code.
func (m Money) IsSet() bool { return m.currency != "" }

// Add returns the sum of two money values. Mixing currencies is an error.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency() != other.Currency() {
		return Money{}, fmt.Errorf("%w: %s + %s", ErrCurrencyMismatch, m.Currency(), other.Currency())
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.Currency()}, nil
}

// Sub returns the difference of two money values. The result may not go
// negative and mixing currencies is an error.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency() != other.Currency() {
		return Money{}, fmt.Errorf("%w: %s - %s", ErrCurrencyMismatch, m.Currency(), other.Currency())
	}
	result := m.amount.Sub(other.amount)
	if result.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	return Money{amount: result, currency: m.Currency()}, nil
}

// Mul multiplies the amount by a non-negative integer quantity.
func (m Money) Mul(qty int) (Money, error) {
	if qty < 0 {
		return Money{}, fmt.Errorf("domain: money multiplier must not be negative, got %d", qty)
	}
	return Money{amount: m.amount.Mul(decimal.NewFromInt(int64(qty))), currency: m.Currency()}, nil
}

// Equal reports whether two money values share currency and amount.
func (m Money) Equal(other Money) bool {
	return m.Currency() == other.Currency() && m.amount.Equal(other.amount)
}

// MinorUnits converts the amount to integer minor units (cents) for payment
// providers. The amount is rounded half-up to two decimal places first.
func (m Money) MinorUnits() int64 {
	return m.amount.Round(2).Shift(2).IntPart()
}

// String renders the value as "120.00 EUR".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(2), m.Currency())
}

// MarshalJSON emits {"amount":"120.00","currency":"EUR"}.
func (m Money) MarshalJSON() ([]byte, error) {
	payload := fmt.Sprintf(`{"amount":%q,"currency":%q}`, m.amount.StringFixed(2), m.Currency())
	return []byte(payload), nil
}

// UnmarshalJSON parses the wire form produced by MarshalJSON.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("domain: decode money: %w", err)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(raw.Amount))
	if err != nil {
		return fmt.Errorf("domain: invalid money amount %q: %w", raw.Amount, err)
	}
	parsed, err := NewMoney(amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
