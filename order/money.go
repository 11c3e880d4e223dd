package order

import (
	"fmt"
)

// Money is a currency-tagged amount stored in the currency's minor unit
// (cents). Integer arithmetic keeps replay deterministic; rounding happens
// once, at the point a fractional result is produced.
type Money struct {
	// Amount is the value in cents.
	Amount int64 `json:"amount"`

	// Currency is the ISO 4217 code, e.g. "USD".
	Currency string `json:"currency"`
}

// NewMoney creates a Money value. The currency must be a 3-letter code.
func NewMoney(amount int64, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, NewValidationError("currency", fmt.Sprintf("invalid currency code %q", currency))
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// MustMoney creates a Money value and panics on an invalid currency.
// Intended for tests and constants.
func MustMoney(amount int64, currency string) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the same currency.
func (m Money) Zero() Money {
	return Money{Amount: 0, Currency: m.Currency}
}

// IsZero returns true for an uninitialized Money value.
func (m Money) IsZero() bool {
	return m.Amount == 0 && m.Currency == ""
}

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool {
	return m.Amount > 0
}

// SameCurrency returns true if both values share a currency.
func (m Money) SameCurrency(other Money) bool {
	return m.Currency == other.Currency
}

// Add returns the sum of two amounts.
// Returns an error if the currencies differ.
func (m Money) Add(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, NewCurrencyMismatchError(m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Subtract returns the difference of two amounts.
// Returns an error if the currencies differ.
func (m Money) Subtract(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, NewCurrencyMismatchError(m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// MultiplyInt returns the amount multiplied by an integer factor.
func (m Money) MultiplyInt(n int64) Money {
	return Money{Amount: m.Amount * n, Currency: m.Currency}
}

// Percent returns the given fraction of the amount, expressed in basis
// points (850 = 8.5%). The result is rounded half away from zero, so
// $15.00 at 8.5% yields $1.28.
func (m Money) Percent(basisPoints int64) Money {
	raw := m.Amount * basisPoints
	var rounded int64
	if raw >= 0 {
		rounded = (raw + 5000) / 10000
	} else {
		rounded = (raw - 5000) / 10000
	}
	return Money{Amount: rounded, Currency: m.Currency}
}

// GreaterThan returns true if m exceeds other. Panics are avoided:
// comparing different currencies returns false.
func (m Money) GreaterThan(other Money) bool {
	return m.SameCurrency(other) && m.Amount > other.Amount
}

// LessThan returns true if m is below other.
func (m Money) LessThan(other Money) bool {
	return m.SameCurrency(other) && m.Amount < other.Amount
}

// String formats the amount as a decimal with its currency code.
func (m Money) String() string {
	sign := ""
	amount := m.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, m.Currency)
}
