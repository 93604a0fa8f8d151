// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents; decimal.Decimal is used at the edges
// for parsing, formatting and ratio math so no float rounding leaks into
// stored values.
package core

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a non-negative amount in cents.
type Money struct {
	Cents int64
}

// maxCents keeps amounts exactly representable as JSON numbers.
const maxCents = 1 << 53

var (
	hundred     = decimal.NewFromInt(100)
	maxCentsDec = decimal.NewFromInt(maxCents)
)

func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > maxCents {
		return ErrInvalidAmount
	}
	return nil
}

// ParseAmount converts a decimal string to Money with half-up rounding to cents.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted.
// Zero, negative and malformed values are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234 cents
//	ParseAmount("12,345") -> 1235 cents
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal rounds d to cents; it fails for non-positive or oversized values.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Mul(hundred).Round(0)
	if !cents.IsPositive() || cents.GreaterThan(maxCentsDec) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

func Cents(c int64) Money { return Money{Cents: c} }

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with exactly two decimals.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Float returns the value for display and spreadsheet cells only.
func (m Money) Float() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }

// MarshalJSON emits a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
// Validation of the sign happens in Validate, not here; magnitudes beyond
// maxCents are rejected since they cannot fit in cents.
func (m *Money) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		m.Cents = 0
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return ErrInvalidAmount
	}
	cents := d.Mul(hundred).Round(0)
	if cents.Abs().GreaterThan(maxCentsDec) {
		return ErrInvalidAmount
	}
	m.Cents = cents.IntPart()
	return nil
}

var half = decimal.New(5, -1)

// percentOf returns part / whole * 100 rounded half up (toward +Inf), or 0 if whole is 0.
func percentOf(part, whole int64) int {
	if whole == 0 {
		return 0
	}
	ratio := decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(whole))
	return int(ratio.Add(half).Floor().IntPart())
}
