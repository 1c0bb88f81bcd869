// Package core provides money parsing and handling utilities.
//
// Money is a decimal amount held at two fractional digits. Values are rounded
// half-up on construction so that sums never drift, and they are persisted as
// integer cents.
package core

import (
	"bytes"
	"math"
	"strings"
	"unicode"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used for user-facing messages when none is configured.
const DefaultCurrency = money.BRL

// MaxAmount bounds a single transaction, goal target or funding amount. It
// keeps every stored value and any realistic ledger sum inside int64 cents.
var MaxAmount = MoneyFromCents(99_999_999_999_999)

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

type Money struct {
	value decimal.Decimal
}

// NewMoney rounds d to cents.
func NewMoney(d decimal.Decimal) Money {
	return Money{value: d.Round(2)}
}

// MoneyFromCents builds a Money from an integer number of cents.
func MoneyFromCents(cents int64) Money {
	return Money{value: decimal.New(cents, -2)}
}

// MoneyFromFloat is a convenience for tests and literals.
func MoneyFromFloat(f float64) Money {
	return NewMoney(decimal.NewFromFloat(f))
}

// ParseAmount converts a decimal string to a positive Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. Signs, exponents, zero, values
// above MaxAmount and malformed input are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,345") -> 12.35
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return Money{}, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m := NewMoney(d)
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// Validate accepts amounts in (0, MaxAmount].
func (m Money) Validate() error {
	if !m.IsPositive() || m.GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// Cents returns the amount as integer cents. Callers persisting a value that
// has not passed Validate use StorableCents.
func (m Money) Cents() int64 {
	return m.value.Shift(2).IntPart()
}

// StorableCents returns the amount as integer cents, or ErrInvalidAmount when
// it does not fit in an int64.
func (m Money) StorableCents() (int64, error) {
	c := m.value.Shift(2)
	if c.GreaterThan(maxCents) || c.LessThan(minCents) {
		return 0, ErrInvalidAmount
	}
	return c.IntPart(), nil
}

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.value }

func (m Money) Add(n Money) Money { return Money{value: m.value.Add(n.value)} }
func (m Money) Sub(n Money) Money { return Money{value: m.value.Sub(n.value)} }

func (m Money) Equal(n Money) bool              { return m.value.Equal(n.value) }
func (m Money) LessThan(n Money) bool           { return m.value.LessThan(n.value) }
func (m Money) GreaterThan(n Money) bool        { return m.value.GreaterThan(n.value) }
func (m Money) GreaterThanOrEqual(n Money) bool { return m.value.GreaterThanOrEqual(n.value) }
func (m Money) IsZero() bool                    { return m.value.IsZero() }
func (m Money) IsPositive() bool                { return m.value.IsPositive() }
func (m Money) IsNegative() bool                { return m.value.IsNegative() }

// MinMoney returns the smaller of a and b.
func MinMoney(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Floor returns the whole units of the amount, rounded toward negative infinity.
func (m Money) Floor() int64 {
	return m.value.Floor().IntPart()
}

// String renders the amount with two fractional digits and a dot separator.
func (m Money) String() string {
	return m.value.StringFixed(2)
}

// Format renders the amount in the given currency, e.g. "R$10,00" for BRL.
func (m Money) Format(currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	return money.New(m.Cents(), currency).Display()
}

// Plain renders the amount with the currency's separators but no symbol, e.g. "5,00".
func (m Money) Plain(currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	c := money.GetCurrency(currency)
	if c == nil {
		return m.String()
	}
	plain := *c
	plain.Grapheme = ""
	plain.Template = "1"
	return plain.Formatter().Format(m.Cents())
}

// Labeled renders the currency symbol, a space and the plain amount, e.g. "R$ 10,00".
func (m Money) Labeled(currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	c := money.GetCurrency(currency)
	if c == nil || c.Grapheme == "" {
		return m.Plain(currency)
	}
	return c.Grapheme + " " + m.Plain(currency)
}

// MarshalJSON encodes the amount as a JSON number with two fractional digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.value.StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || string(data) == "null" {
		*m = Money{}
		return nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(string(data), ",", "."))
	if err != nil {
		return ErrInvalidAmount
	}
	*m = NewMoney(d)
	return nil
}
