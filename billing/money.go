/*
Package billing provides the installment-billing ledger engine.

PURPOSE:
  This package contains the calculation core for installment financing:
  deriving a fixed quota schedule from a financed total, allocating
  incoming payments against that schedule (partials, overpayments,
  accumulated credit), computing late-payment penalties, classifying
  payment records, and reconstructing per-quota balances from history.

KEY CONCEPTS IN THIS FILE (money.go):
  - Money: A currency amount backed by decimal.Decimal (2-decimal precision)

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float64 arithmetic
  2. Purity: calculators take inputs as arguments and return new values;
     the only shared mutable state is the persisted Financing/record pair
  3. Determinism: every calculation that depends on "now" takes an
     explicit reference date instead of reading the system clock

SEE ALSO:
  - schedule.go:  quota schedule derivation
  - allocate.go:  payment allocation
  - projector.go: balance reconstruction from record history
  - cycle.go:     the two-phase weekly billing cycle
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amount with 2-decimal precision
// =============================================================================

// CurrencyPlaces is the number of decimal places carried by settled amounts.
const CurrencyPlaces = 2

// Money is a currency amount. The zero value is zero money.
type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money      { return Money{Value: decimal.NewFromFloat(value)} }
func NewMoneyFromInt(value int) Money   { return Money{Value: decimal.NewFromInt(int64(value))} }
func ZeroMoney() Money                  { return Money{Value: decimal.Zero} }

// ParseMoney parses a decimal string amount.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney(), err
	}
	return Money{Value: d}, nil
}

// MustParseMoney parses a decimal string, returning zero on malformed input.
// For constants and trusted storage reads only.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		return ZeroMoney()
	}
	return m
}

func (m Money) Add(b Money) Money            { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money            { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) Mul(s decimal.Decimal) Money  { return Money{Value: m.Value.Mul(s)} }
func (m Money) MulInt(n int) Money           { return Money{Value: m.Value.Mul(decimal.NewFromInt(int64(n)))} }
func (m Money) Div(s decimal.Decimal) Money  { return Money{Value: m.Value.Div(s)} }
func (m Money) DivInt(n int) Money           { return Money{Value: m.Value.Div(decimal.NewFromInt(int64(n)))} }
func (m Money) Neg() Money                   { return Money{Value: m.Value.Neg()} }
func (m Money) IsNegative() bool             { return m.Value.IsNegative() }
func (m Money) IsZero() bool                 { return m.Value.IsZero() }
func (m Money) IsPositive() bool             { return m.Value.IsPositive() }
func (m Money) GreaterThan(b Money) bool     { return m.Value.GreaterThan(b.Value) }
func (m Money) LessThan(b Money) bool        { return m.Value.LessThan(b.Value) }
func (m Money) GreaterOrEqual(b Money) bool  { return m.Value.GreaterThanOrEqual(b.Value) }
func (m Money) LessOrEqual(b Money) bool     { return m.Value.LessThanOrEqual(b.Value) }
func (m Money) Equal(b Money) bool           { return m.Value.Equal(b.Value) }
func (m Money) Min(b Money) Money            { if m.LessThan(b) { return m }; return b }
func (m Money) Max(b Money) Money            { if m.GreaterThan(b) { return m }; return b }

// RoundCurrency rounds to currency precision using banker's rounding,
// so that schedule splits do not systematically drift up or down.
func (m Money) RoundCurrency() Money { return Money{Value: m.Value.RoundBank(CurrencyPlaces)} }

// FloorQuotas returns how many whole quotas of size quota fit into m.
// quota must be positive.
func (m Money) FloorQuotas(quota Money) int {
	return int(m.Value.Div(quota.Value).IntPart())
}

// ClampZero returns m, or zero money when m is negative.
func (m Money) ClampZero() Money {
	if m.IsNegative() {
		return ZeroMoney()
	}
	return m
}

func (m Money) Float64() float64 { f, _ := m.Value.Float64(); return f }
func (m Money) String() string   { return m.Value.StringFixed(CurrencyPlaces) }

// CurrencyEpsilon is the tolerance used when comparing recomputed against
// stored amounts: one cent, the smallest representable currency step.
func CurrencyEpsilon() Money { return MustParseMoney("0.01") }

// WithinEpsilon reports whether m and b differ by at most the currency epsilon.
func (m Money) WithinEpsilon(b Money) bool {
	diff := m.Sub(b)
	if diff.IsNegative() {
		diff = diff.Neg()
	}
	return diff.LessOrEqual(CurrencyEpsilon())
}
