/*
penalty.go - Late-payment penalty calculation

PURPOSE:
  Computes how late a quota is and what penalty it carries.

THE FLAT RULE:
  The production rule is a one-time flat percentage, applied once when a
  quota crosses its deadline. The penalty does NOT compound per day of
  lateness: a quota 3 days late and a quota 30 days late both carry the
  same 10% charge (only the daysLate counter differs).

  A per-day multiplied variant exists, but only as an explicit simulation
  mode used by "what-if" previews. It is never applied to real records.

PENDING AMOUNT:
  The percentage is taken over the pending quota amount - the quota minus
  any credit already applied to it - never over money already paid.
*/
package billing

import "github.com/shopspring/decimal"

// Percentage is a 0-100 percentage value.
type Percentage = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// =============================================================================
// DAYS LATE
// =============================================================================

// DaysLate returns the floor of whole days elapsed past the due date,
// clamped to zero. A payment on the due date itself is not late.
func DaysLate(dueDate, referenceDate Date) int {
	days := DaysBetween(dueDate, referenceDate)
	if days < 0 {
		return 0
	}
	return days
}

// =============================================================================
// PENALTY CALCULATOR
// =============================================================================

// PenaltyMode selects between the production flat rule and the per-day
// simulation preview.
type PenaltyMode string

const (
	// PenaltyFlat applies the percentage once, when the quota is overdue.
	PenaltyFlat PenaltyMode = "flat"

	// PenaltyPerDay multiplies the flat charge by daysLate. Simulation
	// previews only; never used by the billing cycle.
	PenaltyPerDay PenaltyMode = "per_day"
)

// PenaltyCalculator derives penalty amounts. The zero value uses the flat
// production rule.
type PenaltyCalculator struct {
	Mode PenaltyMode
}

// Amount returns the penalty for a quota that is daysLate days overdue.
// pendingQuotaAmount is clamped at zero; no penalty accrues while the
// quota is not yet late.
func (pc PenaltyCalculator) Amount(pendingQuotaAmount Money, daysLate int, percentage Percentage) Money {
	if daysLate <= 0 {
		return ZeroMoney()
	}
	pending := pendingQuotaAmount.ClampZero()
	charge := pending.Mul(percentage).Div(hundred).RoundCurrency()

	if pc.Mode == PenaltyPerDay {
		return charge.MulInt(daysLate)
	}
	return charge
}
