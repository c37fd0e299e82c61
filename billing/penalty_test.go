/*
penalty_test.go - Executable specification of late-fee calculation

Covers:
  - daysLate floor and clamping
  - The flat one-time production rule vs the per-day simulation mode
  - Penalty over the PENDING amount, never over money already paid
*/
package billing_test

import (
	"testing"
	"time"

	"github.com/motriz/billing-engine/billing"
)

// =============================================================================
// DAYS LATE
// =============================================================================

func TestDaysLate_FloorsAndClamps(t *testing.T) {
	due := date(2025, time.June, 10)

	cases := []struct {
		name string
		ref  billing.Date
		want int
	}{
		{"before due date", date(2025, time.June, 5), 0},
		{"on due date", date(2025, time.June, 10), 0},
		{"one day after", date(2025, time.June, 11), 1},
		{"eight days after", date(2025, time.June, 18), 8},
		{"across month boundary", date(2025, time.July, 10), 30},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := billing.DaysLate(due, tc.ref); got != tc.want {
				t.Errorf("DaysLate = %d, want %d", got, tc.want)
			}
		})
	}
}

// =============================================================================
// FLAT RULE
// =============================================================================

func TestPenalty_FlatRule_IndependentOfDaysLate(t *testing.T) {
	// GIVEN: A 200.00 pending quota with a 1% late fee
	// WHEN: The quota is 3 days late, and again when 30 days late
	// THEN: Both carry the same one-time 2.00 charge

	calc := billing.PenaltyCalculator{}
	pct := money("1").Value

	after3 := calc.Amount(money("200"), 3, pct)
	after30 := calc.Amount(money("200"), 30, pct)

	if !after3.Equal(money("2.00")) {
		t.Errorf("penalty at 3 days = %s, want 2.00", after3)
	}
	if !after3.Equal(after30) {
		t.Errorf("flat penalty must not grow with lateness: %s vs %s", after3, after30)
	}
}

func TestPenalty_NotLate_NoCharge(t *testing.T) {
	calc := billing.PenaltyCalculator{}

	if got := calc.Amount(money("200"), 0, money("10").Value); !got.IsZero() {
		t.Errorf("penalty at 0 days late = %s, want 0", got)
	}
	if got := calc.Amount(money("200"), -2, money("10").Value); !got.IsZero() {
		t.Errorf("penalty at negative days late = %s, want 0", got)
	}
}

func TestPenalty_OverPendingAmountOnly(t *testing.T) {
	// GIVEN: A quota partly covered by credit, 60.00 still pending
	// THEN: The 10% charge applies to the 60.00, not the full quota

	calc := billing.PenaltyCalculator{}
	got := calc.Amount(money("60"), 5, money("10").Value)
	if !got.Equal(money("6.00")) {
		t.Errorf("penalty = %s, want 6.00", got)
	}
}

func TestPenalty_NegativePendingClampsToZero(t *testing.T) {
	calc := billing.PenaltyCalculator{}
	if got := calc.Amount(money("-40"), 5, money("10").Value); !got.IsZero() {
		t.Errorf("penalty over negative pending = %s, want 0", got)
	}
}

// =============================================================================
// PER-DAY SIMULATION MODE
// =============================================================================

func TestPenalty_PerDayMode_MultipliesByDaysLate(t *testing.T) {
	// GIVEN: The per-day what-if mode with a 200.00 pending quota at 1%
	// WHEN: The quota is 8 days late
	// THEN: The quote is 8 * 2.00 = 16.00

	calc := billing.PenaltyCalculator{Mode: billing.PenaltyPerDay}
	got := calc.Amount(money("200"), 8, money("1").Value)
	if !got.Equal(money("16.00")) {
		t.Errorf("per-day penalty = %s, want 16.00", got)
	}
}

func TestPenalty_RoundsToCurrency(t *testing.T) {
	// 146.67 * 1.5% = 2.20005 -> 2.20
	calc := billing.PenaltyCalculator{}
	got := calc.Amount(money("146.67"), 2, money("1.5").Value)
	if !got.Equal(money("2.20")) {
		t.Errorf("penalty = %s, want 2.20", got)
	}
}
