/*
schedule_test.go - Executable specification of schedule derivation

Each test documents one schedule behavior:
  - Quota division with banker's rounding
  - The final quota absorbing the rounding remainder exactly
  - Calendar-month stepping for monthly frequency
  - Input validation
*/
package billing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/motriz/billing-engine/billing"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

func money(s string) billing.Money {
	return billing.MustParseMoney(s)
}

func date(year int, month time.Month, day int) billing.Date {
	return billing.NewDate(year, month, day)
}

// =============================================================================
// QUOTA DIVISION
// =============================================================================

func TestComputeSchedule_EvenDivision_NoRemainder(t *testing.T) {
	// GIVEN: 4400.00 over 220 weekly quotas
	// WHEN: The schedule is computed
	// THEN: Every quota is exactly 20.00, including the final one

	sched, err := billing.ComputeSchedule(money("4400"), 220, billing.FrequencyWeekly, date(2025, time.January, 7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !sched.QuotaAmount.Equal(money("20.00")) {
		t.Errorf("quota amount = %s, want 20.00", sched.QuotaAmount)
	}
	if !sched.FinalQuotaAmount.Equal(money("20.00")) {
		t.Errorf("final quota = %s, want 20.00", sched.FinalQuotaAmount)
	}
}

func TestComputeSchedule_FinalQuotaAbsorbsRemainder(t *testing.T) {
	// GIVEN: 1000.00 over 3 monthly quotas (333.333... per quota)
	// WHEN: The schedule is computed
	// THEN: Regular quotas round to 333.33 and the final quota is 333.34,
	//       so the schedule sums back to the financed total exactly

	sched, err := billing.ComputeSchedule(money("1000"), 3, billing.FrequencyMonthly, date(2025, time.January, 15))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !sched.QuotaAmount.Equal(money("333.33")) {
		t.Errorf("quota amount = %s, want 333.33", sched.QuotaAmount)
	}
	if !sched.FinalQuotaAmount.Equal(money("333.34")) {
		t.Errorf("final quota = %s, want 333.34", sched.FinalQuotaAmount)
	}

	sum := sched.QuotaAmount.MulInt(2).Add(sched.FinalQuotaAmount)
	if !sum.Equal(money("1000")) {
		t.Errorf("schedule sums to %s, want 1000.00", sum)
	}
}

func TestComputeSchedule_NoCentDrift_AcrossManyQuotas(t *testing.T) {
	// GIVEN: An awkward total over many quotas
	// THEN: quota*(n-1) + final always reconstructs the total exactly

	cases := []struct {
		total   string
		periods int
	}{
		{"4400", 30},
		{"9999.99", 52},
		{"146.67", 7},
		{"35000", 48},
	}

	for _, tc := range cases {
		sched, err := billing.ComputeSchedule(money(tc.total), tc.periods, billing.FrequencyWeekly, date(2025, time.March, 1))
		if err != nil {
			t.Fatalf("%s/%d: unexpected error: %v", tc.total, tc.periods, err)
		}
		sum := sched.QuotaAmount.MulInt(tc.periods - 1).Add(sched.FinalQuotaAmount)
		if !sum.Equal(money(tc.total)) {
			t.Errorf("%s/%d: schedule sums to %s, want %s", tc.total, tc.periods, sum, tc.total)
		}
	}
}

// =============================================================================
// DUE DATE ARITHMETIC
// =============================================================================

func TestComputeSchedule_WeeklyDueDate(t *testing.T) {
	// GIVEN: A weekly financing starting January 7
	// THEN: The first quota falls due January 14

	sched, err := billing.ComputeSchedule(money("1000"), 10, billing.FrequencyWeekly, date(2025, time.January, 7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sched.NextDueDate.Equal(date(2025, time.January, 14)) {
		t.Errorf("next due date = %s, want 2025-01-14", sched.NextDueDate)
	}
}

func TestComputeSchedule_BiweeklyIsFifteenDays(t *testing.T) {
	// GIVEN: A biweekly financing starting January 7
	// THEN: The first quota falls due 15 days later, January 22

	sched, err := billing.ComputeSchedule(money("1000"), 10, billing.FrequencyBiweekly, date(2025, time.January, 7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sched.NextDueDate.Equal(date(2025, time.January, 22)) {
		t.Errorf("next due date = %s, want 2025-01-22", sched.NextDueDate)
	}
}

func TestComputeSchedule_MonthlyStepsCalendarMonths(t *testing.T) {
	// GIVEN: A monthly financing starting January 15
	// WHEN: Due dates are derived for successive quotas
	// THEN: They land on the 15th of each following month, not on fixed
	//       30-day increments

	fin, err := billing.NewFinancing("f1", money("1200"), 12, billing.FrequencyMonthly, date(2025, time.January, 15), money("1").Value)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := fin.DueDateFor(1); !got.Equal(date(2025, time.February, 15)) {
		t.Errorf("quota 1 due %s, want 2025-02-15", got)
	}
	if got := fin.DueDateFor(2); !got.Equal(date(2025, time.March, 15)) {
		t.Errorf("quota 2 due %s, want 2025-03-15", got)
	}
	if got := fin.DueDateFor(12); !got.Equal(date(2026, time.January, 15)) {
		t.Errorf("quota 12 due %s, want 2026-01-15", got)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestComputeSchedule_RejectsInvalidInputs(t *testing.T) {
	start := date(2025, time.January, 7)

	cases := []struct {
		name      string
		total     billing.Money
		periods   int
		frequency billing.PaymentFrequency
		start     billing.Date
	}{
		{"zero periods", money("1000"), 0, billing.FrequencyWeekly, start},
		{"negative periods", money("1000"), -3, billing.FrequencyWeekly, start},
		{"zero amount", money("0"), 10, billing.FrequencyWeekly, start},
		{"negative amount", money("-50"), 10, billing.FrequencyWeekly, start},
		{"unknown frequency", money("1000"), 10, billing.PaymentFrequency("daily"), start},
		{"zero start date", money("1000"), 10, billing.FrequencyWeekly, billing.Date{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := billing.ComputeSchedule(tc.total, tc.periods, tc.frequency, tc.start)
			if !errors.Is(err, billing.ErrInvalidSchedule) {
				t.Errorf("error = %v, want ErrInvalidSchedule", err)
			}
			if !billing.IsClientError(err) {
				t.Errorf("schedule validation errors must classify as client errors")
			}
		})
	}
}

func TestNewFinancing_RejectsOutOfRangePenalty(t *testing.T) {
	// GIVEN: A late fee percentage outside 0-100
	// THEN: Financing creation fails with a schedule validation error

	_, err := billing.NewFinancing("f1", money("1000"), 10, billing.FrequencyWeekly, date(2025, time.January, 7), money("150").Value)
	if !errors.Is(err, billing.ErrInvalidSchedule) {
		t.Errorf("error = %v, want ErrInvalidSchedule", err)
	}

	_, err = billing.NewFinancing("f1", money("1000"), 10, billing.FrequencyWeekly, date(2025, time.January, 7), money("-1").Value)
	if !errors.Is(err, billing.ErrInvalidSchedule) {
		t.Errorf("error = %v, want ErrInvalidSchedule", err)
	}
}
