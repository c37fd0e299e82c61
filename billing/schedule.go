/*
schedule.go - Quota schedule derivation

PURPOSE:
  Turns a financed total into a fixed schedule of quotas: how many quotas,
  how much each one is, and when the first one falls due.

ROUNDING:
  quotaAmount = totalAmount / totalQuotas, banker's-rounded to currency
  precision. Uniform rounding would drift by up to totalQuotas/2 cents
  over the life of the contract, so the FINAL quota absorbs the remainder:

    quotaAmount * (totalQuotas-1) + finalQuotaAmount == totalAmount

  exactly, always. Financing.QuotaAmountFor applies this per quota number.

MONTHLY ARITHMETIC:
  Monthly schedules step by true calendar months (Jan 15 -> Feb 15), not
  fixed 30-day increments. Weekly and biweekly use fixed 7/15-day steps.
*/
package billing

// =============================================================================
// SCHEDULE CALCULATOR
// =============================================================================

// Schedule is the derived quota plan for a financing.
type Schedule struct {
	TotalQuotas      int
	QuotaAmount      Money
	FinalQuotaAmount Money
	NextDueDate      Date
}

// ComputeSchedule derives the quota plan from the contract inputs.
// periods is the number of quotas; startDate anchors all due dates.
func ComputeSchedule(totalAmount Money, periods int, frequency PaymentFrequency, startDate Date) (Schedule, error) {
	if periods <= 0 {
		return Schedule{}, &InvalidScheduleError{Field: "periods", Reason: "must be positive"}
	}
	if !totalAmount.IsPositive() {
		return Schedule{}, &InvalidScheduleError{Field: "totalAmount", Reason: "must be positive"}
	}
	if !frequency.Valid() {
		return Schedule{}, &InvalidScheduleError{Field: "frequency", Reason: "unknown value"}
	}
	if startDate.IsZero() {
		return Schedule{}, &InvalidScheduleError{Field: "startDate", Reason: "is required"}
	}

	quota := totalAmount.DivInt(periods).RoundCurrency()
	final := totalAmount.Sub(quota.MulInt(periods - 1))

	return Schedule{
		TotalQuotas:      periods,
		QuotaAmount:      quota,
		FinalQuotaAmount: final,
		NextDueDate:      frequency.Advance(startDate, 1),
	}, nil
}

// NewFinancing builds an active Financing from schedule inputs. The schedule
// is computed once here; afterwards only payment registration and the
// billing cycle mutate the contract's running state.
func NewFinancing(id string, totalAmount Money, periods int, frequency PaymentFrequency, startDate Date, lateFeePercentage Percentage) (Financing, error) {
	sched, err := ComputeSchedule(totalAmount, periods, frequency, startDate)
	if err != nil {
		return Financing{}, err
	}
	if lateFeePercentage.IsNegative() || lateFeePercentage.GreaterThan(hundred) {
		return Financing{}, &InvalidScheduleError{Field: "lateFeePercentage", Reason: "must be within 0-100"}
	}

	return Financing{
		ID:                   id,
		TotalAmount:          totalAmount,
		PaymentFrequency:     frequency,
		TotalQuotas:          sched.TotalQuotas,
		QuotaAmount:          sched.QuotaAmount,
		StartDate:            startDate,
		NextDueDate:          sched.NextDueDate,
		PaidQuotas:           0,
		PartialPaymentCredit: ZeroMoney(),
		TotalLateFees:        ZeroMoney(),
		Status:               FinancingActive,
		LateFeePercentage:    lateFeePercentage,
	}, nil
}
