/*
payments.go - The payment-registration use case

PURPOSE:
  Executes one logical payment registration: replay current balances,
  allocate the incoming money, classify the outcome, and produce the
  updated Financing plus the settled (or newly created) BillingRecord.

PURITY AND ATOMICITY:
  RegisterPayment is pure: it takes the financing and its records as
  values and returns updated copies, mutating nothing. The caller is
  responsible for executing read -> RegisterPayment -> write as a single
  atomic unit per financing (see Store.WithFinancing), because allocation
  correctness depends on the available credit being read and written
  without a concurrent interleaving from another payment.

CREDIT SOURCE:
  The available credit fed into allocation is the REPLAYED credit, not
  the stored cache. If the two disagree, the registration proceeds on the
  replayed value and reports the mismatch as a warning.

LATE PAYMENTS:
  A payment against an already-retrasado record carries that record's
  accrued penalty forward as a fixed charge - the penalty is not
  recomputed for the payment date. A payment that is late before the
  deadline pass ever ran accrues the flat penalty at registration time.
*/
package billing

import "github.com/google/uuid"

// =============================================================================
// PAYMENT REGISTRATION
// =============================================================================

// PaymentResult is the outcome of one registered payment.
type PaymentResult struct {
	// Financing is the updated contract state to persist.
	Financing Financing

	// Record is the settled pending record, or the newly created advance
	// record when every generated quota was already settled.
	Record BillingRecord

	// IsNewRecord distinguishes a created advance record from a settled
	// existing one.
	IsNewRecord bool

	// Allocation is the raw allocation outcome, for reporting.
	Allocation Allocation

	// Warning is non-nil when the stored credit cache disagreed with the
	// replayed credit going into this payment. The registration proceeded
	// on the replayed value.
	Warning *ReconciliationMismatchError
}

// RegisterPayment applies one incoming payment to a financing. Validation
// errors are returned before anything is computed; the inputs are never
// mutated.
func RegisterPayment(fin Financing, records []BillingRecord, incomingAmount Money, paymentDate Date) (PaymentResult, error) {
	if !incomingAmount.IsPositive() {
		return PaymentResult{}, &InvalidPaymentError{Amount: incomingAmount}
	}
	if !fin.QuotaAmount.IsPositive() {
		return PaymentResult{}, &InvalidScheduleError{Field: "quotaAmount", Reason: "must be positive"}
	}
	if fin.IsComplete() || fin.Status == FinancingComplete {
		return PaymentResult{}, &QuotaOverflowError{
			FinancingID: fin.ID,
			QuotaNumber: fin.TotalQuotas + 1,
			TotalQuotas: fin.TotalQuotas,
		}
	}

	projector := BalanceProjector{}
	before := projector.Project(&fin, records)

	// The replayed credit is authoritative; the stored field is a cache.
	availableCredit := before.Credit
	warning := before.Warning

	target := OldestOpenRecord(records)

	// The quota this payment lands on: the oldest open record's, or the
	// lowest quota still owing money, so a follow-up to an earlier partial
	// completes that quota instead of skipping past it.
	targetQuota := fin.TotalQuotas
	if target != nil {
		targetQuota = target.QuotaNumber
	} else {
		for n := 1; n <= fin.TotalQuotas; n++ {
			if before.BalanceDueFor(&fin, n).IsPositive() {
				targetQuota = n
				break
			}
		}
	}

	// abonado needs the target quota's record to exist, even a settled one
	// left short by a partial payment; adelanto is for quotas the weekly
	// cycle has not generated yet.
	targetGenerated := target != nil || hasRecordForQuota(records, targetQuota)

	daysLate := 0
	penalty := ZeroMoney()
	if target != nil {
		daysLate = DaysLate(target.DueDate, paymentDate)
		if target.Status == RecordOverdue {
			// Penalty already accrued by the deadline pass; carry it fixed.
			penalty = target.LateFeeAmount
		} else if daysLate > 0 {
			pending := before.BalanceDueFor(&fin, target.QuotaNumber)
			penalty = PenaltyCalculator{}.Amount(pending, daysLate, fin.LateFeePercentage)
			fin.TotalLateFees = fin.TotalLateFees.Add(penalty)
		}
	}

	alloc, err := Allocate(incomingAmount, fin.QuotaAmount, availableCredit)
	if err != nil {
		return PaymentResult{}, err
	}
	status := Classify(alloc, daysLate, targetGenerated)

	// Build the settled record.
	var rec BillingRecord
	isNew := false
	if target != nil {
		rec = *target
	} else {
		rec = BillingRecord{
			ID:          uuid.NewString(),
			FinancingID: fin.ID,
			QuotaNumber: targetQuota,
			DueDate:     fin.DueDateFor(targetQuota),
			CreatedAt:   paymentDate.Time,
		}
		isNew = true
	}
	pd := paymentDate
	rec.Amount = incomingAmount
	rec.PaymentDate = &pd
	rec.Status = status
	rec.DaysLate = daysLate
	rec.LateFeeAmount = penalty

	// Replay with the settled record in place; the deltas are the truth of
	// what this payment covered, keeping the per-quota coverage invariant
	// even when earlier partial payments already touched the target quota.
	after := projector.Project(&fin, withRecord(records, rec))
	applied, span := coverageDelta(before, after)
	rec.QuotaAmountCovered = applied
	if span < 1 {
		span = 1
	}
	rec.QuotasCovered = span
	rec.AdvanceCredit = after.Credit

	// Contract running state follows the replay, never ad-hoc arithmetic.
	fin.PaidQuotas = after.SettledQuotas(&fin)
	fin.PartialPaymentCredit = after.Credit
	nextQuota := fin.PaidQuotas + 1
	if nextQuota > fin.TotalQuotas {
		nextQuota = fin.TotalQuotas
	}
	fin.NextDueDate = fin.DueDateFor(nextQuota)

	switch {
	case fin.IsComplete():
		fin.Status = FinancingComplete
	case hasOpenOverdue(withRecord(records, rec)):
		fin.Status = FinancingInMora
	case fin.Status != FinancingInactive:
		fin.Status = FinancingActive
	}

	return PaymentResult{
		Financing:   fin,
		Record:      rec,
		IsNewRecord: isNew,
		Allocation:  alloc,
		Warning:     warning,
	}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// OldestOpenRecord returns the open record with the lowest quota number,
// or nil when every generated quota is settled.
func OldestOpenRecord(records []BillingRecord) *BillingRecord {
	var target *BillingRecord
	for i := range records {
		r := &records[i]
		if !r.Open() || r.IsCorrection() {
			continue
		}
		if target == nil || r.QuotaNumber < target.QuotaNumber {
			target = r
		}
	}
	return target
}

// hasRecordForQuota reports whether any non-correction record was ever
// generated or created for the quota.
func hasRecordForQuota(records []BillingRecord, quota int) bool {
	for i := range records {
		if records[i].QuotaNumber == quota && !records[i].IsCorrection() {
			return true
		}
	}
	return false
}

// withRecord returns records with rec replacing its same-ID entry, or
// appended when no entry matches.
func withRecord(records []BillingRecord, rec BillingRecord) []BillingRecord {
	out := make([]BillingRecord, 0, len(records)+1)
	replaced := false
	for _, r := range records {
		if r.ID == rec.ID {
			out = append(out, rec)
			replaced = true
			continue
		}
		out = append(out, r)
	}
	if !replaced {
		out = append(out, rec)
	}
	return out
}

// coverageDelta compares two projections: how much principal the newer one
// added, and across how many quota numbers.
func coverageDelta(before, after Projection) (Money, int) {
	applied := ZeroMoney()
	span := 0
	for q, paidAfter := range after.PaidByQuota {
		delta := paidAfter.Sub(before.PaidByQuota[q])
		if delta.IsPositive() {
			applied = applied.Add(delta)
			span++
		}
	}
	return applied, span
}

// hasOpenOverdue reports whether any record is retrasado and unpaid.
func hasOpenOverdue(records []BillingRecord) bool {
	for i := range records {
		if records[i].Status == RecordOverdue && records[i].Open() {
			return true
		}
	}
	return false
}
