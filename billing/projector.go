/*
projector.go - Balance reconstruction from record history

PURPOSE:
  Reconstructs, from the full list of BillingRecords of one financing, how
  much of each quota number has been paid and how much credit is currently
  unconsumed. This is the single read-side reconciliation; every surface
  that renders balances consumes this projection instead of re-deriving it
  inline with its own rounding rules.

REPLAY:
  Records are replayed in CREATION order (not display order), applying the
  same allocation rule as allocate.go to each settled record retroactively:
  fill whole quotas from the record's quota number upward, allow a partial
  fill only on the record's own target quota, carry the remainder as credit
  into the next record.

CREDIT IS DERIVED:
  The Financing's stored partialPaymentCredit field is a cache. The replay
  result is authoritative: on disagreement beyond a currency epsilon the
  projection still returns the recomputed value and surfaces a
  ReconciliationMismatchError as a warning - never trusting possibly-stale
  stored data, and never failing the read path.
*/
package billing

import "sort"

// =============================================================================
// BALANCE PROJECTOR
// =============================================================================

// ProjectedRecord is a record annotated with its remaining balance.
type ProjectedRecord struct {
	BillingRecord

	// BalanceDue is what the record's quota still needs, after all direct
	// payments and replayed credit. Zero for settled quotas, floored at 0.
	BalanceDue Money
}

// Projection is the reconstructed financial state of one financing.
type Projection struct {
	FinancingID string

	// PaidByQuota maps quota number to the total applied to its principal.
	// Never exceeds the quota's scheduled amount.
	PaidByQuota map[int]Money

	// Credit is the currently unconsumed overpayment, recomputed by replay.
	Credit Money

	// Records carries every input record with its remaining balance,
	// in creation order.
	Records []ProjectedRecord

	// Warning is non-nil when the stored credit cache disagrees with the
	// replayed value. Non-fatal; Credit above is the value to trust.
	Warning *ReconciliationMismatchError
}

// SettledQuotas counts quotas whose principal is fully covered.
func (p *Projection) SettledQuotas(fin *Financing) int {
	count := 0
	for n := 1; n <= fin.TotalQuotas; n++ {
		if p.PaidByQuota[n].GreaterOrEqual(fin.QuotaAmountFor(n)) {
			count++
		}
	}
	return count
}

// BalanceDueFor returns the outstanding principal of quota n.
func (p *Projection) BalanceDueFor(fin *Financing, n int) Money {
	return fin.QuotaAmountFor(n).Sub(p.PaidByQuota[n]).ClampZero()
}

// BalanceProjector replays record history into per-quota balances.
type BalanceProjector struct{}

// Project replays all records of one financing in creation order.
// It never fails: reconciliation disagreements are reported in Warning.
func (bp BalanceProjector) Project(fin *Financing, records []BillingRecord) Projection {
	ordered := make([]BillingRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].QuotaNumber < ordered[j].QuotaNumber
	})

	paid := make(map[int]Money, fin.TotalQuotas)
	credit := ZeroMoney()

	for i := range ordered {
		r := &ordered[i]

		// Correction lines adjust the running credit, clamped at zero.
		if r.IsCorrection() {
			credit = credit.Add(r.Amount).ClampZero()
			continue
		}
		if !r.Settled() {
			continue
		}

		credit = bp.replay(fin, r, paid, credit)
	}

	projection := Projection{
		FinancingID: fin.ID,
		PaidByQuota: paid,
		Credit:      credit,
		Records:     make([]ProjectedRecord, len(ordered)),
	}

	for i, r := range ordered {
		projection.Records[i] = ProjectedRecord{
			BillingRecord: r,
			BalanceDue:    projection.BalanceDueFor(fin, r.QuotaNumber),
		}
	}

	if !credit.WithinEpsilon(fin.PartialPaymentCredit) {
		projection.Warning = &ReconciliationMismatchError{
			FinancingID: fin.ID,
			Stored:      fin.PartialPaymentCredit,
			Recomputed:  credit,
		}
	}

	return projection
}

// replay applies one settled record's money, plus accumulated credit, to
// the per-quota paid totals, returning the credit carried forward. Whole
// quotas are filled from the record's quota number upward; only the target
// quota itself may take a partial fill - a remainder short of a full later
// quota stays credit, matching Allocate's advanceCredit rule.
func (bp BalanceProjector) replay(fin *Financing, r *BillingRecord, paid map[int]Money, credit Money) Money {
	pool := r.Amount.Add(credit)
	if !pool.IsPositive() {
		return pool.ClampZero()
	}

	for q := r.QuotaNumber; q <= fin.TotalQuotas && pool.IsPositive(); q++ {
		need := fin.QuotaAmountFor(q).Sub(paid[q]).ClampZero()
		if need.IsZero() {
			continue
		}
		if pool.GreaterOrEqual(need) {
			paid[q] = paid[q].Add(need)
			pool = pool.Sub(need)
			continue
		}
		if q == r.QuotaNumber {
			// Partial payment touching its own quota.
			paid[q] = paid[q].Add(pool)
			pool = ZeroMoney()
		}
		break
	}

	return pool
}
