/*
allocate.go - Payment allocation against the quota schedule

PURPOSE:
  The heart of the ledger: given an incoming payment, the quota size, and
  any accumulated credit, decide how many quotas the money touches, how
  much lands on quota principal, and how much carries forward as credit.

ALGORITHM:
  1. pool = incoming + availableCredit
  2. quotasCovered = floor(pool / quotaAmount), minimum 1 for any positive
     pool - a partial payment still "touches" the current quota, it is
     recorded as abonado rather than rejected
  3. amountAppliedToQuotas = min(pool, quotasCovered * quotaAmount)
  4. advanceCredit = pool - amountAppliedToQuotas  (always >= 0, < quotaAmount)
  5. totalApplied = incoming (the money actually received this transaction,
     used for ledger totals; distinct from amountAppliedToQuotas, which may
     also draw on prior credit)

CONSERVATION LAW:
  amountAppliedToQuotas + advanceCredit == incoming + availableCredit,
  always. Money neither appears nor disappears in allocation.

PURITY:
  No side effects. Callers persist the resulting credit and quota-count
  deltas onto the Financing; see payments.go.
*/
package billing

// =============================================================================
// PAYMENT ALLOCATOR
// =============================================================================

// Allocation is the outcome of allocating one payment.
type Allocation struct {
	// QuotasCovered is how many quotas the payment touches (minimum 1).
	QuotasCovered int

	// AmountAppliedToQuotas is the money applied to quota principal,
	// drawing on both the incoming payment and prior credit.
	AmountAppliedToQuotas Money

	// AdvanceCredit is the leftover carried forward to offset a future quota.
	AdvanceCredit Money

	// TotalApplied is the money actually received in this transaction.
	TotalApplied Money

	// QuotaAmount echoes the quota size the allocation was computed against.
	QuotaAmount Money
}

// Allocate applies an incoming payment plus accumulated credit against a
// schedule of uniform quotas. Pure function; no side effects.
func Allocate(incomingAmount, quotaAmount, availableCredit Money) (Allocation, error) {
	if !incomingAmount.IsPositive() {
		return Allocation{}, &InvalidPaymentError{Amount: incomingAmount}
	}
	// Defensive: schedule invariants guarantee a positive quota amount.
	if !quotaAmount.IsPositive() {
		return Allocation{}, &InvalidScheduleError{Field: "quotaAmount", Reason: "must be positive"}
	}

	pool := incomingAmount.Add(availableCredit.ClampZero())

	covered := pool.FloorQuotas(quotaAmount)
	if covered < 1 {
		covered = 1 // a partial payment still touches the current quota
	}

	applied := pool.Min(quotaAmount.MulInt(covered))
	credit := pool.Sub(applied)

	return Allocation{
		QuotasCovered:         covered,
		AmountAppliedToQuotas: applied,
		AdvanceCredit:         credit,
		TotalApplied:          incomingAmount,
		QuotaAmount:           quotaAmount,
	}, nil
}

// Partial reports whether the payment left its touched quota short:
// the pool did not reach a single full quota.
func (a Allocation) Partial() bool {
	return a.AmountAppliedToQuotas.LessThan(a.QuotaAmount.MulInt(a.QuotasCovered))
}

// FullQuotas is the number of quotas the payment settles completely.
// Equals QuotasCovered except for partial payments, which settle none.
func (a Allocation) FullQuotas() int {
	if a.Partial() {
		return a.QuotasCovered - 1
	}
	return a.QuotasCovered
}
