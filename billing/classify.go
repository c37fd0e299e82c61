/*
classify.go - Payment record status classification

PURPOSE:
  Maps an allocation outcome plus lateness onto one of the record display
  states. A pure decision table; no hidden state.

THE TABLE:
  daysLate > 0                        -> retrasado   (lateness dominates)
  partial, spans quotas, or leftover  -> abonado when the target quota's
                                         record already exists (a generated
                                         pending quota), adelanto when it
                                         targets a not-yet-generated quota
  exact single-quota settlement       -> pagado
*/
package billing

// Classify maps an allocation and its lateness to a record status.
// targetGenerated reports whether the quota the payment lands on already
// has a generated BillingRecord (abonado) or lies beyond the generated
// schedule (adelanto).
func Classify(alloc Allocation, daysLate int, targetGenerated bool) RecordStatus {
	if daysLate > 0 {
		return RecordOverdue
	}

	if alloc.Partial() || alloc.QuotasCovered > 1 || alloc.AdvanceCredit.IsPositive() {
		if targetGenerated {
			return RecordPartial
		}
		return RecordAdvance
	}

	return RecordPaid
}
