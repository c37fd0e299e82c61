/*
cycle.go - The two-phase weekly billing cycle

PURPOSE:
  Implements the two batch state transitions of the billing week:

  Tuesday  (generation): emit the next pending quota record for each
           financing that still has ungenerated quotas.
  Friday   (deadline):   convert unpaid, past-deadline records into
           penalized retrasado records and push the financing to en_mora.

BOTH PHASES ARE RE-RUNNABLE:
  Operators trigger these explicitly for simulation and backfill ("what
  happened on day X"), so both must be safe to re-run for the same
  reference date. Generation is idempotent (no duplicate quota numbers);
  the deadline pass refreshes daysLate on already-retrasado records
  instead of accumulating a second penalty line.

STATE MACHINE (per record):
  pendiente -> pagado | abonado | adelanto   (payment; terminal)
  pendiente -> retrasado                     (missed deadline; still payable)

  A retrasado record keeps its flat penalty as a fixed charge; subsequent
  deadline passes only refresh its daysLate counter. Terminal payment
  states are never touched by this file.
*/
package billing

import "github.com/google/uuid"

// =============================================================================
// CYCLE SIMULATOR
// =============================================================================

// CycleSimulator runs the two weekly batch phases. The zero value uses the
// flat production penalty rule.
type CycleSimulator struct {
	Penalties PenaltyCalculator
	Projector BalanceProjector
}

// GenerateTuesday creates the next pending quota record for the financing,
// if one remains ungenerated. Returns nil without error when the financing
// is already fully scheduled (that is a no-op, not a failure) or when the
// next quota's record already exists (idempotence). A fully paid financing
// is settled to completado as a side effect.
func (cs CycleSimulator) GenerateTuesday(fin *Financing, records []BillingRecord, referenceDate Date) (*BillingRecord, error) {
	if fin.Status == FinancingInactive {
		return nil, nil
	}

	next := HighestCoveredQuota(records)
	if fin.PaidQuotas > next {
		next = fin.PaidQuotas
	}
	next++

	if next > fin.TotalQuotas {
		if fin.IsComplete() && fin.Status != FinancingComplete {
			fin.Status = FinancingComplete
		}
		return nil, nil
	}

	for i := range records {
		if records[i].QuotaNumber == next && !records[i].IsCorrection() {
			return nil, nil
		}
	}

	rec := BillingRecord{
		ID:          uuid.NewString(),
		FinancingID: fin.ID,
		QuotaNumber: next,
		Amount:      fin.QuotaAmountFor(next),
		DueDate:     fin.DueDateFor(next),
		Status:      RecordPending,
		CreatedAt:   referenceDate.Time,
	}
	return &rec, nil
}

// =============================================================================
// FRIDAY OVERDUE PASS
// =============================================================================

// OverdueResult reports what the deadline pass changed.
type OverdueResult struct {
	// NewlyOverdue are pendiente records that crossed their deadline on
	// this pass, now retrasado with their penalty stamped.
	NewlyOverdue []BillingRecord

	// Refreshed are records that were already retrasado: their daysLate
	// was recomputed for the new reference date, penalty untouched.
	Refreshed []BillingRecord

	// TotalPenalty is the sum of penalties accrued on this pass only.
	TotalPenalty Money
}

// Changed reports whether the pass produced any record updates.
func (r *OverdueResult) Changed() bool {
	return len(r.NewlyOverdue) > 0 || len(r.Refreshed) > 0
}

// UpdatedRecords returns every record touched by the pass.
func (r *OverdueResult) UpdatedRecords() []BillingRecord {
	out := make([]BillingRecord, 0, len(r.NewlyOverdue)+len(r.Refreshed))
	out = append(out, r.NewlyOverdue...)
	out = append(out, r.Refreshed...)
	return out
}

// ApplyFridayOverdue converts unpaid records past their deadline into
// retrasado records with a flat penalty over the quota's outstanding
// balance, accumulates the penalties into the financing's totalLateFees,
// and moves the financing to en_mora. Records already retrasado get their
// daysLate refreshed against the new reference date; their penalty stays
// the one accrued when they first crossed the deadline.
func (cs CycleSimulator) ApplyFridayOverdue(fin *Financing, records []BillingRecord, referenceDate Date, penaltyPercentage Percentage) OverdueResult {
	projection := cs.Projector.Project(fin, records)

	var result OverdueResult
	result.TotalPenalty = ZeroMoney()
	anyOverdue := false

	for i := range records {
		r := records[i] // work on a copy; the caller persists

		if r.Settled() || r.IsCorrection() {
			continue
		}

		switch r.Status {
		case RecordPending:
			if !r.DueDate.Before(referenceDate) {
				continue
			}
			daysLate := DaysLate(r.DueDate, referenceDate)
			pending := projection.BalanceDueFor(fin, r.QuotaNumber)
			penalty := cs.Penalties.Amount(pending, daysLate, penaltyPercentage)

			r.Status = RecordOverdue
			r.DaysLate = daysLate
			r.LateFeeAmount = penalty

			fin.TotalLateFees = fin.TotalLateFees.Add(penalty)
			result.TotalPenalty = result.TotalPenalty.Add(penalty)
			result.NewlyOverdue = append(result.NewlyOverdue, r)
			anyOverdue = true

		case RecordOverdue:
			anyOverdue = true
			daysLate := DaysLate(r.DueDate, referenceDate)
			if daysLate == r.DaysLate {
				continue
			}
			r.DaysLate = daysLate
			result.Refreshed = append(result.Refreshed, r)
		}
	}

	if anyOverdue && fin.Status != FinancingComplete && fin.Status != FinancingInactive {
		fin.Status = FinancingInMora
	}

	return result
}
