/*
types.go - Financing contracts and billing records

PURPOSE:
  Defines the two persisted entities of the ledger:
  - Financing: one installment contract (total, quota size, running state)
  - BillingRecord: one scheduled or realized obligation (a quota line)

STATUS VOCABULARY:
  The status values are the Spanish terms used on the wire and in storage
  (the business operates in Spanish); Go identifiers stay in English.

  Financing: activo, en_mora, completado, inactivo
  Record:    pendiente, pagado, abonado, adelanto, retrasado

RECORD LIFECYCLE:
  pendiente --(payment)--> pagado | abonado | adelanto   (terminal)
  pendiente --(missed deadline)--> retrasado             (still payable)

  A retrasado record accrues its penalty once, stays payable, and keeps
  the accrued penalty as a fixed charge when eventually paid. Terminal
  payment states never revert.

SEE ALSO:
  - schedule.go: creates Financings from schedule inputs
  - cycle.go:    creates pendiente records, stamps retrasado
  - payments.go: transitions records to terminal states
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYMENT FREQUENCY
// =============================================================================

type PaymentFrequency string

const (
	FrequencyWeekly   PaymentFrequency = "weekly"
	FrequencyBiweekly PaymentFrequency = "biweekly"
	FrequencyMonthly  PaymentFrequency = "monthly"
)

// Valid reports whether f is a known frequency.
func (f PaymentFrequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

// Advance moves a date forward by n billing periods. Weekly and biweekly
// periods are fixed 7- and 15-day steps; monthly uses calendar months.
func (f PaymentFrequency) Advance(d Date, n int) Date {
	switch f {
	case FrequencyWeekly:
		return d.AddDays(7 * n)
	case FrequencyBiweekly:
		return d.AddDays(15 * n)
	case FrequencyMonthly:
		return d.AddMonths(n)
	default:
		return d
	}
}

// =============================================================================
// FINANCING - One installment contract
// =============================================================================

type FinancingStatus string

const (
	FinancingActive   FinancingStatus = "activo"
	FinancingInMora   FinancingStatus = "en_mora"
	FinancingComplete FinancingStatus = "completado"
	FinancingInactive FinancingStatus = "inactivo"
)

// Financing is one installment contract. QuotaAmount times TotalQuotas may
// differ from TotalAmount by a rounding remainder; the final quota absorbs
// it (see FinalQuotaAmount).
type Financing struct {
	ID               string
	TotalAmount      Money
	PaymentFrequency PaymentFrequency
	TotalQuotas      int
	QuotaAmount      Money
	StartDate        Date
	NextDueDate      Date

	// Running state, mutated only by payment registration and the cycle.
	PaidQuotas           int
	PartialPaymentCredit Money
	TotalLateFees        Money
	Status               FinancingStatus

	// LateFeePercentage is the flat overdue penalty, 0-100.
	LateFeePercentage decimal.Decimal

	CreatedAt time.Time
}

// QuotaAmountFor returns the scheduled amount of quota n. Every quota is
// QuotaAmount except the last one, which absorbs the rounding remainder
// so the schedule sums back to TotalAmount exactly.
func (f *Financing) QuotaAmountFor(n int) Money {
	if n == f.TotalQuotas {
		return f.FinalQuotaAmount()
	}
	return f.QuotaAmount
}

// FinalQuotaAmount is TotalAmount minus the first TotalQuotas-1 quotas.
func (f *Financing) FinalQuotaAmount() Money {
	if f.TotalQuotas <= 0 {
		return ZeroMoney()
	}
	return f.TotalAmount.Sub(f.QuotaAmount.MulInt(f.TotalQuotas - 1))
}

// DueDateFor returns the due date of quota n: the start date advanced by
// n billing periods.
func (f *Financing) DueDateFor(n int) Date {
	return f.PaymentFrequency.Advance(f.StartDate, n)
}

// IsComplete reports whether every quota is fully settled.
func (f *Financing) IsComplete() bool {
	return f.PaidQuotas >= f.TotalQuotas
}

// =============================================================================
// BILLING RECORD - One scheduled or realized obligation
// =============================================================================

type RecordStatus string

const (
	RecordPending RecordStatus = "pendiente"
	RecordPaid    RecordStatus = "pagado"
	RecordPartial RecordStatus = "abonado"
	RecordAdvance RecordStatus = "adelanto"
	RecordOverdue RecordStatus = "retrasado"
)

// BillingRecord is one quota line. A pendiente record carries the scheduled
// quota amount; once a payment is registered, Amount becomes the money
// actually received and the allocation fields describe how it was applied.
// Amount may be negative for manual correction lines.
type BillingRecord struct {
	ID          string
	FinancingID string
	QuotaNumber int
	Amount      Money
	DueDate     Date
	PaymentDate *Date
	Status      RecordStatus

	// Allocation outcome, set when a payment is registered.
	QuotasCovered      int   // quotas touched by this payment (>1 only on adelanto/abonado)
	QuotaAmountCovered Money // applied to quota principal, excluding generated credit
	AdvanceCredit      Money // excess generated by this payment

	// Lateness, set by the overdue pass or by a late registration.
	LateFeeAmount Money
	DaysLate      int

	CreatedAt time.Time
}

// Settled reports whether a payment has been registered against the record.
// A retrasado record with a payment date is settled (paid late); its display
// status keeps the lateness but the overdue pass must not touch it again.
func (r *BillingRecord) Settled() bool {
	switch r.Status {
	case RecordPaid, RecordPartial, RecordAdvance:
		return true
	}
	return r.PaymentDate != nil
}

// Open reports whether the record still awaits payment.
func (r *BillingRecord) Open() bool { return !r.Settled() }

// IsCorrection reports whether the record is a manual correction line
// (negative amount, e.g. a reversed charge).
func (r *BillingRecord) IsCorrection() bool { return r.Amount.IsNegative() }

// HighestCoveredQuota returns the largest quota number that settled money
// has reached: a record's quota number plus any extra quotas its payment
// spanned. Open (pendiente or retrasado) records do not count - a generated
// quota is not a covered quota. Zero when nothing is settled.
func HighestCoveredQuota(records []BillingRecord) int {
	highest := 0
	for i := range records {
		r := &records[i]
		if r.IsCorrection() || !r.Settled() {
			continue
		}
		top := r.QuotaNumber
		if r.QuotasCovered > 1 {
			top = r.QuotaNumber + r.QuotasCovered - 1
		}
		if top > highest {
			highest = top
		}
	}
	return highest
}
