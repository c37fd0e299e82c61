/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place. Sentinels are matched with errors.Is();
  structured errors carry context and unwrap to their sentinel.

ERROR CATEGORIES:
  1. Validation errors - bad inputs to schedule or payment operations,
     rejected synchronously before any mutation
  2. Scheduling errors - quota generation past the contract end
  3. Reconciliation    - replayed credit disagrees with the stored field
     (non-fatal: the read path surfaces the recomputed value and a warning)
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidSchedule is returned for bad schedule inputs (non-positive
	// amount or period count, unknown frequency).
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrInvalidPayment is returned for a non-positive payment amount.
	ErrInvalidPayment = errors.New("invalid payment")

	// ErrQuotaOverflow is returned when quota generation would exceed the
	// contract's total. The cycle treats it as "fully scheduled", a no-op.
	ErrQuotaOverflow = errors.New("quota number beyond contract total")

	// ErrReconciliationMismatch is returned when the replayed credit
	// disagrees with the stored field beyond the currency epsilon.
	ErrReconciliationMismatch = errors.New("reconciliation mismatch")

	// ErrFinancingNotFound is returned when a referenced financing doesn't exist.
	ErrFinancingNotFound = errors.New("financing not found")

	// ErrRecordNotFound is returned when a referenced billing record doesn't exist.
	ErrRecordNotFound = errors.New("billing record not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidScheduleError describes a rejected schedule input.
type InvalidScheduleError struct {
	Field  string
	Reason string
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid schedule: %s %s", e.Field, e.Reason)
}

func (e *InvalidScheduleError) Unwrap() error { return ErrInvalidSchedule }

// InvalidPaymentError describes a rejected payment amount.
type InvalidPaymentError struct {
	Amount Money
}

func (e *InvalidPaymentError) Error() string {
	return fmt.Sprintf("invalid payment: amount %s must be positive", e.Amount)
}

func (e *InvalidPaymentError) Unwrap() error { return ErrInvalidPayment }

// QuotaOverflowError describes an attempt to generate a quota past the end
// of the contract.
type QuotaOverflowError struct {
	FinancingID string
	QuotaNumber int
	TotalQuotas int
}

func (e *QuotaOverflowError) Error() string {
	return fmt.Sprintf("financing %s: quota %d beyond total %d",
		e.FinancingID, e.QuotaNumber, e.TotalQuotas)
}

func (e *QuotaOverflowError) Unwrap() error { return ErrQuotaOverflow }

// ReconciliationMismatchError reports a stored credit field that disagrees
// with the value recomputed from record history. It is a warning: callers
// must prefer Recomputed and keep serving reads.
type ReconciliationMismatchError struct {
	FinancingID string
	Stored      Money
	Recomputed  Money
}

func (e *ReconciliationMismatchError) Error() string {
	return fmt.Sprintf("financing %s: stored credit %s disagrees with replayed credit %s",
		e.FinancingID, e.Stored, e.Recomputed)
}

func (e *ReconciliationMismatchError) Unwrap() error { return ErrReconciliationMismatch }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidSchedule) ||
		errors.Is(err, ErrInvalidPayment)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFinancingNotFound) ||
		errors.Is(err, ErrRecordNotFound)
}
