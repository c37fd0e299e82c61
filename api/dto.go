/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

AMOUNTS:
  All monetary fields travel as fixed two-decimal strings ("146.67"), never
  floats. Clients that do arithmetic on them deserve what they get.

DATES:
  Calendar dates are ISO "2006-01-02" strings. CreatedAt timestamps are
  RFC3339.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - billing/types.go: Domain model these map from
*/
package api

import (
	"time"

	"github.com/motriz/billing-engine/billing"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// FinancingDTO represents an installment financing in API responses.
type FinancingDTO struct {
	ID                   string `json:"id"`
	TotalAmount          string `json:"total_amount"`
	PaymentFrequency     string `json:"payment_frequency"`
	TotalQuotas          int    `json:"total_quotas"`
	QuotaAmount          string `json:"quota_amount"`
	FinalQuotaAmount     string `json:"final_quota_amount"`
	StartDate            string `json:"start_date"`
	NextDueDate          string `json:"next_due_date"`
	PaidQuotas           int    `json:"paid_quotas"`
	PartialPaymentCredit string `json:"partial_payment_credit"`
	TotalLateFees        string `json:"total_late_fees"`
	LateFeePercentage    string `json:"late_fee_percentage"`
	Status               string `json:"status"`
	CreatedAt            string `json:"created_at,omitempty"`
}

// CreateFinancingRequest is the request to open a financing.
type CreateFinancingRequest struct {
	ID                string `json:"id,omitempty"` // optional, generated when empty
	TotalAmount       string `json:"total_amount"`
	PaymentFrequency  string `json:"payment_frequency"`
	TotalQuotas       int    `json:"total_quotas"`
	StartDate         string `json:"start_date"`
	LateFeePercentage string `json:"late_fee_percentage,omitempty"`
}

// RecordDTO represents a billing record line.
type RecordDTO struct {
	ID                 string  `json:"id"`
	FinancingID        string  `json:"financing_id"`
	QuotaNumber        int     `json:"quota_number"`
	Amount             string  `json:"amount"`
	DueDate            string  `json:"due_date"`
	PaymentDate        *string `json:"payment_date,omitempty"`
	Status             string  `json:"status"`
	QuotasCovered      int     `json:"quotas_covered"`
	QuotaAmountCovered string  `json:"quota_amount_covered"`
	AdvanceCredit      string  `json:"advance_credit"`
	LateFeeAmount      string  `json:"late_fee_amount"`
	DaysLate           int     `json:"days_late"`
	BalanceDue         string  `json:"balance_due"`
	CreatedAt          string  `json:"created_at,omitempty"`
}

// RecordListResponse wraps a financing's records with replay-derived state.
type RecordListResponse struct {
	FinancingID           string      `json:"financing_id"`
	Records               []RecordDTO `json:"records"`
	AvailableCredit       string      `json:"available_credit"`
	SettledQuotas         int         `json:"settled_quotas"`
	ReconciliationWarning *string     `json:"reconciliation_warning,omitempty"`
}

// RegisterPaymentRequest is the request to register an incoming payment.
type RegisterPaymentRequest struct {
	Amount      string `json:"amount"`
	PaymentDate string `json:"payment_date,omitempty"` // defaults to today
}

// RegisterPaymentResponse is the result of a payment registration.
type RegisterPaymentResponse struct {
	Financing             FinancingDTO `json:"financing"`
	Record                RecordDTO    `json:"record"`
	IsNewRecord           bool         `json:"is_new_record"`
	QuotasCovered         int          `json:"quotas_covered"`
	AdvanceCredit         string       `json:"advance_credit"`
	ReconciliationWarning *string      `json:"reconciliation_warning,omitempty"`
}

// CycleRequest triggers a billing cycle phase. ReferenceDate is injectable
// for replaying past cycles; empty means today.
type CycleRequest struct {
	ReferenceDate string `json:"reference_date,omitempty"`
	FinancingID   string `json:"financing_id,omitempty"` // empty = all active
}

// CycleResponse summarizes one cycle phase run.
type CycleResponse struct {
	Phase               string   `json:"phase"`
	ReferenceDate       string   `json:"reference_date"`
	FinancingsVisited   int      `json:"financings_visited"`
	RecordsGenerated    int      `json:"records_generated"`
	RecordsMarkedLate   int      `json:"records_marked_late"`
	TotalPenalty        string   `json:"total_penalty,omitempty"`
	CompletedFinancings []string `json:"completed_financings,omitempty"`
}

// PenaltyPreviewRequest asks what a late payment would cost without
// registering anything.
type PenaltyPreviewRequest struct {
	ReferenceDate string `json:"reference_date,omitempty"`
	PerDay        bool   `json:"per_day,omitempty"`
}

// PenaltyPreviewResponse is the dry-run penalty quote.
type PenaltyPreviewResponse struct {
	FinancingID   string `json:"financing_id"`
	QuotaNumber   int    `json:"quota_number"`
	DueDate       string `json:"due_date"`
	DaysLate      int    `json:"days_late"`
	PendingAmount string `json:"pending_amount"`
	Penalty       string `json:"penalty"`
	TotalDue      string `json:"total_due"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toFinancingDTO(fin billing.Financing) FinancingDTO {
	return FinancingDTO{
		ID:                   fin.ID,
		TotalAmount:          fin.TotalAmount.String(),
		PaymentFrequency:     string(fin.PaymentFrequency),
		TotalQuotas:          fin.TotalQuotas,
		QuotaAmount:          fin.QuotaAmount.String(),
		FinalQuotaAmount:     fin.FinalQuotaAmount().String(),
		StartDate:            fin.StartDate.String(),
		NextDueDate:          fin.NextDueDate.String(),
		PaidQuotas:           fin.PaidQuotas,
		PartialPaymentCredit: fin.PartialPaymentCredit.String(),
		TotalLateFees:        fin.TotalLateFees.String(),
		LateFeePercentage:    fin.LateFeePercentage.String(),
		Status:               string(fin.Status),
		CreatedAt:            fin.CreatedAt.Format(time.RFC3339),
	}
}

func toRecordDTO(rec billing.BillingRecord, balanceDue billing.Money) RecordDTO {
	dto := RecordDTO{
		ID:                 rec.ID,
		FinancingID:        rec.FinancingID,
		QuotaNumber:        rec.QuotaNumber,
		Amount:             rec.Amount.String(),
		DueDate:            rec.DueDate.String(),
		Status:             string(rec.Status),
		QuotasCovered:      rec.QuotasCovered,
		QuotaAmountCovered: rec.QuotaAmountCovered.String(),
		AdvanceCredit:      rec.AdvanceCredit.String(),
		LateFeeAmount:      rec.LateFeeAmount.String(),
		DaysLate:           rec.DaysLate,
		BalanceDue:         balanceDue.String(),
		CreatedAt:          rec.CreatedAt.Format(time.RFC3339),
	}
	if rec.PaymentDate != nil {
		s := rec.PaymentDate.String()
		dto.PaymentDate = &s
	}
	return dto
}

func warningString(w *billing.ReconciliationMismatchError) *string {
	if w == nil {
		return nil
	}
	s := w.Error()
	return &s
}
