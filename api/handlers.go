/*
handlers.go - HTTP API handlers for the installment billing engine

PURPOSE:
  Exposes financings, billing records, payment registration and the weekly
  cycle phases via REST. Handles HTTP request/response, JSON serialization,
  and delegates all money math to the billing package.

ENDPOINTS:
  Financings:
    GET    /api/financings                      List all financings
    POST   /api/financings                      Open a financing
    GET    /api/financings/{id}                 Get financing details
    GET    /api/financings/{id}/records         Records with live balances
    POST   /api/financings/{id}/payments        Register a payment
    POST   /api/financings/{id}/penalty-preview Dry-run late fee quote

  Cycles:
    POST   /api/cycles/tuesday                  Generation phase
    POST   /api/cycles/friday                   Overdue phase

  Admin:
    GET    /api/scenarios                       List demo scenarios
    POST   /api/scenarios/load                  Load a demo scenario (resets db)
    POST   /api/reset                           Database reset (dev only)

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Run domain logic inside Store.WithFinancing where state changes
  4. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Financing or record not found
  - 409: Quota overflow (payment against a completed financing)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - billing/payments.go: The registration use case these handlers wrap
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/motriz/billing-engine/billing"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store billing.TxStore
	Log   *logrus.Logger
	Cycle billing.CycleSimulator

	// DefaultLateFeePct is applied to financings created without an
	// explicit late fee percentage.
	DefaultLateFeePct billing.Percentage
}

// NewHandler creates a new handler with the given store.
func NewHandler(store billing.TxStore, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		Store:             store,
		Log:               log,
		Cycle:             billing.CycleSimulator{},
		DefaultLateFeePct: billing.MustParseMoney("1").Value,
	}
}

// =============================================================================
// FINANCING HANDLERS
// =============================================================================

// ListFinancings returns all financings, newest first.
// GET /api/financings
func (h *Handler) ListFinancings(w http.ResponseWriter, r *http.Request) {
	financings, err := h.Store.ListFinancings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list financings", err)
		return
	}

	dtos := make([]FinancingDTO, len(financings))
	for i, fin := range financings {
		dtos[i] = toFinancingDTO(fin)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateFinancing opens a new installment financing.
// POST /api/financings
func (h *Handler) CreateFinancing(w http.ResponseWriter, r *http.Request) {
	var req CreateFinancingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	totalAmount, err := billing.ParseMoney(req.TotalAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total_amount", err)
		return
	}
	startDate, err := billing.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}

	lateFeePct := h.DefaultLateFeePct
	if req.LateFeePercentage != "" {
		pct, err := billing.ParseMoney(req.LateFeePercentage)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid late_fee_percentage", err)
			return
		}
		lateFeePct = pct.Value
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	fin, err := billing.NewFinancing(id, totalAmount, req.TotalQuotas,
		billing.PaymentFrequency(req.PaymentFrequency), startDate, lateFeePct)
	if err != nil {
		writeDomainError(w, "Failed to create financing", err)
		return
	}
	fin.CreatedAt = time.Now().UTC()

	if err := h.Store.SaveFinancing(r.Context(), fin); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save financing", err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"financing_id": fin.ID,
		"total_amount": fin.TotalAmount.String(),
		"quotas":       fin.TotalQuotas,
		"frequency":    fin.PaymentFrequency,
	}).Info("financing created")

	writeJSON(w, http.StatusCreated, toFinancingDTO(fin))
}

// GetFinancing returns a single financing.
// GET /api/financings/{id}
func (h *Handler) GetFinancing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	fin, err := h.Store.GetFinancing(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get financing", err)
		return
	}
	writeJSON(w, http.StatusOK, toFinancingDTO(*fin))
}

// ListRecords returns a financing's records annotated with the balance
// each quota still owes, per the replayed projection.
// GET /api/financings/{id}/records
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	fin, err := h.Store.GetFinancing(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to get financing", err)
		return
	}
	records, err := h.Store.RecordsByFinancing(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list records", err)
		return
	}

	projection := h.Cycle.Projector.Project(fin, records)
	if projection.Warning != nil {
		h.Log.WithFields(logrus.Fields{
			"financing_id": id,
			"stored":       projection.Warning.Stored.String(),
			"recomputed":   projection.Warning.Recomputed.String(),
		}).Warn("stored credit disagrees with replayed credit")
	}

	dtos := make([]RecordDTO, len(projection.Records))
	for i, pr := range projection.Records {
		dtos[i] = toRecordDTO(pr.BillingRecord, pr.BalanceDue)
	}

	writeJSON(w, http.StatusOK, RecordListResponse{
		FinancingID:           id,
		Records:               dtos,
		AvailableCredit:       projection.Credit.String(),
		SettledQuotas:         projection.SettledQuotas(fin),
		ReconciliationWarning: warningString(projection.Warning),
	})
}

// =============================================================================
// PAYMENT REGISTRATION
// =============================================================================

// RegisterPayment applies one incoming payment to a financing, atomically
// per financing id.
// POST /api/financings/{id}/payments
func (h *Handler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	var req RegisterPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := billing.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	paymentDate := billing.Today()
	if req.PaymentDate != "" {
		paymentDate, err = billing.ParseDate(req.PaymentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payment_date", err)
			return
		}
	}

	var (
		result     billing.PaymentResult
		balanceDue billing.Money
	)
	err = h.Store.WithFinancing(ctx, id, func(s billing.Store) error {
		fin, err := s.GetFinancing(ctx, id)
		if err != nil {
			return err
		}
		records, err := s.RecordsByFinancing(ctx, id)
		if err != nil {
			return err
		}

		result, err = billing.RegisterPayment(*fin, records, amount, paymentDate)
		if err != nil {
			return err
		}

		if err := s.SaveRecord(ctx, result.Record); err != nil {
			return err
		}
		if err := s.SaveFinancing(ctx, result.Financing); err != nil {
			return err
		}

		// What the record's quota still owes after this payment, for the
		// response. A shorted quota reports the remainder, not zero.
		updated, err := s.RecordsByFinancing(ctx, id)
		if err != nil {
			return err
		}
		projection := h.Cycle.Projector.Project(&result.Financing, updated)
		balanceDue = projection.BalanceDueFor(&result.Financing, result.Record.QuotaNumber)
		return nil
	})
	if err != nil {
		writeDomainError(w, "Failed to register payment", err)
		return
	}

	log := h.Log.WithFields(logrus.Fields{
		"financing_id":   id,
		"amount":         amount.String(),
		"payment_date":   paymentDate.String(),
		"record_status":  result.Record.Status,
		"quotas_covered": result.Record.QuotasCovered,
		"advance_credit": result.Record.AdvanceCredit.String(),
	})
	if result.Warning != nil {
		log.WithField("warning", result.Warning.Error()).Warn("payment registered with reconciliation warning")
	} else {
		log.Info("payment registered")
	}

	writeJSON(w, http.StatusCreated, RegisterPaymentResponse{
		Financing:             toFinancingDTO(result.Financing),
		Record:                toRecordDTO(result.Record, balanceDue),
		IsNewRecord:           result.IsNewRecord,
		QuotasCovered:         result.Record.QuotasCovered,
		AdvanceCredit:         result.Record.AdvanceCredit.String(),
		ReconciliationWarning: warningString(result.Warning),
	})
}

// PenaltyPreview quotes the late fee a payment would carry today, without
// writing anything.
// POST /api/financings/{id}/penalty-preview
func (h *Handler) PenaltyPreview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	var req PenaltyPreviewRequest
	if r.Body != nil {
		// Empty body is fine; defaults apply.
		json.NewDecoder(r.Body).Decode(&req)
	}

	referenceDate := billing.Today()
	if req.ReferenceDate != "" {
		var err error
		referenceDate, err = billing.ParseDate(req.ReferenceDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid reference_date", err)
			return
		}
	}

	fin, err := h.Store.GetFinancing(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to get financing", err)
		return
	}
	records, err := h.Store.RecordsByFinancing(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list records", err)
		return
	}

	target := billing.OldestOpenRecord(records)
	if target == nil {
		writeError(w, http.StatusNotFound, "No open record to preview", billing.ErrRecordNotFound)
		return
	}

	projection := h.Cycle.Projector.Project(fin, records)
	pending := projection.BalanceDueFor(fin, target.QuotaNumber)
	daysLate := billing.DaysLate(target.DueDate, referenceDate)

	calc := billing.PenaltyCalculator{}
	if req.PerDay {
		calc.Mode = billing.PenaltyPerDay
	}
	penalty := calc.Amount(pending, daysLate, fin.LateFeePercentage)

	writeJSON(w, http.StatusOK, PenaltyPreviewResponse{
		FinancingID:   id,
		QuotaNumber:   target.QuotaNumber,
		DueDate:       target.DueDate.String(),
		DaysLate:      daysLate,
		PendingAmount: pending.String(),
		Penalty:       penalty.String(),
		TotalDue:      pending.Add(penalty).String(),
	})
}

// =============================================================================
// CYCLE PHASES
// =============================================================================

// RunTuesday runs the generation phase: each active financing gets its next
// pending quota record, if one remains ungenerated. Idempotent.
// POST /api/cycles/tuesday
func (h *Handler) RunTuesday(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, referenceDate, ok := h.parseCycleRequest(w, r)
	if !ok {
		return
	}

	ids, err := h.cycleTargets(ctx, req)
	if err != nil {
		writeDomainError(w, "Failed to resolve cycle targets", err)
		return
	}

	resp := CycleResponse{Phase: "tuesday", ReferenceDate: referenceDate.String()}
	for _, id := range ids {
		err := h.Store.WithFinancing(ctx, id, func(s billing.Store) error {
			fin, err := s.GetFinancing(ctx, id)
			if err != nil {
				return err
			}
			records, err := s.RecordsByFinancing(ctx, id)
			if err != nil {
				return err
			}

			before := fin.Status
			rec, err := h.Cycle.GenerateTuesday(fin, records, referenceDate)
			if err != nil {
				return err
			}
			if rec != nil {
				if err := s.SaveRecord(ctx, *rec); err != nil {
					return err
				}
				resp.RecordsGenerated++
			}
			if fin.Status != before {
				if fin.Status == billing.FinancingComplete {
					resp.CompletedFinancings = append(resp.CompletedFinancings, id)
				}
				return s.SaveFinancing(ctx, *fin)
			}
			return nil
		})
		if err != nil {
			writeDomainError(w, "Generation phase failed", err)
			return
		}
		resp.FinancingsVisited++
	}

	h.Log.WithFields(logrus.Fields{
		"reference_date": resp.ReferenceDate,
		"visited":        resp.FinancingsVisited,
		"generated":      resp.RecordsGenerated,
	}).Info("generation phase complete")

	writeJSON(w, http.StatusOK, resp)
}

// RunFriday runs the overdue phase: unpaid records past their deadline turn
// retrasado with a flat penalty. Safe to re-run; penalties accrue once.
// POST /api/cycles/friday
func (h *Handler) RunFriday(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, referenceDate, ok := h.parseCycleRequest(w, r)
	if !ok {
		return
	}

	ids, err := h.cycleTargets(ctx, req)
	if err != nil {
		writeDomainError(w, "Failed to resolve cycle targets", err)
		return
	}

	resp := CycleResponse{Phase: "friday", ReferenceDate: referenceDate.String()}
	totalPenalty := billing.ZeroMoney()

	for _, id := range ids {
		err := h.Store.WithFinancing(ctx, id, func(s billing.Store) error {
			fin, err := s.GetFinancing(ctx, id)
			if err != nil {
				return err
			}
			records, err := s.RecordsByFinancing(ctx, id)
			if err != nil {
				return err
			}

			before := fin.Status
			result := h.Cycle.ApplyFridayOverdue(fin, records, referenceDate, fin.LateFeePercentage)
			if !result.Changed() && fin.Status == before {
				return nil
			}

			if err := s.SaveRecords(ctx, result.UpdatedRecords()); err != nil {
				return err
			}
			if err := s.SaveFinancing(ctx, *fin); err != nil {
				return err
			}

			resp.RecordsMarkedLate += len(result.NewlyOverdue)
			totalPenalty = totalPenalty.Add(result.TotalPenalty)
			return nil
		})
		if err != nil {
			writeDomainError(w, "Overdue phase failed", err)
			return
		}
		resp.FinancingsVisited++
	}

	resp.TotalPenalty = totalPenalty.String()

	h.Log.WithFields(logrus.Fields{
		"reference_date": resp.ReferenceDate,
		"visited":        resp.FinancingsVisited,
		"marked_late":    resp.RecordsMarkedLate,
		"total_penalty":  resp.TotalPenalty,
	}).Info("overdue phase complete")

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) parseCycleRequest(w http.ResponseWriter, r *http.Request) (CycleRequest, billing.Date, bool) {
	var req CycleRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return req, billing.Date{}, false
		}
	}

	referenceDate := billing.Today()
	if req.ReferenceDate != "" {
		var err error
		referenceDate, err = billing.ParseDate(req.ReferenceDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid reference_date", err)
			return req, billing.Date{}, false
		}
	}
	return req, referenceDate, true
}

// cycleTargets resolves which financings a cycle phase should visit.
func (h *Handler) cycleTargets(ctx context.Context, req CycleRequest) ([]string, error) {
	if req.FinancingID != "" {
		if _, err := h.Store.GetFinancing(ctx, req.FinancingID); err != nil {
			return nil, err
		}
		return []string{req.FinancingID}, nil
	}

	financings, err := h.Store.ListFinancings(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, fin := range financings {
		if fin.Status == billing.FinancingComplete || fin.Status == billing.FinancingInactive {
			continue
		}
		ids = append(ids, fin.ID)
	}
	return ids, nil
}

// =============================================================================
// ADMIN
// =============================================================================

type resetter interface {
	Reset(ctx context.Context) error
}

// ResetDatabase drops all data. Dev only.
// POST /api/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	rs, ok := h.Store.(resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not support reset", nil)
		return
	}
	if err := rs.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.Log.Warn("database reset")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "reset",
		"reset_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps billing errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, billing.ErrQuotaOverflow):
		writeError(w, http.StatusConflict, message, err)
	case billing.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
