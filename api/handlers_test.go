package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motriz/billing-engine/api"
	memstore "github.com/motriz/billing-engine/billing/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	handler := api.NewHandler(memstore.NewTxMemory(), log)
	return api.NewRouter(handler)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if out != nil && rr.Code < 300 {
		require.NoError(t, json.NewDecoder(rr.Body).Decode(out))
	}
	return rr
}

func createFinancing(t *testing.T, router http.Handler) api.FinancingDTO {
	t.Helper()
	var fin api.FinancingDTO
	rr := doJSON(t, router, http.MethodPost, "/api/financings", api.CreateFinancingRequest{
		ID:                "fin-1",
		TotalAmount:       "1000",
		PaymentFrequency:  "weekly",
		TotalQuotas:       10,
		StartDate:         "2025-01-07",
		LateFeePercentage: "1",
	}, &fin)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return fin
}

// =============================================================================
// FINANCING LIFECYCLE
// =============================================================================

func TestAPI_CreateAndGetFinancing(t *testing.T) {
	router := newTestRouter(t)
	created := createFinancing(t, router)

	assert.Equal(t, "fin-1", created.ID)
	assert.Equal(t, "100.00", created.QuotaAmount)
	assert.Equal(t, "100.00", created.FinalQuotaAmount)
	assert.Equal(t, "2025-01-14", created.NextDueDate)
	assert.Equal(t, "activo", created.Status)
	assert.Equal(t, 0, created.PaidQuotas)

	// The creation timestamp is stamped by the handler, not left for the
	// store to backfill.
	createdAt, err := time.Parse(time.RFC3339, created.CreatedAt)
	require.NoError(t, err)
	assert.False(t, createdAt.IsZero())

	var got api.FinancingDTO
	rr := doJSON(t, router, http.MethodGet, "/api/financings/fin-1", nil, &got)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, created.ID, got.ID)

	var list []api.FinancingDTO
	rr = doJSON(t, router, http.MethodGet, "/api/financings", nil, &list)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, list, 1)
}

func TestAPI_CreateFinancing_Validation(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/api/financings", api.CreateFinancingRequest{
		TotalAmount:      "1000",
		PaymentFrequency: "daily", // unknown
		TotalQuotas:      10,
		StartDate:        "2025-01-07",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/financings", api.CreateFinancingRequest{
		TotalAmount:      "not-a-number",
		PaymentFrequency: "weekly",
		TotalQuotas:      10,
		StartDate:        "2025-01-07",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_GetFinancing_NotFound(t *testing.T) {
	router := newTestRouter(t)
	rr := doJSON(t, router, http.MethodGet, "/api/financings/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// =============================================================================
// CYCLE PHASES
// =============================================================================

func TestAPI_TuesdayGeneratesRecord_Idempotent(t *testing.T) {
	router := newTestRouter(t)
	createFinancing(t, router)

	var cycle api.CycleResponse
	rr := doJSON(t, router, http.MethodPost, "/api/cycles/tuesday",
		api.CycleRequest{ReferenceDate: "2025-01-14"}, &cycle)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, cycle.RecordsGenerated)
	assert.Equal(t, 1, cycle.FinancingsVisited)

	// Re-run for the same week: nothing new.
	rr = doJSON(t, router, http.MethodPost, "/api/cycles/tuesday",
		api.CycleRequest{ReferenceDate: "2025-01-14"}, &cycle)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, cycle.RecordsGenerated)

	var records api.RecordListResponse
	rr = doJSON(t, router, http.MethodGet, "/api/financings/fin-1/records", nil, &records)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, records.Records, 1)
	assert.Equal(t, "pendiente", records.Records[0].Status)
	assert.Equal(t, 1, records.Records[0].QuotaNumber)
	assert.Equal(t, "100.00", records.Records[0].BalanceDue)
}

func TestAPI_FridayMarksOverdue_RerunSafe(t *testing.T) {
	router := newTestRouter(t)
	createFinancing(t, router)

	doJSON(t, router, http.MethodPost, "/api/cycles/tuesday",
		api.CycleRequest{ReferenceDate: "2025-01-14"}, nil)

	var cycle api.CycleResponse
	rr := doJSON(t, router, http.MethodPost, "/api/cycles/friday",
		api.CycleRequest{ReferenceDate: "2025-01-17"}, &cycle)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, cycle.RecordsMarkedLate)
	assert.Equal(t, "1.00", cycle.TotalPenalty)

	// Re-running accrues nothing further.
	rr = doJSON(t, router, http.MethodPost, "/api/cycles/friday",
		api.CycleRequest{ReferenceDate: "2025-01-24"}, &cycle)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, cycle.RecordsMarkedLate)
	assert.Equal(t, "0.00", cycle.TotalPenalty)

	var fin api.FinancingDTO
	doJSON(t, router, http.MethodGet, "/api/financings/fin-1", nil, &fin)
	assert.Equal(t, "en_mora", fin.Status)
	assert.Equal(t, "1.00", fin.TotalLateFees)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestAPI_RegisterPayment_ExactQuota(t *testing.T) {
	router := newTestRouter(t)
	createFinancing(t, router)
	doJSON(t, router, http.MethodPost, "/api/cycles/tuesday",
		api.CycleRequest{ReferenceDate: "2025-01-14"}, nil)

	var payment api.RegisterPaymentResponse
	rr := doJSON(t, router, http.MethodPost, "/api/financings/fin-1/payments",
		api.RegisterPaymentRequest{Amount: "100", PaymentDate: "2025-01-14"}, &payment)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	assert.Equal(t, "pagado", payment.Record.Status)
	assert.False(t, payment.IsNewRecord)
	assert.Equal(t, 1, payment.Financing.PaidQuotas)
	assert.Equal(t, "2025-01-21", payment.Financing.NextDueDate)
	assert.Nil(t, payment.ReconciliationWarning)
}

func TestAPI_RegisterPayment_PartialReportsRemainingBalance(t *testing.T) {
	// A 40.00 abono against a 100.00 quota: the response record shows the
	// 60.00 the quota still owes.
	router := newTestRouter(t)
	createFinancing(t, router)
	doJSON(t, router, http.MethodPost, "/api/cycles/tuesday",
		api.CycleRequest{ReferenceDate: "2025-01-14"}, nil)

	var payment api.RegisterPaymentResponse
	rr := doJSON(t, router, http.MethodPost, "/api/financings/fin-1/payments",
		api.RegisterPaymentRequest{Amount: "40", PaymentDate: "2025-01-14"}, &payment)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	assert.Equal(t, "abonado", payment.Record.Status)
	assert.Equal(t, "60.00", payment.Record.BalanceDue)
	assert.Equal(t, 0, payment.Financing.PaidQuotas)
}

func TestAPI_RegisterPayment_Overpayment(t *testing.T) {
	router := newTestRouter(t)
	createFinancing(t, router)
	doJSON(t, router, http.MethodPost, "/api/cycles/tuesday",
		api.CycleRequest{ReferenceDate: "2025-01-14"}, nil)

	var payment api.RegisterPaymentResponse
	rr := doJSON(t, router, http.MethodPost, "/api/financings/fin-1/payments",
		api.RegisterPaymentRequest{Amount: "250", PaymentDate: "2025-01-14"}, &payment)
	require.Equal(t, http.StatusCreated, rr.Code)

	assert.Equal(t, "abonado", payment.Record.Status)
	assert.Equal(t, 2, payment.QuotasCovered)
	assert.Equal(t, "50.00", payment.AdvanceCredit)
	assert.Equal(t, 2, payment.Financing.PaidQuotas)
	assert.Equal(t, "50.00", payment.Financing.PartialPaymentCredit)
}

func TestAPI_RegisterPayment_LatePaymentCarriesPenalty(t *testing.T) {
	router := newTestRouter(t)
	createFinancing(t, router)
	doJSON(t, router, http.MethodPost, "/api/cycles/tuesday",
		api.CycleRequest{ReferenceDate: "2025-01-14"}, nil)
	doJSON(t, router, http.MethodPost, "/api/cycles/friday",
		api.CycleRequest{ReferenceDate: "2025-01-17"}, nil)

	var payment api.RegisterPaymentResponse
	rr := doJSON(t, router, http.MethodPost, "/api/financings/fin-1/payments",
		api.RegisterPaymentRequest{Amount: "100", PaymentDate: "2025-01-22"}, &payment)
	require.Equal(t, http.StatusCreated, rr.Code)

	assert.Equal(t, "retrasado", payment.Record.Status)
	assert.Equal(t, "1.00", payment.Record.LateFeeAmount)
	require.NotNil(t, payment.Record.PaymentDate)
	assert.Equal(t, 1, payment.Financing.PaidQuotas)
	// The only overdue record is settled now.
	assert.Equal(t, "activo", payment.Financing.Status)
}

func TestAPI_RegisterPayment_Errors(t *testing.T) {
	router := newTestRouter(t)
	createFinancing(t, router)

	rr := doJSON(t, router, http.MethodPost, "/api/financings/fin-1/payments",
		api.RegisterPaymentRequest{Amount: "-10"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/financings/missing/payments",
		api.RegisterPaymentRequest{Amount: "100"}, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// =============================================================================
// PENALTY PREVIEW
// =============================================================================

func TestAPI_PenaltyPreview(t *testing.T) {
	router := newTestRouter(t)
	createFinancing(t, router)
	doJSON(t, router, http.MethodPost, "/api/cycles/tuesday",
		api.CycleRequest{ReferenceDate: "2025-01-14"}, nil)

	var preview api.PenaltyPreviewResponse
	rr := doJSON(t, router, http.MethodPost, "/api/financings/fin-1/penalty-preview",
		api.PenaltyPreviewRequest{ReferenceDate: "2025-01-22"}, &preview)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, 1, preview.QuotaNumber)
	assert.Equal(t, 8, preview.DaysLate)
	assert.Equal(t, "100.00", preview.PendingAmount)
	assert.Equal(t, "1.00", preview.Penalty)
	assert.Equal(t, "101.00", preview.TotalDue)

	// Per-day what-if mode multiplies by daysLate.
	rr = doJSON(t, router, http.MethodPost, "/api/financings/fin-1/penalty-preview",
		api.PenaltyPreviewRequest{ReferenceDate: "2025-01-22", PerDay: true}, &preview)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "8.00", preview.Penalty)
}

func TestAPI_PenaltyPreview_NoOpenRecord(t *testing.T) {
	router := newTestRouter(t)
	createFinancing(t, router)

	rr := doJSON(t, router, http.MethodPost, "/api/financings/fin-1/penalty-preview",
		api.PenaltyPreviewRequest{ReferenceDate: "2025-01-22"}, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// =============================================================================
// END TO END
// =============================================================================

func TestAPI_FullWeeklyCycle(t *testing.T) {
	// Simulates three weeks: generate, pay on time, generate, miss the
	// deadline, pay late. Verifies the financing's running state at each
	// step through the public API alone.
	router := newTestRouter(t)
	createFinancing(t, router)

	// Week 1: generate and pay on time.
	doJSON(t, router, http.MethodPost, "/api/cycles/tuesday",
		api.CycleRequest{ReferenceDate: "2025-01-14"}, nil)
	rr := doJSON(t, router, http.MethodPost, "/api/financings/fin-1/payments",
		api.RegisterPaymentRequest{Amount: "100", PaymentDate: "2025-01-14"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	// Week 2: generate quota 2, miss it.
	doJSON(t, router, http.MethodPost, "/api/cycles/tuesday",
		api.CycleRequest{ReferenceDate: "2025-01-21"}, nil)
	var cycle api.CycleResponse
	doJSON(t, router, http.MethodPost, "/api/cycles/friday",
		api.CycleRequest{ReferenceDate: "2025-01-24"}, &cycle)
	assert.Equal(t, 1, cycle.RecordsMarkedLate)

	var fin api.FinancingDTO
	doJSON(t, router, http.MethodGet, "/api/financings/fin-1", nil, &fin)
	assert.Equal(t, "en_mora", fin.Status)

	// Week 3: the late quota is paid; the financing recovers.
	rr = doJSON(t, router, http.MethodPost, "/api/financings/fin-1/payments",
		api.RegisterPaymentRequest{Amount: "100", PaymentDate: "2025-01-28"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	doJSON(t, router, http.MethodGet, "/api/financings/fin-1", nil, &fin)
	assert.Equal(t, "activo", fin.Status)
	assert.Equal(t, 2, fin.PaidQuotas)
	assert.Equal(t, "1.00", fin.TotalLateFees)
}
