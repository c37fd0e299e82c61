/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	financings for testing and demos. Each scenario creates a financing and
	replays a few weeks of cycle phases and payments to demonstrate one
	behavior end to end.

AVAILABLE SCENARIOS:

	punctual-payer:   Weekly financing paid on time, three weeks in
	advance-payer:    One big payment covering several quotas plus credit
	late-payer:       A missed deadline, the penalty, and the recovery
	partial-payer:    Two partial payments completing a single quota

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create the financing
 3. Replay generation/overdue phases and payments at fixed past dates

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "late-payer"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - server.go: /api/scenarios route wiring
  - billing/cycle.go: The phases the scenarios replay
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/motriz/billing-engine/billing"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "punctual-payer",
		Name:        "Punctual Payer",
		Description: "Weekly financing with three quotas generated and paid on time",
	},
	{
		ID:          "advance-payer",
		Name:        "Advance Payer",
		Description: "One payment covering several quotas, leftover carried as credit",
	},
	{
		ID:          "late-payer",
		Name:        "Late Payer",
		Description: "A missed deadline, the flat penalty, en mora, and the recovery",
	},
	{
		ID:          "partial-payer",
		Name:        "Partial Payer",
		Description: "Two partial payments (abonos) completing a single quota",
	},
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns the available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario resets the database and loads the requested scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	rs, ok := h.Store.(resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not support reset", nil)
		return
	}
	if err := rs.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "punctual-payer":
		err = h.loadPunctualPayerScenario(ctx)
	case "advance-payer":
		err = h.loadAdvancePayerScenario(ctx)
	case "late-payer":
		err = h.loadLatePayerScenario(ctx)
	case "partial-payer":
		err = h.loadPartialPayerScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.Log.WithField("scenario", req.ScenarioID).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// scenarioStart anchors all scenarios a few weeks in the past so the cycle
// phases have deadlines to work against.
func scenarioStart() billing.Date {
	return billing.Today().AddDays(-28)
}

func (h *Handler) newScenarioFinancing(ctx context.Context, id, total string, quotas int) (billing.Financing, error) {
	fin, err := billing.NewFinancing(id, billing.MustParseMoney(total), quotas,
		billing.FrequencyWeekly, scenarioStart(), h.DefaultLateFeePct)
	if err != nil {
		return billing.Financing{}, err
	}
	fin.CreatedAt = time.Now().UTC()
	return fin, h.Store.SaveFinancing(ctx, fin)
}

// runPhaseAndPay generates the financing's next quota at genDate and, when
// amount is non-empty, registers a payment of that amount at payDate.
func (h *Handler) runPhaseAndPay(ctx context.Context, id string, genDate billing.Date, amount string, payDate billing.Date) error {
	return h.Store.WithFinancing(ctx, id, func(s billing.Store) error {
		fin, err := s.GetFinancing(ctx, id)
		if err != nil {
			return err
		}
		records, err := s.RecordsByFinancing(ctx, id)
		if err != nil {
			return err
		}

		if rec, err := h.Cycle.GenerateTuesday(fin, records, genDate); err != nil {
			return err
		} else if rec != nil {
			if err := s.SaveRecord(ctx, *rec); err != nil {
				return err
			}
			records = append(records, *rec)
		}
		if err := s.SaveFinancing(ctx, *fin); err != nil {
			return err
		}

		if amount == "" {
			return nil
		}
		result, err := billing.RegisterPayment(*fin, records, billing.MustParseMoney(amount), payDate)
		if err != nil {
			return err
		}
		if err := s.SaveRecord(ctx, result.Record); err != nil {
			return err
		}
		return s.SaveFinancing(ctx, result.Financing)
	})
}

// runPayment registers a payment without running a generation phase, for
// mid-week follow-up payments.
func (h *Handler) runPayment(ctx context.Context, id, amount string, payDate billing.Date) error {
	return h.Store.WithFinancing(ctx, id, func(s billing.Store) error {
		fin, err := s.GetFinancing(ctx, id)
		if err != nil {
			return err
		}
		records, err := s.RecordsByFinancing(ctx, id)
		if err != nil {
			return err
		}

		result, err := billing.RegisterPayment(*fin, records, billing.MustParseMoney(amount), payDate)
		if err != nil {
			return err
		}
		if err := s.SaveRecord(ctx, result.Record); err != nil {
			return err
		}
		return s.SaveFinancing(ctx, result.Financing)
	})
}

// runOverdue applies the deadline pass at the given date.
func (h *Handler) runOverdue(ctx context.Context, id string, refDate billing.Date) error {
	return h.Store.WithFinancing(ctx, id, func(s billing.Store) error {
		fin, err := s.GetFinancing(ctx, id)
		if err != nil {
			return err
		}
		records, err := s.RecordsByFinancing(ctx, id)
		if err != nil {
			return err
		}

		result := h.Cycle.ApplyFridayOverdue(fin, records, refDate, fin.LateFeePercentage)
		if err := s.SaveRecords(ctx, result.UpdatedRecords()); err != nil {
			return err
		}
		return s.SaveFinancing(ctx, *fin)
	})
}

func (h *Handler) loadPunctualPayerScenario(ctx context.Context) error {
	start := scenarioStart()
	if _, err := h.newScenarioFinancing(ctx, "demo-punctual", "1200", 12); err != nil {
		return err
	}
	for week := 1; week <= 3; week++ {
		due := start.AddDays(7 * week)
		if err := h.runPhaseAndPay(ctx, "demo-punctual", due, "100", due); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadAdvancePayerScenario(ctx context.Context) error {
	start := scenarioStart()
	if _, err := h.newScenarioFinancing(ctx, "demo-advance", "1000", 10); err != nil {
		return err
	}
	// One big payment against the first generated quota: covers 1-2 and
	// leaves half a quota of credit.
	return h.runPhaseAndPay(ctx, "demo-advance", start.AddDays(7), "250", start.AddDays(7))
}

func (h *Handler) loadLatePayerScenario(ctx context.Context) error {
	start := scenarioStart()
	if _, err := h.newScenarioFinancing(ctx, "demo-late", "800", 8); err != nil {
		return err
	}
	// Quota 1 generated but never paid that week.
	if err := h.runPhaseAndPay(ctx, "demo-late", start.AddDays(7), "", billing.Date{}); err != nil {
		return err
	}
	// The deadline pass stamps the penalty.
	if err := h.runOverdue(ctx, "demo-late", start.AddDays(10)); err != nil {
		return err
	}
	// The payer recovers a week later.
	return h.runPhaseAndPay(ctx, "demo-late", start.AddDays(14), "100", start.AddDays(14))
}

func (h *Handler) loadPartialPayerScenario(ctx context.Context) error {
	start := scenarioStart()
	if _, err := h.newScenarioFinancing(ctx, "demo-partial", "1000", 10); err != nil {
		return err
	}
	if err := h.runPhaseAndPay(ctx, "demo-partial", start.AddDays(7), "40", start.AddDays(5)); err != nil {
		return err
	}
	// The follow-up abono completes the quota.
	return h.runPayment(ctx, "demo-partial", "60", start.AddDays(6))
}
