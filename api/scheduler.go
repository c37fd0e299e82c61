/*
scheduler.go - Weekly billing cycle scheduler

PURPOSE:
  Drives the two weekly phases automatically:
  - Tuesday 00:00: generation phase, each active financing gets its next
    pending quota record
  - Friday 00:00: overdue phase, unpaid records past their deadline turn
    retrasado and accrue their penalty

DESIGN:
  - cron expressions on a robfig/cron runner, one entry per phase
  - Each pass walks all active financings; per-financing work runs inside
    Store.WithFinancing, so a crash mid-pass leaves no half-written
    financing and the next pass picks up where this one stopped
  - Both phases are idempotent, so an operator re-triggering them via the
    /api/cycles endpoints after a scheduled run is harmless

USAGE:
  scheduler := NewCycleScheduler(store, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunTuesday/RunFriday endpoints (manual triggers)
  - billing/cycle.go: CycleSimulator phase logic
*/
package api

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/motriz/billing-engine/billing"
)

// Cron expressions for the weekly phases, standard five-field format.
const (
	tuesdaySpec = "0 0 * * 2"
	fridaySpec  = "0 0 * * 5"
)

// CycleScheduler runs the weekly billing phases on a cron schedule.
type CycleScheduler struct {
	Store billing.TxStore
	Log   *logrus.Logger
	Cycle billing.CycleSimulator

	cron *cron.Cron
}

// NewCycleScheduler creates a scheduler over the given store.
func NewCycleScheduler(store billing.TxStore, log *logrus.Logger) *CycleScheduler {
	if log == nil {
		log = logrus.New()
	}
	return &CycleScheduler{
		Store: store,
		Log:   log,
		cron:  cron.New(),
	}
}

// Start registers both phases and begins the cron runner.
func (cs *CycleScheduler) Start() error {
	if _, err := cs.cron.AddFunc(tuesdaySpec, func() {
		cs.RunGeneration(context.Background(), billing.Today())
	}); err != nil {
		return err
	}
	if _, err := cs.cron.AddFunc(fridaySpec, func() {
		cs.RunOverdue(context.Background(), billing.Today())
	}); err != nil {
		return err
	}

	cs.cron.Start()
	cs.Log.WithFields(logrus.Fields{
		"generation": tuesdaySpec,
		"overdue":    fridaySpec,
	}).Info("cycle scheduler started")
	return nil
}

// Stop halts the cron runner and waits for in-flight passes to finish.
func (cs *CycleScheduler) Stop() {
	ctx := cs.cron.Stop()
	<-ctx.Done()
	cs.Log.Info("cycle scheduler stopped")
}

// RunGeneration executes the generation phase over all active financings.
func (cs *CycleScheduler) RunGeneration(ctx context.Context, referenceDate billing.Date) {
	log := cs.Log.WithField("reference_date", referenceDate.String())

	ids, err := cs.activeFinancings(ctx)
	if err != nil {
		log.WithError(err).Error("generation phase: listing financings failed")
		return
	}

	generated := 0
	for _, id := range ids {
		err := cs.Store.WithFinancing(ctx, id, func(s billing.Store) error {
			fin, err := s.GetFinancing(ctx, id)
			if err != nil {
				return err
			}
			records, err := s.RecordsByFinancing(ctx, id)
			if err != nil {
				return err
			}

			before := fin.Status
			rec, err := cs.Cycle.GenerateTuesday(fin, records, referenceDate)
			if err != nil {
				return err
			}
			if rec != nil {
				if err := s.SaveRecord(ctx, *rec); err != nil {
					return err
				}
				generated++
			}
			if fin.Status != before {
				return s.SaveFinancing(ctx, *fin)
			}
			return nil
		})
		if err != nil {
			log.WithError(err).WithField("financing_id", id).Error("generation phase: financing failed")
		}
	}

	log.WithFields(logrus.Fields{
		"visited":   len(ids),
		"generated": generated,
	}).Info("generation phase complete")
}

// RunOverdue executes the overdue phase over all active financings.
func (cs *CycleScheduler) RunOverdue(ctx context.Context, referenceDate billing.Date) {
	log := cs.Log.WithField("reference_date", referenceDate.String())

	ids, err := cs.activeFinancings(ctx)
	if err != nil {
		log.WithError(err).Error("overdue phase: listing financings failed")
		return
	}

	markedLate := 0
	totalPenalty := billing.ZeroMoney()
	for _, id := range ids {
		err := cs.Store.WithFinancing(ctx, id, func(s billing.Store) error {
			fin, err := s.GetFinancing(ctx, id)
			if err != nil {
				return err
			}
			records, err := s.RecordsByFinancing(ctx, id)
			if err != nil {
				return err
			}

			before := fin.Status
			result := cs.Cycle.ApplyFridayOverdue(fin, records, referenceDate, fin.LateFeePercentage)
			if !result.Changed() && fin.Status == before {
				return nil
			}

			if err := s.SaveRecords(ctx, result.UpdatedRecords()); err != nil {
				return err
			}
			if err := s.SaveFinancing(ctx, *fin); err != nil {
				return err
			}

			markedLate += len(result.NewlyOverdue)
			totalPenalty = totalPenalty.Add(result.TotalPenalty)
			return nil
		})
		if err != nil {
			log.WithError(err).WithField("financing_id", id).Error("overdue phase: financing failed")
		}
	}

	log.WithFields(logrus.Fields{
		"visited":       len(ids),
		"marked_late":   markedLate,
		"total_penalty": totalPenalty.String(),
	}).Info("overdue phase complete")
}

func (cs *CycleScheduler) activeFinancings(ctx context.Context) ([]string, error) {
	financings, err := cs.Store.ListFinancings(ctx)
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
