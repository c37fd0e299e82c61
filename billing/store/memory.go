// Package store provides an in-memory billing.Store implementation for
// tests and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/motriz/billing-engine/billing"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu         sync.Mutex
	financings map[string]billing.Financing
	records    map[string][]billing.BillingRecord // keyed by financing id
}

func NewMemory() *Memory {
	return &Memory{
		financings: make(map[string]billing.Financing),
		records:    make(map[string][]billing.BillingRecord),
	}
}

func (m *Memory) SaveFinancing(_ context.Context, fin billing.Financing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.financings[fin.ID] = fin
	return nil
}

func (m *Memory) GetFinancing(_ context.Context, id string) (*billing.Financing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fin, ok := m.financings[id]
	if !ok {
		return nil, billing.ErrFinancingNotFound
	}
	return &fin, nil
}

func (m *Memory) ListFinancings(_ context.Context) ([]billing.Financing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]billing.Financing, 0, len(m.financings))
	for _, fin := range m.financings {
		out = append(out, fin)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SaveRecord(_ context.Context, rec billing.BillingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveRecordLocked(rec)
	return nil
}

func (m *Memory) SaveRecords(_ context.Context, recs []billing.BillingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		m.saveRecordLocked(rec)
	}
	return nil
}

func (m *Memory) saveRecordLocked(rec billing.BillingRecord) {
	recs := m.records[rec.FinancingID]
	for i := range recs {
		if recs[i].ID == rec.ID {
			recs[i] = rec
			return
		}
	}
	m.records[rec.FinancingID] = append(recs, rec)
}

func (m *Memory) RecordsByFinancing(_ context.Context, financingID string) ([]billing.BillingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.records[financingID]
	out := make([]billing.BillingRecord, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].QuotaNumber < out[j].QuotaNumber
	})
	return out, nil
}

// Reset drops everything. Dev and demo use only.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.financings = make(map[string]billing.Financing)
	m.records = make(map[string][]billing.BillingRecord)
	return nil
}

// =============================================================================
// PER-FINANCING TRANSACTION BOUNDARY
// =============================================================================

// TxMemory wraps Memory with the WithFinancing boundary. Rollback is
// simulated with a snapshot of the financing's state.
type TxMemory struct {
	*Memory
	locks sync.Map // financing id -> *sync.Mutex
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

func (tm *TxMemory) WithFinancing(_ context.Context, financingID string, fn func(billing.Store) error) error {
	lockAny, _ := tm.locks.LoadOrStore(financingID, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	tm.mu.Lock()
	finSnap, hadFin := tm.financings[financingID]
	recSnap := append([]billing.BillingRecord(nil), tm.records[financingID]...)
	tm.mu.Unlock()

	if err := fn(tm.Memory); err != nil {
		tm.mu.Lock()
		if hadFin {
			tm.financings[financingID] = finSnap
		} else {
			delete(tm.financings, financingID)
		}
		tm.records[financingID] = recSnap
		tm.mu.Unlock()
		return err
	}
	return nil
}

var _ billing.TxStore = (*TxMemory)(nil)
