/*
store.go - Persistence interfaces for financings and billing records

PURPOSE:
  Defines the boundary between the calculation core and storage. The core
  consumes and produces plain records; how they are stored is a collaborator
  concern. Implementations: store/sqlite (production), billing/store
  (in-memory, for tests and dev).

ATOMICITY CONTRACT:
  One logical payment registration (read financing -> allocate -> classify
  -> write financing + write record) must execute as a single atomic unit
  per financing: allocation correctness depends on the available credit
  being read and written without a concurrent interleaving from another
  payment on the same financing. WithFinancing is that boundary. No global
  lock and no cross-financing coordination is required.
*/
package billing

import "context"

// =============================================================================
// STORE INTERFACES
// =============================================================================

// Store persists financings and their billing records.
type Store interface {
	// SaveFinancing inserts or updates a financing.
	SaveFinancing(ctx context.Context, fin Financing) error

	// GetFinancing returns a financing by id, or ErrFinancingNotFound.
	GetFinancing(ctx context.Context, id string) (*Financing, error)

	// ListFinancings returns all financings, newest first.
	ListFinancings(ctx context.Context) ([]Financing, error)

	// SaveRecord inserts or updates one billing record.
	SaveRecord(ctx context.Context, rec BillingRecord) error

	// SaveRecords inserts or updates several records atomically.
	SaveRecords(ctx context.Context, recs []BillingRecord) error

	// RecordsByFinancing returns all records of one financing in creation
	// order - the order the projector replays.
	RecordsByFinancing(ctx context.Context, financingID string) ([]BillingRecord, error)
}

// TxStore extends Store with the per-financing transaction boundary.
type TxStore interface {
	Store

	// WithFinancing executes fn serialized against all other WithFinancing
	// calls for the same financing id. If fn returns an error, writes made
	// through its Store are rolled back.
	WithFinancing(ctx context.Context, financingID string, fn func(Store) error) error
}
