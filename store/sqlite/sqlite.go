/*
Package sqlite provides a SQLite-backed implementation of billing.TxStore.

PURPOSE:
  Persists financings and billing records. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  financings:      one row per installment contract, running state included
  billing_records: one row per quota line, updated in place as its display
                   status transitions (the record lifecycle is a state
                   machine, not an event log)

ATOMICITY:
  WithFinancing serializes payment registration and cycle phases per
  financing: a per-id mutex guards the logical operation, and a SQL
  transaction makes the writes all-or-nothing. No global lock.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - billing/store.go: interface definitions
  - billing/store/memory.go: in-memory equivalent used by tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/motriz/billing-engine/billing"
)

// Store implements billing.TxStore using SQLite.
type Store struct {
	db    *sql.DB
	locks sync.Map // financing id -> *sync.Mutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// WithFinancing's transaction must not interleave with other writers
	// on a second connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS financings (
		id TEXT PRIMARY KEY,
		total_amount TEXT NOT NULL,
		payment_frequency TEXT NOT NULL,
		total_quotas INTEGER NOT NULL,
		quota_amount TEXT NOT NULL,
		start_date TEXT NOT NULL,
		next_due_date TEXT NOT NULL,
		paid_quotas INTEGER NOT NULL DEFAULT 0,
		partial_payment_credit TEXT NOT NULL DEFAULT '0',
		total_late_fees TEXT NOT NULL DEFAULT '0',
		late_fee_percentage TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS billing_records (
		id TEXT PRIMARY KEY,
		financing_id TEXT NOT NULL REFERENCES financings(id),
		quota_number INTEGER NOT NULL,
		amount TEXT NOT NULL,
		due_date TEXT NOT NULL,
		payment_date TEXT,
		status TEXT NOT NULL,
		quotas_covered INTEGER NOT NULL DEFAULT 0,
		quota_amount_covered TEXT NOT NULL DEFAULT '0',
		advance_credit TEXT NOT NULL DEFAULT '0',
		late_fee_amount TEXT NOT NULL DEFAULT '0',
		days_late INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_financing_created
		ON billing_records(financing_id, created_at, quota_number);
	CREATE INDEX IF NOT EXISTS idx_records_financing_status
		ON billing_records(financing_id, status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// QUERIER - shared between *sql.DB and *sql.Tx paths
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// FINANCINGS
// =============================================================================

func (s *Store) SaveFinancing(ctx context.Context, fin billing.Financing) error {
	return saveFinancing(ctx, s.db, fin)
}

func saveFinancing(ctx context.Context, q querier, fin billing.Financing) error {
	if fin.CreatedAt.IsZero() {
		fin.CreatedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO financings (
			id, total_amount, payment_frequency, total_quotas, quota_amount,
			start_date, next_due_date, paid_quotas, partial_payment_credit,
			total_late_fees, late_fee_percentage, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			next_due_date = excluded.next_due_date,
			paid_quotas = excluded.paid_quotas,
			partial_payment_credit = excluded.partial_payment_credit,
			total_late_fees = excluded.total_late_fees,
			status = excluded.status`,
		fin.ID, fin.TotalAmount.String(), string(fin.PaymentFrequency),
		fin.TotalQuotas, fin.QuotaAmount.String(),
		fin.StartDate.String(), fin.NextDueDate.String(),
		fin.PaidQuotas, fin.PartialPaymentCredit.String(),
		fin.TotalLateFees.String(), fin.LateFeePercentage.String(),
		string(fin.Status), fin.CreatedAt,
	)
	return err
}

func (s *Store) GetFinancing(ctx context.Context, id string) (*billing.Financing, error) {
	return getFinancing(ctx, s.db, id)
}

func getFinancing(ctx context.Context, q querier, id string) (*billing.Financing, error) {
	row := q.QueryRowContext(ctx, financingColumns+` WHERE id = ?`, id)
	fin, err := scanFinancing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrFinancingNotFound
	}
	if err != nil {
		return nil, err
	}
	return fin, nil
}

func (s *Store) ListFinancings(ctx context.Context) ([]billing.Financing, error) {
	return listFinancings(ctx, s.db)
}

func listFinancings(ctx context.Context, q querier) ([]billing.Financing, error) {
	rows, err := q.QueryContext(ctx, financingColumns+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Financing
	for rows.Next() {
		fin, err := scanFinancing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *fin)
	}
	return out, rows.Err()
}

const financingColumns = `
	SELECT id, total_amount, payment_frequency, total_quotas, quota_amount,
	       start_date, next_due_date, paid_quotas, partial_payment_credit,
	       total_late_fees, late_fee_percentage, status, created_at
	FROM financings`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFinancing(row rowScanner) (*billing.Financing, error) {
	var (
		fin                              billing.Financing
		totalAmount, quotaAmount         string
		startDate, nextDueDate           string
		credit, lateFees, lateFeePercent string
		frequency, status                string
	)
	err := row.Scan(
		&fin.ID, &totalAmount, &frequency, &fin.TotalQuotas, &quotaAmount,
		&startDate, &nextDueDate, &fin.PaidQuotas, &credit,
		&lateFees, &lateFeePercent, &status, &fin.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	fin.TotalAmount = billing.MustParseMoney(totalAmount)
	fin.QuotaAmount = billing.MustParseMoney(quotaAmount)
	fin.PartialPaymentCredit = billing.MustParseMoney(credit)
	fin.TotalLateFees = billing.MustParseMoney(lateFees)
	fin.LateFeePercentage = billing.MustParseMoney(lateFeePercent).Value
	fin.PaymentFrequency = billing.PaymentFrequency(frequency)
	fin.Status = billing.FinancingStatus(status)

	if fin.StartDate, err = billing.ParseDate(startDate); err != nil {
		return nil, fmt.Errorf("financing %s: bad start_date: %w", fin.ID, err)
	}
	if fin.NextDueDate, err = billing.ParseDate(nextDueDate); err != nil {
		return nil, fmt.Errorf("financing %s: bad next_due_date: %w", fin.ID, err)
	}
	return &fin, nil
}

// =============================================================================
// BILLING RECORDS
// =============================================================================

func (s *Store) SaveRecord(ctx context.Context, rec billing.BillingRecord) error {
	return saveRecord(ctx, s.db, rec)
}

func (s *Store) SaveRecords(ctx context.Context, recs []billing.BillingRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := saveRecord(ctx, tx, rec); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func saveRecord(ctx context.Context, q querier, rec billing.BillingRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	var paymentDate any
	if rec.PaymentDate != nil {
		paymentDate = rec.PaymentDate.String()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO billing_records (
			id, financing_id, quota_number, amount, due_date, payment_date,
			status, quotas_covered, quota_amount_covered, advance_credit,
			late_fee_amount, days_late, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			payment_date = excluded.payment_date,
			status = excluded.status,
			quotas_covered = excluded.quotas_covered,
			quota_amount_covered = excluded.quota_amount_covered,
			advance_credit = excluded.advance_credit,
			late_fee_amount = excluded.late_fee_amount,
			days_late = excluded.days_late`,
		rec.ID, rec.FinancingID, rec.QuotaNumber, rec.Amount.String(),
		rec.DueDate.String(), paymentDate, string(rec.Status),
		rec.QuotasCovered, rec.QuotaAmountCovered.String(),
		rec.AdvanceCredit.String(), rec.LateFeeAmount.String(),
		rec.DaysLate, rec.CreatedAt,
	)
	return err
}

func (s *Store) RecordsByFinancing(ctx context.Context, financingID string) ([]billing.BillingRecord, error) {
	return recordsByFinancing(ctx, s.db, financingID)
}

func recordsByFinancing(ctx context.Context, q querier, financingID string) ([]billing.BillingRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, financing_id, quota_number, amount, due_date, payment_date,
		       status, quotas_covered, quota_amount_covered, advance_credit,
		       late_fee_amount, days_late, created_at
		FROM billing_records
		WHERE financing_id = ?
		ORDER BY created_at, quota_number`, financingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.BillingRecord
	for rows.Next() {
		var (
			rec                          billing.BillingRecord
			amount, covered, credit, fee string
			dueDate                      string
			paymentDate                  sql.NullString
			status                       string
		)
		err := rows.Scan(
			&rec.ID, &rec.FinancingID, &rec.QuotaNumber, &amount, &dueDate,
			&paymentDate, &status, &rec.QuotasCovered, &covered, &credit,
			&fee, &rec.DaysLate, &rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		rec.Amount = billing.MustParseMoney(amount)
		rec.QuotaAmountCovered = billing.MustParseMoney(covered)
		rec.AdvanceCredit = billing.MustParseMoney(credit)
		rec.LateFeeAmount = billing.MustParseMoney(fee)
		rec.Status = billing.RecordStatus(status)

		if rec.DueDate, err = billing.ParseDate(dueDate); err != nil {
			return nil, fmt.Errorf("record %s: bad due_date: %w", rec.ID, err)
		}
		if paymentDate.Valid {
			pd, err := billing.ParseDate(paymentDate.String)
			if err != nil {
				return nil, fmt.Errorf("record %s: bad payment_date: %w", rec.ID, err)
			}
			rec.PaymentDate = &pd
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// PER-FINANCING TRANSACTION BOUNDARY
// =============================================================================

// WithFinancing executes fn serialized per financing id, with all writes
// inside one SQL transaction. An error from fn rolls everything back.
func (s *Store) WithFinancing(ctx context.Context, financingID string, fn func(billing.Store) error) error {
	lockAny, _ := s.locks.LoadOrStore(financingID, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	view := &txView{tx: tx}
	if err := fn(view); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// txView adapts a *sql.Tx to the billing.Store interface.
type txView struct {
	tx *sql.Tx
}

func (v *txView) SaveFinancing(ctx context.Context, fin billing.Financing) error {
	return saveFinancing(ctx, v.tx, fin)
}

func (v *txView) GetFinancing(ctx context.Context, id string) (*billing.Financing, error) {
	return getFinancing(ctx, v.tx, id)
}

func (v *txView) ListFinancings(ctx context.Context) ([]billing.Financing, error) {
	return listFinancings(ctx, v.tx)
}

func (v *txView) SaveRecord(ctx context.Context, rec billing.BillingRecord) error {
	return saveRecord(ctx, v.tx, rec)
}

func (v *txView) SaveRecords(ctx context.Context, recs []billing.BillingRecord) error {
	for _, rec := range recs {
		if err := saveRecord(ctx, v.tx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (v *txView) RecordsByFinancing(ctx context.Context, financingID string) ([]billing.BillingRecord, error) {
	return recordsByFinancing(ctx, v.tx, financingID)
}

// Reset drops all data. Dev/test only.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM billing_records;
		DELETE FROM financings;`)
	return err
}

var _ billing.TxStore = (*Store)(nil)
