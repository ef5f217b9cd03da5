/*
Package postgres provides a PostgreSQL-backed implementation of the
engine's storage ports.

PURPOSE:
  Implements engine.LockingStore on PostgreSQL via the pgx stdlib driver.
  Same schema as store/sqlite; native timestamp and numeric columns
  replace the text encodings, and serialization uses database-level
  advisory locks so multiple intake instances sharing one database still
  serialize per processor.

SERIALIZATION:
  WithProcessorLock opens a transaction and takes
  pg_advisory_xact_lock(hashtext(processor_id)). The lock is held until
  commit/rollback, covering the full read-reallocate-write sequence
  across every process connected to the database.

MIGRATION:
  Schema is applied on New() with IF NOT EXISTS guards. Production
  deployments should manage it with a versioned migration tool instead.

SEE ALSO:
  - engine/store.go: port definitions and the serialization contract
  - store/sqlite: single-node implementation
*/
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/engine"
)

// Store implements engine.LockingStore using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New connects to the database at dsn and applies the schema.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deposits (
		id TEXT PRIMARY KEY,
		processor_id TEXT NOT NULL,
		payer_identity TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		currency TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		bonus_rate NUMERIC NOT NULL DEFAULT 0,
		bonus_amount NUMERIC NOT NULL DEFAULT 0,
		commission_percent NUMERIC NOT NULL DEFAULT 0,
		commission_amount NUMERIC NOT NULL DEFAULT 0,
		net_earnings NUMERIC NOT NULL DEFAULT 0,
		offer TEXT,
		geo TEXT,
		payment_method TEXT,
		notes TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_deposits_processor_created
		ON deposits(processor_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_deposits_dup_guard
		ON deposits(processor_id, payer_identity, currency, created_at);

	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		processor_id TEXT NOT NULL,
		shift_type TEXT NOT NULL,
		status TEXT NOT NULL,
		scheduled_start TIMESTAMPTZ NOT NULL,
		scheduled_end TIMESTAMPTZ NOT NULL,
		actual_start TIMESTAMPTZ,
		actual_end TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_shifts_processor_status
		ON shifts(processor_id, status);

	CREATE TABLE IF NOT EXISTS bonus_payments (
		id TEXT PRIMARY KEY,
		processor_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		deposit_id TEXT,
		plan_name TEXT,
		period_start TIMESTAMPTZ NOT NULL,
		period_end TIMESTAMPTZ NOT NULL,
		shift_type TEXT,
		hold_until TIMESTAMPTZ,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_processor
		ON bonus_payments(processor_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_payments_achievement
		ON bonus_payments(processor_id, kind, plan_name, period_start);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// QUERIER - shared between the pool and a pinned transaction
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type view struct {
	q querier
}

func (s *Store) view() *view { return &view{q: s.db} }

// =============================================================================
// STORE METHODS
// =============================================================================

func (s *Store) CreateDeposit(ctx context.Context, d *engine.Deposit) error {
	return s.view().CreateDeposit(ctx, d)
}

func (s *Store) UpdateDepositBonus(ctx context.Context, id engine.DepositID, rate, amount decimal.Decimal) error {
	return s.view().UpdateDepositBonus(ctx, id, rate, amount)
}

func (s *Store) DepositsSince(ctx context.Context, p engine.ProcessorID, from time.Time) ([]engine.Deposit, error) {
	return s.view().DepositsSince(ctx, p, from)
}

func (s *Store) CountDeposits(ctx context.Context, p engine.ProcessorID) (int, error) {
	return s.view().CountDeposits(ctx, p)
}

func (s *Store) SumDeposits(ctx context.Context, p engine.ProcessorID, from, to time.Time) (decimal.Decimal, error) {
	return s.view().SumDeposits(ctx, p, from, to)
}

func (s *Store) HasRecentDeposit(ctx context.Context, p engine.ProcessorID, payer string, amount decimal.Decimal, currency string, since time.Time) (bool, error) {
	return s.view().HasRecentDeposit(ctx, p, payer, amount, currency, since)
}

func (s *Store) ActiveShift(ctx context.Context, p engine.ProcessorID) (*engine.Shift, error) {
	return s.view().ActiveShift(ctx, p)
}

func (s *Store) CreatePayment(ctx context.Context, bp *engine.BonusPayment) error {
	return s.view().CreatePayment(ctx, bp)
}

func (s *Store) HasAchievement(ctx context.Context, p engine.ProcessorID, planName string, periodStart, periodEnd time.Time) (bool, error) {
	return s.view().HasAchievement(ctx, p, planName, periodStart, periodEnd)
}

// WithProcessorLock serializes fn across all connected processes with a
// transaction-scoped advisory lock keyed on the processor ID.
func (s *Store) WithProcessorLock(ctx context.Context, p engine.ProcessorID, fn func(engine.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, string(p)); err != nil {
		return err
	}

	if err := fn(&view{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// VIEW IMPLEMENTATION
// =============================================================================

func (v *view) CreateDeposit(ctx context.Context, d *engine.Deposit) error {
	_, err := v.q.ExecContext(ctx, `
		INSERT INTO deposits (
			id, processor_id, payer_identity, amount, currency, created_at,
			bonus_rate, bonus_amount, commission_percent, commission_amount,
			net_earnings, offer, geo, payment_method, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		string(d.ID), string(d.ProcessorID), d.PayerIdentity,
		d.Amount.String(), d.Currency, d.CreatedAt.UTC(),
		d.BonusRate.String(), d.BonusAmount.String(),
		d.CommissionPercent.String(), d.CommissionAmount.String(),
		d.NetEarnings.String(), d.Offer, d.Geo, d.PaymentMethod, d.Notes)
	return err
}

func (v *view) UpdateDepositBonus(ctx context.Context, id engine.DepositID, rate, amount decimal.Decimal) error {
	res, err := v.q.ExecContext(ctx,
		`UPDATE deposits SET bonus_rate = $1, bonus_amount = $2 WHERE id = $3`,
		rate.String(), amount.String(), string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return engine.ErrDepositNotFound
	}
	return nil
}

func (v *view) DepositsSince(ctx context.Context, p engine.ProcessorID, from time.Time) ([]engine.Deposit, error) {
	rows, err := v.q.QueryContext(ctx, `
		SELECT id, processor_id, payer_identity, amount::text, currency, created_at,
		       bonus_rate::text, bonus_amount::text, commission_percent::text,
		       commission_amount::text, net_earnings::text,
		       offer, geo, payment_method, notes
		  FROM deposits
		 WHERE processor_id = $1 AND created_at >= $2
		 ORDER BY created_at`,
		string(p), from.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []engine.Deposit
	for rows.Next() {
		var d engine.Deposit
		var amount, rate, bonus, commPct, commAmt, net string
		var offer, geo, method, notes sql.NullString

		err := rows.Scan(&d.ID, &d.ProcessorID, &d.PayerIdentity, &amount,
			&d.Currency, &d.CreatedAt, &rate, &bonus, &commPct, &commAmt,
			&net, &offer, &geo, &method, &notes)
		if err != nil {
			return nil, err
		}
		if d.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if d.BonusRate, err = decimal.NewFromString(rate); err != nil {
			return nil, err
		}
		if d.BonusAmount, err = decimal.NewFromString(bonus); err != nil {
			return nil, err
		}
		if d.CommissionPercent, err = decimal.NewFromString(commPct); err != nil {
			return nil, err
		}
		if d.CommissionAmount, err = decimal.NewFromString(commAmt); err != nil {
			return nil, err
		}
		if d.NetEarnings, err = decimal.NewFromString(net); err != nil {
			return nil, err
		}
		d.Offer, d.Geo, d.PaymentMethod, d.Notes = offer.String, geo.String, method.String, notes.String
		result = append(result, d)
	}
	return result, rows.Err()
}

func (v *view) CountDeposits(ctx context.Context, p engine.ProcessorID) (int, error) {
	var count int
	err := v.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deposits WHERE processor_id = $1`,
		string(p)).Scan(&count)
	return count, err
}

func (v *view) SumDeposits(ctx context.Context, p engine.ProcessorID, from, to time.Time) (decimal.Decimal, error) {
	var sum string
	err := v.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)::text FROM deposits
		 WHERE processor_id = $1 AND created_at >= $2 AND created_at < $3`,
		string(p), from.UTC(), to.UTC()).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(sum)
}

func (v *view) HasRecentDeposit(ctx context.Context, p engine.ProcessorID, payer string, amount decimal.Decimal, currency string, since time.Time) (bool, error) {
	var count int
	err := v.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM deposits
		 WHERE processor_id = $1 AND payer_identity = $2 AND currency = $3
		   AND amount = $4::numeric AND created_at >= $5`,
		string(p), payer, currency, amount.String(), since.UTC()).Scan(&count)
	return count > 0, err
}

func (v *view) ActiveShift(ctx context.Context, p engine.ProcessorID) (*engine.Shift, error) {
	row := v.q.QueryRowContext(ctx, `
		SELECT id, processor_id, shift_type, status,
		       scheduled_start, scheduled_end, actual_start, actual_end
		  FROM shifts
		 WHERE processor_id = $1 AND status = $2
		 ORDER BY scheduled_start DESC
		 LIMIT 1`,
		string(p), string(engine.ShiftActive))

	var s engine.Shift
	var actualStart, actualEnd sql.NullTime
	err := row.Scan(&s.ID, &s.ProcessorID, &s.Type, &s.Status,
		&s.ScheduledStart, &s.ScheduledEnd, &actualStart, &actualEnd)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if actualStart.Valid {
		s.ActualStart = actualStart.Time
	}
	if actualEnd.Valid {
		s.ActualEnd = actualEnd.Time
	}
	return &s, nil
}

func (v *view) CreatePayment(ctx context.Context, bp *engine.BonusPayment) error {
	var holdUntil any
	if !bp.HoldUntil.IsZero() {
		holdUntil = bp.HoldUntil.UTC()
	}
	_, err := v.q.ExecContext(ctx, `
		INSERT INTO bonus_payments (
			id, processor_id, kind, amount, deposit_id, plan_name,
			period_start, period_end, shift_type, hold_until, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(bp.ID), string(bp.ProcessorID), string(bp.Kind),
		bp.Amount.String(), string(bp.DepositID), bp.PlanName,
		bp.PeriodStart.UTC(), bp.PeriodEnd.UTC(), string(bp.ShiftType),
		holdUntil, string(bp.Status), bp.CreatedAt.UTC())
	return err
}

func (v *view) HasAchievement(ctx context.Context, p engine.ProcessorID, planName string, periodStart, periodEnd time.Time) (bool, error) {
	var count int
	err := v.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bonus_payments
		 WHERE processor_id = $1 AND kind = $2 AND plan_name = $3
		   AND status != $4 AND period_start >= $5 AND period_start < $6`,
		string(p), string(engine.PaymentAchievement), planName,
		string(engine.PaymentBurned), periodStart.UTC(), periodEnd.UTC()).Scan(&count)
	return count > 0, err
}

// =============================================================================
// EXTRA QUERIES - used by the surrounding admin app, not the engine
// =============================================================================

// PutShift inserts or updates a shift record. Shifts are managed by the
// admin app; the engine only reads them.
func (s *Store) PutShift(ctx context.Context, sh engine.Shift) error {
	var actualStart, actualEnd any
	if !sh.ActualStart.IsZero() {
		actualStart = sh.ActualStart.UTC()
	}
	if !sh.ActualEnd.IsZero() {
		actualEnd = sh.ActualEnd.UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shifts (
			id, processor_id, shift_type, status,
			scheduled_start, scheduled_end, actual_start, actual_end
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			shift_type = EXCLUDED.shift_type,
			status = EXCLUDED.status,
			scheduled_start = EXCLUDED.scheduled_start,
			scheduled_end = EXCLUDED.scheduled_end,
			actual_start = EXCLUDED.actual_start,
			actual_end = EXCLUDED.actual_end`,
		string(sh.ID), string(sh.ProcessorID), string(sh.Type), string(sh.Status),
		sh.ScheduledStart.UTC(), sh.ScheduledEnd.UTC(), actualStart, actualEnd)
	return err
}

// ListPayments returns all bonus payments for a processor, oldest first.
func (s *Store) ListPayments(ctx context.Context, p engine.ProcessorID) ([]engine.BonusPayment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, processor_id, kind, amount::text, deposit_id, plan_name,
		       period_start, period_end, shift_type, hold_until, status, created_at
		  FROM bonus_payments
		 WHERE processor_id = $1
		 ORDER BY created_at`,
		string(p))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []engine.BonusPayment
	for rows.Next() {
		var bp engine.BonusPayment
		var amount string
		var depositID, planName, shiftType sql.NullString
		var holdUntil sql.NullTime

		err := rows.Scan(&bp.ID, &bp.ProcessorID, &bp.Kind, &amount,
			&depositID, &planName, &bp.PeriodStart, &bp.PeriodEnd,
			&shiftType, &holdUntil, &bp.Status, &bp.CreatedAt)
		if err != nil {
			return nil, err
		}
		if bp.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if holdUntil.Valid {
			bp.HoldUntil = holdUntil.Time
		}
		bp.DepositID = engine.DepositID(depositID.String)
		bp.PlanName = planName.String
		bp.ShiftType = engine.ShiftType(shiftType.String)
		result = append(result, bp)
	}
	return result, rows.Err()
}
