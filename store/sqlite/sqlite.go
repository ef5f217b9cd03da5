/*
Package sqlite provides a SQLite-backed implementation of the engine's
storage ports.

PURPOSE:
  Implements engine.LockingStore using SQLite. Suitable for single-node
  deployments and integration tests; store/postgres carries the same
  schema to PostgreSQL for shared deployments.

KEY TABLES:
  deposits:       incentivized transactions; bonus columns are the only
                  mutable fields
  shifts:         work sessions, written by the surrounding admin app
  bonus_payments: held/approved payable records

SERIALIZATION:
  WithProcessorLock takes a process-level mutex per processor and runs fn
  inside a single transaction on the store's sole connection, so a second
  writer cannot interleave with the read-reallocate-write sequence.

TIME AND MONEY ENCODING:
  Timestamps are stored as fixed-width UTC text so lexicographic order
  equals chronological order. Monetary values are decimal text; sums are
  computed in Go with shopspring/decimal rather than SQL floats.

WAL MODE:
  The database is opened with WAL so readers do not block the writer.

USAGE:
  store, err := sqlite.New("./data/incentive.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  eng := engine.New(store, ref, logger)

SEE ALSO:
  - engine/store.go: port definitions and the serialization contract
  - store/postgres: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/engine"
)

// timeLayout is fixed-width so stored text sorts chronologically.
const timeLayout = "2006-01-02 15:04:05.000000000"

func encodeTime(t time.Time) string          { return t.UTC().Format(timeLayout) }
func decodeTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

// Store implements engine.LockingStore using SQLite.
type Store struct {
	db    *sql.DB
	locks sync.Map // engine.ProcessorID -> *sync.Mutex
}

// New opens (and migrates) the database at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps transaction semantics simple and makes
	// ":memory:" behave (each pool connection would get its own database).
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deposits (
		id TEXT PRIMARY KEY,
		processor_id TEXT NOT NULL,
		payer_identity TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		created_at TEXT NOT NULL,
		bonus_rate TEXT NOT NULL DEFAULT '0',
		bonus_amount TEXT NOT NULL DEFAULT '0',
		commission_percent TEXT NOT NULL DEFAULT '0',
		commission_amount TEXT NOT NULL DEFAULT '0',
		net_earnings TEXT NOT NULL DEFAULT '0',
		offer TEXT,
		geo TEXT,
		payment_method TEXT,
		notes TEXT
	);

	-- Hot path: cumulative-sum reads per processor ordered by time.
	CREATE INDEX IF NOT EXISTS idx_deposits_processor_created
		ON deposits(processor_id, created_at);

	-- Duplicate-guard lookups.
	CREATE INDEX IF NOT EXISTS idx_deposits_dup_guard
		ON deposits(processor_id, payer_identity, currency, created_at);

	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		processor_id TEXT NOT NULL,
		shift_type TEXT NOT NULL,
		status TEXT NOT NULL,
		scheduled_start TEXT NOT NULL,
		scheduled_end TEXT NOT NULL,
		actual_start TEXT,
		actual_end TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_shifts_processor_status
		ON shifts(processor_id, status);

	CREATE TABLE IF NOT EXISTS bonus_payments (
		id TEXT PRIMARY KEY,
		processor_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		deposit_id TEXT,
		plan_name TEXT,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		shift_type TEXT,
		hold_until TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_processor
		ON bonus_payments(processor_id, created_at);

	-- Monthly-achievement idempotence lookups.
	CREATE INDEX IF NOT EXISTS idx_payments_achievement
		ON bonus_payments(processor_id, kind, plan_name, period_start);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// QUERIER - shared between the pooled DB and a pinned transaction
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// view implements engine.Store over a querier.
type view struct {
	q querier
}

func (s *Store) view() *view { return &view{q: s.db} }

// =============================================================================
// STORE METHODS (delegating to the shared view)
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

// WithProcessorLock serializes fn per processor and wraps it in a single
// transaction so the read-reallocate-write sequence is atomic.
func (s *Store) WithProcessorLock(ctx context.Context, p engine.ProcessorID, fn func(engine.Store) error) error {
	muAny, _ := s.locks.LoadOrStore(p, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(d.ID), string(d.ProcessorID), d.PayerIdentity,
		d.Amount.String(), d.Currency, encodeTime(d.CreatedAt),
		d.BonusRate.String(), d.BonusAmount.String(),
		d.CommissionPercent.String(), d.CommissionAmount.String(),
		d.NetEarnings.String(), d.Offer, d.Geo, d.PaymentMethod, d.Notes)
	return err
}

func (v *view) UpdateDepositBonus(ctx context.Context, id engine.DepositID, rate, amount decimal.Decimal) error {
	res, err := v.q.ExecContext(ctx,
		`UPDATE deposits SET bonus_rate = ?, bonus_amount = ? WHERE id = ?`,
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
		SELECT id, processor_id, payer_identity, amount, currency, created_at,
		       bonus_rate, bonus_amount, commission_percent, commission_amount,
		       net_earnings, offer, geo, payment_method, notes
		  FROM deposits
		 WHERE processor_id = ? AND created_at >= ?
		 ORDER BY created_at`,
		string(p), encodeTime(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []engine.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func scanDeposit(rows *sql.Rows) (engine.Deposit, error) {
	var d engine.Deposit
	var amount, createdAt, rate, bonus, commPct, commAmt, net string
	var offer, geo, method, notes sql.NullString

	err := rows.Scan(&d.ID, &d.ProcessorID, &d.PayerIdentity, &amount,
		&d.Currency, &createdAt, &rate, &bonus, &commPct, &commAmt, &net,
		&offer, &geo, &method, &notes)
	if err != nil {
		return d, err
	}

	if d.Amount, err = decimal.NewFromString(amount); err != nil {
		return d, err
	}
	if d.CreatedAt, err = decodeTime(createdAt); err != nil {
		return d, err
	}
	if d.BonusRate, err = decimal.NewFromString(rate); err != nil {
		return d, err
	}
	if d.BonusAmount, err = decimal.NewFromString(bonus); err != nil {
		return d, err
	}
	if d.CommissionPercent, err = decimal.NewFromString(commPct); err != nil {
		return d, err
	}
	if d.CommissionAmount, err = decimal.NewFromString(commAmt); err != nil {
		return d, err
	}
	if d.NetEarnings, err = decimal.NewFromString(net); err != nil {
		return d, err
	}
	d.Offer, d.Geo, d.PaymentMethod, d.Notes = offer.String, geo.String, method.String, notes.String
	return d, nil
}

func (v *view) CountDeposits(ctx context.Context, p engine.ProcessorID) (int, error) {
	var count int
	err := v.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deposits WHERE processor_id = ?`,
		string(p)).Scan(&count)
	return count, err
}

func (v *view) SumDeposits(ctx context.Context, p engine.ProcessorID, from, to time.Time) (decimal.Decimal, error) {
	rows, err := v.q.QueryContext(ctx, `
		SELECT amount FROM deposits
		 WHERE processor_id = ? AND created_at >= ? AND created_at < ?`,
		string(p), encodeTime(from), encodeTime(to))
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	// Summed in Go: decimal text must not go through SQL float math.
	sum := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(d)
	}
	return sum, rows.Err()
}

func (v *view) HasRecentDeposit(ctx context.Context, p engine.ProcessorID, payer string, amount decimal.Decimal, currency string, since time.Time) (bool, error) {
	rows, err := v.q.QueryContext(ctx, `
		SELECT amount FROM deposits
		 WHERE processor_id = ? AND payer_identity = ? AND currency = ?
		   AND created_at >= ?`,
		string(p), payer, currency, encodeTime(since))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	// Text equality would miss equal amounts at different scales
	// ("100" vs "100.0"); compare as decimals.
	for rows.Next() {
		var stored string
		if err := rows.Scan(&stored); err != nil {
			return false, err
		}
		d, err := decimal.NewFromString(stored)
		if err != nil {
			return false, err
		}
		if d.Equal(amount) {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (v *view) ActiveShift(ctx context.Context, p engine.ProcessorID) (*engine.Shift, error) {
	row := v.q.QueryRowContext(ctx, `
		SELECT id, processor_id, shift_type, status,
		       scheduled_start, scheduled_end, actual_start, actual_end
		  FROM shifts
		 WHERE processor_id = ? AND status = ?
		 ORDER BY scheduled_start DESC
		 LIMIT 1`,
		string(p), string(engine.ShiftActive))

	var s engine.Shift
	var schedStart, schedEnd string
	var actualStart, actualEnd sql.NullString
	err := row.Scan(&s.ID, &s.ProcessorID, &s.Type, &s.Status,
		&schedStart, &schedEnd, &actualStart, &actualEnd)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.ScheduledStart, err = decodeTime(schedStart); err != nil {
		return nil, err
	}
	if s.ScheduledEnd, err = decodeTime(schedEnd); err != nil {
		return nil, err
	}
	if actualStart.Valid && actualStart.String != "" {
		if s.ActualStart, err = decodeTime(actualStart.String); err != nil {
			return nil, err
		}
	}
	if actualEnd.Valid && actualEnd.String != "" {
		if s.ActualEnd, err = decodeTime(actualEnd.String); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

func (v *view) CreatePayment(ctx context.Context, bp *engine.BonusPayment) error {
	holdUntil := ""
	if !bp.HoldUntil.IsZero() {
		holdUntil = encodeTime(bp.HoldUntil)
	}
	_, err := v.q.ExecContext(ctx, `
		INSERT INTO bonus_payments (
			id, processor_id, kind, amount, deposit_id, plan_name,
			period_start, period_end, shift_type, hold_until, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(bp.ID), string(bp.ProcessorID), string(bp.Kind),
		bp.Amount.String(), string(bp.DepositID), bp.PlanName,
		encodeTime(bp.PeriodStart), encodeTime(bp.PeriodEnd),
		string(bp.ShiftType), holdUntil, string(bp.Status),
		encodeTime(bp.CreatedAt))
	return err
}

func (v *view) HasAchievement(ctx context.Context, p engine.ProcessorID, planName string, periodStart, periodEnd time.Time) (bool, error) {
	var count int
	err := v.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bonus_payments
		 WHERE processor_id = ? AND kind = ? AND plan_name = ?
		   AND status != ? AND period_start >= ? AND period_start < ?`,
		string(p), string(engine.PaymentAchievement), planName,
		string(engine.PaymentBurned), encodeTime(periodStart),
		encodeTime(periodEnd)).Scan(&count)
	return count > 0, err
}

// =============================================================================
// EXTRA QUERIES - used by the surrounding admin app, not the engine
// =============================================================================

// PutShift inserts or replaces a shift record. Shifts are managed by the
// admin app; the engine only reads them.
func (s *Store) PutShift(ctx context.Context, sh engine.Shift) error {
	actualStart, actualEnd := "", ""
	if !sh.ActualStart.IsZero() {
		actualStart = encodeTime(sh.ActualStart)
	}
	if !sh.ActualEnd.IsZero() {
		actualEnd = encodeTime(sh.ActualEnd)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO shifts (
			id, processor_id, shift_type, status,
			scheduled_start, scheduled_end, actual_start, actual_end
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(sh.ID), string(sh.ProcessorID), string(sh.Type), string(sh.Status),
		encodeTime(sh.ScheduledStart), encodeTime(sh.ScheduledEnd),
		actualStart, actualEnd)
	return err
}

// ListPayments returns all bonus payments for a processor, oldest first.
func (s *Store) ListPayments(ctx context.Context, p engine.ProcessorID) ([]engine.BonusPayment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, processor_id, kind, amount, deposit_id, plan_name,
		       period_start, period_end, shift_type, hold_until, status, created_at
		  FROM bonus_payments
		 WHERE processor_id = ?
		 ORDER BY created_at`,
		string(p))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []engine.BonusPayment
	for rows.Next() {
		var bp engine.BonusPayment
		var amount, periodStart, periodEnd, createdAt string
		var depositID, planName, shiftType, holdUntil sql.NullString

		err := rows.Scan(&bp.ID, &bp.ProcessorID, &bp.Kind, &amount,
			&depositID, &planName, &periodStart, &periodEnd, &shiftType,
			&holdUntil, &bp.Status, &createdAt)
		if err != nil {
			return nil, err
		}
		if bp.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if bp.PeriodStart, err = decodeTime(periodStart); err != nil {
			return nil, err
		}
		if bp.PeriodEnd, err = decodeTime(periodEnd); err != nil {
			return nil, err
		}
		if bp.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, err
		}
		if holdUntil.Valid && holdUntil.String != "" {
			if bp.HoldUntil, err = decodeTime(holdUntil.String); err != nil {
				return nil, err
			}
		}
		bp.DepositID = engine.DepositID(depositID.String)
		bp.PlanName = planName.String
		bp.ShiftType = engine.ShiftType(shiftType.String)
		result = append(result, bp)
	}
	return result, rows.Err()
}
