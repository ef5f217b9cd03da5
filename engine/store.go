/*
store.go - Persistence and reference-data ports

PURPOSE:
  Defines the interfaces between the engine and the surrounding admin
  application's storage. The engine consumes persisted records (deposits,
  shifts, grid tiers, motivation rules, monthly plans) and emits deposit
  and bonus-payment records through the same port. Persistence technology
  is the implementation's concern.

KEY INTERFACES:
  Store:         record reads/writes used by one submission
  LockingStore:  Store plus per-processor serialization
  ReferenceData: externally managed configuration, read-only

SERIALIZATION CONTRACT:
  Duplicate check, deposit insert, and the shift-wide reallocation are a
  multi-step read-modify-write over shared storage. Two concurrent
  submissions for the same processor interleaving would let one pass
  overwrite the other's freshly read cumulative sum. WithProcessorLock
  MUST serialize all mutations to a given processor's deposit set; an
  implementation that cannot guarantee it must return
  ErrConcurrentModification so the orchestrator can retry.

IMPLEMENTATIONS:
  - engine/store: in-memory, for tests and development
  - store/sqlite: SQLite, per-processor mutex plus one transaction
  - store/postgres: PostgreSQL with advisory transaction locks

SEE ALSO:
  - orchestrator.go: the only caller of WithProcessorLock
  - grid/: static ReferenceData built from configuration
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - record persistence port
// =============================================================================

// Store is the record persistence port used by one deposit submission.
// The engine never deletes records; deposit bonus fields are the only
// mutable state it rewrites.
type Store interface {
	// CreateDeposit persists a new deposit record.
	CreateDeposit(ctx context.Context, d *Deposit) error

	// UpdateDepositBonus rewrites the bonus fields of an existing deposit.
	// Returns ErrDepositNotFound if the deposit does not exist.
	UpdateDepositBonus(ctx context.Context, id DepositID, rate, amount decimal.Decimal) error

	// DepositsSince returns the processor's deposits with CreatedAt >= from,
	// ordered by creation time ascending.
	DepositsSince(ctx context.Context, p ProcessorID, from time.Time) ([]Deposit, error)

	// CountDeposits returns the processor's all-time deposit count.
	CountDeposits(ctx context.Context, p ProcessorID) (int, error)

	// SumDeposits returns the processor's deposit volume in [from, to).
	SumDeposits(ctx context.Context, p ProcessorID, from, to time.Time) (decimal.Decimal, error)

	// HasRecentDeposit reports whether the processor already recorded a
	// deposit with the same payer identity, amount and currency at or
	// after since.
	HasRecentDeposit(ctx context.Context, p ProcessorID, payer string, amount decimal.Decimal, currency string, since time.Time) (bool, error)

	// ActiveShift returns the processor's shift with status active, or
	// (nil, nil) when none is open.
	ActiveShift(ctx context.Context, p ProcessorID) (*Shift, error)

	// CreatePayment persists a new bonus payment.
	CreatePayment(ctx context.Context, bp *BonusPayment) error

	// HasAchievement reports whether a non-burned achievement payment for
	// the plan already exists for the processor inside the period.
	HasAchievement(ctx context.Context, p ProcessorID, planName string, periodStart, periodEnd time.Time) (bool, error)
}

// LockingStore serializes submissions per processor. fn receives a Store
// whose writes are committed only if fn returns nil.
type LockingStore interface {
	Store

	// WithProcessorLock runs fn while holding the logical lock for the
	// processor's deposit set. All engine mutations happen inside fn.
	WithProcessorLock(ctx context.Context, p ProcessorID, fn func(Store) error) error
}

// =============================================================================
// REFERENCE DATA - externally managed configuration
// =============================================================================

// ReferenceData is the read-only configuration port: shift windows, the
// bonus grid, motivation rules, monthly plans and commission rates are
// managed outside the engine and injected here, never queried ad hoc
// mid-algorithm.
type ReferenceData interface {
	// ShiftWindows returns the configured shift-type time windows.
	ShiftWindows() []ShiftWindow

	// DefaultShiftType is the fallback when no window matches (a gap in
	// configuration). Availability over strictness: never an error.
	DefaultShiftType() ShiftType

	// DayStartHour is the reference hour anchoring the 24h accounting
	// window. Business days may be offset from calendar midnight.
	DayStartHour() int

	// Tiers returns the active bonus grid rows for a shift type.
	Tiers(shiftType ShiftType) []BonusGridTier

	// MotivationRules returns the active conditional bonus rules.
	MotivationRules() []MotivationRule

	// MonthlyPlans returns the configured monthly milestones.
	MonthlyPlans() []MonthlyPlan

	// CommissionPercent is the platform commission withheld per deposit.
	CommissionPercent() decimal.Decimal
}
