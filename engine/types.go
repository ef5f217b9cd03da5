/*
Package engine implements the shift-based incentive computation engine.

PURPOSE:
  For every incoming deposit the engine decides which tiered bonus rate
  applies to the processor's current shift, redistributes the shift-level
  bonus proportionally across every deposit already recorded in the shift,
  layers conditional motivation bonuses and monthly achievement bonuses on
  top, and schedules a hold period before the computed bonus becomes
  payable.

KEY CONCEPTS IN THIS FILE (types.go):
  - Deposit: one incentivized transaction; its bonus fields are mutable
    and get rewritten whenever a later deposit changes the shift tier
  - Shift: a bounded work session; the engine only reads active shifts
  - BonusGridTier: cumulative-amount range -> bonus percentage mapping
  - MotivationRule: conditional bonus layered on top of the grid tier
  - MonthlyPlan: volume milestone awarded at most once per month
  - BonusPayment: the payable record (held / approved / paid / burned)

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal, never float64
  2. Type safety: typed string IDs prevent mixing processor/deposit IDs
  3. Closed rule set: motivation conditions are a tagged union dispatched
     exhaustively, not an open-ended payload
  4. Provisional bonuses: a deposit's BonusAmount is provisional until the
     shift closes; consumers must not treat it as final

SEE ALSO:
  - store.go: persistence and reference-data ports
  - orchestrator.go: the per-submission entry point
  - allocate.go: proportional shift reallocation
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProcessorID string
type DepositID string
type ShiftID string
type PaymentID string

// =============================================================================
// SHIFTS
// =============================================================================

// ShiftType buckets the working day. The set is configuration-driven;
// these constants cover the default schedule.
type ShiftType string

const (
	ShiftMorning ShiftType = "morning"
	ShiftDay     ShiftType = "day"
	ShiftNight   ShiftType = "night"
)

type ShiftStatus string

const (
	ShiftScheduled ShiftStatus = "scheduled"
	ShiftActive    ShiftStatus = "active"
	ShiftCompleted ShiftStatus = "completed"
	ShiftMissed    ShiftStatus = "missed"
)

// Shift is a bounded work session for one processor. The engine never
// mutates a shift; it only reads active ones to bound the cumulative sum.
type Shift struct {
	ID             ShiftID
	ProcessorID    ProcessorID
	Type           ShiftType
	Status         ShiftStatus
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	ActualStart    time.Time
	ActualEnd      time.Time
}

// Start returns the actual start when the shift was opened, falling back
// to the scheduled start otherwise. Deposits created at or after this
// instant count toward the shift's cumulative amount.
func (s *Shift) Start() time.Time {
	if !s.ActualStart.IsZero() {
		return s.ActualStart
	}
	return s.ScheduledStart
}

// ShiftWindow maps an hour-of-day range to a shift type. A window whose
// end hour is not after its start hour wraps past midnight.
type ShiftWindow struct {
	Type      ShiftType
	StartHour int // inclusive, 0-23
	EndHour   int // exclusive, 0-24
}

// Contains reports whether the given hour of day falls inside the window.
func (w ShiftWindow) Contains(hour int) bool {
	if w.StartHour < w.EndHour {
		return hour >= w.StartHour && hour < w.EndHour
	}
	// Wrapping window, e.g. 22 -> 6.
	return hour >= w.StartHour || hour < w.EndHour
}

// =============================================================================
// DEPOSITS
// =============================================================================

// Deposit is one incentivized transaction. BonusRate and BonusAmount are
// rewritten by reallocation whenever a later deposit in the same shift
// changes the applicable tier. Deposits are never deleted by the engine.
type Deposit struct {
	ID            DepositID
	ProcessorID   ProcessorID
	PayerIdentity string
	Amount        decimal.Decimal
	Currency      string
	CreatedAt     time.Time

	BonusRate   decimal.Decimal // percentage of the currently applied tier
	BonusAmount decimal.Decimal // this deposit's share of the shift bonus

	CommissionPercent decimal.Decimal
	CommissionAmount  decimal.Decimal
	NetEarnings       decimal.Decimal

	// Optional intake metadata, passed through untouched.
	Offer         string
	Geo           string
	PaymentMethod string
	Notes         string
}

// =============================================================================
// BONUS GRID
// =============================================================================

// BonusGridTier is one row of the configured bonus grid. MaxAmount nil
// means the range is unbounded above. The fixed kicker, when present,
// unlocks only once the cumulative amount reaches FixedBonusMin and is
// added to the shift total, not per deposit.
type BonusGridTier struct {
	ShiftType     ShiftType
	MinAmount     decimal.Decimal
	MaxAmount     *decimal.Decimal
	Percent       decimal.Decimal
	FixedBonus    *decimal.Decimal
	FixedBonusMin *decimal.Decimal
	Active        bool
}

// Matches reports whether the cumulative amount falls in [MinAmount, MaxAmount).
func (t BonusGridTier) Matches(cumulative decimal.Decimal) bool {
	if cumulative.LessThan(t.MinAmount) {
		return false
	}
	if t.MaxAmount != nil && cumulative.GreaterThanOrEqual(*t.MaxAmount) {
		return false
	}
	return true
}

// FixedKicker returns the unlocked fixed bonus component for the given
// cumulative amount, or zero when absent or still locked.
func (t BonusGridTier) FixedKicker(cumulative decimal.Decimal) decimal.Decimal {
	if t.FixedBonus == nil {
		return decimal.Zero
	}
	if t.FixedBonusMin != nil && cumulative.LessThan(*t.FixedBonusMin) {
		return decimal.Zero
	}
	return *t.FixedBonus
}

// =============================================================================
// MOTIVATION RULES
// =============================================================================

type RuleKind string

const (
	RulePercentOfShift RuleKind = "percent_of_shift"
	RuleFixedAmount    RuleKind = "fixed_amount"
)

// ConditionType enumerates the closed set of motivation conditions.
// Adding a variant requires extending the dispatcher in motivation.go;
// unknown types are an evaluation error, not silent success.
type ConditionType string

const (
	CondMinDepositCount ConditionType = "min_deposit_count"
	CondMinDailyAmount  ConditionType = "min_daily_amount"
)

// RuleCondition is the tagged-union condition payload.
type RuleCondition struct {
	Type      ConditionType
	MinCount  int             // CondMinDepositCount
	MinAmount decimal.Decimal // CondMinDailyAmount
}

// MotivationRule is an independent conditional bonus layered on top of
// the grid-tier bonus. Rules stack; each evaluates in isolation.
type MotivationRule struct {
	ID        string
	Name      string
	Kind      RuleKind
	Value     decimal.Decimal // percent for RulePercentOfShift, amount for RuleFixedAmount
	Condition RuleCondition
	Active    bool
}

// =============================================================================
// MONTHLY PLANS
// =============================================================================

// MonthlyPlan is a volume milestone. At most one plan (the highest
// threshold met) applies per processor per calendar month.
type MonthlyPlan struct {
	Name      string
	MinAmount decimal.Decimal
	Percent   decimal.Decimal
}

// =============================================================================
// BONUS PAYMENTS
// =============================================================================

type PaymentKind string

const (
	PaymentDeposit     PaymentKind = "deposit"
	PaymentAchievement PaymentKind = "achievement"
)

type PaymentStatus string

const (
	PaymentHeld     PaymentStatus = "held"
	PaymentApproved PaymentStatus = "approved"
	PaymentPaid     PaymentStatus = "paid"
	PaymentBurned   PaymentStatus = "burned"
)

// BonusPayment is the payable record produced by the engine. Deposit
// bonuses start held until HoldUntil; achievement bonuses are approved
// immediately.
type BonusPayment struct {
	ID          PaymentID
	ProcessorID ProcessorID
	Kind        PaymentKind
	Amount      decimal.Decimal
	DepositID   DepositID // set for deposit bonuses
	PlanName    string    // set for achievement bonuses
	PeriodStart time.Time
	PeriodEnd   time.Time
	ShiftType   ShiftType
	HoldUntil   time.Time
	Status      PaymentStatus
	CreatedAt   time.Time
}

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

var hundred = decimal.NewFromInt(100)

// PercentOf returns amount * percent / 100.
func PercentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred)
}

// MustParseDecimal parses s, returning zero on malformed input. Intended
// for static configuration literals only.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
