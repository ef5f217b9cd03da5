/*
orchestrator.go - Per-submission sequencing of the incentive pipeline

PURPOSE:
  The entry point invoked once per deposit submission. Sequences:

    validate -> [lock processor] duplicate check -> shift resolution ->
    commission split -> deposit insert -> shift-wide reallocation ->
    motivation extras -> hold scheduling [unlock] -> monthly pass

  The monthly pass runs after the lock is released; its failures (and all
  downstream bonus-calculation failures) are best effort and never fail
  the submission. The caller gets either a persisted deposit with its
  computed bonus, or a validation/duplicate error with nothing persisted.

CONCURRENCY:
  Everything that reads or writes the shift's deposit set runs inside
  WithProcessorLock. Stores that detect a conflict instead of blocking
  return ErrConcurrentModification and the whole locked section is
  retried with a fresh read of the deposit set; reallocation is
  idempotent over a consistent snapshot, so the retry is safe.
*/
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// submitRetries bounds retry attempts after a store-reported conflict.
const submitRetries = 3

// SubmitRequest is one deposit submission.
type SubmitRequest struct {
	ProcessorID   ProcessorID
	PayerIdentity string
	Amount        decimal.Decimal
	Currency      string

	Offer         string
	Geo           string
	PaymentMethod string
	Notes         string

	// At overrides the submission time; zero means the engine clock.
	At time.Time
}

// Engine wires the incentive components over the storage ports.
type Engine struct {
	store LockingStore
	ref   ReferenceData
	log   *zap.Logger

	clock     *ShiftClock
	guard     *DuplicateGuard
	allocator *Allocator
	motivator *MotivationEvaluator
	monthly   *MonthlyEvaluator
	holds     *HoldScheduler

	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithDuplicateWindow overrides the trailing duplicate-guard window.
func WithDuplicateWindow(w time.Duration) Option {
	return func(e *Engine) { e.guard.Window = w }
}

// WithNow overrides the engine clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine over the given store and reference data.
func New(store LockingStore, ref ReferenceData, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		ref:       ref,
		log:       log,
		clock:     &ShiftClock{Ref: ref, Log: log},
		guard:     &DuplicateGuard{Window: DefaultDuplicateWindow},
		allocator: &Allocator{Ref: ref, Log: log},
		motivator: &MotivationEvaluator{Ref: ref, Log: log},
		monthly:   &MonthlyEvaluator{Ref: ref, Log: log},
		holds:     &HoldScheduler{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit processes one deposit submission end to end and returns the
// persisted deposit with its computed bonus fields.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*Deposit, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	// Normalize before anything persists or matches: "usd" and "USD"
	// must be the same deposit to the duplicate guard.
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	req.PayerIdentity = strings.TrimSpace(req.PayerIdentity)

	now := req.At
	if now.IsZero() {
		now = e.now()
	}

	var deposit *Deposit
	var err error
	for attempt := 0; attempt < submitRetries; attempt++ {
		deposit, err = e.submitLocked(ctx, req, now)
		if err == nil || !IsRetryable(err) {
			break
		}
		e.log.Warn("shift conflict during submission, retrying",
			zap.String("processor", string(req.ProcessorID)),
			zap.Int("attempt", attempt+1))
	}
	if err != nil {
		return nil, err
	}

	// Independent second pass; never fails the submission.
	if merr := e.monthly.Evaluate(ctx, e.store, req.ProcessorID, now); merr != nil {
		e.log.Error("monthly achievement pass failed, deposit unaffected",
			zap.String("processor", string(req.ProcessorID)),
			zap.String("deposit", string(deposit.ID)),
			zap.Error(merr))
	}

	return deposit, nil
}

func (e *Engine) submitLocked(ctx context.Context, req SubmitRequest, now time.Time) (*Deposit, error) {
	var deposit *Deposit

	err := e.store.WithProcessorLock(ctx, req.ProcessorID, func(s Store) error {
		if err := e.guard.Check(ctx, s, req.ProcessorID, req.PayerIdentity, req.Amount, req.Currency, now); err != nil {
			return err
		}

		res, err := e.clock.Resolve(ctx, s, now, req.ProcessorID)
		if err != nil {
			return err
		}

		// Cumulative window: the active shift's start, or the accounting
		// day when no shift is open.
		windowStart := res.DayStart
		shiftType := res.ShiftType
		if res.ActiveShift != nil {
			windowStart = res.ActiveShift.Start()
			shiftType = res.ActiveShift.Type
		}
		// A shift activated ahead of its scheduled start would put the
		// window in the future and exclude the deposit being created.
		if windowStart.After(now) {
			windowStart = now
		}

		commissionPct := e.ref.CommissionPercent()
		commission := PercentOf(req.Amount, commissionPct)

		deposit = &Deposit{
			ID:                DepositID(uuid.NewString()),
			ProcessorID:       req.ProcessorID,
			PayerIdentity:     req.PayerIdentity,
			Amount:            req.Amount,
			Currency:          req.Currency,
			CreatedAt:         now,
			CommissionPercent: commissionPct,
			CommissionAmount:  commission,
			NetEarnings:       req.Amount.Sub(commission),
			Offer:             req.Offer,
			Geo:               req.Geo,
			PaymentMethod:     req.PaymentMethod,
			Notes:             req.Notes,
		}
		if err := s.CreateDeposit(ctx, deposit); err != nil {
			return err
		}

		alloc, err := e.allocator.Reallocate(ctx, s, req.ProcessorID, shiftType, windowStart)
		if err != nil {
			return err
		}

		bonus := alloc.Shares[deposit.ID]
		rate := decimal.Zero
		if alloc.TierFound {
			rate = alloc.Tier.Percent
		}

		// Motivation extras are independent of the grid tier and apply
		// only to the triggering deposit, never retroactively.
		share := deposit.Amount.Div(alloc.Cumulative)
		extra := e.motivator.Evaluate(ctx, s, MotivationInput{
			ProcessorID:  req.ProcessorID,
			Now:          now,
			DayStart:     res.DayStart,
			ShiftCum:     alloc.Cumulative,
			DepositShare: share,
		})
		if extra.GreaterThan(decimal.Zero) {
			bonus = bonus.Add(extra)
			if err := s.UpdateDepositBonus(ctx, deposit.ID, rate, bonus); err != nil {
				// Same policy as reallocation: log and keep going.
				e.log.Error("failed to persist motivation extra",
					zap.String("deposit", string(deposit.ID)),
					zap.Error(err))
				bonus = alloc.Shares[deposit.ID]
			}
		}
		deposit.BonusRate = rate
		deposit.BonusAmount = bonus

		if _, err := e.holds.Schedule(ctx, s, deposit, shiftType, res.DayStart); err != nil {
			// The bonus stays on the deposit; the payment is reconciled on
			// the next pass over this shift.
			e.log.Error("failed to create held bonus payment",
				zap.String("deposit", string(deposit.ID)),
				zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deposit, nil
}

// validate rejects malformed submissions before any computation.
func validate(req SubmitRequest) error {
	verr := &ValidationError{}
	if strings.TrimSpace(string(req.ProcessorID)) == "" {
		verr.add("processorId", "must not be empty")
	}
	payer := strings.TrimSpace(req.PayerIdentity)
	if payer == "" {
		verr.add("payerIdentity", "must not be empty")
	} else if strings.ContainsAny(payer, " \t\n") {
		verr.add("payerIdentity", "must not contain whitespace")
	}
	if !req.Amount.GreaterThan(decimal.Zero) {
		verr.add("amount", "must be positive")
	}
	if len(strings.TrimSpace(req.Currency)) != 3 {
		verr.add("currency", "must be a 3-letter code")
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}
