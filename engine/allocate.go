/*
allocate.go - Proportional shift-wide bonus reallocation

PURPOSE:
  Keeps every deposit in a shift consistent with the latest tier decision.
  After each new deposit the full deposit set is re-read, the tier is
  re-selected against the fresh cumulative amount, and every deposit's
  bonus share is rewritten so the shares sum to the shift-level bonus.

  Bonuses already recorded in the shift are silently revised up or down
  as later deposits move the cumulative amount across tier boundaries.
  Shift-level incentive, not deposit-level: BonusAmount stays provisional
  until the shift closes.

IDEMPOTENCE:
  The pass is a pure function of the deposit set snapshot. Re-running it
  on an unchanged set rewrites identical values, so retries after a
  transient store failure are safe as long as the set is re-read in full.

PARTIAL FAILURE:
  A store error while updating one deposit is logged with the deposit ID
  and the loop continues. Partially applied reallocation beats aborting
  and leaving the rest of the shift on a stale tier; the next deposit in
  the shift re-runs the pass and converges.
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AllocationResult reports one reallocation pass over a shift.
type AllocationResult struct {
	ShiftType  ShiftType
	Cumulative decimal.Decimal
	TotalBonus decimal.Decimal
	Tier       BonusGridTier
	TierFound  bool
	Shares     map[DepositID]decimal.Decimal
	FailedIDs  []DepositID
}

// Allocator recomputes per-deposit bonus shares for a whole shift.
type Allocator struct {
	Ref ReferenceData
	Log *zap.Logger
}

// Reallocate re-walks every deposit the processor created at or after
// windowStart, re-selects the tier and persists fresh bonus shares.
func (a *Allocator) Reallocate(ctx context.Context, store Store, p ProcessorID, shiftType ShiftType, windowStart time.Time) (AllocationResult, error) {
	deposits, err := store.DepositsSince(ctx, p, windowStart)
	if err != nil {
		return AllocationResult{}, err
	}

	res := AllocationResult{
		ShiftType: shiftType,
		Shares:    make(map[DepositID]decimal.Decimal, len(deposits)),
	}
	for _, d := range deposits {
		res.Cumulative = res.Cumulative.Add(d.Amount)
	}

	tier, found := SelectTier(a.Ref.Tiers(shiftType), shiftType, res.Cumulative)
	res.Tier, res.TierFound = tier, found

	if !found {
		// Explicit revocation: previously computed bonuses are reset.
		a.Log.Info("no bonus tier matches cumulative amount, zeroing shift bonuses",
			zap.String("processor", string(p)),
			zap.String("shift_type", string(shiftType)),
			zap.String("cumulative", res.Cumulative.String()))
		for _, d := range deposits {
			res.Shares[d.ID] = decimal.Zero
			if err := store.UpdateDepositBonus(ctx, d.ID, decimal.Zero, decimal.Zero); err != nil {
				a.logUpdateFailure(d.ID, err)
				res.FailedIDs = append(res.FailedIDs, d.ID)
			}
		}
		return res, nil
	}

	res.TotalBonus = ShiftBonus(tier, res.Cumulative)

	for _, d := range deposits {
		share := d.Amount.Div(res.Cumulative)
		bonus := res.TotalBonus.Mul(share)
		res.Shares[d.ID] = bonus
		if err := store.UpdateDepositBonus(ctx, d.ID, tier.Percent, bonus); err != nil {
			a.logUpdateFailure(d.ID, err)
			res.FailedIDs = append(res.FailedIDs, d.ID)
		}
	}
	return res, nil
}

func (a *Allocator) logUpdateFailure(id DepositID, err error) {
	a.Log.Error("reallocation failed to update deposit, continuing with remainder",
		zap.String("deposit", string(id)),
		zap.Error(err))
}
