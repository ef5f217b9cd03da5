/*
tiers.go - Bonus grid tier selection

PURPOSE:
  Selects the single best-matching tier from the configured bonus grid
  for a shift type and cumulative shift amount. Pure: same inputs always
  yield the same tier.

SELECTION RULES:
  - A tier matches when the cumulative amount falls in [min, max)
    (max absent = unbounded).
  - Overlapping ranges are possible under misconfiguration; the tier with
    the highest bonus percentage wins, favoring the processor.
  - No match is a defined zero-bonus outcome, not an error.
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// SelectTier picks the matching tier with the highest percentage for the
// cumulative amount, or (zero, false) when no tier matches.
func SelectTier(tiers []BonusGridTier, shiftType ShiftType, cumulative decimal.Decimal) (BonusGridTier, bool) {
	var best BonusGridTier
	found := false
	for _, t := range tiers {
		if !t.Active || t.ShiftType != shiftType {
			continue
		}
		if !t.Matches(cumulative) {
			continue
		}
		if !found || t.Percent.GreaterThan(best.Percent) {
			best = t
			found = true
		}
	}
	return best, found
}

// ShiftBonus computes the shift-level bonus total for a tier and
// cumulative amount: cumulative * percent / 100 plus the fixed kicker if
// unlocked. Computed absolutely on every pass, so repeated reallocation
// never accumulates the kicker twice.
func ShiftBonus(tier BonusGridTier, cumulative decimal.Decimal) decimal.Decimal {
	return PercentOf(cumulative, tier.Percent).Add(tier.FixedKicker(cumulative))
}
