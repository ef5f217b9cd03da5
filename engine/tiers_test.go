package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/incentive-engine/engine"
)

// =============================================================================
// TIER SELECTION TESTS
// =============================================================================

func TestSelectTier_BoundaryContainment(t *testing.T) {
	// GIVEN: Day tiers [0, 1000) -> 5% and [1000, inf) -> 8%
	// WHEN: Selecting at the boundary and on either side of it
	// THEN: Ranges are min-inclusive, max-exclusive

	tiers := dayRef().Tiers(engine.ShiftDay)

	tier, ok := engine.SelectTier(tiers, engine.ShiftDay, dec("999.99"))
	assert.True(t, ok)
	assert.True(t, tier.Percent.Equal(dec("5")), "just below the breakpoint stays on the base tier")

	tier, ok = engine.SelectTier(tiers, engine.ShiftDay, dec("1000"))
	assert.True(t, ok)
	assert.True(t, tier.Percent.Equal(dec("8")), "the breakpoint itself belongs to the upper tier")

	tier, ok = engine.SelectTier(tiers, engine.ShiftDay, dec("0"))
	assert.True(t, ok)
	assert.True(t, tier.Percent.Equal(dec("5")), "zero cumulative matches the base tier")
}

func TestSelectTier_NoMatchIsNotAnError(t *testing.T) {
	// GIVEN: A grid whose only tier starts at 500
	// WHEN: Selecting with a cumulative amount of 100
	// THEN: No tier is returned, and that is a defined zero-bonus outcome

	min := dec("500")
	tiers := []engine.BonusGridTier{
		{ShiftType: engine.ShiftDay, MinAmount: min, Percent: dec("5"), Active: true},
	}

	_, ok := engine.SelectTier(tiers, engine.ShiftDay, dec("100"))
	assert.False(t, ok)
}

func TestSelectTier_SkipsInactiveAndForeignShiftTiers(t *testing.T) {
	// GIVEN: An inactive day tier and an active night tier
	// WHEN: Selecting for the day shift
	// THEN: Neither applies

	tiers := []engine.BonusGridTier{
		{ShiftType: engine.ShiftDay, MinAmount: dec("0"), Percent: dec("5"), Active: false},
		{ShiftType: engine.ShiftNight, MinAmount: dec("0"), Percent: dec("9"), Active: true},
	}

	_, ok := engine.SelectTier(tiers, engine.ShiftDay, dec("100"))
	assert.False(t, ok)
}

func TestSelectTier_OverlappingTiers_HighestPercentWins(t *testing.T) {
	// GIVEN: Two active tiers whose ranges overlap (misconfiguration)
	// WHEN: A cumulative amount falls into both
	// THEN: The processor gets the higher percentage

	max := dec("2000")
	tiers := []engine.BonusGridTier{
		{ShiftType: engine.ShiftDay, MinAmount: dec("0"), MaxAmount: &max, Percent: dec("5"), Active: true},
		{ShiftType: engine.ShiftDay, MinAmount: dec("500"), Percent: dec("7"), Active: true},
	}

	tier, ok := engine.SelectTier(tiers, engine.ShiftDay, dec("800"))
	assert.True(t, ok)
	assert.True(t, tier.Percent.Equal(dec("7")))
}

// =============================================================================
// SHIFT BONUS TESTS
// =============================================================================

func TestShiftBonus_FixedKickerUnlocksAtThreshold(t *testing.T) {
	// GIVEN: A 9% tier with a 50 kicker unlocked at 3000 cumulative
	// WHEN: Computing the shift bonus below and above the unlock threshold
	// THEN: The kicker is added exactly once, and only above the threshold

	fixed := dec("50")
	min := dec("3000")
	tier := engine.BonusGridTier{
		ShiftType:     engine.ShiftNight,
		MinAmount:     dec("1000"),
		Percent:       dec("9"),
		FixedBonus:    &fixed,
		FixedBonusMin: &min,
		Active:        true,
	}

	// 2000 * 9% = 180, kicker still locked
	assertDecimal(t, dec("180"), engine.ShiftBonus(tier, dec("2000")))

	// 3000 * 9% = 270, kicker unlocked: 320
	assertDecimal(t, dec("320"), engine.ShiftBonus(tier, dec("3000")))
}

func TestShiftBonus_IsAbsoluteNotIncremental(t *testing.T) {
	// GIVEN: A tier with an unlocked kicker
	// WHEN: Computing the bonus repeatedly for the same cumulative amount
	// THEN: The result is identical every time; the kicker never compounds

	fixed := dec("50")
	tier := engine.BonusGridTier{
		ShiftType:  engine.ShiftDay,
		MinAmount:  dec("0"),
		Percent:    dec("8"),
		FixedBonus: &fixed,
		Active:     true,
	}

	first := engine.ShiftBonus(tier, dec("4000"))
	second := engine.ShiftBonus(tier, dec("4000"))
	assertDecimal(t, first, second)
	assertDecimal(t, dec("370"), first)
}
