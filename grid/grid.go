/*
Package grid provides reference-data configurations for the incentive engine.

PURPOSE:
  Bundles the externally managed configuration the engine depends on -
  shift time windows, bonus grid tiers, motivation rules, monthly plans,
  commission rate - into a StaticReference implementing
  engine.ReferenceData, plus ready-to-use defaults.

AVAILABLE CONFIGURATIONS:
  DefaultShiftWindows:
    - morning 06-14, day 14-22, night 22-06 (wraps midnight)

  StandardGrid:
    - per-shift tier tables; night carries higher percentages and a
      fixed kicker unlocked at higher cumulative volume

  SampleMotivationRules:
    - veteran bonus (min historical deposit count)
    - daily-volume fixed bonus (min same-day cumulative amount)

  DefaultMonthlyPlans:
    - bronze / silver / gold volume milestones

USAGE:
  ref := grid.Defaults()
  eng := engine.New(store, ref, logger)

  // or load from JSON (see factory.go)
  ref, err := grid.ParseReference(jsonBytes)

SEE ALSO:
  - factory.go: JSON to StaticReference conversion
  - engine/store.go: the ReferenceData port
*/
package grid

import (
	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/engine"
)

// =============================================================================
// STATIC REFERENCE - in-memory ReferenceData
// =============================================================================

// StaticReference implements engine.ReferenceData from fixed values.
type StaticReference struct {
	Windows      []engine.ShiftWindow
	DefaultShift engine.ShiftType
	DayHour      int
	GridTiers    []engine.BonusGridTier
	Rules        []engine.MotivationRule
	Plans        []engine.MonthlyPlan
	Commission   decimal.Decimal
}

func (r *StaticReference) ShiftWindows() []engine.ShiftWindow      { return r.Windows }
func (r *StaticReference) DefaultShiftType() engine.ShiftType      { return r.DefaultShift }
func (r *StaticReference) DayStartHour() int                       { return r.DayHour }
func (r *StaticReference) MotivationRules() []engine.MotivationRule { return r.Rules }
func (r *StaticReference) MonthlyPlans() []engine.MonthlyPlan      { return r.Plans }
func (r *StaticReference) CommissionPercent() decimal.Decimal      { return r.Commission }

func (r *StaticReference) Tiers(shiftType engine.ShiftType) []engine.BonusGridTier {
	var result []engine.BonusGridTier
	for _, t := range r.GridTiers {
		if t.ShiftType == shiftType {
			result = append(result, t)
		}
	}
	return result
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultShiftWindows is the standard three-shift schedule. The night
// window wraps past midnight.
func DefaultShiftWindows() []engine.ShiftWindow {
	return []engine.ShiftWindow{
		{Type: engine.ShiftMorning, StartHour: 6, EndHour: 14},
		{Type: engine.ShiftDay, StartHour: 14, EndHour: 22},
		{Type: engine.ShiftNight, StartHour: 22, EndHour: 6},
	}
}

// StandardGrid builds the default tier table for one shift type.
// basePercent applies below the volume breakpoint, highPercent above it;
// the night shift variant adds a fixed kicker on top.
func StandardGrid(shiftType engine.ShiftType, basePercent, highPercent, breakpoint string) []engine.BonusGridTier {
	bp := engine.MustParseDecimal(breakpoint)
	return []engine.BonusGridTier{
		{
			ShiftType: shiftType,
			MinAmount: decimal.Zero,
			MaxAmount: &bp,
			Percent:   engine.MustParseDecimal(basePercent),
			Active:    true,
		},
		{
			ShiftType: shiftType,
			MinAmount: bp,
			Percent:   engine.MustParseDecimal(highPercent),
			Active:    true,
		},
	}
}

// NightGrid is StandardGrid plus a fixed kicker unlocked at kickerMin.
func NightGrid(basePercent, highPercent, breakpoint, kicker, kickerMin string) []engine.BonusGridTier {
	tiers := StandardGrid(engine.ShiftNight, basePercent, highPercent, breakpoint)
	fixed := engine.MustParseDecimal(kicker)
	min := engine.MustParseDecimal(kickerMin)
	tiers[1].FixedBonus = &fixed
	tiers[1].FixedBonusMin = &min
	return tiers
}

// SampleMotivationRules returns the default conditional bonuses.
func SampleMotivationRules() []engine.MotivationRule {
	return []engine.MotivationRule{
		{
			ID:    "veteran-1pct",
			Name:  "Veteran processor +1% of shift",
			Kind:  engine.RulePercentOfShift,
			Value: engine.MustParseDecimal("1"),
			Condition: engine.RuleCondition{
				Type:     engine.CondMinDepositCount,
				MinCount: 100,
			},
			Active: true,
		},
		{
			ID:    "daily-volume-25",
			Name:  "Daily volume fixed bonus",
			Kind:  engine.RuleFixedAmount,
			Value: engine.MustParseDecimal("25"),
			Condition: engine.RuleCondition{
				Type:      engine.CondMinDailyAmount,
				MinAmount: engine.MustParseDecimal("5000"),
			},
			Active: true,
		},
	}
}

// DefaultMonthlyPlans returns the default volume milestones.
func DefaultMonthlyPlans() []engine.MonthlyPlan {
	return []engine.MonthlyPlan{
		{Name: "bronze", MinAmount: engine.MustParseDecimal("10000"), Percent: engine.MustParseDecimal("1")},
		{Name: "silver", MinAmount: engine.MustParseDecimal("50000"), Percent: engine.MustParseDecimal("1.5")},
		{Name: "gold", MinAmount: engine.MustParseDecimal("150000"), Percent: engine.MustParseDecimal("2")},
	}
}

// Defaults assembles the built-in reference data set.
func Defaults() *StaticReference {
	tiers := StandardGrid(engine.ShiftMorning, "4", "6", "1500")
	tiers = append(tiers, StandardGrid(engine.ShiftDay, "5", "8", "1000")...)
	tiers = append(tiers, NightGrid("6", "9", "1000", "50", "3000")...)

	return &StaticReference{
		Windows:      DefaultShiftWindows(),
		DefaultShift: engine.ShiftDay,
		DayHour:      8,
		GridTiers:    tiers,
		Rules:        SampleMotivationRules(),
		Plans:        DefaultMonthlyPlans(),
		Commission:   engine.MustParseDecimal("10"),
	}
}
