/*
factory.go - JSON to reference-data conversion

PURPOSE:
  Converts JSON reference-data definitions into a StaticReference. This
  enables grid and rule changes without code changes - operations staff
  manage tier tables, motivation rules and monthly plans as JSON, and the
  factory builds the proper engine types, validating kinds and condition
  types against the closed sets up front instead of failing mid-algorithm.

JSON SCHEMA:
  {
    "day_start_hour": 8,
    "default_shift_type": "day",
    "commission_percent": "10",
    "shift_windows": [
      {"type": "day", "start_hour": 14, "end_hour": 22}
    ],
    "tiers": [
      {"shift_type": "day", "min_amount": "0", "max_amount": "1000",
       "percent": "5"},
      {"shift_type": "day", "min_amount": "1000", "percent": "8",
       "fixed_bonus": "50", "fixed_bonus_min": "3000"}
    ],
    "motivation_rules": [
      {"id": "veteran", "kind": "percent_of_shift", "value": "1",
       "condition": {"type": "min_deposit_count", "min_count": 100}}
    ],
    "monthly_plans": [
      {"name": "bronze", "min_amount": "10000", "percent": "1"}
    ]
  }

SEE ALSO:
  - grid.go: StaticReference and built-in defaults
*/
package grid

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type ReferenceJSON struct {
	DayStartHour     int              `json:"day_start_hour"`
	DefaultShiftType string           `json:"default_shift_type"`
	Commission       string           `json:"commission_percent"`
	ShiftWindows     []WindowJSON     `json:"shift_windows"`
	Tiers            []TierJSON       `json:"tiers"`
	MotivationRules  []RuleJSON       `json:"motivation_rules,omitempty"`
	MonthlyPlans     []PlanJSON       `json:"monthly_plans,omitempty"`
}

type WindowJSON struct {
	Type      string `json:"type"`
	StartHour int    `json:"start_hour"`
	EndHour   int    `json:"end_hour"`
}

type TierJSON struct {
	ShiftType     string  `json:"shift_type"`
	MinAmount     string  `json:"min_amount"`
	MaxAmount     *string `json:"max_amount,omitempty"`
	Percent       string  `json:"percent"`
	FixedBonus    *string `json:"fixed_bonus,omitempty"`
	FixedBonusMin *string `json:"fixed_bonus_min,omitempty"`
	Disabled      bool    `json:"disabled,omitempty"`
}

type RuleJSON struct {
	ID        string        `json:"id"`
	Name      string        `json:"name,omitempty"`
	Kind      string        `json:"kind"`
	Value     string        `json:"value"`
	Condition ConditionJSON `json:"condition"`
	Disabled  bool          `json:"disabled,omitempty"`
}

type ConditionJSON struct {
	Type      string `json:"type"`
	MinCount  int    `json:"min_count,omitempty"`
	MinAmount string `json:"min_amount,omitempty"`
}

type PlanJSON struct {
	Name      string `json:"name"`
	MinAmount string `json:"min_amount"`
	Percent   string `json:"percent"`
}

// =============================================================================
// FACTORY
// =============================================================================

// ParseReference parses a JSON document into a StaticReference.
func ParseReference(data []byte) (*StaticReference, error) {
	var rj ReferenceJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return nil, fmt.Errorf("failed to parse reference JSON: %w", err)
	}
	return FromJSON(rj)
}

// FromJSON converts ReferenceJSON into a StaticReference, validating
// enums and decimals.
func FromJSON(rj ReferenceJSON) (*StaticReference, error) {
	ref := &StaticReference{
		DayHour:      rj.DayStartHour,
		DefaultShift: engine.ShiftType(rj.DefaultShiftType),
	}
	if ref.DayHour < 0 || ref.DayHour > 23 {
		return nil, fmt.Errorf("day_start_hour %d out of range", ref.DayHour)
	}
	if ref.DefaultShift == "" {
		ref.DefaultShift = engine.ShiftDay
	}

	var err error
	if ref.Commission, err = parseDecimal("commission_percent", rj.Commission); err != nil {
		return nil, err
	}

	for _, w := range rj.ShiftWindows {
		if w.Type == "" {
			return nil, fmt.Errorf("shift window missing type")
		}
		ref.Windows = append(ref.Windows, engine.ShiftWindow{
			Type:      engine.ShiftType(w.Type),
			StartHour: w.StartHour,
			EndHour:   w.EndHour,
		})
	}

	for i, tj := range rj.Tiers {
		tier, err := tierFromJSON(tj)
		if err != nil {
			return nil, fmt.Errorf("tier %d: %w", i, err)
		}
		ref.GridTiers = append(ref.GridTiers, tier)
	}

	for i, rjRule := range rj.MotivationRules {
		rule, err := ruleFromJSON(rjRule)
		if err != nil {
			return nil, fmt.Errorf("motivation rule %d: %w", i, err)
		}
		ref.Rules = append(ref.Rules, rule)
	}

	for i, pj := range rj.MonthlyPlans {
		plan := engine.MonthlyPlan{Name: pj.Name}
		if plan.MinAmount, err = parseDecimal("min_amount", pj.MinAmount); err != nil {
			return nil, fmt.Errorf("monthly plan %d: %w", i, err)
		}
		if plan.Percent, err = parseDecimal("percent", pj.Percent); err != nil {
			return nil, fmt.Errorf("monthly plan %d: %w", i, err)
		}
		ref.Plans = append(ref.Plans, plan)
	}

	return ref, nil
}

func tierFromJSON(tj TierJSON) (engine.BonusGridTier, error) {
	tier := engine.BonusGridTier{
		ShiftType: engine.ShiftType(tj.ShiftType),
		Active:    !tj.Disabled,
	}
	var err error
	if tier.MinAmount, err = parseDecimal("min_amount", tj.MinAmount); err != nil {
		return tier, err
	}
	if tier.Percent, err = parseDecimal("percent", tj.Percent); err != nil {
		return tier, err
	}
	if tj.MaxAmount != nil {
		max, err := parseDecimal("max_amount", *tj.MaxAmount)
		if err != nil {
			return tier, err
		}
		tier.MaxAmount = &max
	}
	if tj.FixedBonus != nil {
		fixed, err := parseDecimal("fixed_bonus", *tj.FixedBonus)
		if err != nil {
			return tier, err
		}
		tier.FixedBonus = &fixed
	}
	if tj.FixedBonusMin != nil {
		min, err := parseDecimal("fixed_bonus_min", *tj.FixedBonusMin)
		if err != nil {
			return tier, err
		}
		tier.FixedBonusMin = &min
	}
	return tier, nil
}

func ruleFromJSON(rj RuleJSON) (engine.MotivationRule, error) {
	rule := engine.MotivationRule{
		ID:     rj.ID,
		Name:   rj.Name,
		Active: !rj.Disabled,
	}

	switch engine.RuleKind(rj.Kind) {
	case engine.RulePercentOfShift, engine.RuleFixedAmount:
		rule.Kind = engine.RuleKind(rj.Kind)
	default:
		return rule, fmt.Errorf("unknown rule kind %q", rj.Kind)
	}

	var err error
	if rule.Value, err = parseDecimal("value", rj.Value); err != nil {
		return rule, err
	}

	switch engine.ConditionType(rj.Condition.Type) {
	case engine.CondMinDepositCount:
		rule.Condition = engine.RuleCondition{
			Type:     engine.CondMinDepositCount,
			MinCount: rj.Condition.MinCount,
		}
	case engine.CondMinDailyAmount:
		min, err := parseDecimal("condition.min_amount", rj.Condition.MinAmount)
		if err != nil {
			return rule, err
		}
		rule.Condition = engine.RuleCondition{
			Type:      engine.CondMinDailyAmount,
			MinAmount: min,
		}
	default:
		return rule, fmt.Errorf("unknown condition type %q", rj.Condition.Type)
	}

	return rule, nil
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("%s is required", field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q", field, s)
	}
	return d, nil
}
