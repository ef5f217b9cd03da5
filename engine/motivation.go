/*
motivation.go - Conditional motivation bonus evaluation

PURPOSE:
  Evaluates the configured motivation rules against the processor's
  aggregate activity and the shift cumulative amount, producing an extra
  bonus applied only to the deposit being created in this request.

  Percent rules take the same proportional share the allocator uses, but
  unlike the grid bonus they are NOT redistributed retroactively across
  the whole shift. That asymmetry matches the production behavior this
  engine replaces and is covered by an explicit test.

ISOLATION:
  Rules stack and evaluate independently. An evaluation failure for one
  rule (store error, unknown condition type) is logged and never blocks
  the other rules or the deposit itself.
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MotivationEvaluator computes the stacked motivation extra for one deposit.
type MotivationEvaluator struct {
	Ref ReferenceData
	Log *zap.Logger
}

// MotivationInput carries the aggregates the condition dispatcher needs.
type MotivationInput struct {
	ProcessorID  ProcessorID
	Now          time.Time
	DayStart     time.Time
	ShiftCum     decimal.Decimal // cumulative shift amount after this deposit
	DepositShare decimal.Decimal // triggering deposit's amount / ShiftCum
}

// Evaluate returns the total extra bonus for the triggering deposit.
func (m *MotivationEvaluator) Evaluate(ctx context.Context, store Store, in MotivationInput) decimal.Decimal {
	extra := decimal.Zero
	for _, rule := range m.Ref.MotivationRules() {
		if !rule.Active {
			continue
		}
		amount, err := m.evaluateRule(ctx, store, rule, in)
		if err != nil {
			m.Log.Error("motivation rule evaluation failed, skipping rule",
				zap.String("rule", rule.ID),
				zap.String("processor", string(in.ProcessorID)),
				zap.Error(err))
			continue
		}
		extra = extra.Add(amount)
	}
	return extra
}

func (m *MotivationEvaluator) evaluateRule(ctx context.Context, store Store, rule MotivationRule, in MotivationInput) (decimal.Decimal, error) {
	ok, err := m.conditionMet(ctx, store, rule.Condition, in)
	if err != nil || !ok {
		return decimal.Zero, err
	}

	switch rule.Kind {
	case RulePercentOfShift:
		return PercentOf(in.ShiftCum, rule.Value).Mul(in.DepositShare), nil
	case RuleFixedAmount:
		return rule.Value, nil
	default:
		return decimal.Zero, fmt.Errorf("unknown motivation rule kind %q", rule.Kind)
	}
}

// conditionMet is the single exhaustive dispatcher over the closed
// condition set. Unknown types are an error, not silent success.
func (m *MotivationEvaluator) conditionMet(ctx context.Context, store Store, cond RuleCondition, in MotivationInput) (bool, error) {
	switch cond.Type {
	case CondMinDepositCount:
		count, err := store.CountDeposits(ctx, in.ProcessorID)
		if err != nil {
			return false, err
		}
		return count >= cond.MinCount, nil

	case CondMinDailyAmount:
		// Whole accounting day, including the deposit just inserted.
		sum, err := store.SumDeposits(ctx, in.ProcessorID, in.DayStart, in.DayStart.Add(24*time.Hour))
		if err != nil {
			return false, err
		}
		return sum.GreaterThanOrEqual(cond.MinAmount), nil

	default:
		return false, fmt.Errorf("unknown motivation condition type %q", cond.Type)
	}
}
