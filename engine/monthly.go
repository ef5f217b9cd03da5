/*
monthly.go - Monthly achievement bonus evaluation

PURPOSE:
  Independently of the shift-level logic, compares the processor's
  calendar-month deposit volume against the configured milestones and
  awards at most one standing bonus per plan per month.

IDEMPOTENCE:
  Every deposit in the month triggers this pass, so before creating an
  achievement payment the evaluator checks for an existing non-burned
  payment referencing the same plan name inside the month's period. The
  first qualifying deposit creates the award; later ones skip.

ISOLATION:
  This pass runs after the deposit is persisted and outside the shift
  lock. Failures are logged for later reconciliation and never fail the
  submission.
*/
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MonthlyEvaluator awards milestone bonuses on monthly volume.
type MonthlyEvaluator struct {
	Ref ReferenceData
	Log *zap.Logger
}

// Evaluate checks the processor's month-to-date volume and creates an
// approved achievement payment for the highest qualifying plan, unless
// one already exists for this month.
func (m *MonthlyEvaluator) Evaluate(ctx context.Context, store Store, p ProcessorID, now time.Time) error {
	monthStart, monthEnd := MonthBounds(now)

	volume, err := store.SumDeposits(ctx, p, monthStart, monthEnd)
	if err != nil {
		return err
	}

	// Highest threshold met wins, mirroring tier tie-breaking.
	plans := m.Ref.MonthlyPlans()
	var best *MonthlyPlan
	for i := range plans {
		plan := plans[i]
		if volume.LessThan(plan.MinAmount) {
			continue
		}
		if best == nil || plan.MinAmount.GreaterThan(best.MinAmount) {
			best = &plan
		}
	}
	if best == nil {
		return nil
	}

	exists, err := store.HasAchievement(ctx, p, best.Name, monthStart, monthEnd)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	payment := &BonusPayment{
		ID:          PaymentID(uuid.NewString()),
		ProcessorID: p,
		Kind:        PaymentAchievement,
		Amount:      PercentOf(volume, best.Percent),
		PlanName:    best.Name,
		PeriodStart: monthStart,
		PeriodEnd:   monthEnd,
		Status:      PaymentApproved, // no hold on achievements
		CreatedAt:   now,
	}
	if err := store.CreatePayment(ctx, payment); err != nil {
		return err
	}

	m.Log.Info("monthly achievement awarded",
		zap.String("processor", string(p)),
		zap.String("plan", best.Name),
		zap.String("volume", volume.String()),
		zap.String("amount", payment.Amount.String()))
	return nil
}
