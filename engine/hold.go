/*
hold.go - Bonus hold scheduling

PURPOSE:
  Computes the earliest release time for a newly computed deposit bonus.
  Bonuses become releasable at the start of the next business day after
  the deposit's accounting day, not the next calendar day: the hold is
  anchored to DayStart, which itself is offset by the configured
  day-start hour.
*/
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HoldScheduler creates held payments for freshly computed deposit bonuses.
type HoldScheduler struct{}

// Schedule creates a held BonusPayment for the deposit's bonus. Amounts
// of zero or less produce no payment.
func (h *HoldScheduler) Schedule(ctx context.Context, store Store, d *Deposit, shiftType ShiftType, dayStart time.Time) (*BonusPayment, error) {
	if !d.BonusAmount.GreaterThan(decimal.Zero) {
		return nil, nil
	}

	payment := &BonusPayment{
		ID:          PaymentID(uuid.NewString()),
		ProcessorID: d.ProcessorID,
		Kind:        PaymentDeposit,
		Amount:      d.BonusAmount,
		DepositID:   d.ID,
		PeriodStart: dayStart,
		PeriodEnd:   dayStart.Add(24 * time.Hour),
		ShiftType:   shiftType,
		HoldUntil:   dayStart.Add(24 * time.Hour),
		Status:      PaymentHeld,
		CreatedAt:   d.CreatedAt,
	}
	if err := store.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}
