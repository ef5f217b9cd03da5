/*
duplicate.go - Trailing-window duplicate deposit guard

PURPOSE:
  Rejects a submission that exactly matches an earlier deposit (same
  processor, payer identity, amount and currency) recorded within the
  trailing window, 60 minutes by default.

  This is a heuristic safety net against double submissions, not a strong
  dedup guarantee: a slightly different amount or a resubmission after
  the window elapses passes through. That is accepted.
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultDuplicateWindow is the trailing match window for the guard.
const DefaultDuplicateWindow = 60 * time.Minute

// DuplicateGuard checks new submissions against recent deposits.
type DuplicateGuard struct {
	Window time.Duration
}

// Check returns a *DuplicateDepositError when a matching deposit exists
// within the trailing window, nil otherwise.
func (g *DuplicateGuard) Check(ctx context.Context, store Store, p ProcessorID, payer string, amount decimal.Decimal, currency string, at time.Time) error {
	window := g.Window
	if window <= 0 {
		window = DefaultDuplicateWindow
	}

	found, err := store.HasRecentDeposit(ctx, p, payer, amount, currency, at.Add(-window))
	if err != nil {
		return err
	}
	if found {
		return &DuplicateDepositError{
			ProcessorID:   p,
			PayerIdentity: payer,
			Amount:        amount,
			Currency:      currency,
		}
	}
	return nil
}
