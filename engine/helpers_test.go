package engine_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/engine/store"
	"github.com/warp/incentive-engine/grid"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// dayRef builds reference data with a single all-day "day" window and the
// two-tier day grid: [0, 1000) -> 5%, [1000, inf) -> 8%. No motivation
// rules, no monthly plans, 10% commission, business day anchored at 08:00.
func dayRef() *grid.StaticReference {
	return &grid.StaticReference{
		Windows: []engine.ShiftWindow{
			{Type: engine.ShiftDay, StartHour: 0, EndHour: 24},
		},
		DefaultShift: engine.ShiftDay,
		DayHour:      8,
		GridTiers:    grid.StandardGrid(engine.ShiftDay, "5", "8", "1000"),
		Commission:   engine.MustParseDecimal("10"),
	}
}

func newTestEngine(t *testing.T, ref *grid.StaticReference) (*engine.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	eng := engine.New(mem, ref, zap.NewNop())
	return eng, mem
}

// seedDeposit inserts a deposit directly into the store, bypassing the
// engine, for tests that need pre-existing history.
func seedDeposit(t *testing.T, mem *store.Memory, p engine.ProcessorID, amount string, at time.Time) engine.Deposit {
	t.Helper()
	d := engine.Deposit{
		ID:            engine.DepositID(fmt.Sprintf("dep-%s-%d", amount, at.UnixNano())),
		ProcessorID:   p,
		PayerIdentity: fmt.Sprintf("payer-%d", at.UnixNano()),
		Amount:        engine.MustParseDecimal(amount),
		Currency:      "USD",
		CreatedAt:     at,
	}
	require.NoError(t, mem.CreateDeposit(context.Background(), &d))
	return d
}

func dec(s string) decimal.Decimal { return engine.MustParseDecimal(s) }

// assertDecimal compares decimals after rounding away division noise far
// below any monetary precision.
func assertDecimal(t *testing.T, want, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.True(t, got.Round(8).Equal(want.Round(8)),
		"want %s, got %s (%v)", want, got, msgAndArgs)
}
