package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testDeposit(id string, amount string, at time.Time) *engine.Deposit {
	return &engine.Deposit{
		ID:                engine.DepositID(id),
		ProcessorID:       "proc-1",
		PayerIdentity:     "payer-" + id,
		Amount:            engine.MustParseDecimal(amount),
		Currency:          "USD",
		CreatedAt:         at,
		BonusRate:         engine.MustParseDecimal("0"),
		BonusAmount:       engine.MustParseDecimal("0"),
		CommissionPercent: engine.MustParseDecimal("10"),
		CommissionAmount:  engine.MustParseDecimal("10"),
		NetEarnings:       engine.MustParseDecimal("90"),
		Offer:             "offer-1",
		Geo:               "DE",
		PaymentMethod:     "card",
		Notes:             "note",
	}
}

var at = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

// =============================================================================
// DEPOSIT ROUND-TRIP TESTS
// =============================================================================

func TestSQLite_DepositRoundTrip(t *testing.T) {
	// GIVEN: A deposit with every field populated
	// WHEN: Writing and reading it back
	// THEN: Decimals, timestamps and metadata survive unchanged

	store := newTestStore(t)
	ctx := context.Background()

	d := testDeposit("dep-1", "100.50", at)
	require.NoError(t, store.CreateDeposit(ctx, d))

	deposits, err := store.DepositsSince(ctx, "proc-1", at.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, deposits, 1)

	got := deposits[0]
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, d.PayerIdentity, got.PayerIdentity)
	assert.True(t, got.Amount.Equal(d.Amount), "amount %s", got.Amount)
	assert.Equal(t, "USD", got.Currency)
	assert.True(t, got.CreatedAt.Equal(at))
	assert.True(t, got.CommissionPercent.Equal(d.CommissionPercent))
	assert.True(t, got.NetEarnings.Equal(d.NetEarnings))
	assert.Equal(t, "offer-1", got.Offer)
	assert.Equal(t, "DE", got.Geo)
	assert.Equal(t, "card", got.PaymentMethod)
	assert.Equal(t, "note", got.Notes)
}

func TestSQLite_UpdateDepositBonus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateDeposit(ctx, testDeposit("dep-1", "100", at)))
	require.NoError(t, store.UpdateDepositBonus(ctx, "dep-1",
		engine.MustParseDecimal("8"), engine.MustParseDecimal("48")))

	deposits, err := store.DepositsSince(ctx, "proc-1", at.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.True(t, deposits[0].BonusRate.Equal(engine.MustParseDecimal("8")))
	assert.True(t, deposits[0].BonusAmount.Equal(engine.MustParseDecimal("48")))

	err = store.UpdateDepositBonus(ctx, "missing",
		engine.MustParseDecimal("8"), engine.MustParseDecimal("48"))
	assert.ErrorIs(t, err, engine.ErrDepositNotFound)
}

func TestSQLite_SumDeposits_HalfOpenRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	to := at.Add(time.Hour)

	require.NoError(t, store.CreateDeposit(ctx, testDeposit("before", "100", at.Add(-time.Second))))
	require.NoError(t, store.CreateDeposit(ctx, testDeposit("start", "10", at)))
	require.NoError(t, store.CreateDeposit(ctx, testDeposit("inside", "1", to.Add(-time.Second))))
	require.NoError(t, store.CreateDeposit(ctx, testDeposit("end", "1000", to)))

	sum, err := store.SumDeposits(ctx, "proc-1", at, to)
	require.NoError(t, err)
	assert.True(t, sum.Equal(engine.MustParseDecimal("11")), "got %s", sum)
}

func TestSQLite_HasRecentDeposit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	d := testDeposit("dep-1", "100.50", at)
	require.NoError(t, store.CreateDeposit(ctx, d))

	found, err := store.HasRecentDeposit(ctx, "proc-1", "payer-dep-1", d.Amount, "USD", at.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, found)

	found, err = store.HasRecentDeposit(ctx, "proc-1", "payer-dep-1", d.Amount, "USD", at.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, found, "deposit older than the window must not match")
}

func TestSQLite_HasRecentDeposit_MatchesAcrossDecimalScales(t *testing.T) {
	// GIVEN: A deposit stored as "100.0" (trailing zero preserved)
	// WHEN: Looking up the same amount expressed as "100"
	// THEN: The guard matches on numeric value, not text representation

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateDeposit(ctx, testDeposit("dep-1", "100.0", at)))

	found, err := store.HasRecentDeposit(ctx, "proc-1", "payer-dep-1",
		engine.MustParseDecimal("100"), "USD", at.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, found)

	found, err = store.HasRecentDeposit(ctx, "proc-1", "payer-dep-1",
		engine.MustParseDecimal("100.5"), "USD", at.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, found, "different value must still not match")
}

// =============================================================================
// SHIFT AND PAYMENT TESTS
// =============================================================================

func TestSQLite_ActiveShiftRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	shift, err := store.ActiveShift(ctx, "proc-1")
	require.NoError(t, err)
	assert.Nil(t, shift)

	schedStart := at
	require.NoError(t, store.PutShift(ctx, engine.Shift{
		ID:             "shift-1",
		ProcessorID:    "proc-1",
		Type:           engine.ShiftDay,
		Status:         engine.ShiftActive,
		ScheduledStart: schedStart,
		ScheduledEnd:   schedStart.Add(8 * time.Hour),
		ActualStart:    schedStart.Add(3 * time.Minute),
	}))

	shift, err = store.ActiveShift(ctx, "proc-1")
	require.NoError(t, err)
	require.NotNil(t, shift)
	assert.Equal(t, engine.ShiftID("shift-1"), shift.ID)
	assert.Equal(t, engine.ShiftDay, shift.Type)
	assert.True(t, shift.ActualStart.Equal(schedStart.Add(3*time.Minute)))
	assert.True(t, shift.ActualEnd.IsZero())
	assert.True(t, shift.Start().Equal(schedStart.Add(3*time.Minute)))
}

func TestSQLite_PaymentRoundTripAndAchievementLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	monthStart := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	require.NoError(t, store.CreatePayment(ctx, &engine.BonusPayment{
		ID:          "pay-1",
		ProcessorID: "proc-1",
		Kind:        engine.PaymentDeposit,
		Amount:      engine.MustParseDecimal("30"),
		DepositID:   "dep-1",
		PeriodStart: at,
		PeriodEnd:   at.Add(24 * time.Hour),
		ShiftType:   engine.ShiftDay,
		HoldUntil:   at.Add(24 * time.Hour),
		Status:      engine.PaymentHeld,
		CreatedAt:   at,
	}))
	require.NoError(t, store.CreatePayment(ctx, &engine.BonusPayment{
		ID:          "pay-2",
		ProcessorID: "proc-1",
		Kind:        engine.PaymentAchievement,
		Amount:      engine.MustParseDecimal("120"),
		PlanName:    "silver",
		PeriodStart: monthStart,
		PeriodEnd:   monthEnd,
		Status:      engine.PaymentApproved,
		CreatedAt:   at.Add(time.Minute),
	}))

	payments, err := store.ListPayments(ctx, "proc-1")
	require.NoError(t, err)
	require.Len(t, payments, 2)

	hold := payments[0]
	assert.Equal(t, engine.PaymentHeld, hold.Status)
	assert.Equal(t, engine.DepositID("dep-1"), hold.DepositID)
	assert.True(t, hold.HoldUntil.Equal(at.Add(24*time.Hour)))

	award := payments[1]
	assert.Equal(t, "silver", award.PlanName)
	assert.True(t, award.HoldUntil.IsZero())

	exists, err := store.HasAchievement(ctx, "proc-1", "silver", monthStart, monthEnd)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.HasAchievement(ctx, "proc-1", "gold", monthStart, monthEnd)
	require.NoError(t, err)
	assert.False(t, exists)
}

// =============================================================================
// LOCKING TESTS
// =============================================================================

func TestSQLite_WithProcessorLock_CommitsOnSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithProcessorLock(ctx, "proc-1", func(s engine.Store) error {
		return s.CreateDeposit(ctx, testDeposit("dep-1", "100", at))
	})
	require.NoError(t, err)

	count, err := store.CountDeposits(ctx, "proc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLite_WithProcessorLock_RollsBackOnError(t *testing.T) {
	// GIVEN: A locked section that writes and then fails
	// WHEN: The callback returns an error
	// THEN: Nothing it wrote is visible afterwards

	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithProcessorLock(ctx, "proc-1", func(s engine.Store) error {
		if err := s.CreateDeposit(ctx, testDeposit("dep-1", "100", at)); err != nil {
			return err
		}
		return engine.ErrConcurrentModification
	})
	require.Error(t, err)

	count, err := store.CountDeposits(ctx, "proc-1")
	require.NoError(t, err)
	assert.Zero(t, count, "failed locked section must roll back")
}
