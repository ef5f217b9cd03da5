package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/engine/store"
)

var base = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func dep(id string, amount string, at time.Time) *engine.Deposit {
	return &engine.Deposit{
		ID:            engine.DepositID(id),
		ProcessorID:   "proc-1",
		PayerIdentity: "payer-" + id,
		Amount:        engine.MustParseDecimal(amount),
		Currency:      "USD",
		CreatedAt:     at,
	}
}

// =============================================================================
// DEPOSIT TESTS
// =============================================================================

func TestMemory_DepositsSince_ChronologicalRegardlessOfInsertOrder(t *testing.T) {
	// GIVEN: Deposits inserted out of time order
	// WHEN: Reading the window
	// THEN: Results come back ordered by creation time

	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.CreateDeposit(ctx, dep("c", "3", base.Add(3*time.Minute))))
	require.NoError(t, mem.CreateDeposit(ctx, dep("a", "1", base.Add(1*time.Minute))))
	require.NoError(t, mem.CreateDeposit(ctx, dep("b", "2", base.Add(2*time.Minute))))

	deposits, err := mem.DepositsSince(ctx, "proc-1", base)
	require.NoError(t, err)
	require.Len(t, deposits, 3)
	assert.Equal(t, engine.DepositID("a"), deposits[0].ID)
	assert.Equal(t, engine.DepositID("b"), deposits[1].ID)
	assert.Equal(t, engine.DepositID("c"), deposits[2].ID)
}

func TestMemory_DepositsSince_FromIsInclusive(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.CreateDeposit(ctx, dep("before", "1", base.Add(-time.Second))))
	require.NoError(t, mem.CreateDeposit(ctx, dep("at", "2", base)))

	deposits, err := mem.DepositsSince(ctx, "proc-1", base)
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, engine.DepositID("at"), deposits[0].ID)
}

func TestMemory_UpdateDepositBonus_UnknownID(t *testing.T) {
	mem := store.NewMemory()
	err := mem.UpdateDepositBonus(context.Background(), "missing",
		engine.MustParseDecimal("5"), engine.MustParseDecimal("10"))
	assert.ErrorIs(t, err, engine.ErrDepositNotFound)
}

func TestMemory_SumDeposits_HalfOpenRange(t *testing.T) {
	// GIVEN: Deposits at from-1s, from, to-1s and to
	// WHEN: Summing [from, to)
	// THEN: Only the middle two count

	mem := store.NewMemory()
	ctx := context.Background()
	to := base.Add(time.Hour)

	require.NoError(t, mem.CreateDeposit(ctx, dep("1", "100", base.Add(-time.Second))))
	require.NoError(t, mem.CreateDeposit(ctx, dep("2", "10", base)))
	require.NoError(t, mem.CreateDeposit(ctx, dep("3", "1", to.Add(-time.Second))))
	require.NoError(t, mem.CreateDeposit(ctx, dep("4", "1000", to)))

	sum, err := mem.SumDeposits(ctx, "proc-1", base, to)
	require.NoError(t, err)
	assert.True(t, sum.Equal(engine.MustParseDecimal("11")), "got %s", sum)
}

func TestMemory_HasRecentDeposit_MatchesExactTuple(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.CreateDeposit(ctx, dep("1", "100", base)))

	found, err := mem.HasRecentDeposit(ctx, "proc-1", "payer-1", engine.MustParseDecimal("100"), "USD", base.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, found)

	// Older than since.
	found, err = mem.HasRecentDeposit(ctx, "proc-1", "payer-1", engine.MustParseDecimal("100"), "USD", base.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, found)

	// Different currency.
	found, err = mem.HasRecentDeposit(ctx, "proc-1", "payer-1", engine.MustParseDecimal("100"), "EUR", base.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, found)
}

// =============================================================================
// SHIFT AND PAYMENT TESTS
// =============================================================================

func TestMemory_ActiveShift_NilWhenNoneOpen(t *testing.T) {
	mem := store.NewMemory()

	shift, err := mem.ActiveShift(context.Background(), "proc-1")
	require.NoError(t, err)
	assert.Nil(t, shift)

	mem.PutShift(engine.Shift{ID: "s1", ProcessorID: "proc-1", Status: engine.ShiftCompleted})
	shift, err = mem.ActiveShift(context.Background(), "proc-1")
	require.NoError(t, err)
	assert.Nil(t, shift, "completed shifts are not active")

	mem.PutShift(engine.Shift{ID: "s2", ProcessorID: "proc-1", Status: engine.ShiftActive})
	shift, err = mem.ActiveShift(context.Background(), "proc-1")
	require.NoError(t, err)
	require.NotNil(t, shift)
	assert.Equal(t, engine.ShiftID("s2"), shift.ID)
}

func TestMemory_HasAchievement_IgnoresBurnedPayments(t *testing.T) {
	// GIVEN: A burned bronze award inside the month
	// WHEN: Checking for an existing achievement
	// THEN: Burned payments do not block a re-award

	mem := store.NewMemory()
	ctx := context.Background()
	monthStart := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	require.NoError(t, mem.CreatePayment(ctx, &engine.BonusPayment{
		ID:          "pay-1",
		ProcessorID: "proc-1",
		Kind:        engine.PaymentAchievement,
		PlanName:    "bronze",
		PeriodStart: monthStart,
		PeriodEnd:   monthEnd,
		Status:      engine.PaymentBurned,
	}))

	exists, err := mem.HasAchievement(ctx, "proc-1", "bronze", monthStart, monthEnd)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, mem.CreatePayment(ctx, &engine.BonusPayment{
		ID:          "pay-2",
		ProcessorID: "proc-1",
		Kind:        engine.PaymentAchievement,
		PlanName:    "bronze",
		PeriodStart: monthStart,
		PeriodEnd:   monthEnd,
		Status:      engine.PaymentApproved,
	}))

	exists, err = mem.HasAchievement(ctx, "proc-1", "bronze", monthStart, monthEnd)
	require.NoError(t, err)
	assert.True(t, exists)
}

// =============================================================================
// LOCKING TESTS
// =============================================================================

func TestMemory_WithProcessorLock_SerializesPerProcessor(t *testing.T) {
	// GIVEN: 50 goroutines doing a read-modify-write on a plain counter
	//        inside the processor lock
	// WHEN: All run concurrently
	// THEN: No increments are lost; the lock is mutually exclusive

	mem := store.NewMemory()
	ctx := context.Background()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mem.WithProcessorLock(ctx, "proc-1", func(engine.Store) error {
				v := counter
				time.Sleep(100 * time.Microsecond)
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestMemory_WithProcessorLock_IndependentAcrossProcessors(t *testing.T) {
	// Locks are per processor; holding one must not block another.
	mem := store.NewMemory()
	ctx := context.Background()

	release := make(chan struct{})
	acquired := make(chan struct{})
	go func() {
		_ = mem.WithProcessorLock(ctx, "proc-1", func(engine.Store) error {
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired

	done := make(chan struct{})
	go func() {
		_ = mem.WithProcessorLock(ctx, "proc-2", func(engine.Store) error {
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock for proc-2 blocked behind proc-1")
	}
	close(release)
}

func TestMemory_StoresAreIsolatedPerProcessor(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	d := dep("1", "100", base)
	require.NoError(t, mem.CreateDeposit(ctx, d))

	count, err := mem.CountDeposits(ctx, "proc-2")
	require.NoError(t, err)
	assert.Zero(t, count)
}
