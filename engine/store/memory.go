// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements engine.LockingStore in memory. Deposits are kept
// ordered by creation time per processor. WithProcessorLock serializes
// submissions with one mutex per processor, which is exactly the logical
// lock the engine requires.
type Memory struct {
	mu       sync.RWMutex
	deposits map[engine.ProcessorID][]engine.Deposit
	shifts   map[engine.ProcessorID][]engine.Shift
	payments map[engine.ProcessorID][]engine.BonusPayment

	locks sync.Map // engine.ProcessorID -> *sync.Mutex
}

func NewMemory() *Memory {
	return &Memory{
		deposits: make(map[engine.ProcessorID][]engine.Deposit),
		shifts:   make(map[engine.ProcessorID][]engine.Shift),
		payments: make(map[engine.ProcessorID][]engine.BonusPayment),
	}
}

// PutShift registers a shift record. Test/dev seeding helper; the engine
// itself never writes shifts.
func (m *Memory) PutShift(s engine.Shift) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifts[s.ProcessorID] = append(m.shifts[s.ProcessorID], s)
}

func (m *Memory) CreateDeposit(_ context.Context, d *engine.Deposit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ds := m.deposits[d.ProcessorID]

	// Binary search keeps the slice ordered by CreatedAt on insert.
	i := sort.Search(len(ds), func(i int) bool {
		return ds[i].CreatedAt.After(d.CreatedAt)
	})
	ds = append(ds, engine.Deposit{})
	copy(ds[i+1:], ds[i:])
	ds[i] = *d
	m.deposits[d.ProcessorID] = ds
	return nil
}

func (m *Memory) UpdateDepositBonus(_ context.Context, id engine.DepositID, rate, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for p, ds := range m.deposits {
		for i := range ds {
			if ds[i].ID == id {
				ds[i].BonusRate = rate
				ds[i].BonusAmount = amount
				m.deposits[p] = ds
				return nil
			}
		}
	}
	return engine.ErrDepositNotFound
}

func (m *Memory) DepositsSince(_ context.Context, p engine.ProcessorID, from time.Time) ([]engine.Deposit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.Deposit
	for _, d := range m.deposits[p] {
		if !d.CreatedAt.Before(from) {
			result = append(result, d)
		}
	}
	return result, nil
}

func (m *Memory) CountDeposits(_ context.Context, p engine.ProcessorID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.deposits[p]), nil
}

func (m *Memory) SumDeposits(_ context.Context, p engine.ProcessorID, from, to time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := decimal.Zero
	for _, d := range m.deposits[p] {
		if !d.CreatedAt.Before(from) && d.CreatedAt.Before(to) {
			sum = sum.Add(d.Amount)
		}
	}
	return sum, nil
}

func (m *Memory) HasRecentDeposit(_ context.Context, p engine.ProcessorID, payer string, amount decimal.Decimal, currency string, since time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.deposits[p] {
		if d.CreatedAt.Before(since) {
			continue
		}
		if d.PayerIdentity == payer && d.Currency == currency && d.Amount.Equal(amount) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ActiveShift(_ context.Context, p engine.ProcessorID) (*engine.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.shifts[p] {
		if m.shifts[p][i].Status == engine.ShiftActive {
			s := m.shifts[p][i]
			return &s, nil
		}
	}
	return nil, nil
}

func (m *Memory) CreatePayment(_ context.Context, bp *engine.BonusPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[bp.ProcessorID] = append(m.payments[bp.ProcessorID], *bp)
	return nil
}

func (m *Memory) HasAchievement(_ context.Context, p engine.ProcessorID, planName string, periodStart, periodEnd time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, bp := range m.payments[p] {
		if bp.Kind != engine.PaymentAchievement || bp.PlanName != planName {
			continue
		}
		if bp.Status == engine.PaymentBurned {
			continue
		}
		if !bp.PeriodStart.Before(periodStart) && bp.PeriodStart.Before(periodEnd) {
			return true, nil
		}
	}
	return false, nil
}

// ListPayments returns a copy of the processor's payments, newest last.
func (m *Memory) ListPayments(_ context.Context, p engine.ProcessorID) ([]engine.BonusPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]engine.BonusPayment, len(m.payments[p]))
	copy(result, m.payments[p])
	return result, nil
}

// WithProcessorLock serializes fn against other submissions for the same
// processor. fn receives the store itself; individual operations take the
// data mutex as usual.
func (m *Memory) WithProcessorLock(_ context.Context, p engine.ProcessorID, fn func(engine.Store) error) error {
	muAny, _ := m.locks.LoadOrStore(p, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	return fn(m)
}
