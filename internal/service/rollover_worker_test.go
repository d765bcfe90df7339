package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorker(f *fixture) *RolloverWorker {
	return NewRolloverWorker(f.periodSvc, f.periods, zerolog.Nop(), RolloverWorkerConfig{
		Interval:  100 * time.Millisecond,
		BatchSize: 10,
	})
}

func TestRolloverWorker_DefaultConfig(t *testing.T) {
	f := newFixture(t, date(2025, time.February, 10))
	worker := NewRolloverWorker(f.periodSvc, f.periods, zerolog.Nop(), RolloverWorkerConfig{})

	defaults := DefaultRolloverWorkerConfig()
	assert.Equal(t, defaults.Interval, worker.interval)
	assert.Equal(t, defaults.BatchSize, worker.batchSize)
	assert.False(t, worker.IsRunning())
}

func TestRolloverWorker_SweepRollsExpiredPeriods(t *testing.T) {
	f := newFixture(t, date(2025, time.February, 10))

	january := f.addPeriod(t, domain.PeriodKindStandard, date(2025, time.January, 15), domain.PeriodStateActive)
	f.addExpense(january.ID, f.fixed.Rent, "Apartment", 120000, domain.Permanent{})

	otherOwner := uuid.New()
	start, end := bounds(t, domain.PeriodKindCreditCycle, date(2025, time.January, 10))
	f.periods.AddPeriod(&domain.Period{
		OwnerID:   otherOwner,
		Kind:      domain.PeriodKindCreditCycle,
		StartDate: start,
		EndDate:   end,
		State:     domain.PeriodStateActive,
	})

	// Still current, must be left alone
	f.addPeriod(t, domain.PeriodKindCreditCycle, date(2025, time.February, 10), domain.PeriodStateActive)

	result := newTestWorker(f).Sweep(context.Background())

	assert.Equal(t, SweepResult{Expired: 2, Rolled: 2}, result)
	assert.Equal(t, domain.PeriodStateClosed, f.periods.Get(january.ID).State)

	active, err := f.periods.GetActive(context.Background(), f.owner, domain.PeriodKindStandard)
	require.NoError(t, err)
	feb, _ := bounds(t, domain.PeriodKindStandard, date(2025, time.February, 10))
	assert.True(t, active.StartDate.Equal(feb))

	copied, err := f.expenses.ListByPeriod(context.Background(), f.owner, active.ID, domain.ExpenseFilter{})
	require.NoError(t, err)
	require.Len(t, copied, 1)
	assert.Equal(t, "Apartment", copied[0].Name)

	assert.Equal(t, 1, f.periods.CountActive(otherOwner, domain.PeriodKindCreditCycle))
	assert.Equal(t, 1, f.periods.CountActive(f.owner, domain.PeriodKindCreditCycle))

	// Nothing left to roll
	assert.Equal(t, SweepResult{}, newTestWorker(f).Sweep(context.Background()))
}

func TestRolloverWorker_SweepCountsFailures(t *testing.T) {
	f := newFixture(t, date(2025, time.February, 10))
	f.addPeriod(t, domain.PeriodKindStandard, date(2025, time.January, 15), domain.PeriodStateActive)

	f.periods.CreateFn = func(ctx context.Context, period *domain.Period) (*domain.Period, error) {
		return nil, errors.New("connection reset")
	}

	result := newTestWorker(f).Sweep(context.Background())
	assert.Equal(t, SweepResult{Expired: 1, Failed: 1}, result)
}

func TestRolloverWorker_StartStop(t *testing.T) {
	f := newFixture(t, date(2025, time.February, 10))
	worker := newTestWorker(f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker.Start(ctx)
	worker.Start(ctx)
	assert.True(t, worker.IsRunning())

	worker.Stop()
	assert.False(t, worker.IsRunning())
}

func TestRolloverWorker_StopWithoutStart(t *testing.T) {
	f := newFixture(t, date(2025, time.February, 10))
	worker := newTestWorker(f)

	worker.Stop()
	assert.False(t, worker.IsRunning())
}

func TestRolloverWorker_ContextCancellation(t *testing.T) {
	f := newFixture(t, date(2025, time.February, 10))
	worker := newTestWorker(f)

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)
	cancel()

	assert.Eventually(t, func() bool { return !worker.IsRunning() }, time.Second, 10*time.Millisecond)
}

func TestRolloverWorker_RestartAfterStop(t *testing.T) {
	f := newFixture(t, date(2025, time.February, 10))
	worker := newTestWorker(f)
	ctx := context.Background()

	worker.Start(ctx)
	worker.Stop()
	require.NotPanics(t, func() { worker.Start(ctx) })
	assert.True(t, worker.IsRunning())

	worker.Stop()
	worker.Stop()
	assert.False(t, worker.IsRunning())
}

func TestRolloverWorker_ConcurrentStop(t *testing.T) {
	f := newFixture(t, date(2025, time.February, 10))
	worker := newTestWorker(f)
	worker.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Stop()
		}()
	}

	assert.NotPanics(t, wg.Wait)
	assert.False(t, worker.IsRunning())
}

func TestRolloverWorker_StartAfterContextCancellation(t *testing.T) {
	f := newFixture(t, date(2025, time.February, 10))
	worker := newTestWorker(f)

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)
	cancel()
	assert.Eventually(t, func() bool { return !worker.IsRunning() }, time.Second, 10*time.Millisecond)

	worker.Start(context.Background())
	assert.True(t, worker.IsRunning())
	worker.Stop()
	assert.False(t, worker.IsRunning())
}
