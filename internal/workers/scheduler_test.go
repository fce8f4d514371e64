package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketscanner/pkg/errors"
)

type mockWorker struct {
	*BaseWorker
	runCount int32
	runFunc  func(ctx context.Context) error
}

func newMockWorker(name string, interval time.Duration, enabled bool) *mockWorker {
	return &mockWorker{
		BaseWorker: NewBaseWorker(name, interval, enabled),
	}
}

func (m *mockWorker) Run(ctx context.Context) error {
	atomic.AddInt32(&m.runCount, 1)
	if m.runFunc != nil {
		return m.runFunc(ctx)
	}
	return nil
}

func (m *mockWorker) runs() int {
	return int(atomic.LoadInt32(&m.runCount))
}

func TestScheduler_RunsImmediatelyThenOnTick(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("health_poller", 50*time.Millisecond, true)
	scheduler.RegisterWorker(worker)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.True(t, scheduler.IsRunning())

	assert.Eventually(t, func() bool { return worker.runs() >= 3 }, time.Second, 10*time.Millisecond)

	require.NoError(t, scheduler.Stop())
	assert.False(t, scheduler.IsRunning())
}

func TestScheduler_DisabledWorkerNeverRuns(t *testing.T) {
	scheduler := NewScheduler()

	enabled := newMockWorker("market_scanner", 50*time.Millisecond, true)
	disabled := newMockWorker("disabled", 50*time.Millisecond, false)
	scheduler.RegisterWorker(enabled)
	scheduler.RegisterWorker(disabled)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Eventually(t, func() bool { return enabled.runs() > 0 }, time.Second, 10*time.Millisecond)
	require.NoError(t, scheduler.Stop())

	assert.Equal(t, 0, disabled.runs())
}

func TestScheduler_RecordsHealth(t *testing.T) {
	scheduler := NewScheduler()

	var calls int32
	worker := newMockWorker("flaky", 20*time.Millisecond, true)
	worker.runFunc = func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1)%2 == 0 {
			return errors.ErrUpstreamUnavailable
		}
		return nil
	}
	scheduler.RegisterWorker(worker)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Eventually(t, func() bool { return worker.Health().ErrorCount >= 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, scheduler.Stop())

	health := scheduler.WorkerHealth()
	require.Len(t, health, 1)
	assert.Equal(t, "flaky", health[0].Name)
	assert.GreaterOrEqual(t, health[0].RunCount, int64(2))
	assert.True(t, health[0].Enabled)
}

func TestScheduler_RecoversFromPanic(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("panicky", 20*time.Millisecond, true)
	worker.runFunc = func(ctx context.Context) error {
		panic("boom")
	}
	scheduler.RegisterWorker(worker)

	require.NoError(t, scheduler.Start(context.Background()))
	// keeps ticking after the first panic
	assert.Eventually(t, func() bool { return worker.runs() >= 2 }, time.Second, 10*time.Millisecond)
	require.NoError(t, scheduler.Stop())

	h := worker.Health()
	assert.Equal(t, h.RunCount, h.ErrorCount)
	assert.Contains(t, h.LastError, "panic: boom")
}

func TestScheduler_StopAfterParentCancel(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newMockWorker("w", 50*time.Millisecond, true))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))
	cancel()

	assert.NoError(t, scheduler.Stop())
}

func TestScheduler_ShutdownTimeout(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.SetShutdownTimeout(30 * time.Millisecond)

	release := make(chan struct{})
	defer close(release)

	worker := newMockWorker("stuck", time.Hour, true)
	worker.runFunc = func(ctx context.Context) error {
		<-release
		return nil
	}
	scheduler.RegisterWorker(worker)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Eventually(t, func() bool { return worker.runs() == 1 }, time.Second, 5*time.Millisecond)

	err := scheduler.Stop()
	assert.ErrorIs(t, err, errors.ErrTimeout)
}

func TestScheduler_CannotStartTwice(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newMockWorker("w", 100*time.Millisecond, true))

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Error(t, scheduler.Start(context.Background()))
	assert.NoError(t, scheduler.Stop())

	assert.Error(t, scheduler.Stop(), "stopping a stopped scheduler is an error")
}

func TestScheduler_RegisterAfterStartIgnored(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newMockWorker("first", 100*time.Millisecond, true))

	require.NoError(t, scheduler.Start(context.Background()))
	scheduler.RegisterWorker(newMockWorker("late", 100*time.Millisecond, true))
	require.NoError(t, scheduler.Stop())

	workers := scheduler.GetWorkers()
	require.Len(t, workers, 1)
	assert.Equal(t, "first", workers[0].Name())
}
