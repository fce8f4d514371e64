package analysis

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketscanner/internal/adapters/config"
	"marketscanner/internal/coordinator"
	"marketscanner/pkg/errors"
)

type recordingRunner struct {
	mu    sync.Mutex
	calls []string
	seen  []map[string]interface{}

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	delay  time.Duration
	reject map[string]bool
}

func (r *recordingRunner) RunWorkflow(ctx context.Context, workflow string, fields map[string]interface{}) (*coordinator.WorkflowResult, error) {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		peak := r.maxInFlight.Load()
		if n <= peak || r.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(r.delay)

	r.mu.Lock()
	r.calls = append(r.calls, workflow+"/"+fields["symbol"].(string))
	r.seen = append(r.seen, fields)
	r.mu.Unlock()

	if r.reject[workflow] {
		return nil, errors.Wrap(errors.ErrInvalidInput, "network: required field is missing")
	}

	status := coordinator.WorkflowOK
	if workflow == "macro_overview" {
		status = coordinator.WorkflowDegraded
	}
	return &coordinator.WorkflowResult{Workflow: workflow, Status: status}, nil
}

func TestMarketScanner_ScansEveryWorkflowSymbolPair(t *testing.T) {
	runner := &recordingRunner{}
	ms := NewMarketScanner(runner, config.ScannerConfig{
		Enabled:   true,
		Interval:  time.Minute,
		Workflows: []string{"market_pipeline", "macro_overview"},
		Watchlist: []string{" btc", "ETH ", ""},
		Fields:    map[string]string{"exchange": "binance"},
	})

	assert.Equal(t, "market_scanner", ms.Name())
	assert.True(t, ms.Enabled())
	assert.Equal(t, time.Minute, ms.Interval())

	require.NoError(t, ms.Run(context.Background()), "degraded results are not errors")

	sort.Strings(runner.calls)
	assert.Equal(t, []string{
		"macro_overview/BTC",
		"macro_overview/ETH",
		"market_pipeline/BTC",
		"market_pipeline/ETH",
	}, runner.calls)

	for _, fields := range runner.seen {
		assert.Equal(t, "binance", fields["exchange"])
	}
}

func TestMarketScanner_ReturnsRejectedRuns(t *testing.T) {
	runner := &recordingRunner{reject: map[string]bool{"chain": true}}
	ms := NewMarketScanner(runner, config.ScannerConfig{
		Enabled:   true,
		Interval:  time.Minute,
		Workflows: []string{"market_pipeline", "chain"},
		Watchlist: []string{"BTC", "ETH"},
	})

	err := ms.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	var multi *errors.MultiError
	require.ErrorAs(t, err, &multi)
	assert.Len(t, multi.Errors, 2)
	assert.Len(t, runner.calls, 4)
}

func TestMarketScanner_BoundsConcurrency(t *testing.T) {
	runner := &recordingRunner{delay: 20 * time.Millisecond}
	ms := NewMarketScanner(runner, config.ScannerConfig{
		Enabled:        true,
		Interval:       time.Minute,
		Workflows:      []string{"market_pipeline"},
		Watchlist:      []string{"BTC", "ETH", "SOL", "BNB", "XRP", "ADA"},
		MaxConcurrency: 2,
	})

	require.NoError(t, ms.Run(context.Background()))
	assert.Len(t, runner.calls, 6)
	assert.LessOrEqual(t, runner.maxInFlight.Load(), int32(2))
}

func TestMarketScanner_EmptyWatchlist(t *testing.T) {
	runner := &recordingRunner{}
	ms := NewMarketScanner(runner, config.ScannerConfig{Workflows: []string{"market_pipeline"}})

	require.NoError(t, ms.Run(context.Background()))
	assert.Empty(t, runner.calls)
}
