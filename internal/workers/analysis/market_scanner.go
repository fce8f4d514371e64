package analysis

import (
	"context"
	"strings"
	"sync"
	"time"

	"marketscanner/internal/adapters/config"
	"marketscanner/internal/coordinator"
	"marketscanner/internal/workers"
	"marketscanner/pkg/errors"
)

const defaultMaxConcurrency = 4

// WorkflowRunner executes one workflow
type WorkflowRunner interface {
	RunWorkflow(ctx context.Context, workflow string, fields map[string]interface{}) (*coordinator.WorkflowResult, error)
}

// MarketScanner runs the configured workflows for every watchlist symbol on
// each tick. Results flow through the coordinator's hub, event and stream
// side effects exactly like API-triggered runs.
type MarketScanner struct {
	*workers.BaseWorker
	runner         WorkflowRunner
	workflows      []string
	watchlist      []string
	fields         map[string]string
	maxConcurrency int
}

func NewMarketScanner(runner WorkflowRunner, cfg config.ScannerConfig) *MarketScanner {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}

	watchlist := make([]string, 0, len(cfg.Watchlist))
	for _, s := range cfg.Watchlist {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			watchlist = append(watchlist, s)
		}
	}

	return &MarketScanner{
		BaseWorker:     workers.NewBaseWorker("market_scanner", cfg.Interval, cfg.Enabled),
		runner:         runner,
		workflows:      cfg.Workflows,
		watchlist:      watchlist,
		fields:         cfg.Fields,
		maxConcurrency: maxConcurrency,
	}
}

type scanJob struct {
	workflow string
	symbol   string
}

// Run scans workflow × symbol with bounded concurrency. Degraded results are
// normal; rejected requests mean the scanner is misconfigured and are returned.
func (ms *MarketScanner) Run(ctx context.Context) error {
	start := time.Now()

	jobs := make([]scanJob, 0, len(ms.workflows)*len(ms.watchlist))
	for _, wf := range ms.workflows {
		for _, sym := range ms.watchlist {
			jobs = append(jobs, scanJob{workflow: wf, symbol: sym})
		}
	}
	if len(jobs) == 0 {
		ms.Log().Debug("Nothing to scan")
		return nil
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		rejected  errors.MultiError
		degraded  int
		semaphore = make(chan struct{}, ms.maxConcurrency)
	)

	for _, job := range jobs {
		wg.Add(1)
		go func(job scanJob) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-semaphore }()

			result, err := ms.runner.RunWorkflow(ctx, job.workflow, ms.requestFields(job.symbol))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rejected.Add(errors.Wrapf(err, "scan %s/%s", job.workflow, job.symbol))
				return
			}
			if result.Degraded() {
				degraded++
			}
		}(job)
	}
	wg.Wait()

	ms.Log().Infow("Market scan complete",
		"runs", len(jobs),
		"degraded", degraded,
		"rejected", len(rejected.Errors),
		"duration", time.Since(start),
	)

	return rejected.ToError()
}

func (ms *MarketScanner) requestFields(symbol string) map[string]interface{} {
	fields := make(map[string]interface{}, len(ms.fields)+1)
	for k, v := range ms.fields {
		fields[k] = v
	}
	fields["symbol"] = symbol
	return fields
}
