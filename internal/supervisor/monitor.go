package supervisor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"marketscanner/internal/adapters/config"
	"marketscanner/internal/metrics"
	"marketscanner/internal/workers"
	"marketscanner/pkg/errors"
)

// HealthPublisher receives agent status transitions
type HealthPublisher interface {
	PublishAgentHealth(ctx context.Context, ev HealthEvent) error
}

// Monitor polls every agent's GET /health on the scheduler and keeps the
// latest results in an atomically swapped Snapshot. Run is the only writer;
// readers never take a lock.
type Monitor struct {
	*workers.BaseWorker

	targets      []config.AgentSpec
	client       *http.Client
	probeTimeout time.Duration
	budget       Budget
	publisher    HealthPublisher
	now          func() time.Time

	snapshot atomic.Pointer[Snapshot]
}

// NewMonitor creates the health poller. budget and publisher may be nil.
func NewMonitor(targets []config.AgentSpec, cfg config.SupervisorConfig, budget Budget, publisher HealthPublisher) *Monitor {
	m := &Monitor{
		BaseWorker:   workers.NewBaseWorker("health_poller", cfg.PollInterval, cfg.Enabled),
		targets:      targets,
		client:       &http.Client{},
		probeTimeout: cfg.ProbeTimeout,
		budget:       budget,
		publisher:    publisher,
		now:          time.Now,
	}

	initial := &Snapshot{Agents: make(map[string]AgentHealth, len(targets))}
	for _, t := range targets {
		initial.Agents[t.Name] = AgentHealth{Agent: t.Name, Endpoint: t.Endpoint, Status: StatusUnknown}
	}
	m.snapshot.Store(initial)

	return m
}

// Run probes all agents concurrently and publishes a new snapshot.
// Probe failures are recorded, never returned.
func (m *Monitor) Run(ctx context.Context) error {
	errs := make([]error, len(m.targets))

	var wg sync.WaitGroup
	for i, target := range m.targets {
		wg.Add(1)
		go func(i int, target config.AgentSpec) {
			defer wg.Done()
			errs[i] = m.probe(ctx, target)
		}(i, target)
	}
	wg.Wait()

	if ctx.Err() != nil {
		// shutting down: partial probes would read as outages
		return nil
	}

	at := m.now()
	prev := m.snapshot.Load()
	next := &Snapshot{Agents: make(map[string]AgentHealth, len(m.targets)), CheckedAt: at}

	var transitions []HealthEvent
	for i, target := range m.targets {
		old := prev.Agents[target.Name]
		updated := old.apply(at, errs[i])
		next.Agents[target.Name] = updated

		status := StatusOK
		if errs[i] != nil {
			status = StatusUnreachable
		}
		metrics.RecordHealthProbe(target.Name, status)

		if old.Status != updated.Status {
			transitions = append(transitions, HealthEvent{
				Agent:    target.Name,
				Previous: old.Status,
				Current:  updated.Status,
				Error:    updated.LastError,
				At:       at,
			})
		}
	}

	m.snapshot.Store(next)

	for _, ev := range transitions {
		if ev.Current == StatusOK {
			m.Log().Infow("Agent healthy", "agent", ev.Agent, "previous", ev.Previous)
		} else {
			m.Log().Warnw("Agent unreachable", "agent", ev.Agent, "previous", ev.Previous, "error", ev.Error)
		}

		if m.publisher != nil {
			if err := m.publisher.PublishAgentHealth(ctx, ev); err != nil {
				m.Log().Warnw("Failed to publish health event", "agent", ev.Agent, "error", err)
			}
		}
	}

	return nil
}

// probe performs one GET /health; anything but a 200 {"status":"ok"} is a failure
func (m *Monitor) probe(ctx context.Context, target config.AgentSpec) error {
	if m.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.probeTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL("/health"), nil)
	if err != nil {
		return errors.Wrap(errors.ErrUpstreamUnavailable, err.Error())
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrUpstreamUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(errors.ErrUpstreamUnavailable, "health returned %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil {
		return errors.Wrapf(errors.ErrUpstreamUnavailable, "decode health: %v", err)
	}
	if body.Status != StatusOK {
		return errors.Wrapf(errors.ErrUpstreamUnavailable, "health status %q", body.Status)
	}

	return nil
}

// Snapshot returns the current immutable snapshot
func (m *Monitor) Snapshot() *Snapshot {
	return m.snapshot.Load()
}

// IsHealthy reports the last probe outcome. known is false until the
// agent has been probed at least once.
func (m *Monitor) IsHealthy(agent string) (healthy bool, known bool) {
	h, ok := m.snapshot.Load().Agents[agent]
	if !ok || h.Status == StatusUnknown {
		return false, false
	}
	return h.Status == StatusOK, true
}

// Agents returns health records in configured order
func (m *Monitor) Agents() []AgentHealth {
	snap := m.snapshot.Load()

	out := make([]AgentHealth, 0, len(m.targets))
	for _, t := range m.targets {
		out = append(out, snap.Agents[t.Name])
	}
	return out
}

// Remaining returns the agent's remaining call budget, Unlimited when it has none
func (m *Monitor) Remaining(ctx context.Context, agent string) (int64, error) {
	for _, t := range m.targets {
		if t.Name != agent {
			continue
		}
		if m.budget == nil || t.Budget <= 0 {
			return Unlimited, nil
		}
		return m.budget.Remaining(ctx, agent, t.Budget)
	}
	return 0, errors.Wrapf(errors.ErrNotFound, "agent %s", agent)
}

// AgentStates feeds the metrics collector
func (m *Monitor) AgentStates(ctx context.Context) []metrics.AgentState {
	snap := m.snapshot.Load()

	out := make([]metrics.AgentState, 0, len(m.targets))
	for _, t := range m.targets {
		h := snap.Agents[t.Name]
		s := metrics.AgentState{
			Agent:   t.Name,
			Known:   h.Status != StatusUnknown,
			Healthy: h.Status == StatusOK,
		}
		if m.budget != nil && t.Budget > 0 {
			if remaining, err := m.budget.Remaining(ctx, t.Name, t.Budget); err == nil {
				s.BudgetLimit = t.Budget
				s.BudgetRemaining = remaining
			}
		}
		out = append(out, s)
	}
	return out
}
