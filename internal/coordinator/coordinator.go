package coordinator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketscanner/internal/adapters/config"
	"marketscanner/internal/agents"
	"marketscanner/internal/hub"
	"marketscanner/internal/metrics"
	"marketscanner/pkg/errors"
	"marketscanner/pkg/logger"
)

const (
	defaultAgentTimeout = 5 * time.Second
	sideEffectTimeout   = 5 * time.Second
)

// HealthView is the supervisor's read-only health snapshot
type HealthView interface {
	IsHealthy(agent string) (healthy bool, known bool)
}

// BudgetGuard spends one unit of an agent's call budget
type BudgetGuard interface {
	Consume(ctx context.Context, agent string, limit int64) (remaining int64, err error)
}

// Publisher forwards finished runs to the event bus
type Publisher interface {
	PublishWorkflowCompleted(ctx context.Context, result *WorkflowResult) error
}

// Broadcaster pushes finished runs to live subscribers
type Broadcaster interface {
	Broadcast(result *WorkflowResult)
}

type Options struct {
	DefaultTimeout time.Duration
	SkipUnhealthy  bool
	EnforceBudget  bool
	HubTTL         time.Duration
}

// OptionsFromConfig maps the process config onto coordinator options
func OptionsFromConfig(cfg config.CoordinatorConfig) Options {
	return Options{
		DefaultTimeout: cfg.DefaultTimeout,
		SkipUnhealthy:  cfg.SkipUnhealthy,
		EnforceBudget:  cfg.EnforceBudget,
		HubTTL:         cfg.HubTTL,
	}
}

// Deps are optional collaborators; any of them may be nil.
type Deps struct {
	Health      HealthView
	Budget      BudgetGuard
	Publisher   Publisher
	Hub         hub.Store
	Broadcaster Broadcaster
}

// Coordinator runs workflows: it fans out to every agent of the workflow,
// waits for all of them and aggregates the outcome.
type Coordinator struct {
	catalog *Catalog
	caller  AgentCaller
	opts    Options
	deps    Deps
	log     *logger.Logger
	now     func() time.Time
}

func New(catalog *Catalog, caller AgentCaller, opts Options, deps Deps) *Coordinator {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = defaultAgentTimeout
	}
	return &Coordinator{
		catalog: catalog,
		caller:  caller,
		opts:    opts,
		deps:    deps,
		log:     logger.Get().With("component", "coordinator"),
		now:     time.Now,
	}
}

// SlowestCall is the longest time a single agent call may take, which is
// also the longest a run can wait on its fan-out.
func (c *Coordinator) SlowestCall() time.Duration {
	slowest := time.Duration(0)
	for _, a := range c.catalog.Agents() {
		timeout := a.Timeout
		if timeout <= 0 {
			timeout = c.opts.DefaultTimeout
		}
		if timeout > slowest {
			slowest = timeout
		}
	}
	return slowest
}

// RunWorkflow executes one workflow. Partial or total agent failure is
// reported inside the result; the only errors are ErrInvalidWorkflow and
// ErrInvalidInput, both returned before any agent is called.
func (c *Coordinator) RunWorkflow(ctx context.Context, workflow string, fields map[string]interface{}) (*WorkflowResult, error) {
	inputs := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		inputs[k] = v
	}
	fields = inputs

	specs, err := c.catalog.Resolve(workflow)
	if err != nil {
		metrics.RecordWorkflow(workflow, "rejected", 0, 0)
		return nil, err
	}

	tasks, err := c.buildTasks(specs, fields)
	if err != nil {
		metrics.RecordWorkflow(workflow, "rejected", 0, 0)
		return nil, err
	}

	started := c.now()
	id := uuid.New().String()
	ctx = errors.WithRequestID(ctx, id)

	result := &WorkflowResult{
		ID:        id,
		Workflow:  workflow,
		Symbol:    symbolOf(fields),
		Inputs:    fields,
		StartedAt: started,
	}

	result.Results = c.fanOut(ctx, specs, tasks)
	aggregate(result)
	result.CompletedAt = c.now()

	duration := result.CompletedAt.Sub(started)
	metrics.RecordWorkflow(workflow, result.Status, duration, result.Confidence)

	c.log.Infow("Workflow completed",
		"workflow", workflow,
		"id", result.ID,
		"symbol", result.Symbol,
		"status", result.Status,
		"confidence", result.Confidence,
		"duration", duration,
	)

	c.afterRun(ctx, result)

	return result, nil
}

// buildTasks validates every agent's inputs before any call is made
func (c *Coordinator) buildTasks(specs []config.AgentSpec, fields map[string]interface{}) ([]AgentTask, error) {
	tasks := make([]AgentTask, len(specs))

	for i, spec := range specs {
		declared := agents.InputSpec{Required: spec.Required, Optional: spec.Optional}
		if err := declared.Validate(agents.Input(fields)); err != nil {
			return nil, errors.Wrapf(err, "agent %s", spec.Name)
		}

		payload := make(map[string]interface{}, len(spec.Required)+len(spec.Optional))
		for _, name := range declared.Fields() {
			if v, ok := fields[name]; ok {
				payload[name] = v
			}
		}

		timeout := spec.Timeout
		if timeout <= 0 {
			timeout = c.opts.DefaultTimeout
		}

		tasks[i] = AgentTask{
			Agent:   spec.Name,
			URL:     spec.URL("/task"),
			Timeout: timeout,
			Payload: payload,
		}
	}

	return tasks, nil
}

// fanOut runs every task concurrently and returns results in task order
func (c *Coordinator) fanOut(ctx context.Context, specs []config.AgentSpec, tasks []AgentTask) []AgentResult {
	results := make([]AgentResult, len(tasks))

	var wg sync.WaitGroup
	for i := range tasks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.execute(ctx, specs[i], tasks[i])
		}(i)
	}
	wg.Wait()

	return results
}

// execute performs one task under its own timeout and never panics the run
func (c *Coordinator) execute(ctx context.Context, spec config.AgentSpec, task AgentTask) (result AgentResult) {
	start := time.Now()
	result = AgentResult{Agent: task.Agent}

	defer func() {
		if r := recover(); r != nil {
			err := errors.Wrapf(errors.ErrUpstreamUnavailable, "agent %s panicked: %v", task.Agent, r)
			c.log.ErrorWithContext(ctx, err, map[string]string{
				"component": "coordinator",
				"agent":     task.Agent,
			})
			result = failure(task.Agent, err)
		}

		elapsed := time.Since(start)
		result.DurationMs = elapsed.Milliseconds()
		metrics.RecordAgentCall(task.Agent, result.Status, result.Error, elapsed)
	}()

	if err := c.admit(ctx, spec); err != nil {
		c.log.Debugw("Agent skipped", "agent", task.Agent, "reason", errors.Classify(err))
		return failure(task.Agent, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, task.Timeout)
	defer cancel()

	data, err := c.caller.Call(callCtx, task)
	if err != nil {
		c.log.Warnw("Agent call failed", "agent", task.Agent, "error", err)
		return failure(task.Agent, err)
	}

	// only payloads with a usable confidence count as success
	if _, err := confidenceOf(data); err != nil {
		c.log.Warnw("Agent returned an unusable payload", "agent", task.Agent, "error", err)
		return failure(task.Agent, errors.Wrapf(errors.ErrUpstreamUnavailable, "%s: %v", task.Agent, err))
	}

	return AgentResult{Agent: task.Agent, Status: StatusSuccess, Data: data}
}

// admit applies the optional skip policies
func (c *Coordinator) admit(ctx context.Context, spec config.AgentSpec) error {
	if c.opts.SkipUnhealthy && c.deps.Health != nil {
		if healthy, known := c.deps.Health.IsHealthy(spec.Name); known && !healthy {
			return errors.Wrapf(errors.ErrAgentUnhealthy, "agent %s", spec.Name)
		}
	}

	if c.opts.EnforceBudget && c.deps.Budget != nil && spec.Budget > 0 {
		if _, err := c.deps.Budget.Consume(ctx, spec.Name, spec.Budget); err != nil {
			if errors.Is(err, errors.ErrBudgetExhausted) {
				return err
			}
			// budget backend trouble must not block the request path
			c.log.Warnw("Budget check failed", "agent", spec.Name, "error", err)
		}
	}

	return nil
}

// failure builds a failed result carrying the classified reason. Errors
// without a known class count as upstream unavailability.
func failure(agent string, err error) AgentResult {
	reason := errors.Classify(err)
	if reason == errors.ReasonInternal || reason == "" {
		reason = errors.ReasonUpstreamUnavailable
	}
	return AgentResult{Agent: agent, Status: StatusFailure, Error: reason}
}

// aggregate fills status, confidence and aggregated data from the results.
// execute guarantees every success carries a confidence in [0,1].
func aggregate(result *WorkflowResult) {
	result.AggregatedData = make(map[string]map[string]interface{})

	var sum float64
	var successes int
	for _, r := range result.Results {
		if !r.Succeeded() {
			continue
		}
		conf, _ := confidenceOf(r.Data)
		sum += conf
		successes++
		result.AggregatedData[r.Agent] = r.Data
	}

	if successes == 0 {
		result.Status = WorkflowDegraded
		result.Confidence = 0
		return
	}

	result.Status = WorkflowOK
	result.Confidence = agents.ClampConfidence(sum / float64(successes))
}

// afterRun stores, publishes and broadcasts the result. Every step is
// best-effort and runs even when the caller has already gone away.
func (c *Coordinator) afterRun(ctx context.Context, result *WorkflowResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if c.deps.Hub != nil {
		key := hub.Key(result.Workflow, result.Symbol)
		if err := c.deps.Hub.Set(ctx, key, result, c.opts.HubTTL); err != nil {
			c.log.Warnw("Failed to write hub", "key", key, "error", err)
		}
	}

	if c.deps.Publisher != nil {
		if err := c.deps.Publisher.PublishWorkflowCompleted(ctx, result); err != nil {
			c.log.Warnw("Failed to publish workflow result", "id", result.ID, "error", err)
		}
	}

	if c.deps.Broadcaster != nil {
		c.deps.Broadcaster.Broadcast(result)
	}
}

func symbolOf(fields map[string]interface{}) string {
	s, _ := fields["symbol"].(string)
	return strings.ToUpper(strings.TrimSpace(s))
}
