package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"marketscanner/pkg/logger"
)

// AgentState is the per-agent view the collector exports at scrape time
type AgentState struct {
	Agent           string
	Healthy         bool
	Known           bool
	BudgetLimit     int64 // 0 = unlimited
	BudgetRemaining int64
}

// StateSource provides agent health and budget; the supervisor implements it
type StateSource interface {
	AgentStates(ctx context.Context) []AgentState
}

// CustomCollector exports supervisor-owned state as gauges on every scrape
type CustomCollector struct {
	log    *logger.Logger
	source StateSource

	agentUp         *prometheus.Desc
	budgetRemaining *prometheus.Desc
}

func NewCustomCollector(log *logger.Logger, source StateSource) *CustomCollector {
	return &CustomCollector{
		log:    log,
		source: source,

		agentUp: prometheus.NewDesc(
			"marketscanner_agent_up",
			"Agent health as last seen by the supervisor (1=ok, 0=unreachable, -1=unknown)",
			[]string{"agent"}, nil,
		),
		budgetRemaining: prometheus.NewDesc(
			"marketscanner_agent_budget_remaining",
			"Remaining agent calls in the current budget window",
			[]string{"agent"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CustomCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.agentUp
	ch <- c.budgetRemaining
}

// Collect implements prometheus.Collector
func (c *CustomCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, s := range c.source.AgentStates(ctx) {
		up := -1.0
		if s.Known {
			up = 0
			if s.Healthy {
				up = 1
			}
		}
		ch <- prometheus.MustNewConstMetric(c.agentUp, prometheus.GaugeValue, up, s.Agent)

		if s.BudgetLimit > 0 {
			ch <- prometheus.MustNewConstMetric(
				c.budgetRemaining,
				prometheus.GaugeValue,
				float64(s.BudgetRemaining),
				s.Agent,
			)
		}
	}
}
