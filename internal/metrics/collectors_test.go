package metrics

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketscanner/pkg/logger"
)

type staticSource []AgentState

func (s staticSource) AgentStates(ctx context.Context) []AgentState {
	return s
}

func TestCustomCollector(t *testing.T) {
	src := staticSource{
		{Agent: "crypto", Known: true, Healthy: true},
		{Agent: "stock", Known: true, Healthy: false, BudgetLimit: 10, BudgetRemaining: 3},
		{Agent: "news"},
	}

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCustomCollector(logger.Nop(), src)))

	expected := `
# HELP marketscanner_agent_budget_remaining Remaining agent calls in the current budget window
# TYPE marketscanner_agent_budget_remaining gauge
marketscanner_agent_budget_remaining{agent="stock"} 3
# HELP marketscanner_agent_up Agent health as last seen by the supervisor (1=ok, 0=unreachable, -1=unknown)
# TYPE marketscanner_agent_up gauge
marketscanner_agent_up{agent="crypto"} 1
marketscanner_agent_up{agent="news"} -1
marketscanner_agent_up{agent="stock"} 0
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected)))
}

func TestInit_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})

	RecordWorkflow("market_pipeline", "ok", 0, 0.7)
	RecordWorkflow("nonexistent", "rejected", 0, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(WorkflowRuns.WithLabelValues("nonexistent", "rejected")))
}
