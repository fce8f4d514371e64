package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketscanner/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "marketscanner", cfg.App.Name)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 5*time.Second, cfg.Coordinator.DefaultTimeout)
	assert.Equal(t, 15*time.Second, cfg.Supervisor.PollInterval)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Scanner.Watchlist)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("COORDINATOR_AGENT_TIMEOUT", "750ms")
	t.Setenv("COORDINATOR_SKIP_UNHEALTHY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 750*time.Millisecond, cfg.Coordinator.DefaultTimeout)
	assert.True(t, cfg.Coordinator.SkipUnhealthy)
}

func TestParseTopology(t *testing.T) {
	t.Setenv("CRYPTO_URL", "http://crypto:8080")

	topo, err := ParseTopology([]byte(`
agents:
  - name: crypto
    endpoint: ${CRYPTO_URL}
    required: [symbol]
    optional: [exchange]
    timeout: 2s
  - name: stock
    endpoint: http://stock:8080
    required: [symbol]
    budget: 10
workflows:
  - name: market_pipeline
    agents: [crypto, stock]
  - name: empty
`))
	require.NoError(t, err)

	require.Len(t, topo.Agents, 2)
	assert.Equal(t, "http://crypto:8080", topo.Agents[0].Endpoint)
	assert.Equal(t, 2*time.Second, topo.Agents[0].Timeout)
	assert.Equal(t, []string{"exchange"}, topo.Agents[0].Optional)
	assert.Equal(t, int64(10), topo.Agents[1].Budget)
	assert.Equal(t, []string{"crypto", "stock"}, topo.Workflows[0].Agents)
	assert.Empty(t, topo.Workflows[1].Agents)
}

func TestParseTopology_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown agent": `
agents:
  - {name: crypto, endpoint: http://c}
workflows:
  - {name: wf, agents: [crypto, stock]}
`,
		"duplicate agent": `
agents:
  - {name: crypto, endpoint: http://c}
  - {name: crypto, endpoint: http://d}
`,
		"missing endpoint": `
agents:
  - {name: crypto}
`,
		"agent listed twice in workflow": `
agents:
  - {name: crypto, endpoint: http://c}
workflows:
  - {name: dup, agents: [crypto, crypto]}
`,
		"duplicate workflow": `
agents:
  - {name: crypto, endpoint: http://c}
workflows:
  - {name: wf, agents: [crypto]}
  - {name: wf, agents: [crypto]}
`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTopology([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidInput))
		})
	}
}

func TestParseTopology_AgentListedTwice(t *testing.T) {
	_, err := ParseTopology([]byte(`
agents:
  - {name: crypto, endpoint: http://c}
  - {name: stock, endpoint: http://s}
workflows:
  - {name: dup, agents: [crypto, stock, crypto]}
`))
	require.Error(t, err)

	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "workflows.dup", verr.Field)
	assert.Equal(t, "crypto", verr.Value)
}

func TestLoadTopology_ShippedFile(t *testing.T) {
	path := filepath.Join("..", "..", "..", "config", "topology.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skip("topology file not present")
	}
	for _, kind := range []string{"CRYPTO", "STOCK", "WHALE", "NEWS", "SENTIMENT", "ONCHAIN", "MACRO", "PORTFOLIO"} {
		t.Setenv(kind+"_AGENT_URL", "http://"+kind+":8080")
	}

	topo, err := LoadTopology(path)
	require.NoError(t, err)
	assert.Len(t, topo.Agents, 8)

	names := make([]string, 0, len(topo.Workflows))
	for _, w := range topo.Workflows {
		names = append(names, w.Name)
	}
	assert.Contains(t, names, "market_pipeline")
}

func TestLoadTopology_MissingFile(t *testing.T) {
	_, err := LoadTopology(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
