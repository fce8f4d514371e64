package agents

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketscanner/internal/adapters/config"
)

// The coordinator validates requests against the shipped topology while each
// agent validates against its own InputSpec; the two must declare the same fields.
func TestShippedTopologyMatchesAgentInputs(t *testing.T) {
	for kind := range constructors {
		t.Setenv(strings.ToUpper(string(kind))+"_AGENT_URL", "http://"+string(kind)+":8080")
	}

	topo, err := config.LoadTopology(filepath.Join("..", "..", "config", "topology.yaml"))
	require.NoError(t, err)
	require.Len(t, topo.Agents, len(constructors), "every agent kind is configured")

	for _, spec := range topo.Agents {
		t.Run(spec.Name, func(t *testing.T) {
			ag, err := New(Kind(spec.Name), &fakeFeeds{})
			require.NoError(t, err)

			declared := ag.Inputs()
			assert.ElementsMatch(t, declared.Required, spec.Required, "required fields")
			assert.ElementsMatch(t, declared.Optional, spec.Optional, "optional fields")
		})
	}
}
