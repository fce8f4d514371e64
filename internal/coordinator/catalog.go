package coordinator

import (
	"marketscanner/internal/adapters/config"
	"marketscanner/pkg/errors"
)

// Catalog is the static agent and workflow configuration
type Catalog struct {
	agents    []config.AgentSpec
	workflows []config.WorkflowSpec

	agentByName    map[string]config.AgentSpec
	workflowByName map[string]config.WorkflowSpec
}

func NewCatalog(t *config.Topology) *Catalog {
	c := &Catalog{
		agents:         append([]config.AgentSpec(nil), t.Agents...),
		workflows:      append([]config.WorkflowSpec(nil), t.Workflows...),
		agentByName:    make(map[string]config.AgentSpec, len(t.Agents)),
		workflowByName: make(map[string]config.WorkflowSpec, len(t.Workflows)),
	}

	for _, a := range t.Agents {
		c.agentByName[a.Name] = a
	}
	for _, w := range t.Workflows {
		c.workflowByName[w.Name] = w
	}

	return c
}

// Agents returns every configured agent in file order
func (c *Catalog) Agents() []config.AgentSpec {
	return append([]config.AgentSpec(nil), c.agents...)
}

func (c *Catalog) Agent(name string) (config.AgentSpec, bool) {
	a, ok := c.agentByName[name]
	return a, ok
}

// Workflows returns every configured workflow in file order
func (c *Catalog) Workflows() []config.WorkflowSpec {
	return append([]config.WorkflowSpec(nil), c.workflows...)
}

// Resolve returns the ordered agents of a workflow. Unknown workflows and
// workflows without agents are ErrInvalidWorkflow.
func (c *Catalog) Resolve(workflow string) ([]config.AgentSpec, error) {
	w, ok := c.workflowByName[workflow]
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidWorkflow, "unknown workflow %q", workflow)
	}
	if len(w.Agents) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidWorkflow, "workflow %q has no agents", workflow)
	}

	out := make([]config.AgentSpec, 0, len(w.Agents))
	for _, name := range w.Agents {
		a, ok := c.agentByName[name]
		if !ok {
			return nil, errors.Wrapf(errors.ErrInvalidWorkflow, "workflow %q references unknown agent %q", workflow, name)
		}
		out = append(out, a)
	}
	return out, nil
}
