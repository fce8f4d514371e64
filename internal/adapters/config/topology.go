package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"marketscanner/pkg/errors"
)

// Topology is the static agent and workflow catalog.
// Agents are never discovered at runtime; everything comes from this file.
type Topology struct {
	Agents    []AgentSpec    `yaml:"agents"`
	Workflows []WorkflowSpec `yaml:"workflows"`
}

// AgentSpec declares one worker agent: where it lives and which request fields it consumes
type AgentSpec struct {
	Name     string        `yaml:"name"`
	Endpoint string        `yaml:"endpoint"`
	Required []string      `yaml:"required"`
	Optional []string      `yaml:"optional"`
	Timeout  time.Duration `yaml:"timeout"`
	Budget   int64         `yaml:"budget"` // calls per budget window, 0 = unlimited
}

// URL joins the agent endpoint with a route such as "/task" or "/health"
func (a AgentSpec) URL(path string) string {
	return strings.TrimRight(a.Endpoint, "/") + path
}

// WorkflowSpec is a named, ordered list of agents
type WorkflowSpec struct {
	Name   string   `yaml:"name"`
	Agents []string `yaml:"agents"`
}

// LoadTopology reads and validates a topology file. Environment variables
// in the file (e.g. ${CRYPTO_AGENT_URL}) are expanded before parsing.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read topology %s", path)
	}

	return ParseTopology(data)
}

// ParseTopology parses and validates topology YAML
func ParseTopology(data []byte) (*Topology, error) {
	var t Topology
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &t); err != nil {
		return nil, errors.Wrap(err, "parse topology")
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return &t, nil
}

// Validate checks agent uniqueness and that every workflow lists known agents at most once
func (t *Topology) Validate() error {
	known := make(map[string]bool, len(t.Agents))
	for i, a := range t.Agents {
		if a.Name == "" {
			return errors.NewValidationError("agents", "agent name is required", i)
		}
		if a.Endpoint == "" {
			return errors.NewValidationError("agents."+a.Name+".endpoint", "endpoint is required", "")
		}
		if known[a.Name] {
			return errors.NewValidationError("agents", "duplicate agent", a.Name)
		}
		known[a.Name] = true
	}

	workflows := make(map[string]bool, len(t.Workflows))
	for _, w := range t.Workflows {
		if w.Name == "" {
			return errors.NewValidationError("workflows", "workflow name is required", "")
		}
		if workflows[w.Name] {
			return errors.NewValidationError("workflows", "duplicate workflow", w.Name)
		}
		workflows[w.Name] = true

		// results are namespaced by agent name, so each agent appears once
		listed := make(map[string]bool, len(w.Agents))
		for _, name := range w.Agents {
			if !known[name] {
				return errors.NewValidationError("workflows."+w.Name, "unknown agent", name)
			}
			if listed[name] {
				return errors.NewValidationError("workflows."+w.Name, "agent listed twice", name)
			}
			listed[name] = true
		}
	}

	return nil
}
