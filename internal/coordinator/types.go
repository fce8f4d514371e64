package coordinator

import "time"

// AgentResult statuses
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// WorkflowResult statuses
const (
	WorkflowOK       = "ok"
	WorkflowDegraded = "degraded"
)

// Request is one workflow invocation: the workflow name plus the union of
// input fields its agents need. On the wire it is a flat JSON object whose
// "workflow" member names the workflow.
type Request struct {
	Workflow string
	Fields   map[string]interface{}
}

// RequestFromMap splits a flat request body into workflow name and fields
func RequestFromMap(body map[string]interface{}) Request {
	req := Request{Fields: make(map[string]interface{}, len(body))}
	for k, v := range body {
		if k == "workflow" {
			req.Workflow, _ = v.(string)
			continue
		}
		req.Fields[k] = v
	}
	return req
}

// AgentTask is one fan-out call
type AgentTask struct {
	Agent   string
	URL     string
	Timeout time.Duration
	Payload map[string]interface{}
}

// AgentResult is the outcome of one AgentTask. Data is set on success,
// Error carries the classified reason on failure.
type AgentResult struct {
	Agent      string                 `json:"agent"`
	Status     string                 `json:"status"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
}

// Succeeded reports whether the agent returned a payload
func (r AgentResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// WorkflowResult aggregates one run. Results holds one entry per configured
// agent in configured order; AggregatedData namespaces every successful
// payload under its agent name.
type WorkflowResult struct {
	ID             string                            `json:"id"`
	Workflow       string                            `json:"workflow"`
	Symbol         string                            `json:"symbol,omitempty"`
	Status         string                            `json:"status"`
	Confidence     float64                           `json:"confidence"`
	Results        []AgentResult                     `json:"results"`
	AggregatedData map[string]map[string]interface{} `json:"aggregated_data"`
	Inputs         map[string]interface{}            `json:"inputs,omitempty"`
	StartedAt      time.Time                         `json:"started_at"`
	CompletedAt    time.Time                         `json:"completed_at"`
}

// Degraded reports whether no agent succeeded
func (r *WorkflowResult) Degraded() bool {
	return r.Status == WorkflowDegraded
}
