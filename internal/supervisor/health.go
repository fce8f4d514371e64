package supervisor

import "time"

const (
	StatusOK          = "ok"
	StatusUnreachable = "unreachable"
	StatusUnknown     = "unknown"
)

// AgentHealth is the supervisor's view of one agent
type AgentHealth struct {
	Agent               string     `json:"agent"`
	Endpoint            string     `json:"endpoint"`
	Status              string     `json:"status"`
	LastSeen            *time.Time `json:"last_seen,omitempty"`
	LastChecked         *time.Time `json:"last_checked,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           string     `json:"last_error,omitempty"`
}

// Snapshot is an immutable set of health records. It is replaced wholesale
// by the poller and never modified after publication.
type Snapshot struct {
	Agents    map[string]AgentHealth
	CheckedAt time.Time
}

// HealthEvent describes a status transition for one agent
type HealthEvent struct {
	Agent    string    `json:"agent"`
	Previous string    `json:"previous"`
	Current  string    `json:"current"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// apply returns the record after one probe outcome
func (h AgentHealth) apply(at time.Time, probeErr error) AgentHealth {
	checked := at
	h.LastChecked = &checked

	if probeErr == nil {
		seen := at
		h.Status = StatusOK
		h.LastSeen = &seen
		h.ConsecutiveFailures = 0
		h.LastError = ""
		return h
	}

	h.Status = StatusUnreachable
	h.ConsecutiveFailures++
	h.LastError = probeErr.Error()
	return h
}
