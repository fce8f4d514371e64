package events

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"marketscanner/internal/hub"
)

// Event types carried in Envelope.Type
const (
	TypeWorkflowCompleted = "workflow.completed"
	TypeAgentHealth       = "agent.health_changed"
)

const envelopeVersion = "1.0"

// Envelope is the JSON frame every published event travels in
type Envelope struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEnvelope wraps payload with a fresh id and the current time
func NewEnvelope(eventType, source string, payload interface{}) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Version:   envelopeVersion,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// SanitizeUTF8 drops invalid UTF-8 sequences. Agent error strings can carry
// raw upstream bytes and would otherwise be mangled in JSON.
func SanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "")
}

// workflowKey keeps every result of one workflow over one symbol on the same partition
func workflowKey(workflow, symbol string) string {
	if symbol == "" {
		symbol = hub.AllSymbols
	}
	return workflow + ":" + symbol
}
