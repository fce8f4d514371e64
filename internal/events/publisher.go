package events

import (
	"context"

	"marketscanner/internal/adapters/kafka"
	"marketscanner/internal/coordinator"
	"marketscanner/internal/metrics"
	"marketscanner/internal/supervisor"
	"marketscanner/pkg/errors"
	"marketscanner/pkg/logger"
)

// Producer is the part of kafka.Producer the publisher needs
type Producer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

var _ Producer = (*kafka.Producer)(nil)

// Publisher turns coordinator and supervisor outcomes into Kafka events
type Publisher struct {
	producer Producer
	source   string
	log      *logger.Logger
}

var (
	_ coordinator.Publisher      = (*Publisher)(nil)
	_ supervisor.HealthPublisher = (*Publisher)(nil)
)

func NewPublisher(producer Producer, source string, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		source:   source,
		log:      log.With("component", "event_publisher"),
	}
}

// PublishWorkflowCompleted publishes a finished run keyed by workflow and symbol
func (p *Publisher) PublishWorkflowCompleted(ctx context.Context, result *coordinator.WorkflowResult) error {
	if result == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil workflow result")
	}

	clean := *result
	clean.Results = make([]coordinator.AgentResult, len(result.Results))
	for i, r := range result.Results {
		r.Error = SanitizeUTF8(r.Error)
		clean.Results[i] = r
	}

	return p.publish(ctx, kafka.TopicWorkflowCompleted, workflowKey(result.Workflow, result.Symbol),
		NewEnvelope(TypeWorkflowCompleted, p.source, clean))
}

// PublishAgentHealth publishes one health transition keyed by agent
func (p *Publisher) PublishAgentHealth(ctx context.Context, ev supervisor.HealthEvent) error {
	ev.Error = SanitizeUTF8(ev.Error)

	return p.publish(ctx, kafka.TopicAgentHealth, ev.Agent,
		NewEnvelope(TypeAgentHealth, p.source, ev))
}

func (p *Publisher) publish(ctx context.Context, topic, key string, env Envelope) error {
	err := p.producer.Publish(ctx, topic, key, env)
	metrics.RecordKafkaMessage(topic, "produced", err)
	if err != nil {
		p.log.Warnw("Failed to publish event", "topic", topic, "type", env.Type, "key", key, "error", err)
		return errors.Wrapf(err, "publish %s", env.Type)
	}

	p.log.Debugw("Event published", "topic", topic, "type", env.Type, "key", key)
	return nil
}
