package consumers

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"

	"marketscanner/internal/adapters/kafka"
	"marketscanner/internal/coordinator"
	"marketscanner/internal/metrics"
	"marketscanner/pkg/errors"
	"marketscanner/pkg/logger"
)

// MessageSource is the part of kafka.Consumer this consumer drives
type MessageSource interface {
	Consume(ctx context.Context, handler kafka.MessageHandler) error
	Close() error
}

var _ MessageSource = (*kafka.Consumer)(nil)

// WorkflowRunner executes one workflow
type WorkflowRunner interface {
	RunWorkflow(ctx context.Context, workflow string, fields map[string]interface{}) (*coordinator.WorkflowResult, error)
}

// WorkflowRequestConsumer runs workflows requested over workflows.requests.
// Results leave through the coordinator's own publisher, so a request
// produces a workflows.completed event like an HTTP-triggered run.
type WorkflowRequestConsumer struct {
	source MessageSource
	runner WorkflowRunner
	log    *logger.Logger
}

func NewWorkflowRequestConsumer(source MessageSource, runner WorkflowRunner, log *logger.Logger) *WorkflowRequestConsumer {
	return &WorkflowRequestConsumer{
		source: source,
		runner: runner,
		log:    log.With("component", "workflow_request_consumer"),
	}
}

// Start consumes until ctx is cancelled and closes the source on exit
func (c *WorkflowRequestConsumer) Start(ctx context.Context) error {
	c.log.Infow("Subscribed to workflow requests", "topic", kafka.TopicWorkflowRequests)

	defer func() {
		if err := c.source.Close(); err != nil {
			c.log.Errorw("Failed to close workflow request consumer", "error", err)
		} else {
			c.log.Info("Workflow request consumer closed")
		}
	}()

	err := c.source.Consume(ctx, c.handle)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// handle never fails a message for a caller mistake: rejected requests are
// logged and committed so they cannot block the partition.
func (c *WorkflowRequestConsumer) handle(ctx context.Context, msg kafkago.Message) error {
	var body map[string]interface{}
	if err := json.Unmarshal(msg.Value, &body); err != nil {
		metrics.RecordKafkaMessage(kafka.TopicWorkflowRequests, "consumed", err)
		c.log.Warnw("Dropping malformed workflow request", "offset", msg.Offset, "error", err)
		return nil
	}

	req := coordinator.RequestFromMap(body)
	result, err := c.runner.RunWorkflow(ctx, req.Workflow, req.Fields)
	metrics.RecordKafkaMessage(kafka.TopicWorkflowRequests, "consumed", err)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidWorkflow) || errors.Is(err, errors.ErrInvalidInput) {
			c.log.Warnw("Rejected workflow request",
				"workflow", req.Workflow,
				"offset", msg.Offset,
				"reason", errors.Classify(err),
				"error", err,
			)
			return nil
		}
		return errors.Wrapf(err, "run workflow %s", req.Workflow)
	}

	c.log.Infow("Workflow request processed",
		"workflow", result.Workflow,
		"id", result.ID,
		"status", result.Status,
		"confidence", result.Confidence,
		"key", string(msg.Key),
	)
	return nil
}
