package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"marketscanner/internal/adapters/kafka"
	"marketscanner/internal/coordinator"
	"marketscanner/internal/supervisor"
	"marketscanner/pkg/errors"
	"marketscanner/pkg/logger"
)

type mockProducer struct {
	mock.Mock
}

func (m *mockProducer) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	return m.Called(ctx, topic, key, event).Error(0)
}

func TestPublisher_WorkflowCompleted(t *testing.T) {
	producer := &mockProducer{}
	p := NewPublisher(producer, "coordinator", logger.Nop())

	result := &coordinator.WorkflowResult{
		ID:       "run-1",
		Workflow: "market_pipeline",
		Symbol:   "BTC",
		Status:   coordinator.WorkflowOK,
		Results: []coordinator.AgentResult{
			{Agent: "crypto", Status: coordinator.StatusSuccess, Data: map[string]interface{}{"confidence": 0.8}},
			{Agent: "stock", Status: coordinator.StatusFailure, Error: "Upstream\xffUnavailable"},
		},
	}

	var sent Envelope
	producer.On("Publish", mock.Anything, kafka.TopicWorkflowCompleted, "market_pipeline:BTC", mock.AnythingOfType("events.Envelope")).
		Run(func(args mock.Arguments) { sent = args.Get(3).(Envelope) }).
		Return(nil).Once()

	require.NoError(t, p.PublishWorkflowCompleted(context.Background(), result))
	producer.AssertExpectations(t)

	assert.Equal(t, TypeWorkflowCompleted, sent.Type)
	assert.Equal(t, "coordinator", sent.Source)

	payload, ok := sent.Payload.(coordinator.WorkflowResult)
	require.True(t, ok)
	assert.Equal(t, "run-1", payload.ID)
	assert.Equal(t, "UpstreamUnavailable", payload.Results[1].Error)

	// the caller's result is left untouched
	assert.Equal(t, "Upstream\xffUnavailable", result.Results[1].Error)
}

func TestPublisher_AgentHealth(t *testing.T) {
	producer := &mockProducer{}
	p := NewPublisher(producer, "coordinator", logger.Nop())

	ev := supervisor.HealthEvent{
		Agent:    "whale",
		Previous: supervisor.StatusOK,
		Current:  supervisor.StatusUnreachable,
		Error:    "dial tcp: connection refused",
		At:       time.Now(),
	}

	producer.On("Publish", mock.Anything, kafka.TopicAgentHealth, "whale", mock.MatchedBy(func(env Envelope) bool {
		got, ok := env.Payload.(supervisor.HealthEvent)
		return ok && env.Type == TypeAgentHealth && got.Current == supervisor.StatusUnreachable
	})).Return(nil).Once()

	require.NoError(t, p.PublishAgentHealth(context.Background(), ev))
	producer.AssertExpectations(t)
}

func TestPublisher_ProducerErrorIsReturned(t *testing.T) {
	producer := &mockProducer{}
	producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("leader not available"))

	p := NewPublisher(producer, "coordinator", logger.Nop())

	err := p.PublishAgentHealth(context.Background(), supervisor.HealthEvent{Agent: "news"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")

	assert.ErrorIs(t, p.PublishWorkflowCompleted(context.Background(), nil), errors.ErrInvalidInput)
}
