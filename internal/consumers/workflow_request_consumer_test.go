package consumers

import (
	"context"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"marketscanner/internal/adapters/kafka"
	"marketscanner/internal/coordinator"
	"marketscanner/pkg/errors"
	"marketscanner/pkg/logger"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) RunWorkflow(ctx context.Context, workflow string, fields map[string]interface{}) (*coordinator.WorkflowResult, error) {
	args := m.Called(ctx, workflow, fields)
	result, _ := args.Get(0).(*coordinator.WorkflowResult)
	return result, args.Error(1)
}

// sliceSource replays messages, then blocks until ctx is cancelled
type sliceSource struct {
	messages []kafkago.Message
	errs     []error
	closed   bool
}

func (s *sliceSource) Consume(ctx context.Context, handler kafka.MessageHandler) error {
	for _, msg := range s.messages {
		s.errs = append(s.errs, handler(ctx, msg))
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

func TestWorkflowRequestConsumer_RunsRequests(t *testing.T) {
	processed := make(chan struct{})
	runner := &mockRunner{}
	runner.On("RunWorkflow", mock.Anything, "market_pipeline", map[string]interface{}{"symbol": "BTC"}).
		Run(func(mock.Arguments) { close(processed) }).
		Return(&coordinator.WorkflowResult{ID: "r1", Workflow: "market_pipeline", Status: coordinator.WorkflowOK}, nil).Once()

	source := &sliceSource{messages: []kafkago.Message{
		{Key: []byte("BTC"), Value: []byte(`{"workflow":"market_pipeline","symbol":"BTC"}`)},
	}}

	c := NewWorkflowRequestConsumer(source, runner, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	select {
	case <-processed:
	case <-time.After(time.Second):
		t.Fatal("request was not processed")
	}
	cancel()

	require.NoError(t, <-done)
	assert.True(t, source.closed)
	runner.AssertExpectations(t)
}

func TestWorkflowRequestConsumer_Handle(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		runErr  error
		wantErr bool
		calls   int
	}{
		{name: "malformed json is dropped", value: `{not json`, calls: 0},
		{name: "unknown workflow is dropped", value: `{"workflow":"nonexistent"}`, runErr: errors.ErrInvalidWorkflow, calls: 1},
		{name: "missing field is dropped", value: `{"workflow":"market_pipeline"}`, runErr: errors.NewValidationError("symbol", "required field is missing", nil), calls: 1},
		{name: "unexpected error is returned", value: `{"workflow":"market_pipeline","symbol":"BTC"}`, runErr: errors.New("boom"), wantErr: true, calls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{}
			runner.On("RunWorkflow", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.runErr)

			c := NewWorkflowRequestConsumer(&sliceSource{}, runner, logger.Nop())
			err := c.handle(context.Background(), kafkago.Message{Value: []byte(tt.value)})

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			runner.AssertNumberOfCalls(t, "RunWorkflow", tt.calls)
		})
	}
}
