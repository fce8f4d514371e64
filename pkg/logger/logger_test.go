package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"marketscanner/pkg/errors"
)

type mockTracker struct {
	mock.Mock
}

func (m *mockTracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	args := m.Called(ctx, err, tags)
	return args.Error(0)
}

func (m *mockTracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	args := m.Called(ctx, message, level, tags)
	return args.Error(0)
}

func (m *mockTracker) AddBreadcrumb(ctx context.Context, message string, category string, level errors.Level, data map[string]interface{}) {
	m.Called(ctx, message, category, level, data)
}

func (m *mockTracker) Flush(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestLogger_ErrorForwardsToTracker(t *testing.T) {
	require.NoError(t, Init("debug", "test"))

	tracker := new(mockTracker)
	tracker.On("CaptureError", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	SetErrorTracker(tracker)
	t.Cleanup(func() { SetErrorTracker(nil) })

	log := Get().With("component", "test")
	log.Errorf("agent %s failed", "crypto")
	log.Errorw("workflow degraded", "workflow", "market_pipeline")

	tracker.AssertNumberOfCalls(t, "CaptureError", 2)

	tags := tracker.Calls[1].Arguments.Get(2).(map[string]string)
	assert.Equal(t, "market_pipeline", tags["workflow"])
}

func TestLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	require.NoError(t, Init("not-a-level", "production"))
	assert.False(t, Get().Desugar().Core().Enabled(-1))
	assert.True(t, Get().Desugar().Core().Enabled(0))
}

func TestNop(t *testing.T) {
	log := Nop().With("k", "v")
	log.Info("discarded")
	log.Error("discarded")
}
