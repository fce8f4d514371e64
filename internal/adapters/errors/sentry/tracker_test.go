package sentry

import (
	"context"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketscanner/pkg/errors"
)

func TestConvertLevel(t *testing.T) {
	assert.Equal(t, sentry.LevelDebug, convertLevel(errors.LevelDebug))
	assert.Equal(t, sentry.LevelWarning, convertLevel(errors.LevelWarning))
	assert.Equal(t, sentry.LevelFatal, convertLevel(errors.LevelFatal))
	assert.Equal(t, sentry.LevelInfo, convertLevel(errors.Level("bogus")))
}

func TestTracker_EmptyDSNIsInert(t *testing.T) {
	// An empty DSN initializes a disabled client, so nothing leaves the process.
	tracker, err := New("", "test", "dev")
	require.NoError(t, err)

	ctx := errors.WithRequestID(context.Background(), "run-1")
	assert.NoError(t, tracker.CaptureError(ctx, errors.ErrUpstreamUnavailable, map[string]string{"agent": "crypto"}))
	assert.NoError(t, tracker.CaptureMessage(ctx, "degraded", errors.LevelWarning, nil))
	tracker.AddBreadcrumb(ctx, "call", "agent", errors.LevelInfo, map[string]interface{}{"agent": "stock"})
	assert.NoError(t, tracker.Flush(ctx))
}
