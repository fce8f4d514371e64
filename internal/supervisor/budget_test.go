package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketscanner/internal/adapters/redis"
	"marketscanner/internal/testsupport"
	"marketscanner/pkg/errors"
)

// budgetContract runs the same assertions against every Budget implementation.
// advance moves the implementation's clock forward.
func budgetContract(t *testing.T, b Budget, advance func(time.Duration)) {
	ctx := context.Background()

	remaining, err := b.Remaining(ctx, "news", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), remaining)

	for want := int64(2); want >= 0; want-- {
		remaining, err = b.Consume(ctx, "news", 3)
		require.NoError(t, err)
		assert.Equal(t, want, remaining)
	}

	_, err = b.Consume(ctx, "news", 3)
	assert.ErrorIs(t, err, errors.ErrBudgetExhausted)
	assert.Equal(t, errors.ReasonBudgetExhausted, errors.Classify(err))

	remaining, err = b.Remaining(ctx, "news", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)

	// other agents have their own counters
	remaining, err = b.Consume(ctx, "whale", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), remaining)

	// unlimited agents are never counted
	remaining, err = b.Consume(ctx, "crypto", 0)
	require.NoError(t, err)
	assert.Equal(t, Unlimited, remaining)

	advance(time.Hour)

	remaining, err = b.Consume(ctx, "news", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), remaining, "new window starts fresh")
}

func TestMemoryBudget(t *testing.T) {
	b := NewMemoryBudget(time.Hour)
	now := time.Date(2026, 1, 1, 10, 15, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	budgetContract(t, b, func(d time.Duration) { now = now.Add(d) })
}

func TestRedisBudget(t *testing.T) {
	client := redis.NewFromRedis(testsupport.NewRedisClient(t))

	b := NewRedisBudget(client, time.Hour)
	now := time.Date(2026, 1, 1, 10, 15, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	budgetContract(t, b, func(d time.Duration) { now = now.Add(d) })
}

func TestBudgetKey(t *testing.T) {
	start := windowStart(time.Date(2026, 1, 1, 10, 59, 59, 0, time.UTC), time.Hour)
	assert.Equal(t, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), start)
	assert.Equal(t, "budget:news:1767261600", budgetKey("news", start))
}
