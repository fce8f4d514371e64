package supervisor

import (
	"context"
	"time"

	"marketscanner/internal/adapters/redis"
	"marketscanner/pkg/errors"
)

// RedisBudget shares call budgets across coordinator replicas.
// Each window is one INCR counter that expires shortly after the window ends.
type RedisBudget struct {
	client *redis.Client
	window time.Duration
	now    func() time.Time
}

func NewRedisBudget(client *redis.Client, window time.Duration) *RedisBudget {
	if window <= 0 {
		window = defaultBudgetWindow
	}
	return &RedisBudget{
		client: client,
		window: window,
		now:    time.Now,
	}
}

func (b *RedisBudget) Consume(ctx context.Context, agent string, limit int64) (int64, error) {
	if limit <= 0 {
		return Unlimited, nil
	}

	now := b.now()
	start := windowStart(now, b.window)
	ttl := start.Add(b.window).Sub(now) + time.Minute

	used, err := b.client.IncrementWithTTL(ctx, budgetKey(agent, start), ttl)
	if err != nil {
		return 0, errors.Wrapf(err, "increment budget for %s", agent)
	}

	if used > limit {
		return 0, errors.Wrapf(errors.ErrBudgetExhausted, "agent %s used %d/%d", agent, limit, limit)
	}
	return remainingAfter(limit, used), nil
}

func (b *RedisBudget) Remaining(ctx context.Context, agent string, limit int64) (int64, error) {
	if limit <= 0 {
		return Unlimited, nil
	}

	used, err := b.client.Counter(ctx, budgetKey(agent, windowStart(b.now(), b.window)))
	if err != nil {
		return 0, errors.Wrapf(err, "read budget for %s", agent)
	}
	return remainingAfter(limit, used), nil
}
