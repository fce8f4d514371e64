package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marketscanner/pkg/errors"
)

const defaultBudgetWindow = time.Hour

// Unlimited is reported as the remaining budget of agents without a limit.
const Unlimited int64 = -1

// Budget counts agent calls per fixed window. A limit <= 0 means unlimited.
// Consume returns errors.ErrBudgetExhausted once the window's limit is spent.
type Budget interface {
	Consume(ctx context.Context, agent string, limit int64) (remaining int64, err error)
	Remaining(ctx context.Context, agent string, limit int64) (int64, error)
}

// windowStart aligns t to the start of its budget window
func windowStart(t time.Time, window time.Duration) time.Time {
	return t.Truncate(window)
}

func budgetKey(agent string, start time.Time) string {
	return fmt.Sprintf("budget:%s:%d", agent, start.Unix())
}

func remainingAfter(limit, used int64) int64 {
	if used >= limit {
		return 0
	}
	return limit - used
}

// MemoryBudget is a process-local Budget
type MemoryBudget struct {
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	usage map[string]windowUsage
}

type windowUsage struct {
	start time.Time
	used  int64
}

func NewMemoryBudget(window time.Duration) *MemoryBudget {
	if window <= 0 {
		window = defaultBudgetWindow
	}
	return &MemoryBudget{
		window: window,
		now:    time.Now,
		usage:  make(map[string]windowUsage),
	}
}

func (b *MemoryBudget) Consume(ctx context.Context, agent string, limit int64) (int64, error) {
	if limit <= 0 {
		return Unlimited, nil
	}

	start := windowStart(b.now(), b.window)

	b.mu.Lock()
	defer b.mu.Unlock()

	u := b.usage[agent]
	if !u.start.Equal(start) {
		u = windowUsage{start: start}
	}
	u.used++
	b.usage[agent] = u

	if u.used > limit {
		return 0, errors.Wrapf(errors.ErrBudgetExhausted, "agent %s used %d/%d", agent, limit, limit)
	}
	return remainingAfter(limit, u.used), nil
}

func (b *MemoryBudget) Remaining(ctx context.Context, agent string, limit int64) (int64, error) {
	if limit <= 0 {
		return Unlimited, nil
	}

	start := windowStart(b.now(), b.window)

	b.mu.Lock()
	defer b.mu.Unlock()

	u := b.usage[agent]
	if !u.start.Equal(start) {
		return limit, nil
	}
	return remainingAfter(limit, u.used), nil
}
