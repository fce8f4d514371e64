package hub

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"marketscanner/internal/adapters/redis"
	"marketscanner/pkg/errors"
)

// Store is the shared hub: namespaced JSON values written by the coordinator
// and read by the API and any other process sharing the backend.
// Get returns errors.ErrNotFound for a missing or expired key.
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

var _ Store = (*redis.Client)(nil)

// AllSymbols is the symbol slot of runs made without a symbol
const AllSymbols = "ALL"

// Key builds the hub key for the latest result of workflow over symbol.
// Symbols are case-insensitive, so "all" and "" both address AllSymbols.
func Key(workflow, symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		symbol = AllSymbols
	}
	return "hub:" + workflow + ":" + symbol
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is a process-local Store. Values round-trip through JSON so
// callers observe the same copy semantics as the Redis backend.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", key)
	}

	e := memoryEntry{data: data}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || (!e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)) {
		return errors.Wrapf(errors.ErrNotFound, "key %s", key)
	}
	return json.Unmarshal(e.data, dest)
}
