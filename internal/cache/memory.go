// ABOUTME: In-memory TTL cache bounded by an LRU
// ABOUTME: Expired entries are purged lazily on Get and swept by Size
package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxEntries bounds the in-memory cache
const DefaultMaxEntries = 1000

type entry struct {
	value     []byte
	createdAt time.Time
	expiresAt time.Time
}

// Memory is safe for concurrent use
type Memory struct {
	mu         sync.Mutex
	entries    *lru.Cache[string, entry]
	defaultTTL time.Duration
	now        func() time.Time
}

var _ Cache = (*Memory)(nil)

// MemoryOption configures a Memory cache
type MemoryOption func(*Memory)

// WithClock overrides the time source
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithDefaultTTL sets the ttl used when Set is given none
func WithDefaultTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) {
		if ttl > 0 {
			m.defaultTTL = ttl
		}
	}
}

// NewMemory creates a cache holding at most maxEntries live entries;
// the least recently used entry is evicted beyond that
func NewMemory(maxEntries int, opts ...MemoryOption) (*Memory, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	entries, err := lru.New[string, entry](maxEntries)
	if err != nil {
		return nil, err
	}
	m := &Memory{
		entries:    entries,
		defaultTTL: DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.entries.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries.Add(key, entry{value: value, createdAt: now, expiresAt: now.Add(ttl)})
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries.Remove(key)
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries.Purge()
	return nil
}

// Size removes every expired entry, then counts what remains
func (m *Memory) Size(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, key := range m.entries.Keys() {
		if e, ok := m.entries.Peek(key); ok && !now.Before(e.expiresAt) {
			m.entries.Remove(key)
		}
	}
	return m.entries.Len(), nil
}
