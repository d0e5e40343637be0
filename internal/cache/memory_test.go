// ABOUTME: Tests for the in-memory TTL cache
// ABOUTME: Drives expiry with a fake clock instead of sleeping
package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newMemory(t *testing.T, max int) (*Memory, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m, err := NewMemory(max, WithClock(clock.Now))
	require.NoError(t, err)
	return m, clock
}

func TestMemory_SetGet(t *testing.T) {
	ctx := context.Background()
	m, _ := newMemory(t, 10)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Second))
	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	_, ok, err = m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_ExpiryOnGet(t *testing.T) {
	ctx := context.Background()
	m, clock := newMemory(t, 10)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Second))
	clock.Advance(999 * time.Millisecond)
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)

	clock.Advance(time.Millisecond)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok, "absent once now >= expiresAt")

	size, err := m.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestMemory_SizeSweepsExpired(t *testing.T) {
	ctx := context.Background()
	m, clock := newMemory(t, 10)

	require.NoError(t, m.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, m.Set(ctx, "long", []byte("2"), time.Hour))

	size, err := m.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	clock.Advance(2 * time.Second)
	size, err = m.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)
	assert.Equal(t, 1, m.entries.Len(), "sweep removes the entry, not just skips it")
}

func TestMemory_DefaultTTL(t *testing.T) {
	ctx := context.Background()
	m, clock := newMemory(t, 10)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	clock.Advance(DefaultTTL - time.Second)
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemory_WithDefaultTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	m, err := NewMemory(10, WithClock(clock.Now), WithDefaultTTL(time.Minute))
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), -1))
	clock.Advance(time.Minute)
	_, ok, _ := m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemory_Overwrite(t *testing.T) {
	ctx := context.Background()
	m, clock := newMemory(t, 10)

	require.NoError(t, m.Set(ctx, "k", []byte("old"), time.Second))
	clock.Advance(500 * time.Millisecond)
	require.NoError(t, m.Set(ctx, "k", []byte("new"), time.Second))
	clock.Advance(700 * time.Millisecond)

	got, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok, "overwrite resets expiry")
	assert.Equal(t, []byte("new"), got)
}

func TestMemory_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	m, _ := newMemory(t, 10)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Minute))
	}
	require.NoError(t, m.Delete(ctx, "k0"))
	require.NoError(t, m.Delete(ctx, "absent"))
	size, _ := m.Size(ctx)
	assert.Equal(t, 2, size)

	require.NoError(t, m.Clear(ctx))
	size, _ = m.Size(ctx)
	assert.Zero(t, size)
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m, _ := newMemory(t, 2)

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Minute))
	_, _, _ = m.Get(ctx, "a")
	require.NoError(t, m.Set(ctx, "c", []byte("3"), time.Minute))

	_, okA, _ := m.Get(ctx, "a")
	_, okB, _ := m.Get(ctx, "b")
	_, okC, _ := m.Get(ctx, "c")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
}

func TestMemory_Concurrent(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(100)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			_ = m.Set(ctx, key, []byte("v"), time.Minute)
			_, _, _ = m.Get(ctx, key)
			_, _ = m.Size(ctx)
		}(i)
	}
	wg.Wait()

	size, err := m.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, size)
}
