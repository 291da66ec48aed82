//go:build !integration

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// failingStore errors on every operation, simulating a broken backend.
type failingStore struct{}

func (failingStore) Get(string) ([]byte, bool, error)  { return nil, false, errors.New("quota exceeded") }
func (failingStore) Set(string, []byte) error          { return errors.New("quota exceeded") }
func (failingStore) Delete(string) error               { return errors.New("quota exceeded") }
func (failingStore) Keys(string) ([]string, error)     { return nil, errors.New("quota exceeded") }

func newTestCache(t *testing.T) (*Cache, *MemoryStore, *fakeClock) {
	t.Helper()
	store := NewMemoryStore()
	clock := newFakeClock()
	c := New(store, Options{Clock: clock.Now})
	t.Cleanup(c.Close)
	return c, store, clock
}

func TestCache_ReadMiss(t *testing.T) {
	c, _, _ := newTestCache(t)

	_, found := c.Read("never-written")

	assert.False(t, found)
}

func TestCache_WriteRead(t *testing.T) {
	c, _, clock := newTestCache(t)

	c.Write("a", map[string]int{"x": 1}, time.Second)

	data, found := c.Read("a")
	require.True(t, found)
	assert.JSONEq(t, `{"x":1}`, string(data))

	// Expiry is advisory: the value stays readable past its TTL.
	clock.Advance(2 * time.Second)
	data, found = c.Read("a")
	require.True(t, found)
	assert.JSONEq(t, `{"x":1}`, string(data))

	stats := c.Stats()
	require.Len(t, stats.Items, 1)
	assert.True(t, stats.Items[0].Expired)
}

func TestCache_FetchMiss(t *testing.T) {
	c, _, _ := newTestCache(t)

	var calls atomic.Int32
	data, err := c.Fetch(context.Background(), "k", time.Minute, func(context.Context) (interface{}, error) {
		calls.Add(1)
		return map[string]int{"v": 42}, nil
	})

	require.NoError(t, err)
	assert.JSONEq(t, `{"v":42}`, string(data))
	assert.Equal(t, int32(1), calls.Load())

	// The loader result was written through.
	stored, found := c.Read("k")
	require.True(t, found)
	assert.JSONEq(t, `{"v":42}`, string(stored))
}

func TestCache_FetchFreshHit(t *testing.T) {
	c, _, _ := newTestCache(t)
	c.Write("k", "cached", time.Minute)

	var calls atomic.Int32
	data, err := c.Fetch(context.Background(), "k", time.Minute, func(context.Context) (interface{}, error) {
		calls.Add(1)
		return "fresh", nil
	})

	require.NoError(t, err)
	assert.JSONEq(t, `"cached"`, string(data))
	assert.Equal(t, int32(0), calls.Load(), "fresh hit must not invoke the loader")
}

func TestCache_FetchStaleRevalidates(t *testing.T) {
	c, _, clock := newTestCache(t)
	c.Write("k", "stale", time.Second)
	clock.Advance(2 * time.Second)

	var calls atomic.Int32
	data, err := c.Fetch(context.Background(), "k", time.Minute, func(context.Context) (interface{}, error) {
		calls.Add(1)
		return "refreshed", nil
	})

	require.NoError(t, err)
	assert.JSONEq(t, `"stale"`, string(data), "stale value is served immediately")

	require.Eventually(t, func() bool {
		stored, found := c.Read("k")
		return found && string(stored) == `"refreshed"`
	}, time.Second, 5*time.Millisecond, "background refresh overwrites the entry")
	assert.Equal(t, int32(1), calls.Load())

	// The overwrite refreshed the timestamp too.
	stats := c.Stats()
	require.Len(t, stats.Items, 1)
	assert.False(t, stats.Items[0].Expired)
}

func TestCache_FetchLoaderFailure(t *testing.T) {
	t.Run("propagates when no cached value exists", func(t *testing.T) {
		c, _, _ := newTestCache(t)

		_, err := c.Fetch(context.Background(), "k", time.Minute, func(context.Context) (interface{}, error) {
			return nil, errors.New("backend down")
		})

		assert.Error(t, err)
	})

	t.Run("keeps stale value when revalidation fails", func(t *testing.T) {
		c, _, clock := newTestCache(t)
		c.Write("k", "stale", time.Second)
		clock.Advance(2 * time.Second)

		done := make(chan struct{})
		data, err := c.Fetch(context.Background(), "k", time.Minute, func(context.Context) (interface{}, error) {
			defer close(done)
			return nil, errors.New("backend down")
		})

		require.NoError(t, err)
		assert.JSONEq(t, `"stale"`, string(data))

		<-done
		stored, found := c.Read("k")
		require.True(t, found)
		assert.JSONEq(t, `"stale"`, string(stored), "failed refresh leaves the stale value authoritative")
	})
}

func TestCache_Invalidate(t *testing.T) {
	c, _, _ := newTestCache(t)
	c.Write("a", 1, time.Minute)
	c.Write("b", 2, time.Minute)

	c.Invalidate("a")

	_, found := c.Read("a")
	assert.False(t, found)
	_, found = c.Read("b")
	assert.True(t, found)
}

func TestCache_InvalidateAll(t *testing.T) {
	t.Run("scoped to prefix", func(t *testing.T) {
		c, _, _ := newTestCache(t)
		c.Write("host:alpha", 1, time.Minute)
		c.Write("host:beta", 2, time.Minute)
		c.Write("dashboard", 3, time.Minute)

		removed := c.InvalidateAll("host:")

		assert.Equal(t, 2, removed)
		_, found := c.Read("dashboard")
		assert.True(t, found)
	})

	t.Run("leaves foreign storage entries untouched", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Set("unrelated-app:token", []byte("keep")))
		c := New(store, Options{})
		defer c.Close()
		c.Write("a", 1, time.Minute)
		c.Write("b", 2, time.Minute)

		removed := c.InvalidateAll("")

		assert.Equal(t, 2, removed)
		v, found, err := store.Get("unrelated-app:token")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("keep"), v)
	})
}

func TestCache_CleanupExpired(t *testing.T) {
	c, _, clock := newTestCache(t)
	c.Write("short", map[string]int{"x": 1}, time.Second)
	c.Write("long", map[string]int{"x": 2}, time.Hour)

	clock.Advance(1100 * time.Millisecond)
	removed := c.CleanupExpired()

	assert.Equal(t, 1, removed)
	_, found := c.Read("short")
	assert.False(t, found)
	_, found = c.Read("long")
	assert.True(t, found)
}

func TestCache_Stats(t *testing.T) {
	c, _, clock := newTestCache(t)
	c.Write("a", map[string]int{"x": 1}, time.Second)
	c.Write("b", map[string]int{"y": 2}, time.Hour)
	clock.Advance(2 * time.Second)

	stats := c.Stats()

	assert.Equal(t, 2, stats.Entries)
	assert.Positive(t, stats.TotalBytes)
	require.Len(t, stats.Items, 2)

	byKey := make(map[string]EntryStat)
	for _, item := range stats.Items {
		byKey[item.Key] = item
	}
	assert.True(t, byKey["a"].Expired)
	assert.False(t, byKey["b"].Expired)
	assert.Equal(t, 2*time.Second, byKey["a"].Age)
	assert.Equal(t, time.Hour, byKey["b"].TTL)
}

func TestCache_StorageFailuresAbsorbed(t *testing.T) {
	c := New(failingStore{}, Options{})
	defer c.Close()

	// Reads and writes degrade to miss / no-op, never panic or propagate.
	_, found := c.Read("k")
	assert.False(t, found)
	c.Write("k", 1, time.Minute)
	c.Invalidate("k")
	assert.Zero(t, c.InvalidateAll(""))
	assert.Zero(t, c.CleanupExpired())
	assert.Zero(t, c.Stats().Entries)

	// Fetch falls through to the loader.
	var calls atomic.Int32
	data, err := c.Fetch(context.Background(), "k", time.Minute, func(context.Context) (interface{}, error) {
		calls.Add(1)
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.JSONEq(t, `"fresh"`, string(data))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCache_CorruptEntryTreatedAsMiss(t *testing.T) {
	store := NewMemoryStore()
	c := New(store, Options{})
	defer c.Close()
	require.NoError(t, store.Set(DefaultNamespace+"bad", []byte("not json")))

	_, found := c.Read("bad")
	assert.False(t, found)

	// Cleanup drops corrupt entries along with expired ones.
	assert.Equal(t, 1, c.CleanupExpired())
}

func TestEntry_Expired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tests := []struct {
		name    string
		age     time.Duration
		ttl     time.Duration
		expired bool
	}{
		{name: "fresh", age: time.Second, ttl: time.Minute, expired: false},
		{name: "exactly at ttl", age: time.Minute, ttl: time.Minute, expired: false},
		{name: "past ttl", age: time.Minute + time.Millisecond, ttl: time.Minute, expired: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ent := Entry{
				Data:      json.RawMessage(`1`),
				Timestamp: now.Add(-tt.age).UnixMilli(),
				TTL:       tt.ttl.Milliseconds(),
			}
			assert.Equal(t, tt.expired, ent.Expired(now))
		})
	}
}
