//go:build !integration

package circuitbreaker

import (
	"context"
	"errors"
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

func newTestBreaker(clock *fakeClock) *CircuitBreaker {
	return New(Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		Name:             "test-breaker",
		Clock:            clock.Now,
	})
}

var errUpstream = errors.New("upstream down")

func fail() error    { return errUpstream }
func succeed() error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_756_461_600, 0)}
	cb := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
		assert.Equal(t, StateClosed, cb.State())
	}

	require.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	assert.Equal(t, StateOpen, cb.State())
	assert.True(t, cb.IsOpen())

	// While open, calls are rejected without running the function.
	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_756_461_600, 0)}
	cb := newTestBreaker(clock)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, fail))
	require.Error(t, cb.Execute(ctx, fail))
	require.NoError(t, cb.Execute(ctx, succeed))
	require.Error(t, cb.Execute(ctx, fail))
	require.Error(t, cb.Execute(ctx, fail))

	assert.Equal(t, StateClosed, cb.State(), "non-consecutive failures do not open the circuit")
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_756_461_600, 0)}
	cb := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.Error(t, cb.Execute(ctx, fail))
	}
	require.True(t, cb.IsOpen())

	clock.Advance(29 * time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)

	clock.Advance(time.Second)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.State())

	// Second consecutive success closes the circuit.
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_756_461_600, 0)}
	cb := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.Error(t, cb.Execute(ctx, fail))
	}
	clock.Advance(30 * time.Second)

	require.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)

	assert.True(t, cb.IsOpen())
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)
}

func TestCircuitBreaker_GetStats(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_756_461_600, 0)}
	cb := newTestBreaker(clock)
	ctx := context.Background()

	stats := cb.GetStats()
	assert.Equal(t, "closed", stats.State)
	assert.True(t, stats.IsHealthy)

	require.Error(t, cb.Execute(ctx, fail))
	require.Error(t, cb.Execute(ctx, fail))

	stats = cb.GetStats()
	assert.Equal(t, 2, stats.FailureCount)
	assert.Equal(t, clock.Now(), stats.LastFailure)
	assert.True(t, stats.IsHealthy)

	require.Error(t, cb.Execute(ctx, fail))
	stats = cb.GetStats()
	assert.Equal(t, "open", stats.State)
	assert.False(t, stats.IsHealthy)
}
