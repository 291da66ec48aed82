package api

import (
	"context"

	"github.com/guttosm/dashwatch/internal/circuitbreaker"
	"github.com/guttosm/dashwatch/internal/domain/model"
)

// BreakerClient wraps a Client with circuit breaker protection, so a failing
// backend trips fast instead of stacking timed-out requests.
type BreakerClient struct {
	client  Client
	breaker *circuitbreaker.CircuitBreaker
}

// NewBreakerClient creates a circuit-breaker-protected client.
func NewBreakerClient(client Client, breaker *circuitbreaker.CircuitBreaker) *BreakerClient {
	return &BreakerClient{client: client, breaker: breaker}
}

// DashboardSnapshot returns the dashboard overview with breaker protection.
func (c *BreakerClient) DashboardSnapshot(ctx context.Context) (*model.DashboardSnapshot, error) {
	var result *model.DashboardSnapshot
	err := c.breaker.Execute(ctx, func() error {
		var cbErr error
		result, cbErr = c.client.DashboardSnapshot(ctx)
		return cbErr
	})
	return result, err
}

// Hostnames returns the known host names with breaker protection.
func (c *BreakerClient) Hostnames(ctx context.Context) ([]string, error) {
	var result []string
	err := c.breaker.Execute(ctx, func() error {
		var cbErr error
		result, cbErr = c.client.Hostnames(ctx)
		return cbErr
	})
	return result, err
}

// HostMetrics returns one host's time series with breaker protection.
func (c *BreakerClient) HostMetrics(ctx context.Context, hostname string, hours int) (*model.HostMetrics, error) {
	var result *model.HostMetrics
	err := c.breaker.Execute(ctx, func() error {
		var cbErr error
		result, cbErr = c.client.HostMetrics(ctx, hostname, hours)
		return cbErr
	})
	return result, err
}

// GetCircuitBreaker returns the underlying circuit breaker for monitoring.
func (c *BreakerClient) GetCircuitBreaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}
