// Package api provides the REST client for the dashboard metrics backend.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/guttosm/dashwatch/internal/domain/model"
	"github.com/guttosm/dashwatch/internal/metrics"
)

// Client retrieves dashboard data from the backend API.
type Client interface {
	// DashboardSnapshot returns the overview for all monitored hosts.
	DashboardSnapshot(ctx context.Context) (*model.DashboardSnapshot, error)
	// Hostnames returns the list of known host names.
	Hostnames(ctx context.Context) ([]string, error)
	// HostMetrics returns the metrics time series for one host over the
	// given lookback window in hours.
	HostMetrics(ctx context.Context, hostname string, hours int) (*model.HostMetrics, error)
}

// HTTPClient is the net/http-backed Client implementation.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a Client against the given base URL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// DashboardSnapshot fetches /api/system/.
func (c *HTTPClient) DashboardSnapshot(ctx context.Context) (*model.DashboardSnapshot, error) {
	var snapshot model.DashboardSnapshot
	if err := c.getJSON(ctx, "dashboard_snapshot", "/api/system/", nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Hostnames fetches /api/system/hostnames/.
func (c *HTTPClient) Hostnames(ctx context.Context) ([]string, error) {
	var payload struct {
		Hostnames []string `json:"hostnames"`
	}
	if err := c.getJSON(ctx, "hostnames", "/api/system/hostnames/", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Hostnames, nil
}

// HostMetrics fetches /api/system/ scoped to one hostname.
func (c *HTTPClient) HostMetrics(ctx context.Context, hostname string, hours int) (*model.HostMetrics, error) {
	query := url.Values{}
	query.Set("hostname", hostname)
	query.Set("hours", strconv.Itoa(hours))

	var hm model.HostMetrics
	if err := c.getJSON(ctx, "host_metrics", "/api/system/", query, &hm); err != nil {
		return nil, err
	}
	return &hm, nil
}

// getJSON performs a GET and decodes the JSON body into out.
func (c *HTTPClient) getJSON(ctx context.Context, operation, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("api: build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordAPIRequest(operation, time.Since(start), "error")
		return fmt.Errorf("api: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.RecordAPIRequest(operation, time.Since(start), strconv.Itoa(resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api: %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: %s: decode response: %w", path, err)
	}
	return nil
}
