// Package model defines the core domain entities for the dashboard client.
package model

import "time"

// SystemMetrics holds one sample of system-level metrics for a host.
type SystemMetrics struct {
	// CPUPercent is the CPU utilization percentage (0-100)
	CPUPercent float64 `json:"cpu_percent"`
	// MemoryPercent is the memory utilization percentage (0-100)
	MemoryPercent float64 `json:"memory_percent"`
	// MemoryAvailableMB is the available memory in megabytes
	MemoryAvailableMB float64 `json:"memory_available_mb"`
	// MemoryUsedMB is the used memory in megabytes
	MemoryUsedMB float64 `json:"memory_used_mb"`
}

// HostSummary describes the most recent known state of a monitored host.
type HostSummary struct {
	Hostname string        `json:"hostname"`
	Current  SystemMetrics `json:"current"`
	// LastSeen is the epoch timestamp (seconds) of the newest sample
	LastSeen float64 `json:"last_seen"`
	Online   bool    `json:"is_online"`
}

// SeenWithin reports whether the host produced a sample within the given
// window before now.
func (h HostSummary) SeenWithin(window time.Duration, now time.Time) bool {
	if h.LastSeen <= 0 {
		return false
	}
	age := now.Sub(time.Unix(int64(h.LastSeen), 0))
	return age < window
}

// DashboardSnapshot is the overview payload for all monitored hosts.
type DashboardSnapshot struct {
	TotalHosts   int           `json:"total_hosts"`
	TotalRecords int           `json:"total_records"`
	Hosts        []HostSummary `json:"hosts_summary"`
}

// MetricSample is a single timestamped metrics data point.
type MetricSample struct {
	// Timestamp is the epoch timestamp (seconds) of the sample
	Timestamp float64       `json:"timestamp"`
	Metrics   SystemMetrics `json:"metrics"`
}

// HostMetrics is the time-series payload for a single host.
type HostMetrics struct {
	Hostname string         `json:"hostname"`
	Hours    int            `json:"hours"`
	Samples  []MetricSample `json:"samples"`
}
