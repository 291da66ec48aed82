// Package watcher composes the push channel, the cache, and the backend API
// client into one consumer: reads go through the stale-while-revalidate
// cache, while push updates merge into the in-memory host view and steer
// cache invalidation.
package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/guttosm/dashwatch/internal/api"
	"github.com/guttosm/dashwatch/internal/cache"
	"github.com/guttosm/dashwatch/internal/channel"
	"github.com/guttosm/dashwatch/internal/domain/message"
	"github.com/guttosm/dashwatch/internal/domain/model"
	"github.com/rs/zerolog/log"
)

// Cache keys for the data this watcher maintains.
const (
	KeySnapshot   = "dashboard"
	hostKeyPrefix = "host:"
)

// HostKey returns the cache key for one host's metrics series.
func HostKey(hostname string) string {
	return hostKeyPrefix + hostname
}

// Config holds watcher policy.
type Config struct {
	// SnapshotTTL is the cache TTL for the dashboard overview.
	SnapshotTTL time.Duration
	// HostTTL is the cache TTL for per-host detail series.
	HostTTL time.Duration
	// LookbackHours is the window requested for per-host series.
	LookbackHours int
	// OfflineAfter is how long a host may stay silent before it is
	// considered offline.
	OfflineAfter time.Duration
}

// DefaultConfig returns the default watcher policy.
func DefaultConfig() Config {
	return Config{
		SnapshotTTL:   5 * time.Minute,
		HostTTL:       3 * time.Minute,
		LookbackHours: 24,
		OfflineAfter:  2 * time.Minute,
	}
}

// Watcher owns one channel, one cache, and one API client.
type Watcher struct {
	cfg     Config
	cache   *cache.Cache
	client  api.Client
	channel *channel.Channel
	now     func() time.Time

	mu    sync.RWMutex
	hosts map[string]model.HostSummary
}

// New creates a Watcher. The channel is owned by the watcher from here on
// and is torn down by Close.
func New(cfg Config, c *cache.Cache, client api.Client, ch *channel.Channel) *Watcher {
	return &Watcher{
		cfg:     cfg,
		cache:   c,
		client:  client,
		channel: ch,
		now:     time.Now,
		hosts:   make(map[string]model.HostSummary),
	}
}

// Run subscribes to push updates and connects the channel. The connect error
// is returned to the caller; automatic recovery from later unclean closes is
// the channel's job.
func (w *Watcher) Run(ctx context.Context) error {
	w.channel.On(message.TypeMetricsUpdate, w.onMessage)
	w.channel.On(message.TypeHostOffline, w.onMessage)
	w.channel.On(message.TypeCacheInvalidation, w.onMessage)

	if err := w.channel.Connect(ctx); err != nil {
		return fmt.Errorf("watcher: connect channel: %w", err)
	}
	return nil
}

// Close tears down the channel and stops background cache refreshes.
func (w *Watcher) Close() {
	w.channel.Close()
	w.cache.Close()
}

// Snapshot returns the dashboard overview, cache-first: a fresh cached copy
// is served directly, a stale one is served while a background refresh runs,
// and a miss waits on the backend.
func (w *Watcher) Snapshot(ctx context.Context) (*model.DashboardSnapshot, error) {
	raw, err := w.cache.Fetch(ctx, KeySnapshot, w.cfg.SnapshotTTL, func(ctx context.Context) (interface{}, error) {
		return w.client.DashboardSnapshot(ctx)
	})
	if err != nil {
		return nil, err
	}
	var snapshot model.DashboardSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("watcher: decode snapshot: %w", err)
	}
	w.seed(snapshot.Hosts)
	return &snapshot, nil
}

// HostMetrics returns one host's time series, cache-first with the per-host
// TTL.
func (w *Watcher) HostMetrics(ctx context.Context, hostname string) (*model.HostMetrics, error) {
	raw, err := w.cache.Fetch(ctx, HostKey(hostname), w.cfg.HostTTL, func(ctx context.Context) (interface{}, error) {
		return w.client.HostMetrics(ctx, hostname, w.cfg.LookbackHours)
	})
	if err != nil {
		return nil, err
	}
	var hm model.HostMetrics
	if err := json.Unmarshal(raw, &hm); err != nil {
		return nil, fmt.Errorf("watcher: decode host metrics: %w", err)
	}
	return &hm, nil
}

// Hosts returns the merged in-memory host view, sorted by hostname, with
// online flags recomputed against the silence window.
func (w *Watcher) Hosts() []model.HostSummary {
	w.mu.RLock()
	defer w.mu.RUnlock()

	now := w.now()
	hosts := make([]model.HostSummary, 0, len(w.hosts))
	for _, h := range w.hosts {
		if h.Online && !h.SeenWithin(w.cfg.OfflineAfter, now) {
			h.Online = false
		}
		hosts = append(hosts, h)
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Hostname < hosts[j].Hostname })
	return hosts
}

// onMessage routes push updates into state and cache maintenance.
func (w *Watcher) onMessage(msg message.Message) {
	switch m := msg.(type) {
	case message.MetricsUpdate:
		w.mu.Lock()
		w.hosts[m.Hostname] = model.HostSummary{
			Hostname: m.Hostname,
			Current:  m.Metrics,
			LastSeen: m.Timestamp,
			Online:   true,
		}
		w.mu.Unlock()
	case message.HostOffline:
		w.mu.Lock()
		if h, ok := w.hosts[m.Hostname]; ok {
			h.Online = false
			w.hosts[m.Hostname] = h
		} else {
			w.hosts[m.Hostname] = model.HostSummary{Hostname: m.Hostname}
		}
		w.mu.Unlock()
		log.Info().Str("hostname", m.Hostname).Msg("Host reported offline")
	case message.CacheInvalidation:
		for _, key := range m.CacheKeys {
			w.cache.Invalidate(key)
		}
		log.Debug().Strs("keys", m.CacheKeys).Msg("Cache keys invalidated by server push")
	}
}

// seed merges snapshot hosts into the in-memory view without clobbering
// fresher push-delivered entries.
func (w *Watcher) seed(hosts []model.HostSummary) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, h := range hosts {
		if existing, ok := w.hosts[h.Hostname]; ok && existing.LastSeen >= h.LastSeen {
			continue
		}
		w.hosts[h.Hostname] = h
	}
}
