//go:build !integration

package watcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guttosm/dashwatch/internal/api"
	"github.com/guttosm/dashwatch/internal/cache"
	"github.com/guttosm/dashwatch/internal/channel"
	"github.com/guttosm/dashwatch/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI counts calls and serves canned payloads.
type fakeAPI struct {
	mu            sync.Mutex
	snapshotCalls int
	metricsCalls  int
	snapshot      *model.DashboardSnapshot
	hostMetrics   *model.HostMetrics
	err           error
}

func (f *fakeAPI) DashboardSnapshot(context.Context) (*model.DashboardSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshotCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func (f *fakeAPI) Hostnames(context.Context) ([]string, error) {
	return []string{"web-1"}, nil
}

func (f *fakeAPI) HostMetrics(_ context.Context, hostname string, hours int) (*model.HostMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metricsCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.hostMetrics, nil
}

func (f *fakeAPI) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotCalls, f.metricsCalls
}

var _ api.Client = (*fakeAPI)(nil)

// pushTransport lets tests feed push frames through a real channel.
type pushTransport struct {
	inbound   chan []byte
	closeOnce sync.Once
}

func newPushTransport() *pushTransport {
	return &pushTransport{inbound: make(chan []byte, 16)}
}

func (t *pushTransport) ReadMessage() ([]byte, error) {
	data, ok := <-t.inbound
	if !ok {
		return nil, errors.New("connection closed")
	}
	return data, nil
}

func (t *pushTransport) WriteJSON(interface{}) error { return nil }

func (t *pushTransport) Close(int, string) error {
	t.closeOnce.Do(func() { close(t.inbound) })
	return nil
}

func (t *pushTransport) push(frame string) { t.inbound <- []byte(frame) }

type fixture struct {
	watcher   *Watcher
	api       *fakeAPI
	transport *pushTransport
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := &fakeAPI{
		snapshot: &model.DashboardSnapshot{
			TotalHosts:   1,
			TotalRecords: 10,
			Hosts: []model.HostSummary{
				{Hostname: "web-1", Current: model.SystemMetrics{CPUPercent: 10}, LastSeen: float64(time.Now().Unix()), Online: true},
			},
		},
		hostMetrics: &model.HostMetrics{
			Hostname: "web-1",
			Hours:    24,
			Samples:  []model.MetricSample{{Timestamp: 1000, Metrics: model.SystemMetrics{CPUPercent: 10}}},
		},
	}

	transport := newPushTransport()
	chCfg := channel.DefaultConfig("ws://test.invalid/ws/dashboard/")
	chCfg.Dialer = func(context.Context, string) (channel.Transport, error) { return transport, nil }
	chCfg.HeartbeatInterval = 0
	ch := channel.New(chCfg)

	store := cache.NewMemoryStore()
	c := cache.New(store, cache.Options{})

	w := New(DefaultConfig(), c, backend, ch)
	t.Cleanup(w.Close)

	require.NoError(t, w.Run(context.Background()))
	return &fixture{watcher: w, api: backend, transport: transport}
}

func TestWatcher_SnapshotCached(t *testing.T) {
	f := newFixture(t)

	first, err := f.watcher.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalHosts)

	second, err := f.watcher.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.TotalRecords, second.TotalRecords)

	snapshotCalls, _ := f.api.calls()
	assert.Equal(t, 1, snapshotCalls, "second read is served from cache")
}

func TestWatcher_SnapshotSeedsHosts(t *testing.T) {
	f := newFixture(t)

	_, err := f.watcher.Snapshot(context.Background())
	require.NoError(t, err)

	hosts := f.watcher.Hosts()
	require.Len(t, hosts, 1)
	assert.Equal(t, "web-1", hosts[0].Hostname)
}

func TestWatcher_SnapshotErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.api.mu.Lock()
	f.api.err = errors.New("backend down")
	f.api.mu.Unlock()

	_, err := f.watcher.Snapshot(context.Background())
	assert.Error(t, err)
}

func TestWatcher_HostMetricsCached(t *testing.T) {
	f := newFixture(t)

	hm, err := f.watcher.HostMetrics(context.Background(), "web-1")
	require.NoError(t, err)
	assert.Equal(t, "web-1", hm.Hostname)
	require.Len(t, hm.Samples, 1)

	_, err = f.watcher.HostMetrics(context.Background(), "web-1")
	require.NoError(t, err)

	_, metricsCalls := f.api.calls()
	assert.Equal(t, 1, metricsCalls)
}

func TestWatcher_MetricsUpdateMergesHost(t *testing.T) {
	f := newFixture(t)

	f.transport.push(`{"type":"metrics_update","hostname":"db-2","metrics":{"cpu_percent":77.7},"timestamp":2000}`)

	require.Eventually(t, func() bool {
		return len(f.watcher.Hosts()) == 1
	}, time.Second, 5*time.Millisecond)

	hosts := f.watcher.Hosts()
	assert.Equal(t, "db-2", hosts[0].Hostname)
	assert.InDelta(t, 77.7, hosts[0].Current.CPUPercent, 0.001)
	assert.False(t, hosts[0].Online, "a push with an old timestamp does not count as recently seen")
}

func TestWatcher_PushOutranksStaleSnapshotSeed(t *testing.T) {
	f := newFixture(t)

	// A push stamped well past the snapshot's last_seen must survive the
	// snapshot seed merge.
	f.transport.push(`{"type":"metrics_update","hostname":"web-1","metrics":{"cpu_percent":99.9},"timestamp":99999999999}`)
	require.Eventually(t, func() bool {
		hosts := f.watcher.Hosts()
		return len(hosts) == 1 && hosts[0].Current.CPUPercent > 99
	}, time.Second, 5*time.Millisecond)

	_, err := f.watcher.Snapshot(context.Background())
	require.NoError(t, err)

	hosts := f.watcher.Hosts()
	require.Len(t, hosts, 1)
	assert.InDelta(t, 99.9, hosts[0].Current.CPUPercent, 0.001)
}

func TestWatcher_HostOffline(t *testing.T) {
	f := newFixture(t)

	_, err := f.watcher.Snapshot(context.Background())
	require.NoError(t, err)

	f.transport.push(`{"type":"host_offline","hostname":"web-1"}`)

	require.Eventually(t, func() bool {
		hosts := f.watcher.Hosts()
		return len(hosts) == 1 && !hosts[0].Online
	}, time.Second, 5*time.Millisecond)
}

func TestWatcher_CacheInvalidationTriggersRefetch(t *testing.T) {
	f := newFixture(t)

	_, err := f.watcher.Snapshot(context.Background())
	require.NoError(t, err)

	f.transport.push(`{"type":"cache_invalidation","cache_keys":["dashboard"]}`)

	require.Eventually(t, func() bool {
		_, errSnap := f.watcher.Snapshot(context.Background())
		if errSnap != nil {
			return false
		}
		calls, _ := f.api.calls()
		return calls == 2
	}, time.Second, 10*time.Millisecond)
}

func TestWatcher_HostsRecomputesOnline(t *testing.T) {
	f := newFixture(t)

	var fakeNow atomic.Int64
	seen := time.Now()
	fakeNow.Store(seen.UnixNano())
	f.watcher.now = func() time.Time { return time.Unix(0, fakeNow.Load()) }

	f.watcher.seed([]model.HostSummary{
		{Hostname: "web-1", LastSeen: float64(seen.Unix()), Online: true},
	})

	hosts := f.watcher.Hosts()
	require.Len(t, hosts, 1)
	assert.True(t, hosts[0].Online)

	fakeNow.Store(seen.Add(3 * time.Minute).UnixNano())
	hosts = f.watcher.Hosts()
	assert.False(t, hosts[0].Online, "silent past the offline window")
}

func TestHostKey(t *testing.T) {
	assert.Equal(t, "host:web-1", HostKey("web-1"))
}
