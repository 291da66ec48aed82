package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/guttosm/dashwatch/internal/metrics"
	"github.com/rs/zerolog/log"
)

// DefaultNamespace prefixes every key this cache writes, so maintenance
// operations never touch foreign entries in a shared store.
const DefaultNamespace = "dashwatch:"

// Loader fetches a fresh value for a key on miss or revalidation.
type Loader func(ctx context.Context) (interface{}, error)

// Entry is the serialized form of one cache record.
type Entry struct {
	Data json.RawMessage `json:"data"`
	// Timestamp is the write time in epoch milliseconds.
	Timestamp int64 `json:"timestamp"`
	// TTL is the time-to-live in milliseconds.
	TTL int64 `json:"ttl"`
}

// Age returns how long ago the entry was written.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(e.Timestamp))
}

// Expired reports whether the entry's age exceeds its TTL. Expiry is
// advisory: expired entries are still readable until removed.
func (e Entry) Expired(now time.Time) bool {
	return e.Age(now) > time.Duration(e.TTL)*time.Millisecond
}

// EntryStat describes one entry in a Stats report.
type EntryStat struct {
	Key     string        `json:"key"`
	Age     time.Duration `json:"age"`
	TTL     time.Duration `json:"ttl"`
	Size    int           `json:"size"`
	Expired bool          `json:"expired"`
}

// Stats is a read-only snapshot of the cache namespace.
type Stats struct {
	Entries    int         `json:"entries"`
	TotalBytes int         `json:"total_bytes"`
	Items      []EntryStat `json:"items"`
}

// Options configures a Cache.
type Options struct {
	// Namespace is the key prefix. Defaults to DefaultNamespace.
	Namespace string
	// Clock overrides the time source. Defaults to time.Now.
	Clock func() time.Time
}

// Cache is a stale-while-revalidate TTL cache. Reads serve the last known
// value even past expiry; an expired hit triggers a background refresh whose
// result overwrites the entry on completion. Storage failures are absorbed
// as misses and never reach callers.
type Cache struct {
	store     Store
	namespace string
	now       func() time.Time

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// New creates a Cache on top of the given store.
func New(store Store, opts Options) *Cache {
	ns := opts.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		store:     store,
		namespace: ns,
		now:       clock,
		bgCtx:     ctx,
		bgCancel:  cancel,
	}
}

// Close stops background revalidations and waits for in-flight ones.
// Loaders already running may still complete and write through before the
// cancellation is observed; that write is harmless (last writer wins).
func (c *Cache) Close() {
	c.bgCancel()
	c.bg.Wait()
}

// Read returns the stored value for key, expired or not. The second return
// is false when no entry exists or the stored form is unreadable.
func (c *Cache) Read(key string) (json.RawMessage, bool) {
	ent, ok := c.load(key)
	if !ok {
		return nil, false
	}
	return ent.Data, true
}

// Fetch is the composite read path: a fresh entry is returned without
// invoking loader; an expired entry is returned as-is while loader refreshes
// it in the background; on a miss the caller waits for loader and the result
// is written through before being returned. A loader failure propagates only
// when there is no cached value to fall back to.
func (c *Cache) Fetch(ctx context.Context, key string, ttl time.Duration, loader Loader) (json.RawMessage, error) {
	if ent, ok := c.load(key); ok {
		if !ent.Expired(c.now()) {
			metrics.RecordCacheOperation("fetch", "hit")
			return ent.Data, nil
		}

		metrics.RecordCacheOperation("fetch", "stale")
		c.revalidate(key, ttl, loader)
		return ent.Data, nil
	}

	metrics.RecordCacheOperation("fetch", "miss")
	value, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	c.writeRaw(key, data, ttl)
	return data, nil
}

// revalidate refreshes key in the background. The existing stale value stays
// authoritative if the loader fails.
func (c *Cache) revalidate(key string, ttl time.Duration, loader Loader) {
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()

		value, err := loader(c.bgCtx)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Cache revalidation failed, serving stale value")
			return
		}
		c.Write(key, value, ttl)
	}()
}

// Write unconditionally creates or overwrites the entry with the current
// timestamp. Marshal or storage failures are logged and dropped.
func (c *Cache) Write(key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Cache write failed to marshal value")
		return
	}
	c.writeRaw(key, data, ttl)
}

func (c *Cache) writeRaw(key string, data json.RawMessage, ttl time.Duration) {
	ent := Entry{
		Data:      data,
		Timestamp: c.now().UnixMilli(),
		TTL:       ttl.Milliseconds(),
	}
	raw, err := json.Marshal(ent)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Cache write failed to marshal entry")
		return
	}
	if err := c.store.Set(c.namespace+key, raw); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Cache write failed")
		metrics.RecordCacheOperation("write", "error")
		return
	}
	metrics.RecordCacheOperation("write", "ok")
}

// Invalidate removes a single entry regardless of its expiry state.
func (c *Cache) Invalidate(key string) {
	if err := c.store.Delete(c.namespace + key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Cache invalidation failed")
		return
	}
	metrics.RecordCacheOperation("invalidate", "ok")
}

// InvalidateAll removes every entry in the namespace, optionally scoped to
// keys sharing the given prefix. Returns the number of entries removed.
// Foreign keys outside the namespace are never touched.
func (c *Cache) InvalidateAll(prefix string) int {
	keys, err := c.store.Keys(c.namespace + prefix)
	if err != nil {
		log.Error().Err(err).Msg("Cache invalidation scan failed")
		return 0
	}
	removed := 0
	for _, k := range keys {
		if err := c.store.Delete(k); err != nil {
			log.Error().Err(err).Str("key", k).Msg("Cache invalidation failed")
			continue
		}
		removed++
	}
	return removed
}

// CleanupExpired removes every expired entry in the namespace and returns
// the count removed. Expired-but-unread entries are otherwise harmless, so
// this is maintenance, not a correctness requirement.
func (c *Cache) CleanupExpired() int {
	keys, err := c.store.Keys(c.namespace)
	if err != nil {
		log.Error().Err(err).Msg("Cache cleanup scan failed")
		return 0
	}

	now := c.now()
	removed := 0
	for _, k := range keys {
		raw, found, err := c.store.Get(k)
		if err != nil || !found {
			continue
		}
		var ent Entry
		if err := json.Unmarshal(raw, &ent); err != nil {
			// Corrupt entries are dead weight; drop them too.
			if c.store.Delete(k) == nil {
				removed++
			}
			continue
		}
		if ent.Expired(now) {
			if err := c.store.Delete(k); err != nil {
				log.Error().Err(err).Str("key", k).Msg("Cache cleanup delete failed")
				continue
			}
			removed++
		}
	}
	return removed
}

// Stats reports entry count, total serialized size, and a per-entry
// breakdown for the namespace.
func (c *Cache) Stats() Stats {
	stats := Stats{Items: []EntryStat{}}
	keys, err := c.store.Keys(c.namespace)
	if err != nil {
		log.Error().Err(err).Msg("Cache stats scan failed")
		return stats
	}

	now := c.now()
	for _, k := range keys {
		raw, found, err := c.store.Get(k)
		if err != nil || !found {
			continue
		}
		var ent Entry
		if err := json.Unmarshal(raw, &ent); err != nil {
			continue
		}
		stats.Entries++
		stats.TotalBytes += len(raw)
		stats.Items = append(stats.Items, EntryStat{
			Key:     k[len(c.namespace):],
			Age:     ent.Age(now),
			TTL:     time.Duration(ent.TTL) * time.Millisecond,
			Size:    len(raw),
			Expired: ent.Expired(now),
		})
	}
	metrics.CacheEntries.Set(float64(stats.Entries))
	return stats
}

// load reads and parses an entry, absorbing storage and parse failures as
// misses.
func (c *Cache) load(key string) (Entry, bool) {
	raw, found, err := c.store.Get(c.namespace + key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache read failed, treating as miss")
		metrics.RecordCacheOperation("read", "error")
		return Entry{}, false
	}
	if !found {
		return Entry{}, false
	}
	var ent Entry
	if err := json.Unmarshal(raw, &ent); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache entry corrupt, treating as miss")
		metrics.RecordCacheOperation("read", "corrupt")
		return Entry{}, false
	}
	return ent, true
}
