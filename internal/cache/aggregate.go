// Package cache memoizes the derived aggregate over the submission ledger.
// One process-wide slot, short TTL, eager invalidation on every accepted
// write, lazy recomputation on the next read.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/datecast/backend/internal/domain"
	"github.com/datecast/backend/internal/metrics"
)

// Snapshotter is the single ledger read the cache depends on: a consistent
// view of every live observation.
type Snapshotter interface {
	SnapshotAll(ctx context.Context) ([]domain.Observation, error)
}

// AggregateCache serves the current Aggregate, recomputing it from a full
// ledger snapshot at most once per TTL window (or immediately after an
// invalidation).
//
// Concurrent misses are collapsed through singleflight so a burst of readers
// after an invalidation triggers one ledger scan, not one per reader.
//
// The generation counter orders scans against invalidations: a recompute
// whose snapshot was taken before an Invalidate must neither be joined by
// post-invalidate readers nor installed into the slot, or a writer could be
// handed an aggregate that predates its own committed write. Invalidate bumps
// the generation; recompute installs only if the generation it started under
// is still current, and the generation is part of the singleflight key so a
// post-invalidate miss always starts a fresh scan.
type AggregateCache struct {
	ledger   Snapshotter
	clock    clockwork.Clock
	ttl      time.Duration
	fallback time.Time
	metrics  *metrics.CacheMetrics

	group singleflight.Group

	mu        sync.RWMutex
	cached    domain.Aggregate
	expiresAt time.Time
	gen       uint64
}

// New constructs an AggregateCache over the given ledger.
// fallback is the median reported while the ledger is empty (the configured
// target date). metrics may be nil in tests.
func New(ledger Snapshotter, clock clockwork.Clock, ttl time.Duration, fallback time.Time, m *metrics.CacheMetrics) *AggregateCache {
	return &AggregateCache{
		ledger:   ledger,
		clock:    clock,
		ttl:      ttl,
		fallback: fallback,
		metrics:  m,
	}
}

// Get returns the current Aggregate, serving the memoized value while it is
// fresh and recomputing from a full ledger snapshot otherwise.
func (c *AggregateCache) Get(ctx context.Context) (domain.Aggregate, error) {
	c.mu.RLock()
	cached, expiresAt, gen := c.cached, c.expiresAt, c.gen
	c.mu.RUnlock()

	now := c.clock.Now()
	if !expiresAt.IsZero() && now.Before(expiresAt) {
		if c.metrics != nil {
			c.metrics.Hits.Inc()
		}
		return cached, nil
	}

	if c.metrics != nil {
		c.metrics.Misses.Inc()
	}

	// Concurrent misses of one generation share a single recomputation.
	// A miss observed after an invalidation carries a newer generation and
	// never joins a flight whose snapshot may predate the write.
	v, err, _ := c.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		return c.recompute(ctx, gen)
	})
	if err != nil {
		return domain.Aggregate{}, err
	}
	return v.(domain.Aggregate), nil
}

// Invalidate expires the cached slot immediately. Ledger writers call this
// before returning to their caller, so any aggregate computed after a write
// completes reflects that write.
func (c *AggregateCache) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *AggregateCache) recompute(ctx context.Context, gen uint64) (domain.Aggregate, error) {
	start := c.clock.Now()

	observations, err := c.ledger.SnapshotAll(ctx)
	if err != nil {
		return domain.Aggregate{}, fmt.Errorf("cache.AggregateCache.recompute: %w", err)
	}

	agg := domain.ComputeAggregate(observations, c.fallback, c.clock.Now())

	c.mu.Lock()
	// Install only if no invalidation landed since this scan began. A stale
	// scan still returns its result to the readers already in its flight,
	// but must not re-arm the slot for a TTL and mask a newer write.
	if c.gen == gen {
		c.cached = agg
		c.expiresAt = agg.ComputedAt.Add(c.ttl)
	}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecomputeDuration.Observe(c.clock.Since(start).Seconds())
	}
	return agg, nil
}
