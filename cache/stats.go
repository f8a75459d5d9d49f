// ABOUTME: Lock-free hit/miss counters for the trust cache
// ABOUTME: Exposed only through an immutable snapshot
package cache

import (
	"sync/atomic"

	"github.com/harperreed/trustcache/models"
)

// counters tracks lookups across contacts and trust signals combined.
type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *counters) hit()  { c.hits.Add(1) }
func (c *counters) miss() { c.misses.Add(1) }

func (c *counters) reset() {
	c.hits.Store(0)
	c.misses.Store(0)
}

// snapshot reads both counters. Hit rate is 0 when nothing was looked up.
func (c *counters) snapshot() models.CacheStatistics {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	stats := models.CacheStatistics{
		HitCount:     hits,
		MissCount:    misses,
		TotalLookups: total,
	}
	if total > 0 {
		stats.CombinedHitRate = float64(hits) / float64(total)
	}
	return stats
}
