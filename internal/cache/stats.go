package cache

import "sync/atomic"

// counters tracks cache effectiveness across all requests.
type counters struct {
	hits   atomic.Uint64
	misses atomic.Uint64
	sets   atomic.Uint64
	errors atomic.Uint64
}

func (c *counters) hit()   { c.hits.Add(1) }
func (c *counters) miss()  { c.misses.Add(1) }
func (c *counters) store() { c.sets.Add(1) }
func (c *counters) fail()  { c.errors.Add(1) }

// Stats is a point-in-time snapshot of cache activity; the status endpoint
// serves it.
type Stats struct {
	Enabled bool   `json:"enabled"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Sets    uint64 `json:"sets"`
	Errors  uint64 `json:"errors"`
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Enabled: c.client != nil,
		Hits:    c.stats.hits.Load(),
		Misses:  c.stats.misses.Load(),
		Sets:    c.stats.sets.Load(),
		Errors:  c.stats.errors.Load(),
	}
}
