package synthesis

import (
	"sync"
	"time"

	"github.com/ordervox/ordervox/pkg/types"
)

// cacheKey identifies one synthesis result. Two requests hit the same
// entry only when every parameter that influences the audio matches.
type cacheKey struct {
	language string
	voice    string
	volume   float64
	rate     float64
	pitch    float64
	tone     types.Tone
	text     string
}

// durationCache is a bounded insertion-order cache of synthesis durations.
// When full, the oldest entry is evicted first. Safe for concurrent use.
type durationCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[cacheKey]time.Duration
	order    []cacheKey // insertion order, oldest first
}

func newDurationCache(capacity int) *durationCache {
	if capacity < 1 {
		capacity = 1
	}
	return &durationCache{
		capacity: capacity,
		entries:  make(map[cacheKey]time.Duration, capacity),
	}
}

// Get returns the cached duration for key.
func (c *durationCache) Get(key cacheKey) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.entries[key]
	return d, ok
}

// Put stores the duration for key, evicting the oldest entry when at
// capacity. Re-storing an existing key refreshes the value but keeps its
// original insertion position.
func (c *durationCache) Put(key cacheKey, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = d
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = d
	c.order = append(c.order, key)
}

// Len returns the number of cached entries.
func (c *durationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
