package executor

import "sync"

// Cache is a per-computation LIFO pool of idle Executor/Context pairs,
// reused across work items. Acquire is non-blocking; on an empty cache
// the caller is expected to create a fresh pair via a Factory. Release
// is only ever called after a successful execution that left the pair
// restartable.
type Cache struct {
	mu   sync.Mutex
	idle []Pair
}

// NewCache creates an empty executor cache.
func NewCache() *Cache {
	return &Cache{}
}

// Acquire pops the most recently released pair, or reports ok=false if
// the cache is empty.
func (c *Cache) Acquire() (pair Pair, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.idle)
	if n == 0 {
		return Pair{}, false
	}
	pair = c.idle[n-1]
	c.idle = c.idle[:n-1]
	return pair, true
}

// Release returns a pair to the free-list for reuse.
func (c *Cache) Release(pair Pair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idle = append(c.idle, pair)
}

// Depth reports the number of idle pairs currently cached.
func (c *Cache) Depth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.idle)
}

// DrainAndClose removes every idle pair and closes its Executor,
// returning the first close error encountered, if any. Used during
// shutdown to release resources held by idle pairs.
func (c *Cache) DrainAndClose() error {
	c.mu.Lock()
	drained := c.idle
	c.idle = nil
	c.mu.Unlock()

	var firstErr error
	for _, pair := range drained {
		if err := pair.Executor.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
