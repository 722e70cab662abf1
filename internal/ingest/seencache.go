package ingest

import "time"

// SeenCache is a time-bounded set of external event ids the ingestor has
// already handled. Entries older than the window are evicted lazily on
// read. Not safe for concurrent use: the single ingestion task is the only
// accessor by contract.
type SeenCache struct {
	window  time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

// NewSeenCache creates a seen-cache with the given freshness window
func NewSeenCache(window time.Duration) *SeenCache {
	return &SeenCache{
		window:  window,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Seen reports whether the id was marked within the freshness window.
// A stale entry is evicted and reported as unseen.
func (c *SeenCache) Seen(id string) bool {
	marked, ok := c.entries[id]
	if !ok {
		return false
	}
	if c.now().Sub(marked) < c.window {
		return true
	}
	delete(c.entries, id)
	return false
}

// Mark records or refreshes the id's timestamp
func (c *SeenCache) Mark(id string) {
	c.entries[id] = c.now()
}

// Len returns the number of entries currently held, stale ones included
func (c *SeenCache) Len() int {
	return len(c.entries)
}
