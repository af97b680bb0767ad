package cache

import "time"

// LayeredCache checks a fast layer before a durable one
type LayeredCache struct {
	memory     Cache
	persistent Cache
	promoteTTL time.Duration
}

// NewLayeredCache creates a layered cache. Hits in the persistent layer are
// promoted to memory for promoteTTL.
func NewLayeredCache(memory, persistent Cache, promoteTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory:     memory,
		persistent: persistent,
		promoteTTL: promoteTTL,
	}
}

// Get retrieves a value (memory first, then persistent)
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	if val, found := c.persistent.Get(key); found {
		_ = c.memory.Set(key, val, c.promoteTTL)
		return val, true
	}

	return nil, false
}

// Set stores a value in both layers
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, value, ttl); err != nil {
		return err
	}
	return c.persistent.Set(key, value, ttl)
}

// Delete removes a value from both layers
func (c *LayeredCache) Delete(key string) error {
	memErr := c.memory.Delete(key)
	if err := c.persistent.Delete(key); err != nil {
		return err
	}
	return memErr
}

// Clear removes all values from both layers
func (c *LayeredCache) Clear() error {
	memErr := c.memory.Clear()
	if err := c.persistent.Clear(); err != nil {
		return err
	}
	return memErr
}
