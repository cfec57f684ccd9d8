package cache

// meteredCache counts lookups and invalidations of one cache group.
type meteredCache struct {
	inner Cache
	group string
}

func newMeteredCache(inner Cache, group string) *meteredCache {
	registerEntriesCollector(group, inner.Len)
	return &meteredCache{inner: inner, group: group}
}

func (c *meteredCache) Get(fingerprint string) ([]byte, bool) {
	response, ok := c.inner.Get(fingerprint)
	result := "miss"
	if ok {
		result = "hit"
	}
	LookupsTotal.WithLabelValues(c.group, result).Inc()
	return response, ok
}

func (c *meteredCache) Set(fingerprint string, response []byte) {
	c.inner.Set(fingerprint, response)
}

func (c *meteredCache) Invalidate(fingerprint string) {
	InvalidationsTotal.WithLabelValues(c.group).Inc()
	c.inner.Invalidate(fingerprint)
}

func (c *meteredCache) Len() int {
	return c.inner.Len()
}

func (c *meteredCache) Close() error {
	unregisterEntriesCollector(c.group)
	return c.inner.Close()
}
