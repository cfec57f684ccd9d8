package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

func init() {
	Register("memory", newMemoryCache)
}

const defaultMemorySize = 128

// memoryCache lives as long as the process. It backs tests and runs that must
// not leave a cache file behind, and replaces a backend that fails to open.
type memoryCache struct {
	lru *lru.LRU[string, []byte]

	// The LRU reports removals through its eviction callback too.
	mu           sync.Mutex
	invalidating map[string]struct{}
}

func newMemoryCache(cfg ProviderConfig) (Cache, error) {
	size := cfg.Size
	if size <= 0 {
		size = defaultMemorySize
	}
	m := &memoryCache{invalidating: make(map[string]struct{})}
	m.lru = lru.NewLRU[string, []byte](size, func(fingerprint string, _ []byte) {
		m.mu.Lock()
		_, skip := m.invalidating[fingerprint]
		m.mu.Unlock()
		if !skip {
			cfg.notifyEvicted(fingerprint)
		}
	}, cfg.TTL)
	return m, nil
}

func (m *memoryCache) Get(fingerprint string) ([]byte, bool) { return m.lru.Get(fingerprint) }

func (m *memoryCache) Set(fingerprint string, response []byte) { m.lru.Add(fingerprint, response) }

func (m *memoryCache) Invalidate(fingerprint string) {
	m.mu.Lock()
	m.invalidating[fingerprint] = struct{}{}
	m.mu.Unlock()

	m.lru.Remove(fingerprint)

	m.mu.Lock()
	delete(m.invalidating, fingerprint)
	m.mu.Unlock()
}

func (m *memoryCache) Len() int { return m.lru.Len() }

func (m *memoryCache) Close() error { return nil }
