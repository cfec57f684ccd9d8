package cache

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// ProviderConfig configures a cache backend.
type ProviderConfig struct {
	Size int           // Max entries for bolt and memory, ignored by badger and redis
	TTL  time.Duration // Zero keeps entries until evicted
	Path string        // bolt file or badger directory

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	// Logger receives backend failures. Nil discards them.
	Logger Logger

	// Group labels the cache metrics. An empty group leaves the cache unmetered.
	Group string

	// evicted is called with the fingerprint of every entry a provider drops
	// on its own, through expiry sweeps or the Size bound.
	evicted func(fingerprint string)
}

func (cfg ProviderConfig) notifyEvicted(fingerprints ...string) {
	if cfg.evicted == nil {
		return
	}
	for _, fp := range fingerprints {
		cfg.evicted(fp)
	}
}

// Provider opens a backend.
type Provider func(cfg ProviderConfig) (Cache, error)

var (
	providersMu sync.RWMutex
	providers   = make(map[string]Provider)
)

// Register makes a provider available to New. It panics on a nil provider or
// a duplicate name.
func Register(name string, p Provider) {
	providersMu.Lock()
	defer providersMu.Unlock()

	if p == nil {
		panic("cache: nil provider " + name)
	}
	if _, dup := providers[name]; dup {
		panic(fmt.Sprintf("cache: provider %q registered twice", name))
	}
	providers[name] = p
}

// New opens the named provider. With a Group set the cache is metered:
// lookups, evictions and invalidations are counted under that group and the
// entry count is read at scrape time.
func New(name string, cfg ProviderConfig) (Cache, error) {
	providersMu.RLock()
	p, ok := providers[name]
	providersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("cache: unknown provider %q (registered: %v)", name, RegisteredProviders())
	}

	if cfg.Group == "" {
		return p(cfg)
	}

	group := cfg.Group
	next := cfg.evicted
	cfg.evicted = func(fingerprint string) {
		EvictionsTotal.WithLabelValues(group).Inc()
		if next != nil {
			next(fingerprint)
		}
	}

	inner, err := p(cfg)
	if err != nil {
		return nil, err
	}
	return newMeteredCache(inner, group), nil
}

// RegisteredProviders returns the provider names in sorted order.
func RegisteredProviders() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
