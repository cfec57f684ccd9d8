package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

func init() {
	Register("badger", newBadgerCache)
}

// badgerCache stores entries in a Badger directory using native per-entry TTL.
// Badger hides expired entries from reads and drops them during compaction.
type badgerCache struct {
	db     *badger.DB
	ttl    time.Duration
	logger Logger
}

func newBadgerCache(cfg ProviderConfig) (Cache, error) {
	if cfg.Path == "" {
		return nil, errors.New("badger cache path required")
	}
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &badgerCache{db: db, ttl: cfg.TTL, logger: cfg.Logger}, nil
}

func (b *badgerCache) logError(msg string, err error) {
	if b.logger != nil {
		b.logger.Error(msg, err)
	}
}

func (b *badgerCache) Get(key string) ([]byte, bool) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			b.logError("badger cache Get failed", err)
		}
		return nil, false
	}
	if out == nil {
		out = []byte{}
	}
	return out, true
}

func (b *badgerCache) Set(key string, value []byte) {
	err := b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if b.ttl > 0 {
			entry = entry.WithTTL(b.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		b.logError("badger cache Set failed", err)
	}
}

func (b *badgerCache) Invalidate(key string) {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		b.logError("badger cache Invalidate failed", err)
	}
}

func (b *badgerCache) Len() int {
	n := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		b.logError("badger cache Len failed", err)
		return 0
	}
	return n
}

func (b *badgerCache) Close() error {
	return b.db.Close()
}
