package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketSearch = []byte("search_cache")

// expiryHeaderLen is the size of the big-endian UnixNano expiry stored in
// front of every value. Zero means the entry never expires.
const expiryHeaderLen = 8

func init() {
	Register("bolt", newBoltCache)
}

// boltCache persists entries in a single bbolt file so cached search results
// survive between runs of the CLI. Expired entries are swept on every Set and
// the entries closest to expiry are evicted once Size is exceeded.
type boltCache struct {
	db      *bolt.DB
	ttl     time.Duration
	maxSize int
	evicted func(keys ...string)
	logger  Logger
	now     func() time.Time
}

func newBoltCache(cfg ProviderConfig) (Cache, error) {
	if cfg.Path == "" {
		return nil, errors.New("bolt cache path required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create bolt cache directory: %w", err)
	}

	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSearch)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init bucket: %w", err)
	}

	return &boltCache{
		db:      db,
		ttl:     cfg.TTL,
		maxSize: cfg.Size,
		evicted: cfg.notifyEvicted,
		logger:  cfg.Logger,
		now:     time.Now,
	}, nil
}

func (b *boltCache) logError(msg string, err error) {
	if b.logger != nil {
		b.logger.Error(msg, err)
	}
}

func (b *boltCache) encode(value []byte) []byte {
	var expiresAt int64
	if b.ttl > 0 {
		expiresAt = b.now().Add(b.ttl).UnixNano()
	}
	buf := make([]byte, expiryHeaderLen+len(value))
	binary.BigEndian.PutUint64(buf, uint64(expiresAt))
	copy(buf[expiryHeaderLen:], value)
	return buf
}

// expired reports whether a stored record is past its expiry. Records too
// short to hold the header are treated as expired.
func (b *boltCache) expired(raw []byte) bool {
	if len(raw) < expiryHeaderLen {
		return true
	}
	expiresAt := int64(binary.BigEndian.Uint64(raw[:expiryHeaderLen]))
	return expiresAt != 0 && b.now().UnixNano() >= expiresAt
}

func (b *boltCache) Get(key string) ([]byte, bool) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSearch).Get([]byte(key))
		if raw == nil || b.expired(raw) {
			return nil
		}
		// Values are only valid for the life of the transaction.
		out = append([]byte{}, raw[expiryHeaderLen:]...)
		return nil
	})
	if err != nil {
		b.logError("bolt cache Get failed", err)
		return nil, false
	}
	return out, out != nil
}

type boltRecord struct {
	key       string
	expiresAt int64
}

func (b *boltCache) Set(key string, value []byte) {
	var evicted []string
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSearch)
		if err := bucket.Put([]byte(key), b.encode(value)); err != nil {
			return err
		}

		var live []boltRecord
		var stale []string
		err := bucket.ForEach(func(k, v []byte) error {
			if b.expired(v) {
				stale = append(stale, string(k))
				return nil
			}
			live = append(live, boltRecord{key: string(k), expiresAt: int64(binary.BigEndian.Uint64(v[:expiryHeaderLen]))})
			return nil
		})
		if err != nil {
			return err
		}

		if b.maxSize > 0 && len(live) > b.maxSize {
			// Evict the entries closest to expiry; never-expiring entries go last.
			sort.SliceStable(live, func(i, j int) bool {
				if (live[i].expiresAt == 0) != (live[j].expiresAt == 0) {
					return live[j].expiresAt == 0
				}
				return live[i].expiresAt < live[j].expiresAt
			})
			// The entry just written is never a candidate, the next one goes instead.
			overflow := len(live) - b.maxSize
			for _, rec := range live {
				if overflow == 0 {
					break
				}
				if rec.key == key {
					continue
				}
				stale = append(stale, rec.key)
				overflow--
			}
		}

		for _, k := range stale {
			if err := bucket.Delete([]byte(k)); err != nil {
				return err
			}
		}
		evicted = stale
		return nil
	})
	if err != nil {
		b.logError("bolt cache Set failed", err)
		return
	}

	b.evicted(evicted...)
}

func (b *boltCache) Invalidate(key string) {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSearch).Delete([]byte(key))
	})
	if err != nil {
		b.logError("bolt cache Invalidate failed", err)
	}
}

func (b *boltCache) Len() int {
	n := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSearch).ForEach(func(_, v []byte) error {
			if !b.expired(v) {
				n++
			}
			return nil
		})
	})
	if err != nil {
		b.logError("bolt cache Len failed", err)
		return 0
	}
	return n
}

func (b *boltCache) Close() error {
	return b.db.Close()
}
