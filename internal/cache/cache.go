// Package cache stores encoded search responses keyed by search fingerprint.
package cache

// Cache holds encoded search responses. Every entry expires after the TTL the
// cache was created with. Backend failures are logged and reported as a miss,
// they never fail a lookup.
type Cache interface {
	// Get returns the response stored under fingerprint, if any and not expired.
	Get(fingerprint string) ([]byte, bool)

	// Set stores response under fingerprint, replacing any previous entry and its expiry.
	Set(fingerprint string, response []byte)

	// Invalidate drops the entry stored under fingerprint. It is used for
	// entries that can no longer be decoded.
	Invalidate(fingerprint string)

	// Len returns the number of live entries. For Redis this is the key count
	// of the configured database.
	Len() int

	Close() error
}

// Logger receives backend failures.
type Logger interface {
	Error(msg string, err error)
}
