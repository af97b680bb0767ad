// Package cache stores verification results and URL liveness checks behind
// a pluggable key-value store with TTL expiry.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// keyPrefix namespaces every key written by this package
const keyPrefix = "citeverify:v1:"

// Cache defines the interface for a backing store.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey hashes the given parts into a namespaced key
func CacheKey(namespace string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return keyPrefix + namespace + ":" + hex.EncodeToString(h.Sum(nil))
}
