// Package cache memoizes generated service output so a transcript is only
// sent to a provider once per TTL.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

const keyPrefix = "claimalign:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a stable cache key from its parts (provider, model, content
// hash...). Parts are separated unambiguously, so ("ab", "c") and
// ("a", "bc") never collide.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// ContentHash returns the hex SHA-256 of a text, used as a key part for
// long inputs such as transcripts
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// New builds the cache described by the settings: nil when disabled, memory
// only without a directory, memory in front of disk otherwise
func New(enabled bool, ttl time.Duration, dir string) Cache {
	if !enabled {
		return nil
	}
	if strings.TrimSpace(dir) == "" {
		return NewMemoryCache(ttl, 10*time.Minute)
	}
	return NewLayeredCache(ttl, dir, ttl)
}
