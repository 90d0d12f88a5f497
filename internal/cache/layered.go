package cache

import (
	"errors"
	"fmt"
	"time"
)

// LayeredCache keeps hot entries in memory in front of a persistent disk
// layer, so generated output survives between runs
type LayeredCache struct {
	memory Cache
	disk   Cache
}

// NewLayeredCache creates a memory layer with memoryTTL over a disk layer
// rooted at diskDir with diskTTL
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

// Get looks in memory, then on disk. Disk hits are copied into memory.
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	val, found := c.disk.Get(key)
	if !found {
		return nil, false
	}
	_ = c.memory.Set(key, val, 0)
	return val, true
}

// Set persists the entry and then keeps it in memory. A failed disk write
// still leaves the entry usable for this process and is reported.
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	diskErr := c.disk.Set(key, value, ttl)
	if err := c.memory.Set(key, value, ttl); err != nil {
		return err
	}
	if diskErr != nil {
		return fmt.Errorf("persist entry: %w", diskErr)
	}
	return nil
}

// Delete removes the entry from both layers
func (c *LayeredCache) Delete(key string) error {
	return errors.Join(c.memory.Delete(key), c.disk.Delete(key))
}

// Clear empties both layers
func (c *LayeredCache) Clear() error {
	return errors.Join(c.memory.Clear(), c.disk.Clear())
}
