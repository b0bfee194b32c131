// File: block/cache.go
// Author: momentics <momentics@gmail.com>
//
// WorkerCache is a small fixed-size DataBlock reuse cache addressed by
// slot index. The original pins one cached DataBlock per OS thread via
// ThreadLocal; a Go work pool's workers are goroutines rather than
// pinned OS threads, so callers that need thread-local-style reuse
// address their own slot space instead (InputQueue uses a single-slot
// cache per connection, the n=1 case of this same abstraction).
package block

import "sync/atomic"

// WorkerCache holds one reusable DataBlock per slot.
type WorkerCache struct {
	slots []atomic.Pointer[DataBlock]
}

// NewWorkerCache returns a cache with n worker slots.
func NewWorkerCache(n int) *WorkerCache {
	return &WorkerCache{slots: make([]atomic.Pointer[DataBlock], n)}
}

// Take removes and returns the block cached for slot, or nil if none
// is cached.
func (c *WorkerCache) Take(slot int) *DataBlock {
	return c.slots[slot].Swap(nil)
}

// Put caches b for reuse by slot, replacing whatever was cached there.
func (c *WorkerCache) Put(slot int, b *DataBlock) {
	c.slots[slot].Store(b)
}
