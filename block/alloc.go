// File: block/alloc.go
// Author: momentics <momentics@gmail.com>
//
// Allocator abstracts DataBlock buffer allocation so that OutputQueue
// and InputQueue can be built against either OS-backed "direct"
// buffers or ordinary heap slices, matching the original's choice
// between ByteBuffer.allocateDirect and ByteBuffer.allocate.
package block

// Allocator allocates and frees fixed-size byte buffers for DataBlock.
type Allocator interface {
	Alloc(size int) ([]byte, error)
	Free(buf []byte)
}

// heapAllocator backs DataBlocks with ordinary Go heap slices.
type heapAllocator struct{}

// Alloc returns a zeroed slice of the requested size.
func (heapAllocator) Alloc(size int) ([]byte, error) {
	return make([]byte, size), nil
}

// Free is a no-op for heap-backed slices; the garbage collector
// reclaims them.
func (heapAllocator) Free(buf []byte) {}

// HeapAllocator returns an Allocator backed by the Go heap.
func HeapAllocator() Allocator { return heapAllocator{} }

// NewAllocator returns the direct (OS-backed) allocator when direct
// is true and the platform supports it, otherwise the heap allocator.
func NewAllocator(direct bool) Allocator {
	if direct {
		if a := newDirectAllocator(); a != nil {
			return a
		}
	}
	return HeapAllocator()
}
