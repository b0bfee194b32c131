// File: block/block.go
// Author: momentics <momentics@gmail.com>
//
// DataBlock is one fixed-capacity segment in the chain the Output and
// Input queues stage bytes through. Unlike the original Java source's
// ByteBuffer-backed views, a DataBlock here is a plain byte slice plus
// a read cursor and a write cursor; OutputQueue writers ignore the
// write cursor and address the slice directly by offset instead of
// through a duplicated view object, since Go slices already alias the
// same backing array without needing a position/limit wrapper.
package block

// DataBlock is one node in a singly-linked chain of fixed-capacity
// byte buffers.
type DataBlock struct {
	Buf  []byte
	Next *DataBlock

	// RWPos is the read cursor: bytes [0, RWPos) have been consumed by
	// the queue's single reader.
	RWPos int

	// WWPos is the write cursor used by InputQueue, which fills a
	// block incrementally across possibly several socket reads before
	// the reader side ever touches it. OutputQueue does not use this
	// field: its writers address blocks by an explicit offset derived
	// from the shared state word instead of a per-block cursor.
	WWPos int

	free func([]byte)
}

// New allocates a DataBlock of the given size using alloc, recording
// free for later release back to the same allocator.
func New(a Allocator, size int) (*DataBlock, error) {
	buf, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}
	return &DataBlock{Buf: buf, free: a.Free}, nil
}

// Cap returns the block's total byte capacity.
func (b *DataBlock) Cap() int { return len(b.Buf) }

// Release returns the block's backing buffer to the allocator it was
// created from. The block must not be used afterward.
func (b *DataBlock) Release() {
	if b.free != nil {
		b.free(b.Buf)
		b.free = nil
	}
	b.Buf = nil
}
