// File: ioqueue/outputqueue.go
// Author: momentics <momentics@gmail.com>
//
// OutputQueue accepts concurrent byte writes from up to six
// simultaneous writers, appending into a chain of fixed-size
// DataBlocks, and reports per writer the number of bytes its call made
// contiguously readable at the head. A single 64-bit bit-packed atomic
// word (offs | start | writers) encodes the whole protocol; sentinel
// -1 marks a block-allocation phase during which no writer may enter.
//
// This is a close transliteration of the original DataBlock-chain
// algorithm, with one structural simplification: because Go slices
// already alias their backing array, writers address a DataBlock's
// bytes directly by offset instead of caching a duplicated
// ByteBuffer-style view per writer slot.
package ioqueue

import (
	"sync"
	"sync/atomic"

	"github.com/jsl-go/collider/api"
	"github.com/jsl-go/collider/block"
	"github.com/jsl-go/collider/control"
)

const (
	offsWidth    = 36
	startWidth   = 20
	writersWidth = 6

	offsMask    = (int64(1) << offsWidth) - 1
	startMask   = ((int64(1) << startWidth) - 1) << offsWidth
	writersMask = ((int64(1) << writersWidth) - 1) << (startWidth + offsWidth)

	// maxBlockSize is the largest block size addressable by the start
	// field; constructor requests above this are silently clamped.
	maxBlockSize = int(startMask >> offsWidth)

	lockedState int64 = -1
)

// getOffs returns the next writable byte offset within the tail
// block, encoding block-boundary exactness: a result equal to
// blockSize means the tail block is exactly full.
func getOffs(state int64, blockSize int) int64 {
	offs := state & offsMask
	ret := offs % int64(blockSize)
	if ret > 0 {
		return ret
	}
	if offs > 0 {
		return int64(blockSize)
	}
	return 0
}

// OutputQueue is a multi-writer, single-reader byte staging area.
type OutputQueue struct {
	useDirectBuffers bool
	blockSize        int
	alloc            block.Allocator

	state atomic.Int64

	// head is owned exclusively by the single reader (getData /
	// removeData callers); tail is published through an atomic
	// pointer so the -1-locked exclusive writer's chain mutation
	// becomes visible to later writers without a data race.
	head *block.DataBlock
	tail atomic.Pointer[block.DataBlock]

	mu sync.Mutex // serializes getData/removeData against each other

	blocksAllocated atomic.Int64
	bytesWritten    atomic.Int64

	metrics *control.MetricsRegistry
	name    string
}

// OutputOption configures optional ambient collaborators on an OutputQueue.
type OutputOption func(*OutputQueue)

// WithOutputMetrics attaches a metrics registry that Stats publishes into,
// under the given name prefix.
func WithOutputMetrics(name string, m *control.MetricsRegistry) OutputOption {
	return func(q *OutputQueue) { q.name, q.metrics = name, m }
}

// WithOutputDebugProbes registers a state dump probe under name.
func WithOutputDebugProbes(name string, d *control.DebugProbes) OutputOption {
	return func(q *OutputQueue) {
		if d != nil {
			d.RegisterProbe(name, func() any { return q.Stats() })
		}
	}
}

// NewOutputQueue constructs an OutputQueue. blockSize above the
// addressable maximum (2^20 - 1) is clamped down to it, matching the
// original implementation's unconditional constructor clamp.
func NewOutputQueue(useDirectBuffers bool, blockSize int, opts ...OutputOption) (*OutputQueue, error) {
	if blockSize > maxBlockSize {
		blockSize = maxBlockSize
	}
	if blockSize < 1 {
		blockSize = 1
	}
	q := &OutputQueue{
		useDirectBuffers: useDirectBuffers,
		blockSize:        blockSize,
		alloc:            block.NewAllocator(useDirectBuffers),
		name:             "output_queue",
	}
	first, err := block.New(q.alloc, blockSize)
	if err != nil {
		return nil, err
	}
	q.head = first
	q.tail.Store(first)
	q.blocksAllocated.Store(1)
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Stats returns a snapshot of this queue's own counters merged with
// whatever a supplied MetricsRegistry currently holds.
func (q *OutputQueue) Stats() map[string]any {
	out := map[string]any{
		"block_size":       q.blockSize,
		"blocks_allocated": q.blocksAllocated.Load(),
		"bytes_written":    q.bytesWritten.Load(),
	}
	if q.metrics != nil {
		q.metrics.Set(q.name+".bytes_written", q.bytesWritten.Load())
		q.metrics.Set(q.name+".blocks_allocated", q.blocksAllocated.Load())
		for k, v := range q.metrics.GetSnapshot() {
			out[k] = v
		}
	}
	return out
}

// checkWriteSize rejects a single call that would write more bytes
// than the offset field can address, rather than silently wrapping it
// the way the original's unchecked arithmetic would.
func checkWriteSize(dataSize int64) error {
	if dataSize > offsMask {
		return api.ErrWriteTooLarge
	}
	return nil
}

// AddData appends data and returns the number of bytes this call made
// newly, contiguously readable at the head of the queue. A single call
// may write at most 2^36-1 bytes; larger calls return
// api.ErrWriteTooLarge rather than silently wrapping the offset field.
func (q *OutputQueue) AddData(data []byte) (int64, error) {
	dataSize := int64(len(data))
	if dataSize == 0 {
		return 0, nil
	}
	if err := checkWriteSize(dataSize); err != nil {
		return 0, err
	}

	state := q.state.Load()
	for {
		if state == lockedState {
			state = q.state.Load()
			continue
		}

		offs := getOffs(state, q.blockSize)
		space := int64(q.blockSize) - offs

		if dataSize > space {
			if state&writersMask != 0 {
				state = q.state.Load()
				continue
			}
			if !q.state.CompareAndSwap(state, lockedState) {
				state = q.state.Load()
				continue
			}
			return q.growAndWrite(state, data, offs, space)
		}

		writers := state & writersMask
		if writers == writersMask {
			// Maximum concurrent writers reached; try later.
			state = q.state.Load()
			continue
		}

		newState := state & offsMask
		newState += dataSize
		if newState > offsMask {
			newState %= int64(q.blockSize)
			if newState == 0 {
				newState = int64(q.blockSize)
			}
		}
		newState |= state &^ offsMask

		var writer int64 = 1 << (startWidth + offsWidth)
		writerIdx := 0
		for ; writerIdx < writersWidth; writerIdx, writer = writerIdx+1, writer<<1 {
			if state&writer == 0 {
				break
			}
		}

		newState |= writer
		if writers == 0 {
			newState |= offs << offsWidth
		}

		if !q.state.CompareAndSwap(state, newState) {
			state = q.state.Load()
			continue
		}

		tail := q.tail.Load()
		copy(tail.Buf[offs:offs+dataSize], data)
		q.bytesWritten.Add(dataSize)

		return q.retireWriter(newState, writer, offs, dataSize)
	}
}

// growAndWrite runs with exclusive access (state == lockedState):
// fills out the remainder of the current tail block, appends as many
// fresh blocks as needed for the rest of data, and publishes the new
// state.
func (q *OutputQueue) growAndWrite(oldState int64, data []byte, offs, space int64) (int64, error) {
	dataSize := int64(len(data))
	tail := q.tail.Load()

	pos := int64(0)
	if space > 0 {
		copy(tail.Buf[offs:offs+space], data[:space])
		pos = space
	}

	bytesRest := dataSize - space
	for {
		nb, err := block.New(q.alloc, q.blockSize)
		if err != nil {
			q.state.Store(oldState)
			return 0, err
		}
		tail.Next = nb
		tail = nb
		q.tail.Store(tail)
		q.blocksAllocated.Add(1)

		if bytesRest <= int64(q.blockSize) {
			copy(nb.Buf[:bytesRest], data[pos:pos+bytesRest])
			break
		}
		copy(nb.Buf, data[pos:pos+int64(q.blockSize)])
		pos += int64(q.blockSize)
		bytesRest -= int64(q.blockSize)
	}

	newState := oldState & offsMask
	newState += dataSize
	if newState > offsMask {
		newState %= int64(q.blockSize)
		if newState == 0 {
			newState = int64(q.blockSize)
		}
	}

	if !q.state.CompareAndSwap(lockedState, newState) {
		panic("ioqueue: lost exclusive state lock during block allocation")
	}
	q.bytesWritten.Add(dataSize)
	return dataSize, nil
}

// retireWriter implements the three-way retirement branch: the last
// writer out of a cohort clears start and reports the full span since
// start; the earliest in-flight writer retiring while others remain
// advances start and reports only its own span; any other writer
// retiring while an earlier one is still in flight reports zero.
func (q *OutputQueue) retireWriter(state, writer, offs, dataSize int64) (int64, error) {
	for {
		newState := state - writer
		start := (state & startMask) >> offsWidth

		if newState&writersMask == 0 {
			newState &^= startMask
			if q.state.CompareAndSwap(state, newState) {
				end := getOffs(newState, q.blockSize)
				return end - start, nil
			}
		} else if offs == start {
			newState &^= startMask
			newState |= (offs + dataSize) << offsWidth
			if q.state.CompareAndSwap(state, newState) {
				return dataSize, nil
			}
		} else {
			if q.state.CompareAndSwap(state, newState) {
				return 0, nil
			}
		}
		state = q.state.Load()
	}
}

// GetData fills iov with views of readable bytes, up to maxBytes or
// until all iov slots are used, whichever comes first. It returns the
// total number of bytes placed across iov. Only the reader side calls
// GetData; it does not mutate writer-visible state.
func (q *OutputQueue) GetData(iov [][]byte, maxBytes int64) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	dataBlock := q.head
	pos := dataBlock.RWPos
	capacity := dataBlock.Cap()

	if pos == capacity {
		q.head = dataBlock.Next
		dataBlock.Next = nil
		dataBlock.Release()
		dataBlock = q.head
		pos = dataBlock.RWPos
		capacity = dataBlock.Cap()
	}

	bytesRest := maxBytes
	var ret int64
	idx := 0

	for {
		bb := int64(capacity - pos)
		if bb > bytesRest {
			bb = bytesRest
		}

		iov[idx] = dataBlock.Buf[pos : pos+int(bb)]

		ret += bb
		bytesRest -= bb
		idx++

		if idx == len(iov) {
			return ret
		}
		if bytesRest == 0 {
			break
		}

		dataBlock = dataBlock.Next
		pos = dataBlock.RWPos
		capacity = dataBlock.Cap()
	}

	for ; idx < len(iov); idx++ {
		iov[idx] = nil
	}
	return ret
}

// RemoveData advances the read cursor by bytes, starting at pos0 in
// the current head block, freeing each block it moves past. A block
// consumed exactly to its end stays at the head; the next GetData
// unlinks and frees it.
func (q *OutputQueue) RemoveData(pos0 int, bytes int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pos := pos0
	bytesRest := bytes
	for {
		dataBlock := q.head
		capacity := dataBlock.Cap()
		rwb := int64(capacity - pos)
		if bytesRest <= rwb {
			dataBlock.RWPos = pos + int(bytesRest)
			return
		}

		bytesRest -= rwb
		next := dataBlock.Next
		dataBlock.Next = nil
		dataBlock.Release()
		q.head = next
		pos = 0
	}
}
