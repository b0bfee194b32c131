// File: ioqueue/inputqueue.go
// Author: momentics <momentics@gmail.com>
//
// InputQueue coordinates a socket reader role (run in a work pool
// worker) and a selector-arming role (run on the selector thread) to
// deliver received bytes to a Listener without blocking either thread.
// A single 32-bit atomic word (length | CLOSED) tracks how many bytes
// are outstanding and whether the peer has gone away.
package ioqueue

import (
	"log"
	"sync/atomic"

	"github.com/jsl-go/collider/api"
	"github.com/jsl-go/collider/block"
	"github.com/jsl-go/collider/control"
)

const (
	lengthMask int32 = 0x3FFFFFFF
	closedBit  int32 = 0x40000000
)

type listenerBox struct{ l api.Listener }

// InputQueue reads from a non-blocking Socket and delivers contiguous
// chunks to a Listener, rearming selector readiness between reads.
type InputQueue struct {
	socket   api.Socket
	selector api.SelectorBridge

	useDirectBuffers bool
	blockSize        int
	alloc            block.Allocator

	// spare is a single-slot reuse cache for one DataBlock, the
	// per-queue analogue of the original's per-OS-thread ThreadLocal:
	// whichever goroutine next executes this queue's Task may find a
	// block here instead of allocating one.
	spare *block.WorkerCache

	listener atomic.Pointer[listenerBox]
	stopped  atomic.Bool
	closed   atomic.Bool

	length    atomic.Int32
	dataBlock atomic.Pointer[block.DataBlock]

	armTask api.Task

	bytesRead atomic.Int64
	reads     atomic.Int64

	metrics *control.MetricsRegistry
	name    string
}

// Option configures optional ambient collaborators on an InputQueue.
type Option func(*InputQueue)

// WithMetrics attaches a metrics registry that Stats publishes into,
// under the given name prefix.
func WithMetrics(name string, m *control.MetricsRegistry) Option {
	return func(q *InputQueue) { q.name, q.metrics = name, m }
}

// WithDebugProbes registers a state dump probe under name.
func WithDebugProbes(name string, d *control.DebugProbes) Option {
	return func(q *InputQueue) {
		if d != nil {
			d.RegisterProbe(name, func() any { return q.Stats() })
		}
	}
}

// NewInputQueue constructs an InputQueue over socket, using selector to
// rearm read interest between reads.
func NewInputQueue(socket api.Socket, selector api.SelectorBridge, useDirectBuffers bool, blockSize int, opts ...Option) *InputQueue {
	if blockSize < 1 {
		blockSize = 1
	}
	q := &InputQueue{
		socket:           socket,
		selector:         selector,
		useDirectBuffers: useDirectBuffers,
		blockSize:        blockSize,
		alloc:            block.NewAllocator(useDirectBuffers),
		spare:            block.NewWorkerCache(1),
		name:             "input_queue",
	}
	q.armTask = armReadInterestTask{q: q}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Stats returns a snapshot of this queue's own counters merged with
// whatever a supplied MetricsRegistry currently holds.
func (q *InputQueue) Stats() map[string]any {
	out := map[string]any{
		"block_size": q.blockSize,
		"bytes_read": q.bytesRead.Load(),
		"reads":      q.reads.Load(),
		"closed":     q.closed.Load(),
	}
	if q.metrics != nil {
		q.metrics.Set(q.name+".bytes_read", q.bytesRead.Load())
		q.metrics.Set(q.name+".reads", q.reads.Load())
		for k, v := range q.metrics.GetSnapshot() {
			out[k] = v
		}
	}
	return out
}

// SetListenerAndStart installs listener and requests the selector
// thread arm read interest for the first time.
func (q *InputQueue) SetListenerAndStart(listener api.Listener) {
	q.listener.Store(&listenerBox{l: listener})
	q.selector.ExecuteInSelectorThread(q.armTask)
}

// Stop deregisters the listener and marks the queue closed. A worker
// task that is racing Stop observes a closed queue and exits instead
// of delivering to a listener that may already be torn down. Unlike
// the original, which leaves this a no-op, in-flight DataBlocks are
// not proactively drained; drain-on-close policy is out of scope here.
func (q *InputQueue) Stop() {
	q.stopped.Store(true)
	q.listener.Store(nil)
}

func (q *InputQueue) currentListener() api.Listener {
	if b := q.listener.Load(); b != nil {
		return b.l
	}
	return nil
}

// RunInPool implements api.Task for the worker-role dispatch: reading
// from the socket and delivering to the listener.
func (q *InputQueue) RunInPool() {
	if q.stopped.Load() {
		log.Printf("ioqueue: input queue task ran after Stop, dropping: %v", api.ErrQueueClosed)
		return
	}
	q.run()
}

// armReadInterestTask adapts InputQueue's selector-role callback to
// api.Task so it can be scheduled via SelectorBridge without widening
// api.Task itself.
type armReadInterestTask struct{ q *InputQueue }

func (t armReadInterestTask) RunInPool() { t.q.armReadInterest() }

// armReadInterest runs on the selector thread and re-enables read
// readiness notification for this socket.
func (q *InputQueue) armReadInterest() {
	if q.stopped.Load() {
		return
	}
	if err := q.socket.SetReadInterest(true); err != nil {
		log.Printf("ioqueue: SetReadInterest failed: %v", err)
	}
}

func (q *InputQueue) takeSpare() *block.DataBlock {
	return q.spare.Take(0)
}

func (q *InputQueue) putSpare(b *block.DataBlock) {
	b.RWPos = 0
	b.WWPos = 0
	q.spare.Put(0, b)
}

func (q *InputQueue) newBlock() *block.DataBlock {
	if b := q.takeSpare(); b != nil {
		return b
	}
	nb, err := block.New(q.alloc, q.blockSize)
	if err != nil {
		log.Printf("ioqueue: failed to allocate data block: %v", err)
		return nil
	}
	return nb
}

// readData issues one non-blocking read into dataBlock's remaining
// write space. closed reports a terminal socket error or EOF; a
// non-closed read returning zero bytes just means nothing is
// available yet, which the original's channel-readiness-gated caller
// never had to distinguish from a real error.
func (q *InputQueue) readData(dataBlock *block.DataBlock) (n int, closed bool) {
	n, err := q.socket.Read(dataBlock.Buf[dataBlock.WWPos:])
	if err != nil {
		return 0, true
	}
	q.reads.Add(1)
	if n > 0 {
		dataBlock.WWPos += n
		q.bytesRead.Add(int64(n))
	}
	return n, false
}

// readAndHandleData is the no-pending-data entry path: a fresh read
// becomes the start of a new delivery chain.
func (q *InputQueue) readAndHandleData() {
	dataBlock := q.newBlock()
	if dataBlock == nil {
		return
	}

	bytesReceived, closed := q.readData(dataBlock)
	if bytesReceived > 0 {
		q.dataBlock.Store(dataBlock)
		q.length.Store(int32(bytesReceived))
		q.selector.ExecuteInSelectorThread(q.armTask)
		q.handleData(dataBlock, bytesReceived)
		return
	}
	if closed {
		q.notifyClosed()
		q.putSpare(dataBlock)
		return
	}
	// Nothing available yet, not closed: the socket's OP_READ is still
	// disabled from the dispatch that got us here, so unlike every
	// bytesReceived>0 branch above, nobody else will rearm it.
	q.putSpare(dataBlock)
	q.selector.ExecuteInSelectorThread(q.armTask)
}

// run is InputQueue's worker-role entry point, invoked once per
// socket-readiness notification.
func (q *InputQueue) run() {
	dataBlock := q.dataBlock.Load()
	length := q.length.Load()
	if length == 0 {
		q.readAndHandleData()
		return
	}

	var prev *block.DataBlock
	if dataBlock.WWPos == dataBlock.Cap() {
		prev = dataBlock
		dataBlock = q.newBlock()
		if dataBlock == nil {
			return
		}
	}

	bytesReceived, closed := q.readData(dataBlock)
	if bytesReceived > 0 {
		if prev != nil {
			prev.Next = dataBlock
		}

		for {
			newLength := (length & lengthMask) + int32(bytesReceived)
			if q.length.CompareAndSwap(length, newLength) {
				length = newLength
				break
			}
			length = q.length.Load()
		}

		if length == int32(bytesReceived) {
			if prev != nil {
				prev.Next = nil
				q.putSpare(prev)
				q.dataBlock.Store(dataBlock)
			}
			q.selector.ExecuteInSelectorThread(q.armTask)
			q.handleData(dataBlock, bytesReceived)
		} else {
			q.selector.ExecuteInSelectorThread(q.armTask)
		}
		return
	}

	if prev != nil {
		q.putSpare(dataBlock)
	}

	if !closed {
		// Nothing available yet, not closed: same rearm obligation as
		// the no-pending-data path in readAndHandleData above.
		q.selector.ExecuteInSelectorThread(q.armTask)
		return
	}

	for {
		newLength := length | closedBit
		if q.length.CompareAndSwap(length, newLength) {
			length = newLength
			break
		}
		length = q.length.Load()
	}

	if length&lengthMask == 0 {
		q.notifyClosed()
	}
}

// handleData delivers bytesReady bytes starting at dataBlock's read
// cursor, following the Next chain across block boundaries, until the
// shared length counter reaches zero. Each iteration delivers at most
// the current block's remaining capacity rather than assuming every
// block in the chain was filled by the same number of bytes as the
// first read — the original's direct translation of this loop reuses
// its initial chunk size across block-boundary iterations, which only
// holds when every block happens to be filled identically; this
// version recomputes the per-iteration chunk from the shared length
// counter so a chain spanning blocks of differing fill levels is
// delivered correctly.
func (q *InputQueue) handleData(dataBlock *block.DataBlock, bytesReady int) {
	chunk := bytesReady
	for {
		avail := dataBlock.Cap() - dataBlock.RWPos
		if chunk > avail {
			chunk = avail
		}
		end := dataBlock.RWPos + chunk
		if l := q.currentListener(); l != nil {
			l.OnDataReceived(dataBlock.Buf[dataBlock.RWPos:end])
		}
		dataBlock.RWPos = end

		length := q.length.Add(int32(-chunk))
		bytesRest := int(length & lengthMask)
		if bytesRest == 0 {
			break
		}

		if dataBlock.RWPos == dataBlock.Cap() {
			next := dataBlock.Next
			dataBlock.Next = nil
			dataBlock.RWPos = 0
			dataBlock.WWPos = 0
			q.putSpare(dataBlock)
			dataBlock = next
		}

		chunk = bytesRest
		if rem := dataBlock.Cap() - dataBlock.RWPos; chunk > rem {
			chunk = rem
		}
	}

	if q.length.Load()&closedBit != 0 {
		q.notifyClosed()
	}

	if q.dataBlock.CompareAndSwap(dataBlock, nil) {
		q.putSpare(dataBlock)
	}
}

func (q *InputQueue) notifyClosed() {
	if q.closed.CompareAndSwap(false, true) {
		if l := q.currentListener(); l != nil {
			l.OnConnectionClosed()
		}
	}
}
