// File: internal/runqueue/bank.go
// Author: momentics <momentics@gmail.com>
//
// Bank is a fixed set of RunQueues. Submissions are spread across them
// by one rotating counter shared by all submitters; there is no
// per-submitter counter. Bank keeps no probe cursor: workers pass the
// queue index they want to DequeueAt.

package runqueue

import (
	"sync/atomic"

	"github.com/jsl-go/collider/api"
)

// Bank owns K RunQueues and spreads submissions across them.
type Bank struct {
	queues []RunQueue
	next   atomic.Uint64
}

// NewBank returns a Bank with k queues. NewBank panics if k < 1.
func NewBank(k int) *Bank {
	if k < 1 {
		panic("runqueue: contention factor must be >= 1")
	}
	return &Bank{queues: make([]RunQueue, k)}
}

// Size reports the number of queues in the bank.
func (b *Bank) Size() int { return len(b.queues) }

// Submit enqueues task into a queue chosen by a rotating counter
// shared across submitters, then returns the chosen index.
func (b *Bank) Submit(task api.Task) int {
	i := int(b.next.Add(1)-1) % len(b.queues)
	b.queues[i].Enqueue(task)
	return i
}

// DequeueAt attempts a single dequeue from queue index i (taken modulo
// the bank size). Worker loops drive the credit/cursor protocol
// themselves using this primitive.
func (b *Bank) DequeueAt(i int) (task api.Task, ok bool) {
	return b.queues[i%len(b.queues)].Dequeue()
}
