// File: internal/runqueue/runqueue.go
// Author: momentics <momentics@gmail.com>
//
// RunQueue is a Michael-style lock-free intrusive FIFO of api.Task
// values. Go interfaces cannot carry an atomic next-pointer field the
// way the original's ThreadPoolRunnable base class does, so each Task
// is wrapped in a pooled taskNode for the duration of its time in the
// queue; the pool keeps steady-state enqueue/dequeue allocation-free.
package runqueue

import (
	"sync"
	"sync/atomic"

	"github.com/jsl-go/collider/api"
)

type taskNode struct {
	task api.Task
	next atomic.Pointer[taskNode]
}

var nodePool = sync.Pool{
	New: func() any { return new(taskNode) },
}

func getNode(task api.Task) *taskNode {
	n := nodePool.Get().(*taskNode)
	n.task = task
	n.next.Store(nil)
	return n
}

func putNode(n *taskNode) {
	n.task = nil
	nodePool.Put(n)
}

// RunQueue is a single intrusive MPSC-capable FIFO queue. The zero
// value is ready to use.
type RunQueue struct {
	head atomic.Pointer[taskNode]
	tail atomic.Pointer[taskNode]
}

// Enqueue appends task to the tail of the queue. If task implements
// api.Linked, Enqueue panics with api.ErrTaskLinked when the task is
// already linked elsewhere, per spec §3's externally-owned-task
// precondition; a plain api.Task is linked unchecked.
func (q *RunQueue) Enqueue(task api.Task) {
	if lt, ok := task.(api.Linked); ok {
		if !lt.TryLink() {
			panic(api.ErrTaskLinked)
		}
	}
	n := getNode(task)
	prev := q.tail.Swap(n)
	if prev == nil {
		q.head.Store(n)
		return
	}
	prev.next.Store(n)
}

// Dequeue removes and returns the task at the head of the queue. ok is
// false if the queue was empty. Safe for multiple concurrent callers.
func (q *RunQueue) Dequeue() (task api.Task, ok bool) {
	h := q.head.Load()
	for {
		if h == nil {
			return nil, false
		}
		next := h.next.Load()
		if q.head.CompareAndSwap(h, next) {
			if next == nil {
				// h was the only node; try to retire the queue.
				if !q.tail.CompareAndSwap(h, nil) {
					// A producer is mid-Enqueue, linked past h but has
					// not yet published it to h.next.
					for next == nil {
						next = h.next.Load()
					}
					q.head.Store(next)
				}
			}
			task = h.task
			putNode(h)
			if lt, ok := task.(api.Linked); ok {
				lt.Unlink()
			}
			return task, true
		}
		h = q.head.Load()
	}
}
