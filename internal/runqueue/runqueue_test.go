package runqueue

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jsl-go/collider/api"
)

type fnTask func()

func (f fnTask) RunInPool() { f() }

// linkedTask is an api.Linked Task: it tracks its own linked bit so
// tests can exercise RunQueue's double-link assert.
type linkedTask struct {
	fn     func()
	linked atomic.Bool
}

func (t *linkedTask) RunInPool() { t.fn() }
func (t *linkedTask) TryLink() bool {
	return t.linked.CompareAndSwap(false, true)
}
func (t *linkedTask) Unlink() { t.linked.Store(false) }

func TestFIFOSingleProducer(t *testing.T) {
	var q RunQueue
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		q.Enqueue(fnTask(func() { order = append(order, i) }))
	}
	for i := 0; i < 5; i++ {
		task, ok := q.Dequeue()
		if !ok {
			t.Fatalf("expected task %d, got empty", i)
		}
		task.RunInPool()
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d, want %d", i, v, i)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestConcurrentProducersConsumers(t *testing.T) {
	var q RunQueue
	const producers = 8
	const perProducer = 2000
	var total atomic.Int64

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(fnTask(func() { total.Add(1) }))
			}
		}()
	}
	wg.Wait()

	var consumed atomic.Int64
	var cwg sync.WaitGroup
	for c := 0; c < 4; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				task, ok := q.Dequeue()
				if !ok {
					return
				}
				task.RunInPool()
				consumed.Add(1)
			}
		}()
	}
	cwg.Wait()

	want := int64(producers * perProducer)
	if consumed.Load() != want {
		t.Fatalf("consumed = %d, want %d", consumed.Load(), want)
	}
	if total.Load() != want {
		t.Fatalf("total = %d, want %d", total.Load(), want)
	}
}

func TestEnqueueLinkedTaskTwicePanics(t *testing.T) {
	var q RunQueue
	task := &linkedTask{fn: func() {}}
	q.Enqueue(task)

	defer func() {
		r := recover()
		if r != api.ErrTaskLinked {
			t.Fatalf("recover() = %v, want %v", r, api.ErrTaskLinked)
		}
	}()
	q.Enqueue(task)
}

func TestLinkedTaskResubmittableAfterDequeue(t *testing.T) {
	var q RunQueue
	task := &linkedTask{fn: func() {}}
	q.Enqueue(task)

	if _, ok := q.Dequeue(); !ok {
		t.Fatal("expected to dequeue the linked task")
	}

	// Unlink ran on dequeue, so resubmitting the same instance must
	// succeed rather than panic.
	q.Enqueue(task)
	if _, ok := q.Dequeue(); !ok {
		t.Fatal("expected to dequeue the relinked task")
	}
}

func TestBankSpreadsAcrossQueues(t *testing.T) {
	b := NewBank(4)
	for i := 0; i < 16; i++ {
		b.Submit(fnTask(func() {}))
	}
	counted := 0
	for i := 0; i < b.Size(); i++ {
		for {
			_, ok := b.DequeueAt(i)
			if !ok {
				break
			}
			counted++
		}
	}
	if counted != 16 {
		t.Fatalf("counted = %d, want 16", counted)
	}
}
