// File: api/task.go
// Author: momentics <momentics@gmail.com>
//
// Task is the opaque unit of work submitted to a WorkPool. Tasks are
// externally owned: the pool never allocates them, only links and
// unlinks them while they pass through a run-queue.

package api

// Task is a single unit of work with exactly one operation. Submitters
// must not resubmit a Task while it is still linked in a run-queue; a
// Task may be resubmitted only after it has been dequeued.
type Task interface {
	// RunInPool executes the unit of work on a work pool worker.
	RunInPool()
}

// Linked is implemented by Task values that want the run-queue to
// enforce spec §3's "a task's next is null whenever it is not linked"
// precondition at submission time. A plain Task that does not
// implement Linked is enqueued unchecked, at the submitter's own risk;
// implementing Linked costs one atomic CAS per Enqueue/Dequeue in
// exchange for Submit panicking on a genuine double-link instead of
// corrupting the queue silently.
type Linked interface {
	Task

	// TryLink atomically marks the task linked, returning false if it
	// was already linked.
	TryLink() bool

	// Unlink clears the linked mark. The run-queue calls it once the
	// task has been dequeued and its intrusive link reset to nil.
	Unlink()
}
