// File: api/socket.go
// Author: momentics <momentics@gmail.com>
//
// Socket and SelectorBridge are the external collaborators named in
// the core's interface contract: a non-blocking byte-stream endpoint
// and a bridge into the single-threaded selector loop that arms its
// readiness. Neither is implemented by this module; both are supplied
// by the surrounding framework.

package api

// Socket is a non-blocking byte-stream endpoint. Read returns (>0, nil)
// on data, (0, nil) when nothing is currently available, and a non-nil
// error on close or a terminal I/O failure.
type Socket interface {
	// Read copies into dst and reports how many bytes were read.
	Read(dst []byte) (int, error)

	// SetReadInterest arms or disarms read-readiness notification on
	// the selector this socket is registered with.
	SetReadInterest(enabled bool) error
}

// SelectorBridge enqueues a Task for single-threaded execution on the
// selector loop. It is the only supported way to touch interest-ops
// state from outside the selector thread.
type SelectorBridge interface {
	// ExecuteInSelectorThread schedules task to run on the selector
	// thread. The task must not block.
	ExecuteInSelectorThread(task Task)
}
