// File: api/listener.go
// Author: momentics <momentics@gmail.com>
//
// Listener is the session-side collaborator the InputQueue delivers
// received bytes and the terminal close event to. It is called from a
// work pool worker, never from the selector thread.

package api

// Listener receives decoded input data and the terminal connection
// event for one session. OnDataReceived may be called more than once
// per read; OnConnectionClosed fires exactly once.
type Listener interface {
	// OnDataReceived delivers a contiguous slice of newly available
	// bytes. The slice aliases pooled memory and is only valid for the
	// duration of the call.
	OnDataReceived(buf []byte)

	// OnConnectionClosed signals that no further data will arrive,
	// whether due to a clean close or a read error. InputQueue.Stop
	// does not call it.
	OnConnectionClosed()
}
