// File: fake/fake.go
// Author: momentics <momentics@gmail.com>
//
// In-memory Socket, SelectorBridge, and Listener doubles used by
// ioqueue's tests in place of a real socket/selector/session stack.
package fake

import (
	"errors"
	"sync"

	"github.com/jsl-go/collider/api"
)

// ErrClosed is returned by Socket.Read once the socket has been
// closed and its buffered data drained.
var ErrClosed = errors.New("fake: socket closed")

// Socket is an in-memory, non-blocking Socket double. Feed appends
// bytes as if they arrived from the peer; Close marks the socket EOF
// once buffered bytes are drained.
type Socket struct {
	mu           sync.Mutex
	buf          []byte
	closed       bool
	readInterest bool
}

// NewSocket returns an empty, open fake Socket.
func NewSocket() *Socket { return &Socket{} }

// Feed appends data to be returned by future Read calls.
func (s *Socket) Feed(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, data...)
}

// Close marks the socket closed. Read returns an error once any
// buffered bytes have been drained.
func (s *Socket) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Read implements api.Socket.
func (s *Socket) Read(dst []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		if s.closed {
			return 0, ErrClosed
		}
		return 0, nil
	}
	n := copy(dst, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// SetReadInterest implements api.Socket.
func (s *Socket) SetReadInterest(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readInterest = enabled
	return nil
}

// ReadInterest reports the last value passed to SetReadInterest.
func (s *Socket) ReadInterest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readInterest
}

// SelectorBridge runs scheduled tasks synchronously and inline, which
// is sufficient for deterministic single-goroutine tests; it records
// how many times it was invoked.
type SelectorBridge struct {
	mu    sync.Mutex
	calls int
}

// NewSelectorBridge returns a synchronous SelectorBridge double.
func NewSelectorBridge() *SelectorBridge { return &SelectorBridge{} }

// ExecuteInSelectorThread implements api.SelectorBridge.
func (s *SelectorBridge) ExecuteInSelectorThread(task api.Task) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	task.RunInPool()
}

// Calls reports how many tasks have been executed.
func (s *SelectorBridge) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Listener records delivered data and the close event for assertions.
type Listener struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

// NewListener returns an empty Listener double.
func NewListener() *Listener { return &Listener{} }

// OnDataReceived implements api.Listener.
func (l *Listener) OnDataReceived(buf []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data = append(l.data, buf...)
}

// OnConnectionClosed implements api.Listener.
func (l *Listener) OnConnectionClosed() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}

// Data returns a copy of everything delivered so far.
func (l *Listener) Data() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]byte, len(l.data))
	copy(out, l.data)
	return out
}

// Closed reports whether OnConnectionClosed has been called.
func (l *Listener) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
