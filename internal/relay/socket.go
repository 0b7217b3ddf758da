package relay

import (
	"log/slog"
	"sync"

	v1 "stronghold/contracts/stepup/v1"
)

// Socket represents one connected websocket handle.
//
// Design notes:
//   - Send is intentionally NOT closed by the server to keep concurrent
//     pushers panic-safe.
//   - done signals the read/write goroutines to stop.
//   - Close is idempotent.
type Socket struct {
	ID   string
	Send chan v1.Event

	done      chan struct{}
	closeOnce sync.Once
}

func newSocket(id string, queueSize int) *Socket {
	if queueSize <= 0 {
		queueSize = socketSendQueueSize
	}
	return &Socket{
		ID:   id,
		Send: make(chan v1.Event, queueSize),
		done: make(chan struct{}),
	}
}

// Done returns a channel closed when the socket is shutting down.
func (s *Socket) Done() <-chan struct{} {
	if s == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

// Close signals the socket goroutines to stop (idempotent).
// It does NOT close Send; pushers re-check Done instead.
func (s *Socket) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// SocketTable tracks the live websocket handle per id.
//
// Exactly one handle per id: registering again replaces the previous
// handle, whose loops observe Done and wind down on their own.
type SocketTable struct {
	log *slog.Logger

	mu      sync.RWMutex
	sockets map[string]*Socket
}

// NewSocketTable constructs an empty table.
func NewSocketTable(log *slog.Logger) *SocketTable {
	if log == nil {
		log = slog.Default()
	}
	return &SocketTable{
		log:     log,
		sockets: make(map[string]*Socket),
	}
}

// Register installs a fresh handle for id, orphaning any prior one.
func (t *SocketTable) Register(id string) *Socket {
	sock := newSocket(id, socketSendQueueSize)

	t.mu.Lock()
	prev := t.sockets[id]
	t.sockets[id] = sock
	t.mu.Unlock()

	if prev != nil {
		prev.Close()
		t.log.Info("ws.register.replace", "id", id)
	}
	return sock
}

// Deregister removes sock from the table, but only while it is still the
// current handle for its id. A replaced socket deregistering late must not
// evict its successor.
func (t *SocketTable) Deregister(sock *Socket) {
	if sock == nil {
		return
	}

	t.mu.Lock()
	if t.sockets[sock.ID] == sock {
		delete(t.sockets, sock.ID)
	}
	t.mu.Unlock()

	sock.Close()
}

// Has reports whether id currently has a live handle.
func (t *SocketTable) Has(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.sockets[id]
	return ok
}

// Push delivers ev to id's handle without blocking. It re-checks existence
// under the lock: a handle fetched earlier may have been deleted while an
// unrelated await was in flight.
func (t *SocketTable) Push(id string, ev v1.Event) bool {
	t.mu.RLock()
	sock := t.sockets[id]
	t.mu.RUnlock()

	if sock == nil {
		return false
	}

	select {
	case <-sock.Done():
		return false
	default:
	}

	select {
	case sock.Send <- ev:
		return true
	default:
		// Drop rather than block the dispatcher.
		t.log.Info("ws.push.drop", "id", id, "event", string(ev.Kind))
		return false
	}
}

// CloseAll tears down id's handle if present.
func (t *SocketTable) CloseAll(id string) {
	t.mu.Lock()
	sock := t.sockets[id]
	delete(t.sockets, id)
	t.mu.Unlock()

	if sock != nil {
		sock.Close()
	}
}
