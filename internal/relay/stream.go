package relay

import (
	"log/slog"
	"sync"

	v1 "stronghold/contracts/stepup/v1"
)

// Stream is one live SSE channel. Events land in a buffered channel that
// the HTTP handler drains and serializes.
type Stream struct {
	ID     string
	Events chan v1.Event

	done      chan struct{}
	closeOnce sync.Once
}

func newStream(id string) *Stream {
	return &Stream{
		ID:     id,
		Events: make(chan v1.Event, streamBufferSize),
		done:   make(chan struct{}),
	}
}

// Done returns a channel closed when the stream is shutting down.
func (s *Stream) Done() <-chan struct{} {
	if s == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

// Close signals the stream's writer loop to stop (idempotent).
func (s *Stream) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// StreamTable tracks the live SSE handle per id.
//
// One live handle per id: registering again replaces the prior handle
// without explicitly closing the HTTP response; the old writer loop
// observes Done and ends its stream.
type StreamTable struct {
	log *slog.Logger

	mu      sync.RWMutex
	streams map[string]*Stream
}

// NewStreamTable constructs an empty table.
func NewStreamTable(log *slog.Logger) *StreamTable {
	if log == nil {
		log = slog.Default()
	}
	return &StreamTable{
		log:     log,
		streams: make(map[string]*Stream),
	}
}

// Register installs a fresh stream for id, replacing any prior one.
func (t *StreamTable) Register(id string) *Stream {
	st := newStream(id)

	t.mu.Lock()
	prev := t.streams[id]
	t.streams[id] = st
	t.mu.Unlock()

	if prev != nil {
		prev.Close()
		t.log.Info("sse.register.replace", "id", id)
	}
	return st
}

// Deregister removes st while it is still current for its id.
func (t *StreamTable) Deregister(st *Stream) {
	if st == nil {
		return
	}

	t.mu.Lock()
	if t.streams[st.ID] == st {
		delete(t.streams, st.ID)
	}
	t.mu.Unlock()

	st.Close()
}

// Has reports whether id currently has a live stream.
func (t *StreamTable) Has(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.streams[id]
	return ok
}

// Push delivers ev to id's stream without blocking.
func (t *StreamTable) Push(id string, ev v1.Event) bool {
	t.mu.RLock()
	st := t.streams[id]
	t.mu.RUnlock()

	if st == nil {
		return false
	}

	select {
	case <-st.Done():
		return false
	default:
	}

	select {
	case st.Events <- ev:
		return true
	default:
		t.log.Info("sse.push.drop", "id", id, "event", string(ev.Kind))
		return false
	}
}

// CloseStream asks id's writer loop to end the stream gracefully. The
// close event is internal and is never forwarded to the client.
func (t *StreamTable) CloseStream(id string) {
	if !t.Push(id, v1.Event{Kind: v1.KindCleanupSession}) {
		t.CloseAll(id)
	}
}

// CloseAll tears down id's stream immediately if present.
func (t *StreamTable) CloseAll(id string) {
	t.mu.Lock()
	st := t.streams[id]
	delete(t.streams, id)
	t.mu.Unlock()

	if st != nil {
		st.Close()
	}
}
