package relay

import (
	"sync"

	v1 "stronghold/contracts/stepup/v1"
)

// PollQueue buffers events per id for clients on the polling fallback.
//
// Unlike the push transports there is no notion of an active channel: the
// dispatcher appends unconditionally so a client that never opened a push
// channel can still observe outcomes after the fact, bounded by capacity.
type PollQueue struct {
	mu       sync.Mutex
	buffers  map[string][]v1.Event
	capacity int
}

// NewPollQueue constructs a PollQueue with the given per-id capacity.
func NewPollQueue(capacity int) *PollQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &PollQueue{
		buffers:  make(map[string][]v1.Event),
		capacity: capacity,
	}
}

// Push appends ev to id's buffer, silently dropping the oldest entry when
// the buffer is full. Returns false when an entry was dropped.
func (q *PollQueue) Push(id string, ev v1.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	buf := q.buffers[id]
	dropped := false
	if len(buf) >= q.capacity {
		buf = buf[1:]
		dropped = true
	}
	q.buffers[id] = append(buf, ev)
	return !dropped
}

// Drain atomically removes and returns all buffered events for id in FIFO
// order. Absence of events returns an empty slice immediately; polling is
// the caller's own timeout mechanism.
func (q *PollQueue) Drain(id string) []v1.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	buf := q.buffers[id]
	if len(buf) == 0 {
		return nil
	}
	delete(q.buffers, id)
	return buf
}

// Delete discards id's buffer.
func (q *PollQueue) Delete(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.buffers, id)
}

// Len reports the number of buffered events for id.
func (q *PollQueue) Len(id string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buffers[id])
}
