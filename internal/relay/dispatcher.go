package relay

import (
	"log/slog"

	v1 "stronghold/contracts/stepup/v1"
)

// Dispatcher fans one logical event out across every transport currently
// active for a target id.
//
// Transports are independent: absence or backpressure in one never blocks
// delivery through the others. Push transports (WS, SSE) are skipped when
// no channel is active; the polling buffer is appended unconditionally so
// late pollers still see buffered history up to the bound.
type Dispatcher struct {
	log     *slog.Logger
	sockets *SocketTable
	streams *StreamTable
	queue   *PollQueue
	metrics *Metrics
}

// NewDispatcher wires the three transport adapters behind one entry point.
func NewDispatcher(log *slog.Logger, sockets *SocketTable, streams *StreamTable, queue *PollQueue, metrics *Metrics) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		log:     log,
		sockets: sockets,
		streams: streams,
		queue:   queue,
		metrics: metrics,
	}
}

// Dispatch delivers ev to targetID through every active transport.
// Delivery is at-most-once per transport per call; there is no ordering
// guarantee across transports for the same logical event.
func (d *Dispatcher) Dispatch(targetID string, ev v1.Event) {
	if err := ev.Validate(); err != nil {
		d.log.Error("relay.dispatch.invalid", "target", targetID, "err", err)
		return
	}

	if d.sockets.Has(targetID) {
		if d.sockets.Push(targetID, ev) {
			d.metrics.dispatchedTo(transportWS)
		} else {
			d.metrics.droppedFrom(transportWS)
		}
	} else {
		d.metrics.skippedFor(transportWS)
	}

	if d.streams.Has(targetID) {
		if d.streams.Push(targetID, ev) {
			d.metrics.dispatchedTo(transportSSE)
		} else {
			d.metrics.droppedFrom(transportSSE)
		}
	} else {
		d.metrics.skippedFor(transportSSE)
	}

	// The internal close event steers push loops only; buffering it for
	// pollers would leak it to clients.
	if !ev.Internal() {
		if d.queue.Push(targetID, ev) {
			d.metrics.dispatchedTo(transportPoll)
		} else {
			d.metrics.droppedFrom(transportPoll)
		}
	}

	d.log.Debug("relay.dispatch", "target", targetID, "event", string(ev.Kind))
}
