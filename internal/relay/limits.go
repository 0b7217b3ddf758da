package relay

import "time"

// Capacity and timing limits for the relay core.
// Defaults can be overridden through config where a knob exists.
const (
	// Max buffered events per polling client before the oldest are dropped.
	defaultQueueCapacity = 100

	// PIN shape: fixed-width numeric string.
	defaultPINDigits = 2

	// Total choices returned by PinOptions (true PIN + decoys).
	defaultPINOptionCount = 3

	// Grace before a failed session is torn down, so the auth_failed push
	// can still reach the browser.
	defaultCleanupDelay = 1 * time.Second

	// Per-id SSE event buffer.
	streamBufferSize = 16

	// Per-socket outbound queue.
	socketSendQueueSize = 32
)

const (
	// Max bytes per websocket frame read (hard limit).
	maxFrameBytes = 64 << 10 // 64 KiB

	// Max relayed message content length (runes).
	maxContentChars = 4000
)
