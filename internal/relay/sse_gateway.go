package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	v1 "stronghold/contracts/stepup/v1"
)

// SSEGateway is the one-way server-to-client push entrypoint.
//
// On open it immediately emits an "assigned identity" event, then blocks
// draining the per-id stream until the internal close event, a session
// teardown, or client disconnect.
type SSEGateway struct {
	log *slog.Logger
	svc *Service
}

// NewSSEGateway constructs the gateway over the relay service.
func NewSSEGateway(log *slog.Logger, svc *Service) *SSEGateway {
	if log == nil {
		log = slog.Default()
	}
	return &SSEGateway{log: log, svc: svc}
}

// HandleSSE serves a text/event-stream for id. When id is empty the server
// assigns a fresh client id and reports it in the first event.
func (g *SSEGateway) HandleSSE(w http.ResponseWriter, r *http.Request, id string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	id = strings.TrimSpace(id)
	assigned := false
	if id == "" {
		fresh, err := NewClientID(time.Now().UTC())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		id = fresh
		assigned = true
	}

	stream := g.svc.Streams().Register(id)
	defer g.svc.Streams().Deregister(stream)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// First event carries the channel identity so anonymous clients learn
	// the id to poll or step up against.
	hello, _ := json.Marshal(v1.AssignedIdentity{ClientID: id})
	writeSSE(w, "", string(hello))
	flusher.Flush()

	g.log.Info("sse.open", "id", id, "assigned", assigned)

	for {
		select {
		case <-r.Context().Done():
			g.log.Info("sse.close", "id", id, "reason", "client_gone")
			return
		case <-stream.Done():
			g.log.Info("sse.close", "id", id, "reason", "replaced_or_torn_down")
			return
		case ev := <-stream.Events:
			if ev.Internal() {
				// Terminates the stream without reaching the client.
				g.log.Info("sse.close", "id", id, "reason", "close_event")
				return
			}
			writeSSE(w, string(ev.Kind), ev.Data)
			flusher.Flush()
		}
	}
}

// writeSSE serializes one server-sent event frame. An empty name omits the
// event field so the client receives a default "message" event.
func writeSSE(w http.ResponseWriter, name, data string) {
	if name != "" {
		fmt.Fprintf(w, "event: %s\n", name)
	}
	// Data may span lines; each line needs its own data: prefix.
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
