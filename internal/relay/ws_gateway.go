package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	v1 "stronghold/contracts/stepup/v1"

	"github.com/coder/websocket"
)

const (
	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute
	wsCloseGrace          = 1 * time.Second

	wsHeartbeatInterval = 25 * time.Second
	wsHeartbeatTimeout  = 5 * time.Second
	wsMaxPingFailures   = 3
)

// WSGateway is the WebSocket entrypoint for the step-up relay.
//
// The socket is two-way: the server pushes relay outcomes down, and the
// secondary device sends confirmation frames up. Inbound auth_complete and
// message frames are translated into relay events addressed at whatever id
// the socket's path id maps to.
type WSGateway struct {
	log *slog.Logger
	svc *Service

	originRequired bool
	allowedOrigins []string
	originPatterns []string

	writeTimeout    time.Duration
	readIdleTimeout time.Duration
}

// WSGatewayConfig carries the gateway's security/timing knobs.
type WSGatewayConfig struct {
	OriginRequired  bool
	AllowedOrigins  []string
	WriteTimeout    time.Duration
	ReadIdleTimeout time.Duration
}

// NewWSGateway constructs a gateway over the relay service.
func NewWSGateway(log *slog.Logger, svc *Service, cfg WSGatewayConfig) *WSGateway {
	if log == nil {
		log = slog.Default()
	}

	g := &WSGateway{
		log:             log,
		svc:             svc,
		originRequired:  cfg.OriginRequired,
		allowedOrigins:  cfg.AllowedOrigins,
		writeTimeout:    cfg.WriteTimeout,
		readIdleTimeout: cfg.ReadIdleTimeout,
	}
	if g.writeTimeout <= 0 {
		g.writeTimeout = wsDefaultWriteTimeout
	}
	if g.readIdleTimeout <= 0 {
		g.readIdleTimeout = wsDefaultReadIdle
	}

	// websocket.Accept authorizes same-host origins by default; cross-origin
	// requires OriginPatterns. Derive them so the two layers agree.
	g.originPatterns = deriveOriginPatterns(g.allowedOrigins)

	return g
}

// HandleWS upgrades the request and runs the relay loop for the path id.
// The id may be a session id, a client id, or a step-up token.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request, id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	conn.SetReadLimit(maxFrameBytes)

	sock := g.svc.Sockets().Register(id)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var closeOnce sync.Once

	// shutdown is idempotent. It does NOT close sock.Send; the dispatcher
	// re-checks Done before pushing.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			g.svc.Sockets().Deregister(sock)
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-sock.Done():
				return
			case ev := <-sock.Send:
				if ev.Internal() {
					shutdown(websocket.StatusNormalClosure, "session closed")
					return
				}
				if err := writeEvent(ctx, conn, ev, g.writeTimeout); err != nil {
					g.log.Info("ws.write.fail", "id", id, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(wsHeartbeatInterval)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-sock.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, wsHeartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.readIdleTimeout)
		frame, err := readFrame(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
				break readLoop
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
				break readLoop
			case readErrBadJSON:
				// A single malformed frame never terminates the loop;
				// only structural errors do.
				g.log.Info("ws.read.bad_json", "id", id)
				continue readLoop
			default:
				g.log.Info("ws.read.fail", "id", id, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		if err := frame.Validate(); err != nil {
			g.log.Info("ws.frame.unsupported", "id", id, "type", frame.Type)
			continue readLoop
		}

		g.forward(id, frame)
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

// forward translates a device frame into a relay event for the id the
// socket maps to. A step-up token resolves to its originating client;
// a plain session/client id targets itself.
func (g *WSGateway) forward(id string, frame v1.DeviceFrame) {
	target, err := g.svc.Mapper().Resolve(id)
	if err != nil {
		target = id
	}

	switch frame.Type {
	case v1.DeviceAuthComplete:
		g.svc.Dispatch(target, v1.Event{Kind: v1.KindAuthComplete, Data: frame.Content})
	case v1.DeviceMessage:
		content := frame.Content
		if len([]rune(content)) > maxContentChars {
			g.log.Info("ws.frame.too_long", "id", id)
			return
		}
		g.svc.Dispatch(target, v1.Event{Kind: v1.KindMobileMessage, Data: content})
	}
}

// ---- frame IO ----

func readFrame(ctx context.Context, conn *websocket.Conn) (v1.DeviceFrame, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.DeviceFrame{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.DeviceFrame{}, errBadJSON
	}
	var frame v1.DeviceFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return v1.DeviceFrame{}, errBadJSON
	}
	return frame, nil
}

func writeEvent(parent context.Context, conn *websocket.Conn, ev v1.Event, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

var errBadJSON = errors.New("bad json frame")

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if errors.Is(err, errBadJSON) {
		return readErrBadJSON
	}
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}
	return readErrUnknown
}

// ---- origin policy ----

func (g *WSGateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.originRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.allowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.allowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			// Strongly discouraged, but honored if explicitly configured.
			return nil
		}
		if origin == a {
			return nil
		}
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return errors.New("origin not allowed: " + origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

func deriveOriginPatterns(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))

	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}

	// Stable in-file sort (avoid importing sort just for this).
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}

	return out
}
