// Package main provides a CI-friendly smoke test for the step-up relay.
//
// It validates:
//   - start-session issues a session id and PIN
//   - WebSocket attach on the session id
//   - get-pin-options includes the real PIN
//   - verify-pin success fans auth_complete out over the socket
//   - delete-session closes the socket with a normal closure
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "stronghold/contracts/stepup/v1"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 20 // 1MiB

type smokeSocket struct {
	conn  *websocket.Conn
	inbox chan v1.Event
	errCh chan error
}

func main() {
	var (
		baseURL  = flag.String("base", "http://127.0.0.1:8080", "HTTP base URL")
		wsBase   = flag.String("ws", "ws://127.0.0.1:8080", "WebSocket base URL")
		origin   = flag.String("origin", "http://localhost:3000", "Origin header to send")
		username = flag.String("user", "smoke-user", "Username to start a session for")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateHTTPURL(*baseURL); err != nil {
		fatalf("invalid -base: %v", err)
	}
	if err := validateWSURL(*wsBase); err != nil {
		fatalf("invalid -ws: %v", err)
	}

	root := context.Background()
	client := &http.Client{Timeout: *timeout}

	sessionID, pin := mustStartSession(client, *baseURL, *username)
	if *verbose {
		fmt.Printf("started: session_id=%s pin=%s\n", sessionID, pin)
	}

	sock := mustAttach(root, *wsBase+"/ws/"+sessionID, *origin, *timeout)
	defer closeWS(sock.conn)

	options := mustPinOptions(client, *baseURL, sessionID)
	if !contains(options, pin) {
		fatalf("pin options %v missing issued pin %q", options, pin)
	}

	mustVerifyPin(client, *baseURL, sessionID, pin)

	ev := sock.mustReadUntilKind(root, v1.KindAuthComplete, *timeout)
	if ev.Data != sessionID {
		fatalf("auth_complete data mismatch: got=%q want=%q", ev.Data, sessionID)
	}

	mustDeleteSession(client, *baseURL, sessionID)
	sock.mustAssertClosed(root, *timeout)

	fmt.Printf("OK: session_id=%s pin=%s options=%d\n", sessionID, pin, len(options))
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func mustStartSession(client *http.Client, base, username string) (sessionID, pin string) {
	body, _ := json.Marshal(map[string]string{"username": username})
	resp, err := client.Post(base+"/start-session", "application/json", bytes.NewReader(body))
	if err != nil {
		fatalf("start-session: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fatalf("start-session status: %d", resp.StatusCode)
	}

	var out struct {
		SessionID string `json:"session_id"`
		PIN       string `json:"pin"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fatalf("start-session decode: %v", err)
	}
	if strings.TrimSpace(out.SessionID) == "" || strings.TrimSpace(out.PIN) == "" {
		fatalf("start-session missing fields: %+v", out)
	}
	return out.SessionID, out.PIN
}

func mustPinOptions(client *http.Client, base, sessionID string) []string {
	resp, err := client.Get(base + "/get-pin-options?session_id=" + url.QueryEscape(sessionID))
	if err != nil {
		fatalf("get-pin-options: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fatalf("get-pin-options status: %d", resp.StatusCode)
	}

	var out struct {
		Pins []string `json:"pins"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fatalf("get-pin-options decode: %v", err)
	}
	if len(out.Pins) == 0 {
		fatalf("get-pin-options returned no pins")
	}
	return out.Pins
}

func mustVerifyPin(client *http.Client, base, sessionID, pin string) {
	body, _ := json.Marshal(map[string]string{"pin": pin, "session_id": sessionID})
	resp, err := client.Post(base+"/verify-pin", "application/json", bytes.NewReader(body))
	if err != nil {
		fatalf("verify-pin: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fatalf("verify-pin status: %d", resp.StatusCode)
	}
}

func mustDeleteSession(client *http.Client, base, sessionID string) {
	req, err := http.NewRequest(http.MethodDelete, base+"/delete-session/"+sessionID, nil)
	if err != nil {
		fatalf("delete-session request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		fatalf("delete-session: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fatalf("delete-session status: %d", resp.StatusCode)
	}
}

func mustAttach(parent context.Context, wsURL, origin string, stepTimeout time.Duration) *smokeSocket {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: h})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("ws dial: %v", err)
	}

	conn.SetReadLimit(maxReadBytes)

	s := &smokeSocket{
		conn:  conn,
		inbox: make(chan v1.Event, 64),
		errCh: make(chan error, 1),
	}
	s.startReadLoop()
	return s
}

func (s *smokeSocket) startReadLoop() {
	go func() {
		defer close(s.inbox)

		for {
			mt, data, err := s.conn.Read(context.Background())
			if err != nil {
				select {
				case s.errCh <- err:
				default:
				}
				return
			}

			if mt != websocket.MessageText && mt != websocket.MessageBinary {
				select {
				case s.errCh <- fmt.Errorf("unsupported message type: %v", mt):
				default:
				}
				return
			}

			var ev v1.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				select {
				case s.errCh <- fmt.Errorf("bad json: %w", err):
				default:
				}
				return
			}

			select {
			case s.inbox <- ev:
			default:
				select {
				case s.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

func (s *smokeSocket) mustReadUntilKind(parent context.Context, want v1.Kind, stepTimeout time.Duration) v1.Event {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q: %v", want, ctx.Err())
		case err := <-s.errCh:
			fatalf("connection error while waiting for %q: %v", want, err)
		case ev, ok := <-s.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q", want)
			}
			if ev.Kind == want {
				return ev
			}
			if ev.Kind == v1.KindAuthFailed {
				fatalf("unexpected auth_failed while waiting for %q", want)
			}
		}
	}
}

func (s *smokeSocket) mustAssertClosed(parent context.Context, wait time.Duration) {
	ctx, cancel := context.WithTimeout(parent, wait)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("socket still open after delete-session")
		case err := <-s.errCh:
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return
			}
			// EOF-ish closures are acceptable; the server went away first.
			return
		case _, ok := <-s.inbox:
			if !ok {
				return
			}
		}
	}
}

func contains(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
