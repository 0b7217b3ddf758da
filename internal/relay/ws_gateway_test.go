package relay

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	v1 "stronghold/contracts/stepup/v1"
)

func TestClassifyReadErr(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want readErrKind
	}{
		{name: "bad json", err: errBadJSON, want: readErrBadJSON},
		{name: "ctx canceled", err: context.Canceled, want: readErrCtxDone},
		{name: "ctx deadline", err: context.DeadlineExceeded, want: readErrCtxDone},
		{name: "eof", err: io.EOF, want: readErrConnClosed},
		{name: "other", err: errors.New("boom"), want: readErrUnknown},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := classifyReadErr(tc.err); got != tc.want {
				t.Fatalf("classifyReadErr=%v want=%v", got, tc.want)
			}
		})
	}
}

func TestDeriveOriginPatterns(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "empty", in: nil, want: []string{}},
		{
			name: "hosts deduped and sorted",
			in:   []string{"https://b.example.com", "http://a.example.com:3000", "https://b.example.com:8443"},
			want: []string{"a.example.com", "b.example.com"},
		},
		{name: "wildcard skipped", in: []string{"*"}, want: []string{}},
		{name: "bare host", in: []string{"localhost:3000"}, want: []string{"localhost"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := deriveOriginPatterns(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("deriveOriginPatterns(%v)=%v want=%v", tc.in, got, tc.want)
			}
		})
	}
}

func TestEnforceOrigin(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		origin   string
		required bool
		allowed  []string
		wantErr  bool
	}{
		{name: "no origin optional", origin: "", required: false, allowed: []string{"http://ok"}},
		{name: "no origin required", origin: "", required: true, allowed: []string{"http://ok"}, wantErr: true},
		{name: "exact match", origin: "http://ok", allowed: []string{"http://ok"}},
		{name: "host match different scheme", origin: "https://ok", allowed: []string{"http://ok"}},
		{name: "wildcard", origin: "http://anything", allowed: []string{"*"}},
		{name: "denied", origin: "http://evil", allowed: []string{"http://ok"}, wantErr: true},
		{name: "empty allowlist denies", origin: "http://ok", allowed: nil, wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			g := NewWSGateway(quietLogger(), nil, WSGatewayConfig{
				OriginRequired: tc.required,
				AllowedOrigins: tc.allowed,
			})

			r := httptest.NewRequest("GET", "/ws/x", nil)
			if tc.origin != "" {
				r.Header.Set("Origin", tc.origin)
			}

			err := g.enforceOrigin(r)
			if (err != nil) != tc.wantErr {
				t.Fatalf("enforceOrigin=%v wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestOriginHostOnly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "https://App.Example.com:8443", want: "app.example.com"},
		{in: "http://localhost:3000", want: "localhost"},
		{in: "localhost:3000", want: "localhost"},
		{in: "example.com", want: "example.com"},
		{in: "", want: ""},
	}

	for _, tc := range cases {
		if got := originHostOnly(tc.in); got != tc.want {
			t.Fatalf("originHostOnly(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestForwardTranslatesFrames(t *testing.T) {
	t.Parallel()

	svc := newTestService(time.Hour)
	g := NewWSGateway(quietLogger(), svc, WSGatewayConfig{})

	st := svc.Streams().Register("client-1")
	stepUpID, err := svc.InitiateStepUp("client-1")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	<-st.Events

	// A frame arriving on the step-up socket lands on the originating client.
	g.forward(stepUpID, v1.DeviceFrame{Type: v1.DeviceMessage, Content: "from phone"})
	ev := <-st.Events
	if ev.Kind != v1.KindMobileMessage || ev.Data != "from phone" {
		t.Fatalf("event=%+v", ev)
	}

	g.forward(stepUpID, v1.DeviceFrame{Type: v1.DeviceAuthComplete})
	ev = <-st.Events
	if ev.Kind != v1.KindAuthComplete {
		t.Fatalf("event=%+v", ev)
	}

	// An unmapped id targets itself.
	g.forward("client-1", v1.DeviceFrame{Type: v1.DeviceMessage, Content: "direct"})
	ev = <-st.Events
	if ev.Kind != v1.KindMobileMessage || ev.Data != "direct" {
		t.Fatalf("event=%+v", ev)
	}
}

func TestForwardRejectsOversizedContent(t *testing.T) {
	t.Parallel()

	svc := newTestService(time.Hour)
	g := NewWSGateway(quietLogger(), svc, WSGatewayConfig{})

	st := svc.Streams().Register("client-1")

	long := make([]rune, maxContentChars+1)
	for i := range long {
		long[i] = 'x'
	}
	g.forward("client-1", v1.DeviceFrame{Type: v1.DeviceMessage, Content: string(long)})

	select {
	case ev := <-st.Events:
		t.Fatalf("oversized content forwarded: %+v", ev)
	default:
	}
}
