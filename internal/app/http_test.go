package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stronghold/internal/credential"
	"stronghold/internal/relay"
	stepupapi "stronghold/internal/stepup/api"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := Config{
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	reg := prometheus.NewRegistry()
	svc := relay.NewService(log, relay.Config{CleanupDelay: time.Hour}, relay.NewMetrics(reg))
	ws := relay.NewWSGateway(log, svc, relay.WSGatewayConfig{AllowedOrigins: cfg.AllowedOrigins})
	sse := relay.NewSSEGateway(log, svc)
	stepup := stepupapi.NewHandler(log, stepupapi.Config{}, svc)
	creds := credential.NewHandler(log, credential.NewService(log, credential.NewInMemoryStore(), svc))

	return newRouter(log, cfg, nil, false, reg, stepup, creds, ws, sse)
}

func TestRouterHealthz(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "ok") {
		t.Fatalf("body=%q", rr.Body.String())
	}
}

func TestRouterReadyzWithoutDB(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestRouterMetricsExposed(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestRouterMountsAPISurfaces(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)

	// One route from each mounted surface answers with a JSON status,
	// proving the wiring rather than the handlers themselves.
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/join-session?username=ghost", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("join-session status=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/check-passkey/ghost", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("check-passkey status=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/poll-updates/some-id", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("poll-updates status=%d", rr.Code)
	}
}
