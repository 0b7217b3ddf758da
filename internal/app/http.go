package app

import (
	"net/http"
	"time"

	"stronghold/internal/credential"
	"stronghold/internal/relay"
	stepupapi "stronghold/internal/stepup/api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newRouter builds the full HTTP surface: health probes, metrics, the
// step-up JSON API, credential endpoints, and both streaming gateways.
func newRouter(
	log Logger,
	cfg Config,
	dbPool *pgxpool.Pool,
	dbEnabled bool,
	reg *prometheus.Registry,
	stepup *stepupapi.Handler,
	creds *credential.Handler,
	ws *relay.WSGateway,
	sse *relay.SSEGateway,
) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.ReadinessRequireDB && !dbEnabled {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if dbEnabled && dbPool != nil {
			if err := PingDB(req.Context(), dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	stepup.Register(r)
	creds.Register(r)

	r.Get("/ws/{id}", func(w http.ResponseWriter, req *http.Request) {
		ws.HandleWS(w, req, chi.URLParam(req, "id"))
	})

	// Anonymous SSE assigns a client id; the id route resumes a session channel.
	r.Get("/register-sse", func(w http.ResponseWriter, req *http.Request) {
		sse.HandleSSE(w, req, "")
	})
	r.Get("/register-sse/{session_id}", func(w http.ResponseWriter, req *http.Request) {
		sse.HandleSSE(w, req, chi.URLParam(req, "session_id"))
	})

	return r
}
