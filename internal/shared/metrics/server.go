package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/radieske/fair-round-engine/internal/shared/httpx"
)

// HealthFunc verifica as dependências do serviço (Postgres, Redis...).
type HealthFunc func(ctx context.Context) error

const healthTimeout = 500 * time.Millisecond

type healthStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthHandler responde 200 quando fn passa dentro do timeout e 503 caso
// contrário. fn nil = serviço sem dependências próprias.
func HealthHandler(fn HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fn != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := fn(ctx); err != nil {
				httpx.WriteJSON(w, http.StatusServiceUnavailable, healthStatus{Status: "unhealthy", Error: err.Error()})
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, healthStatus{Status: "ok"})
	}
}

// StartMetricsServer sobe em background o servidor de /metrics e /healthz,
// separado da porta pública do serviço.
func StartMetricsServer(port string, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", HealthHandler(healthFn))

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
