// Package proxy monta o roteamento do api-gateway: um reverse proxy por
// serviço, com CORS liberado para os headers de identidade e idempotência.
package proxy

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/shared/httpx"
)

// Targets são as URLs base dos serviços atrás do gateway
type Targets struct {
	Rounds string
	Wallet string
	Feed   string
}

func newProxy(log *zap.Logger, name, to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil {
		return nil, fmt.Errorf("%s upstream %q: %w", name, to, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s upstream %q: scheme and host required", name, to)
	}
	rp := httputil.NewSingleHostReverseProxy(u)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream unavailable", zap.String("upstream", name), zap.String("path", r.URL.Path), zap.Error(err))
		httpx.WriteError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", fmt.Errorf("%s unavailable", name))
	}
	return rp, nil
}

// NewRouter devolve o handler do gateway.
// /api/rounds/* -> round-service, /api/wallet/* -> wallet-service,
// /api/feed/* -> round-feed-service (inclui o WebSocket em /api/feed/ws).
func NewRouter(log *zap.Logger, t Targets) (http.Handler, error) {
	rounds, err := newProxy(log, "round-service", t.Rounds)
	if err != nil {
		return nil, err
	}
	wallet, err := newProxy(log, "wallet-service", t.Wallet)
	if err != nil {
		return nil, err
	}
	feed, err := newProxy(log, "round-feed-service", t.Feed)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimid.RequestID, chimid.RealIP, chimid.Recoverer, withCORS)

	// upgrade do WebSocket precisa do Hijacker; fica fora do access log
	r.Handle("/api/feed/ws", http.StripPrefix("/api/feed", feed))

	r.Group(func(r chi.Router) {
		r.Use(httpx.AccessLog(log))
		r.Handle("/api/rounds/*", http.StripPrefix("/api/rounds", rounds))
		r.Handle("/api/wallet/*", http.StripPrefix("/api/wallet", wallet))
		r.Handle("/api/feed/*", http.StripPrefix("/api/feed", feed))
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})
	return r, nil
}

var allowHeaders = strings.Join([]string{
	"Content-Type",
	"Authorization",
	"X-User-ID",
	"Idempotency-Key",
}, ", ")

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
