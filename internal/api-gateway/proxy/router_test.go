package proxy_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/api-gateway/proxy"
)

func echo(name string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, name+" "+r.URL.Path+" "+r.Header.Get("X-User-ID"))
	}))
}

func TestRoutesToUpstreams(t *testing.T) {
	rounds, wallet, feed := echo("rounds"), echo("wallet"), echo("feed")
	defer rounds.Close()
	defer wallet.Close()
	defer feed.Close()

	h, err := proxy.NewRouter(zap.NewNop(), proxy.Targets{Rounds: rounds.URL, Wallet: wallet.URL, Feed: feed.URL})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	gw := httptest.NewServer(h)
	defer gw.Close()

	tests := []struct {
		path string
		want string
	}{
		{"/api/rounds/v1/games", "rounds /v1/games u-1"},
		{"/api/wallet/v1/wallet/balance", "wallet /v1/wallet/balance u-1"},
		{"/api/feed/v1/feed/games/dice/latest", "feed /v1/feed/games/dice/latest u-1"},
	}
	for _, tc := range tests {
		req, _ := http.NewRequest(http.MethodGet, gw.URL+tc.path, nil)
		req.Header.Set("X-User-ID", "u-1")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s: %v", tc.path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || string(body) != tc.want {
			t.Errorf("%s: status %d body %q, want %q", tc.path, resp.StatusCode, body, tc.want)
		}
	}
}

func TestPreflightAllowsCustomHeaders(t *testing.T) {
	h, err := proxy.NewRouter(zap.NewNop(), proxy.Targets{Rounds: "http://r", Wallet: "http://w", Feed: "http://f"})
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/rounds/v1/rounds/x/bets", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	allow := rec.Header().Get("Access-Control-Allow-Headers")
	for _, hdr := range []string{"X-User-ID", "Idempotency-Key"} {
		if !strings.Contains(allow, hdr) {
			t.Errorf("missing %s in %q", hdr, allow)
		}
	}
}

func TestUnavailableUpstream(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	h, err := proxy.NewRouter(zap.NewNop(), proxy.Targets{Rounds: url, Wallet: url, Feed: url})
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/wallet/v1/wallet/balance", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "UPSTREAM_UNAVAILABLE") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestRejectsInvalidTarget(t *testing.T) {
	if _, err := proxy.NewRouter(zap.NewNop(), proxy.Targets{Rounds: "localhost", Wallet: "http://w", Feed: "http://f"}); err == nil {
		t.Fatal("expected error for upstream without scheme")
	}
}
