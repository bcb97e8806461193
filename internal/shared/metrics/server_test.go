package metrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/radieske/fair-round-engine/internal/shared/metrics"
)

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name   string
		fn     metrics.HealthFunc
		status int
		body   string
	}{
		{"no checks", nil, http.StatusOK, `"status":"ok"`},
		{"healthy", func(context.Context) error { return nil }, http.StatusOK, `"status":"ok"`},
		{"postgres down", func(context.Context) error { return errors.New("postgres down") }, http.StatusServiceUnavailable, "postgres down"},
		{"slow check", func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }, http.StatusServiceUnavailable, "deadline exceeded"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			metrics.HealthHandler(tc.fn)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if !strings.Contains(rec.Body.String(), tc.body) {
				t.Fatalf("body = %s, want %q", rec.Body.String(), tc.body)
			}
		})
	}
}
