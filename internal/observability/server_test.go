package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandler_Probes(t *testing.T) {
	tests := []struct {
		name   string
		ready  ReadinessFunc
		path   string
		status int
	}{
		{"healthz", nil, "/healthz", http.StatusOK},
		{"readyz without check", nil, "/readyz", http.StatusOK},
		{"readyz ok", func(context.Context) error { return nil }, "/readyz", http.StatusOK},
		{"readyz failing", func(context.Context) error { return errors.New("db down") }, "/readyz", http.StatusServiceUnavailable},
		{"healthz ignores readiness", func(context.Context) error { return errors.New("db down") }, "/healthz", http.StatusOK},
		{"metrics", nil, "/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHandler(tt.ready).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.status {
				t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.status)
			}
		})
	}
}
