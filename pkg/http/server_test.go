package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func metricsStatus(t *testing.T, s *Server, path string) int {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Echo().ServeHTTP(rec, req)
	return rec.Code
}

func TestMetricsEndpointOption(t *testing.T) {
	// default: enabled at /metrics
	s := NewServer(nil)
	if got := metricsStatus(t, s, "/metrics"); got != http.StatusOK {
		t.Fatalf("default /metrics status = %d", got)
	}

	// custom path moves the handler
	s = NewServer(nil, WithMetricsEndpoint(true, "/internal/metrics"))
	if got := metricsStatus(t, s, "/internal/metrics"); got != http.StatusOK {
		t.Fatalf("custom path status = %d", got)
	}
	if got := metricsStatus(t, s, "/metrics"); got != http.StatusNotFound {
		t.Fatalf("old path should be gone, got %d", got)
	}

	// disabled: no handler registered at all
	s = NewServer(nil, WithMetricsEndpoint(false, ""))
	if got := metricsStatus(t, s, "/metrics"); got != http.StatusNotFound {
		t.Fatalf("disabled endpoint status = %d", got)
	}
}
