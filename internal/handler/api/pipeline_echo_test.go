package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"PredPull/internal/domain/models"
	"PredPull/internal/repository"
	"PredPull/internal/usecase"
	xlogger "PredPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

type stubStorage struct {
	healthErr error
}

func (s *stubStorage) StoreEvents(context.Context, []*models.Event) error       { return nil }
func (s *stubStorage) StoreMarkets(context.Context, []*models.Market) error     { return nil }
func (s *stubStorage) StoreTrades(context.Context, []*models.Trade) error       { return nil }
func (s *stubStorage) StoreTraders(context.Context, []*models.Trader) error     { return nil }
func (s *stubStorage) StorePositions(context.Context, []*models.Position) error { return nil }
func (s *stubStorage) StoreOrderbooks(context.Context, []*models.OrderbookSnapshot) error {
	return nil
}
func (s *stubStorage) RecordRun(context.Context, *models.PipelineRun) error { return nil }
func (s *stubStorage) Health(context.Context) error                         { return s.healthErr }
func (s *stubStorage) Close() error                                         { return nil }

type silentMetrics struct{}

func (silentMetrics) RecordFetched(string, string, int) {}
func (silentMetrics) RecordStored(string, string, int)  {}
func (silentMetrics) RecordError(string)                {}
func (silentMetrics) RecordPhase(string, string)        {}
func (silentMetrics) RecordLatency(string, float64)     {}
func (silentMetrics) RecordWSMessage(string)            {}

func newTestHandler(t *testing.T, store *stubStorage) (*PipelineEchoHandler, *echo.Echo) {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	pipe := usecase.NewPipeline(store, repository.NewMemoryCheckpointStore(), silentMetrics{}, l, 10)
	h := NewPipelineEchoHandler(l, pipe, nil, nil, store, nil, nil)
	e := echo.New()
	h.RegisterRoutes(e)
	return h, e
}

func doRequest(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestStatusDefaultsToIdle(t *testing.T) {
	_, e := newTestHandler(t, &stubStorage{})

	rec := doRequest(e, http.MethodGet, "/api/pipeline/status?protocol=polymarket", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "IDLE") {
		t.Fatalf("body = %s, want idle phase", rec.Body.String())
	}
}

func TestStartRejectsInvalidProtocol(t *testing.T) {
	_, e := newTestHandler(t, &stubStorage{})

	rec := doRequest(e, http.MethodPost, "/api/pipeline/start", `{"protocol":"nasdaq"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want 400", rec.Code)
	}
}

func TestStartUnregisteredVenue(t *testing.T) {
	// Pipeline built with no venues: the request validates but no adapter
	// is bound to the protocol.
	_, e := newTestHandler(t, &stubStorage{})

	rec := doRequest(e, http.MethodPost, "/api/pipeline/start", `{"protocol":"polymarket"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want 400", rec.Code)
	}
}

func TestEnqueueWithoutQueue(t *testing.T) {
	_, e := newTestHandler(t, &stubStorage{})

	rec := doRequest(e, http.MethodPost, "/api/pipeline/enqueue", `{"protocol":"polymarket"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status code = %d, want 503", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	store := &stubStorage{}
	_, e := newTestHandler(t, store)

	rec := doRequest(e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthy: status code = %d, want 200", rec.Code)
	}

	store.healthErr = errors.New("connection refused")
	rec = doRequest(e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy: status code = %d, want 503", rec.Code)
	}
}
