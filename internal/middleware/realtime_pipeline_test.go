package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"PredPull/internal/domain/models"
)

type recordingProc struct {
	mu     sync.Mutex
	seen   []*models.Trade
	failN  int
}

func (p *recordingProc) Process(ctx context.Context, t *models.Trade) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failN > 0 {
		p.failN--
		return errors.New("downstream unavailable")
	}
	p.seen = append(p.seen, t)
	return nil
}

func (p *recordingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

type countMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *countMetrics) RecordFetched(protocol, category string, n int) {}
func (m *countMetrics) RecordStored(protocol, category string, n int)  {}
func (m *countMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
}
func (m *countMetrics) RecordPhase(protocol, phase string)       {}
func (m *countMetrics) RecordLatency(op string, seconds float64) {}
func (m *countMetrics) RecordWSMessage(kind string)              {}

func (m *countMetrics) errCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func validTrade(asset string) *models.Trade {
	return &models.Trade{
		Protocol:  "polymarket",
		TradeID:   asset + "-1",
		AssetID:   asset,
		MarketID:  "m1",
		Price:     0.5,
		Size:      1,
		Timestamp: time.Unix(1700000000, 0).UTC(),
	}
}

func TestPipelineRejectsInvalidTrades(t *testing.T) {
	proc := &recordingProc{}
	metrics := &countMetrics{}
	p := NewRealtimePipeline(proc, metrics)

	cases := []struct {
		name  string
		trade *models.Trade
	}{
		{"nil", nil},
		{"no ids", &models.Trade{Price: 0.5, Size: 1, Timestamp: time.Now()}},
		{"zero timestamp", &models.Trade{AssetID: "a", Price: 0.5, Size: 1}},
		{"negative price", &models.Trade{AssetID: "a", Price: -1, Size: 1, Timestamp: time.Now()}},
	}
	for _, tc := range cases {
		if err := p.Process(context.Background(), tc.trade); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
	if proc.count() != 0 {
		t.Fatalf("invalid trades reached downstream")
	}
	if metrics.errCount("pipeline_validate") != len(cases) {
		t.Fatalf("expected %d validate errors, got %d", len(cases), metrics.errCount("pipeline_validate"))
	}
}

func TestPipelineThrottlesPerAsset(t *testing.T) {
	proc := &recordingProc{}
	metrics := &countMetrics{}
	p := NewRealtimePipeline(proc, metrics, WithMaxRPS(1))

	ctx := context.Background()
	if err := p.Process(ctx, validTrade("a")); err != nil {
		t.Fatalf("first trade: %v", err)
	}
	// same asset inside the window is dropped without error
	if err := p.Process(ctx, validTrade("a")); err != nil {
		t.Fatalf("throttled trade should not error: %v", err)
	}
	// a different asset has its own window
	if err := p.Process(ctx, validTrade("b")); err != nil {
		t.Fatalf("other asset: %v", err)
	}
	if proc.count() != 2 {
		t.Fatalf("expected 2 delivered trades, got %d", proc.count())
	}
	if metrics.errCount("pipeline_throttle") != 1 {
		t.Fatalf("expected 1 throttle drop, got %d", metrics.errCount("pipeline_throttle"))
	}
}

func TestPipelineBuffersAndRetriesOnFailure(t *testing.T) {
	proc := &recordingProc{failN: 1}
	metrics := &countMetrics{}
	p := NewRealtimePipeline(proc, metrics, WithMaxRPS(1000), WithBufferSize(10))
	p.Start(context.Background())
	defer p.Stop()

	// first attempt fails and the trade lands in the buffer
	if err := p.Process(context.Background(), validTrade("a")); err == nil {
		t.Fatalf("expected downstream error")
	}

	// the background flusher retries until downstream recovers
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if proc.count() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("buffered trade never flushed, delivered=%d", proc.count())
}

func TestPipelineRestartCycle(t *testing.T) {
	proc := &recordingProc{}
	metrics := &countMetrics{}
	p := NewRealtimePipeline(proc, metrics, WithMaxRPS(1000), WithBufferSize(10))

	ctx := context.Background()
	p.Start(ctx)
	p.Stop()
	p.Start(ctx)
	p.Stop()

	// flushing still works on a fresh start after a full stop
	proc.mu.Lock()
	proc.failN = 1
	proc.mu.Unlock()
	p.Start(ctx)
	defer p.Stop()

	if err := p.Process(ctx, validTrade("a")); err == nil {
		t.Fatalf("expected downstream error")
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if proc.count() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("buffered trade never flushed after restart, delivered=%d", proc.count())
}
