package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"PredPull/internal/domain/models"
	drepo "PredPull/internal/domain/repository"
	"PredPull/internal/repository"
	xlogger "PredPull/pkg/logger"
)

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

type nopMetrics struct{}

func (nopMetrics) RecordFetched(protocol, category string, n int) {}
func (nopMetrics) RecordStored(protocol, category string, n int)  {}
func (nopMetrics) RecordError(kind string)                        {}
func (nopMetrics) RecordPhase(protocol, phase string)             {}
func (nopMetrics) RecordLatency(op string, seconds float64)       {}
func (nopMetrics) RecordWSMessage(kind string)                    {}

type fakeStorage struct {
	mu           sync.Mutex
	tradeBatches [][]*models.Trade
	marketCalls  [][]*models.Market
	eventCalls   [][]*models.Event
	runs         []*models.PipelineRun
	tradeErr     error
}

func (s *fakeStorage) StoreEvents(ctx context.Context, events []*models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventCalls = append(s.eventCalls, events)
	return nil
}

func (s *fakeStorage) StoreMarkets(ctx context.Context, markets []*models.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marketCalls = append(s.marketCalls, markets)
	return nil
}

func (s *fakeStorage) StoreTrades(ctx context.Context, trades []*models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tradeErr != nil {
		err := s.tradeErr
		s.tradeErr = nil
		return err
	}
	s.tradeBatches = append(s.tradeBatches, trades)
	return nil
}

func (s *fakeStorage) StoreTraders(ctx context.Context, traders []*models.Trader) error { return nil }

func (s *fakeStorage) StorePositions(ctx context.Context, positions []*models.Position) error {
	return nil
}

func (s *fakeStorage) StoreOrderbooks(ctx context.Context, books []*models.OrderbookSnapshot) error {
	return nil
}

func (s *fakeStorage) RecordRun(ctx context.Context, run *models.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *fakeStorage) Health(ctx context.Context) error { return nil }
func (s *fakeStorage) Close() error                     { return nil }

func (s *fakeStorage) storedTrades() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.tradeBatches {
		n += len(b)
	}
	return n
}

// fakeVenue serves canned markets and per-market trade slices.
type fakeVenue struct {
	protocol  string
	markets   []*models.Market
	events    []*models.Event
	trades    map[int][]*models.Trade
	eventsErr error
	block     chan struct{}

	mu           sync.Mutex
	startIndex   int
	fetchedIdx   []int
	perMarketCap int
	tradesDelay  time.Duration
}

func (v *fakeVenue) Protocol() string { return v.protocol }

func (v *fakeVenue) FetchEvents(ctx context.Context, max int) (int, error) {
	if v.eventsErr != nil {
		return 0, v.eventsErr
	}
	return len(v.events), nil
}

func (v *fakeVenue) FetchMarkets(ctx context.Context, max int) ([]*models.Market, error) {
	if max > 0 && max < len(v.markets) {
		return v.markets[:max], nil
	}
	return v.markets, nil
}

func (v *fakeVenue) Events(markets []*models.Market) []*models.Event { return v.events }

func (v *fakeVenue) FetchPrices(ctx context.Context, markets []*models.Market) int { return 0 }

func (v *fakeVenue) FetchOrderbooks(ctx context.Context, markets []*models.Market) []*models.OrderbookSnapshot {
	return nil
}

func (v *fakeVenue) FetchTrades(ctx context.Context, markets []*models.Market, startIndex, perMarketCap int, delay time.Duration, progress VenueProgress) error {
	if v.block != nil {
		<-v.block
	}
	v.mu.Lock()
	v.startIndex = startIndex
	v.perMarketCap = perMarketCap
	v.tradesDelay = delay
	v.mu.Unlock()
	for i := startIndex; i < len(markets); i++ {
		v.mu.Lock()
		v.fetchedIdx = append(v.fetchedIdx, i)
		v.mu.Unlock()
		stop, err := progress(i, v.trades[i])
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

func (v *fakeVenue) FetchTraders(ctx context.Context, limit int) ([]*models.Trader, error) {
	return nil, nil
}

func (v *fakeVenue) FetchPositions(ctx context.Context, traders []*models.Trader, limit int) []*models.Position {
	return nil
}

func makeTrades(market string, n int) []*models.Trade {
	out := make([]*models.Trade, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &models.Trade{
			Protocol:  "polymarket",
			TradeID:   fmt.Sprintf("%s-t%d", market, i),
			MarketID:  market,
			Price:     0.5,
			Size:      1,
			Timestamp: time.Unix(int64(1700000000+i), 0).UTC(),
		})
	}
	return out
}

func waitDone(t *testing.T, p *Pipeline, protocol string) models.PipelineStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st := p.GetStatus(protocol)
		if !st.IsRunning && (st.CurrentPhase == models.PhaseCompleted || st.CurrentPhase == models.PhaseFailed) {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run for %s did not finish", protocol)
	return models.PipelineStatus{}
}

func TestPipelineCapsAndSingleFlush(t *testing.T) {
	store := &fakeStorage{}
	cps := repository.NewMemoryCheckpointStore()
	v := &fakeVenue{
		protocol: "polymarket",
		markets: []*models.Market{
			{Protocol: "polymarket", MarketID: "m1", EventID: "e1"},
			{Protocol: "polymarket", MarketID: "m2", EventID: "e1"},
			{Protocol: "polymarket", MarketID: "m3", EventID: "e2"},
		},
		events: []*models.Event{{Protocol: "polymarket", EventID: "e1"}},
		trades: map[int][]*models.Trade{
			0: makeTrades("m1", 30),
			1: makeTrades("m2", 30),
		},
	}
	p := NewPipeline(store, cps, nopMetrics{}, testLogger(t), 500, v)

	runID, err := p.Start("polymarket", models.PipelineConfig{MaxMarkets: 2, MaxTotalTrades: 50})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if runID == "" {
		t.Fatalf("empty run id")
	}

	st := waitDone(t, p, "polymarket")
	if st.CurrentPhase != models.PhaseCompleted {
		t.Fatalf("expected COMPLETED, got %s (%s)", st.CurrentPhase, st.ErrorMessage)
	}
	if st.Progress.MarketsStored != 2 {
		t.Fatalf("expected 2 markets stored, got %d", st.Progress.MarketsStored)
	}
	if st.Progress.EventsStored != 1 {
		t.Fatalf("expected 1 event stored, got %d", st.Progress.EventsStored)
	}
	// both markets' trades fit one batch, so a single end-of-phase flush
	store.mu.Lock()
	batches := len(store.tradeBatches)
	store.mu.Unlock()
	if batches != 1 {
		t.Fatalf("expected a single trade flush, got %d", batches)
	}
	if got := store.storedTrades(); got != 60 {
		t.Fatalf("expected 60 trades stored, got %d", got)
	}
	if st.Progress.TradesFetched != 60 || st.Progress.TradesStored != 60 {
		t.Fatalf("unexpected trade counters %+v", st.Progress)
	}
	// checkpoint cleared after a clean trades phase
	if _, err := cps.Load(context.Background(), "FETCHING_TRADES:polymarket"); !errors.Is(err, drepo.ErrCheckpointNotFound) {
		t.Fatalf("expected cleared checkpoint, got %v", err)
	}
	// audit rows: one running, one terminal
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.runs) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(store.runs))
	}
	if store.runs[0].Status != models.RunStatusRunning || store.runs[1].Status != models.RunStatusCompleted {
		t.Fatalf("unexpected audit statuses %s, %s", store.runs[0].Status, store.runs[1].Status)
	}
	if store.runs[1].TradesStored != 60 {
		t.Fatalf("terminal audit row trades = %d", store.runs[1].TradesStored)
	}
}

func TestPipelineSingleFlight(t *testing.T) {
	store := &fakeStorage{}
	block := make(chan struct{})
	v := &fakeVenue{
		protocol: "polymarket",
		markets:  []*models.Market{{Protocol: "polymarket", MarketID: "m1"}},
		trades:   map[int][]*models.Trade{0: makeTrades("m1", 1)},
		block:    block,
	}
	p := NewPipeline(store, repository.NewMemoryCheckpointStore(), nopMetrics{}, testLogger(t), 500, v)

	first, err := p.Start("polymarket", models.PipelineConfig{})
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	if _, err := p.Start("polymarket", models.PipelineConfig{}); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	// the rejected call must not disturb the active run
	if st := p.GetStatus("polymarket"); st.RunID != first || !st.IsRunning {
		t.Fatalf("active run disturbed: %+v", st)
	}

	close(block)
	waitDone(t, p, "polymarket")

	second, err := p.Start("polymarket", models.PipelineConfig{})
	if err != nil {
		t.Fatalf("restart after completion: %v", err)
	}
	if second == first {
		t.Fatalf("expected a fresh run id")
	}
	waitDone(t, p, "polymarket")
}

func TestPipelineRunDefaultsPacing(t *testing.T) {
	store := &fakeStorage{}
	v := &fakeVenue{
		protocol: "polymarket",
		markets:  []*models.Market{{Protocol: "polymarket", MarketID: "m1"}},
		trades:   map[int][]*models.Trade{0: makeTrades("m1", 1)},
	}
	p := NewPipeline(store, repository.NewMemoryCheckpointStore(), nopMetrics{}, testLogger(t), 500, v).
		WithRunDefaults(1234, 7*time.Millisecond)

	// deploy-level pacing applies when the request leaves it unset
	if _, err := p.Start("polymarket", models.PipelineConfig{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, p, "polymarket")
	v.mu.Lock()
	cap1, delay1 := v.perMarketCap, v.tradesDelay
	v.mu.Unlock()
	if cap1 != 1234 {
		t.Fatalf("expected per-market cap 1234, got %d", cap1)
	}
	if delay1 != 7*time.Millisecond {
		t.Fatalf("expected 7ms inter-market delay, got %s", delay1)
	}

	// an explicit request value wins over the deploy default
	if _, err := p.Start("polymarket", models.PipelineConfig{TradesPerMarket: 9}); err != nil {
		t.Fatalf("second start: %v", err)
	}
	waitDone(t, p, "polymarket")
	v.mu.Lock()
	cap2, delay2 := v.perMarketCap, v.tradesDelay
	v.mu.Unlock()
	if cap2 != 9 {
		t.Fatalf("expected per-market cap 9, got %d", cap2)
	}
	if delay2 != 7*time.Millisecond {
		t.Fatalf("expected delay kept at 7ms, got %s", delay2)
	}
}

func TestPipelineUnknownProtocol(t *testing.T) {
	p := NewPipeline(&fakeStorage{}, repository.NewMemoryCheckpointStore(), nopMetrics{}, testLogger(t), 500)
	if _, err := p.Start("polymarket", models.PipelineConfig{}); !errors.Is(err, ErrUnknownProtocol) {
		t.Fatalf("expected ErrUnknownProtocol, got %v", err)
	}
}

func TestPipelineResumeFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := &fakeStorage{}
	cps := repository.NewMemoryCheckpointStore()
	// markets 0 and 1 were processed before the crash
	if err := cps.Save(ctx, &models.Checkpoint{
		Phase:           "FETCHING_TRADES:polymarket",
		LastMarketIndex: 2,
		TradesStored:    40,
		TradesFetched:   40,
	}); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	v := &fakeVenue{
		protocol: "polymarket",
		markets: []*models.Market{
			{Protocol: "polymarket", MarketID: "m1"},
			{Protocol: "polymarket", MarketID: "m2"},
			{Protocol: "polymarket", MarketID: "m3"},
			{Protocol: "polymarket", MarketID: "m4"},
		},
		trades: map[int][]*models.Trade{
			0: makeTrades("m1", 20),
			1: makeTrades("m2", 20),
			2: makeTrades("m3", 10),
			3: makeTrades("m4", 10),
		},
	}
	p := NewPipeline(store, cps, nopMetrics{}, testLogger(t), 500, v)

	if _, err := p.Start("polymarket", models.PipelineConfig{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	st := waitDone(t, p, "polymarket")
	if st.CurrentPhase != models.PhaseCompleted {
		t.Fatalf("expected COMPLETED, got %s (%s)", st.CurrentPhase, st.ErrorMessage)
	}

	v.mu.Lock()
	startIndex, fetched := v.startIndex, append([]int(nil), v.fetchedIdx...)
	v.mu.Unlock()
	if startIndex != 2 {
		t.Fatalf("expected resume at market 2, got %d", startIndex)
	}
	if len(fetched) != 2 || fetched[0] != 2 || fetched[1] != 3 {
		t.Fatalf("expected fetches for markets [2 3], got %v", fetched)
	}
	// counters continue from the checkpoint seed
	if st.Progress.TradesFetched != 60 || st.Progress.TradesStored != 60 {
		t.Fatalf("unexpected counters %+v", st.Progress)
	}
	// only the resumed markets' trades hit storage this run
	if got := store.storedTrades(); got != 20 {
		t.Fatalf("expected 20 newly stored trades, got %d", got)
	}
	if _, err := cps.Load(ctx, "FETCHING_TRADES:polymarket"); !errors.Is(err, drepo.ErrCheckpointNotFound) {
		t.Fatalf("expected cleared checkpoint, got %v", err)
	}
}

func TestPipelineFatalEventsFailure(t *testing.T) {
	store := &fakeStorage{}
	v := &fakeVenue{protocol: "polymarket", eventsErr: errors.New("gamma 500")}
	p := NewPipeline(store, repository.NewMemoryCheckpointStore(), nopMetrics{}, testLogger(t), 500, v)

	if _, err := p.Start("polymarket", models.PipelineConfig{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	st := waitDone(t, p, "polymarket")
	if st.CurrentPhase != models.PhaseFailed {
		t.Fatalf("expected FAILED, got %s", st.CurrentPhase)
	}
	if st.ErrorMessage == "" {
		t.Fatalf("expected error message")
	}
	// terminal audit row is still written on failure
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.runs) != 2 || store.runs[1].Status != models.RunStatusFailed {
		t.Fatalf("expected failed terminal audit row, got %+v", store.runs)
	}
	if store.runs[1].ErrorMessage == "" {
		t.Fatalf("terminal audit row missing error message")
	}
}

func TestTradeWriterFlushAndCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := &fakeStorage{}
	cps := repository.NewMemoryCheckpointStore()
	w := NewTradeWriter(store, nil, cps, nopMetrics{}, testLogger(t), "polymarket", 10, nil)

	if start := w.Resume(ctx); start != 0 {
		t.Fatalf("fresh writer should start at 0, got %d", start)
	}

	// 12 trades cross the batch size, so market 0 triggers a flush
	w.Add(ctx, 0, makeTrades("m1", 12))
	if got := store.storedTrades(); got != 12 {
		t.Fatalf("expected 12 trades flushed, got %d", got)
	}
	cp, err := cps.Load(ctx, "FETCHING_TRADES:polymarket")
	if err != nil {
		t.Fatalf("checkpoint after flush: %v", err)
	}
	if cp.LastMarketIndex != 1 || cp.TradesStored != 12 || cp.TradesFetched != 12 {
		t.Fatalf("unexpected checkpoint %+v", cp)
	}

	// a failing flush drops the batch and leaves the checkpoint alone
	store.mu.Lock()
	store.tradeErr = errors.New("clickhouse down")
	store.mu.Unlock()
	w.Add(ctx, 1, makeTrades("m2", 11))
	if w.Stored() != 12 {
		t.Fatalf("stored counter advanced past failed flush: %d", w.Stored())
	}
	cp, _ = cps.Load(ctx, "FETCHING_TRADES:polymarket")
	if cp.LastMarketIndex != 1 {
		t.Fatalf("checkpoint advanced past failed flush: %+v", cp)
	}
	if w.Fetched() != 23 {
		t.Fatalf("fetched counter should still advance, got %d", w.Fetched())
	}

	// a clean finish flushes the remainder and clears the checkpoint
	w.Add(ctx, 2, makeTrades("m3", 3))
	w.Finish(ctx)
	if got := store.storedTrades(); got != 15 {
		t.Fatalf("expected 15 trades durably stored, got %d", got)
	}
	if _, err := cps.Load(ctx, "FETCHING_TRADES:polymarket"); !errors.Is(err, drepo.ErrCheckpointNotFound) {
		t.Fatalf("expected cleared checkpoint, got %v", err)
	}
}

func TestTradeWriterPublishesStoredBatches(t *testing.T) {
	ctx := context.Background()
	store := &fakeStorage{}
	pub := &fakePublisher{}
	cps := repository.NewMemoryCheckpointStore()
	w := NewTradeWriter(store, pub, cps, nopMetrics{}, testLogger(t), "polymarket", 10, nil)

	w.Add(ctx, 0, makeTrades("m1", 10))
	pub.mu.Lock()
	published := len(pub.published)
	pub.mu.Unlock()
	if published != 10 {
		t.Fatalf("expected 10 published trades after flush, got %d", published)
	}

	// a publisher outage never affects durability or the checkpoint
	pub.mu.Lock()
	pub.err = errors.New("kafka down")
	pub.mu.Unlock()
	w.Add(ctx, 1, makeTrades("m2", 10))
	if got := store.storedTrades(); got != 20 {
		t.Fatalf("expected 20 trades durably stored, got %d", got)
	}
	if w.Stored() != 20 {
		t.Fatalf("stored counter = %d, want 20", w.Stored())
	}
	cp, err := cps.Load(ctx, "FETCHING_TRADES:polymarket")
	if err != nil {
		t.Fatalf("checkpoint after flush: %v", err)
	}
	if cp.LastMarketIndex != 2 || cp.TradesStored != 20 {
		t.Fatalf("unexpected checkpoint %+v", cp)
	}
}

func TestPipelineStatusIsACopy(t *testing.T) {
	p := NewPipeline(&fakeStorage{}, repository.NewMemoryCheckpointStore(), nopMetrics{}, testLogger(t), 500,
		&fakeVenue{protocol: "polymarket"})
	if _, err := p.Start("polymarket", models.PipelineConfig{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, p, "polymarket")

	st := p.GetStatus("polymarket")
	st.CurrentPhase = "MUTATED"
	st.Progress.TradesStored = 999
	if again := p.GetStatus("polymarket"); again.CurrentPhase == "MUTATED" || again.Progress.TradesStored == 999 {
		t.Fatalf("status snapshot leaked internal state")
	}
}
