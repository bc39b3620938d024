package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"PredPull/internal/domain/models"
	drepo "PredPull/internal/domain/repository"
	xlogger "PredPull/pkg/logger"

	"github.com/google/uuid"
)

// ErrAlreadyRunning is returned by Start while a run for the same
// protocol is active.
var ErrAlreadyRunning = errors.New("pipeline already running")

// ErrUnknownProtocol is returned by Start for a protocol no venue serves.
var ErrUnknownProtocol = errors.New("unknown protocol")

const (
	leaderboardLimit = 100
	positionsLimit   = 50
)

// Pipeline orchestrates phased runs, one at a time per protocol. Each
// run executes in a detached background task; there is no mid-run
// cancellation, only the configured caps bound a run. Status is exposed
// by copy and safe to read while a run mutates it.
type Pipeline struct {
	venues    map[string]Venue
	store     drepo.Storage
	pub       drepo.Publisher // optional trade fan-out
	cps       drepo.CheckpointStore
	metrics   drepo.Metrics
	logger    *xlogger.Logger
	batchSize int
	// deploy-level pacing baseline merged under every run config
	runDefaults models.PipelineConfig

	mu     sync.Mutex
	active map[string]bool
	status map[string]*models.PipelineStatus
}

func NewPipeline(
	store drepo.Storage,
	cps drepo.CheckpointStore,
	metrics drepo.Metrics,
	logger *xlogger.Logger,
	batchSize int,
	venues ...Venue,
) *Pipeline {
	p := &Pipeline{
		venues:    make(map[string]Venue, len(venues)),
		store:     store,
		cps:       cps,
		metrics:   metrics,
		logger:    logger,
		batchSize: batchSize,
		active:    make(map[string]bool),
		status:    make(map[string]*models.PipelineStatus),
	}
	for _, v := range venues {
		p.venues[v.Protocol()] = v
	}
	return p
}

// WithPublisher fans stored trade batches out to the message bus.
func (p *Pipeline) WithPublisher(pub drepo.Publisher) *Pipeline {
	p.pub = pub
	return p
}

// WithRunDefaults sets the deploy-configured trade pacing a run config
// is merged over. Request values still take precedence.
func (p *Pipeline) WithRunDefaults(tradesPerMarket int, interMarketDelay time.Duration) *Pipeline {
	p.runDefaults.TradesPerMarket = tradesPerMarket
	p.runDefaults.InterMarketDelay = interMarketDelay
	return p
}

// Start launches a run for the protocol and returns its run id
// immediately. Re-entrant calls fail fast with ErrAlreadyRunning and
// leave the active run untouched.
func (p *Pipeline) Start(protocol string, cfg models.PipelineConfig) (string, error) {
	v, ok := p.venues[protocol]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProtocol, protocol)
	}
	expanded := cfg.ExpandWith(p.runDefaults)
	runID := uuid.NewString()

	p.mu.Lock()
	if p.active[protocol] {
		p.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	p.active[protocol] = true
	p.status[protocol] = &models.PipelineStatus{
		RunID:        runID,
		Protocol:     protocol,
		IsRunning:    true,
		CurrentPhase: models.PhaseIdle,
		StartedAt:    time.Now().UTC(),
	}
	p.mu.Unlock()

	p.logger.Info("pipeline run starting",
		xlogger.String("protocol", protocol),
		xlogger.String("runId", runID),
		xlogger.String("preset", cfg.Preset))
	go p.run(v, expanded, runID)
	return runID, nil
}

// GetStatus returns an independent copy of the protocol's last known
// status. Before any run it reports an idle status.
func (p *Pipeline) GetStatus(protocol string) models.PipelineStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.status[protocol]
	if !ok {
		return models.PipelineStatus{Protocol: protocol, CurrentPhase: models.PhaseIdle}
	}
	return *st
}

func (p *Pipeline) run(v Venue, cfg models.PipelineConfig, runID string) {
	ctx := context.Background()
	protocol := v.Protocol()
	started := time.Now().UTC()

	if err := p.store.RecordRun(ctx, &models.PipelineRun{
		RunID:     runID,
		Protocol:  protocol,
		Status:    models.RunStatusRunning,
		StartedAt: started,
	}); err != nil {
		p.logger.Warn("run audit row failed", xlogger.String("runId", runID), xlogger.Error(err))
	}

	err := p.execute(ctx, v, cfg)

	p.mu.Lock()
	st := p.status[protocol]
	st.IsRunning = false
	st.CompletedAt = time.Now().UTC()
	if err != nil {
		st.CurrentPhase = models.PhaseFailed
		st.ErrorMessage = err.Error()
	} else {
		st.CurrentPhase = models.PhaseCompleted
	}
	terminal := &models.PipelineRun{
		RunID:        runID,
		Protocol:     protocol,
		StartedAt:    started,
		CompletedAt:  st.CompletedAt,
		EventsStored: st.Progress.EventsStored,
		MarketStored: st.Progress.MarketsStored,
		TradesStored: st.Progress.TradesStored,
	}
	p.active[protocol] = false
	p.mu.Unlock()

	if err != nil {
		terminal.Status = models.RunStatusFailed
		terminal.ErrorMessage = err.Error()
		p.metrics.RecordError("pipeline_run")
		p.logger.Error("pipeline run failed",
			xlogger.String("protocol", protocol),
			xlogger.String("runId", runID),
			xlogger.Error(err))
	} else {
		terminal.Status = models.RunStatusCompleted
		p.logger.Info("pipeline run completed",
			xlogger.String("protocol", protocol),
			xlogger.String("runId", runID),
			xlogger.Duration("took", terminal.CompletedAt.Sub(started)))
	}
	// terminal audit row is written even for failed runs
	if aerr := p.store.RecordRun(ctx, terminal); aerr != nil {
		p.logger.Warn("terminal audit row failed", xlogger.String("runId", runID), xlogger.Error(aerr))
	}
}

func (p *Pipeline) execute(ctx context.Context, v Venue, cfg models.PipelineConfig) error {
	protocol := v.Protocol()

	p.setPhase(protocol, models.PhaseFetchEvents)
	nEvents, err := v.FetchEvents(ctx, cfg.MaxEvents)
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}
	p.metrics.RecordFetched(protocol, "events", nEvents)
	p.updateProgress(protocol, func(pr *models.Progress) { pr.EventsFetched = uint64(nEvents) })

	p.setPhase(protocol, models.PhaseFetchMarkets)
	markets, err := v.FetchMarkets(ctx, cfg.MaxMarkets)
	if err != nil {
		return fmt.Errorf("fetch markets: %w", err)
	}
	p.metrics.RecordFetched(protocol, "markets", len(markets))
	p.updateProgress(protocol, func(pr *models.Progress) { pr.MarketsFetched = uint64(len(markets)) })

	// markets and events go durable before anything slower runs
	if p.storeMarkets(ctx, protocol, markets, true) {
		p.updateProgress(protocol, func(pr *models.Progress) { pr.MarketsStored = uint64(len(markets)) })
	}
	events := v.Events(markets)
	if err := p.store.StoreEvents(ctx, events); err != nil {
		p.metrics.RecordError("store_events")
		p.logger.Error("event store failed", xlogger.String("protocol", protocol), xlogger.Error(err))
	} else {
		p.metrics.RecordStored(protocol, "events", len(events))
		p.updateProgress(protocol, func(pr *models.Progress) { pr.EventsStored = uint64(len(events)) })
	}

	p.setPhase(protocol, models.PhaseFetchPrices)
	if n := v.FetchPrices(ctx, markets); n > 0 {
		// refreshed rows merge over the first insert by identity key
		p.storeMarkets(ctx, protocol, markets, false)
	}

	if cfg.EnableOrderbook {
		p.setPhase(protocol, models.PhaseFetchOrderbooks)
		books := v.FetchOrderbooks(ctx, markets)
		p.metrics.RecordFetched(protocol, "orderbooks", len(books))
		p.updateProgress(protocol, func(pr *models.Progress) { pr.OrderbooksFetched = uint64(len(books)) })
		if len(books) > 0 {
			if err := p.store.StoreOrderbooks(ctx, books); err != nil {
				p.metrics.RecordError("store_orderbooks")
				p.logger.Error("orderbook store failed", xlogger.String("protocol", protocol), xlogger.Error(err))
			} else {
				p.metrics.RecordStored(protocol, "orderbooks", len(books))
				p.updateProgress(protocol, func(pr *models.Progress) { pr.OrderbooksStored = uint64(len(books)) })
			}
			p.storeMarkets(ctx, protocol, markets, false)
		}
	}

	p.setPhase(protocol, models.PhaseFetchTrades)
	if err := p.runTradesPhase(ctx, v, cfg, markets); err != nil {
		return fmt.Errorf("fetch trades: %w", err)
	}

	if cfg.EnableActivity {
		p.setPhase(protocol, models.PhaseFetchTraders)
		p.runTradersPhase(ctx, v, cfg)
	}
	return nil
}

func (p *Pipeline) runTradesPhase(ctx context.Context, v Venue, cfg models.PipelineConfig, markets []*models.Market) error {
	protocol := v.Protocol()
	w := NewTradeWriter(p.store, p.pub, p.cps, p.metrics, p.logger, protocol, p.batchSize,
		func(fetched, stored uint64) {
			p.updateProgress(protocol, func(pr *models.Progress) {
				pr.TradesFetched = fetched
				pr.TradesStored = stored
			})
		})
	start := w.Resume(ctx)
	err := v.FetchTrades(ctx, markets, start, cfg.TradesPerMarket, cfg.InterMarketDelay,
		func(i int, trades []*models.Trade) (bool, error) {
			p.metrics.RecordFetched(protocol, "trades", len(trades))
			w.Add(ctx, i, trades)
			if cfg.MaxTotalTrades > 0 && w.Fetched() >= uint64(cfg.MaxTotalTrades) {
				p.logger.Info("global trade cap reached, stopping trades phase",
					xlogger.String("protocol", protocol),
					xlogger.Uint64("fetched", w.Fetched()))
				return true, nil
			}
			return false, nil
		})
	if err != nil {
		return err
	}
	w.Finish(ctx)
	return nil
}

func (p *Pipeline) runTradersPhase(ctx context.Context, v Venue, cfg models.PipelineConfig) {
	protocol := v.Protocol()
	traders, err := v.FetchTraders(ctx, leaderboardLimit)
	if err != nil {
		p.metrics.RecordError("fetch_traders")
		p.logger.Warn("leaderboard fetch failed, skipping phase",
			xlogger.String("protocol", protocol), xlogger.Error(err))
		return
	}
	if len(traders) == 0 {
		return
	}
	p.metrics.RecordFetched(protocol, "traders", len(traders))
	p.updateProgress(protocol, func(pr *models.Progress) { pr.TradersFetched = uint64(len(traders)) })
	if err := p.store.StoreTraders(ctx, traders); err != nil {
		p.metrics.RecordError("store_traders")
		p.logger.Error("trader store failed", xlogger.String("protocol", protocol), xlogger.Error(err))
	} else {
		p.metrics.RecordStored(protocol, "traders", len(traders))
		p.updateProgress(protocol, func(pr *models.Progress) { pr.TradersStored = uint64(len(traders)) })
	}

	if !cfg.EnablePositions {
		return
	}
	positions := v.FetchPositions(ctx, traders, positionsLimit)
	if len(positions) == 0 {
		return
	}
	if err := p.store.StorePositions(ctx, positions); err != nil {
		p.metrics.RecordError("store_positions")
		p.logger.Error("position store failed", xlogger.String("protocol", protocol), xlogger.Error(err))
	} else {
		p.metrics.RecordStored(protocol, "positions", len(positions))
		p.updateProgress(protocol, func(pr *models.Progress) { pr.PositionsStored = uint64(len(positions)) })
	}
}

func (p *Pipeline) storeMarkets(ctx context.Context, protocol string, markets []*models.Market, count bool) bool {
	if len(markets) == 0 {
		return true
	}
	if err := p.store.StoreMarkets(ctx, markets); err != nil {
		p.metrics.RecordError("store_markets")
		p.logger.Error("market store failed", xlogger.String("protocol", protocol), xlogger.Error(err))
		return false
	}
	if count {
		p.metrics.RecordStored(protocol, "markets", len(markets))
	}
	return true
}

func (p *Pipeline) setPhase(protocol, phase string) {
	p.mu.Lock()
	if st, ok := p.status[protocol]; ok {
		st.CurrentPhase = phase
	}
	p.mu.Unlock()
	p.metrics.RecordPhase(protocol, phase)
	p.logger.Info("phase transition", xlogger.String("protocol", protocol), xlogger.String("phase", phase))
}

func (p *Pipeline) updateProgress(protocol string, fn func(*models.Progress)) {
	p.mu.Lock()
	if st, ok := p.status[protocol]; ok {
		fn(&st.Progress)
	}
	p.mu.Unlock()
}
