package usecase

import (
	"context"
	"errors"
	"fmt"

	"PredPull/internal/domain/models"
	drepo "PredPull/internal/domain/repository"
	xlogger "PredPull/pkg/logger"
)

// TradeWriter buffers trades for one protocol's trades phase and flushes
// them in fixed-size batches, keeping memory proportional to the batch
// size rather than the run. After every durable flush it persists a
// checkpoint so a restarted run resumes from the first unstored market.
// A failed flush drops the batch: it is logged, the stored counter is not
// advanced and no checkpoint is written, so resume refetches that data.
type TradeWriter struct {
	store       drepo.Storage
	pub         drepo.Publisher // optional fan-out after a durable flush
	checkpoints drepo.CheckpointStore
	metrics     drepo.Metrics
	logger      *xlogger.Logger
	protocol    string
	phase       string
	batchSize   int
	onProgress  func(fetched, stored uint64)

	buf        []*models.Trade
	fetched    uint64
	stored     uint64
	nextMarket int
}

func NewTradeWriter(
	store drepo.Storage,
	pub drepo.Publisher,
	checkpoints drepo.CheckpointStore,
	metrics drepo.Metrics,
	logger *xlogger.Logger,
	protocol string,
	batchSize int,
	onProgress func(fetched, stored uint64),
) *TradeWriter {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &TradeWriter{
		store:       store,
		pub:         pub,
		checkpoints: checkpoints,
		metrics:     metrics,
		logger:      logger,
		protocol:    protocol,
		phase:       fmt.Sprintf("%s:%s", models.PhaseFetchTrades, protocol),
		batchSize:   batchSize,
		onProgress:  onProgress,
		buf:         make([]*models.Trade, 0, batchSize),
	}
}

// Resume loads the phase checkpoint, seeds the counters from it and
// returns the market index to resume from. No checkpoint means a fresh
// phase starting at index 0.
func (w *TradeWriter) Resume(ctx context.Context) int {
	cp, err := w.checkpoints.Load(ctx, w.phase)
	if err != nil {
		if !errors.Is(err, drepo.ErrCheckpointNotFound) {
			w.logger.Warn("checkpoint load failed, starting from scratch",
				xlogger.String("phase", w.phase), xlogger.Error(err))
		}
		return 0
	}
	w.fetched = cp.TradesFetched
	w.stored = cp.TradesStored
	w.nextMarket = cp.LastMarketIndex
	w.notify()
	w.logger.Info("resuming trades phase from checkpoint",
		xlogger.String("phase", w.phase),
		xlogger.Int("lastMarketIndex", cp.LastMarketIndex),
		xlogger.Uint64("tradesStored", cp.TradesStored))
	return cp.LastMarketIndex
}

// Add appends one fully fetched market's trades. marketIndex is the
// index just completed; a flush triggered here checkpoints the next one.
func (w *TradeWriter) Add(ctx context.Context, marketIndex int, trades []*models.Trade) {
	w.buf = append(w.buf, trades...)
	w.fetched += uint64(len(trades))
	w.nextMarket = marketIndex + 1
	w.notify()
	if len(w.buf) >= w.batchSize {
		w.flush(ctx, true)
	}
}

// Finish flushes whatever remains and clears the checkpoint. The
// checkpoint survives a failed final flush so the data is refetched.
func (w *TradeWriter) Finish(ctx context.Context) {
	if len(w.buf) > 0 && !w.flush(ctx, false) {
		return
	}
	if err := w.checkpoints.Clear(ctx, w.phase); err != nil {
		w.logger.Warn("checkpoint clear failed", xlogger.String("phase", w.phase), xlogger.Error(err))
	}
}

// Fetched returns the total trades fetched, checkpoint seed included.
func (w *TradeWriter) Fetched() uint64 { return w.fetched }

// Stored returns the total trades durably flushed.
func (w *TradeWriter) Stored() uint64 { return w.stored }

func (w *TradeWriter) flush(ctx context.Context, checkpoint bool) bool {
	batch := w.buf
	w.buf = make([]*models.Trade, 0, w.batchSize)
	if err := w.store.StoreTrades(ctx, batch); err != nil {
		w.metrics.RecordError("store_trades")
		w.logger.Error("trade batch store failed, dropping batch",
			xlogger.String("protocol", w.protocol),
			xlogger.Int("batch", len(batch)),
			xlogger.Error(err))
		return false
	}
	w.stored += uint64(len(batch))
	w.metrics.RecordStored(w.protocol, "trades", len(batch))
	w.notify()
	if w.pub != nil {
		// fan-out is best effort; the rows are already durable
		if err := w.pub.PublishTrades(ctx, batch); err != nil {
			w.metrics.RecordError("publish_trades")
			w.logger.Warn("trade batch publish failed",
				xlogger.String("protocol", w.protocol),
				xlogger.Int("batch", len(batch)),
				xlogger.Error(err))
		}
	}
	if checkpoint {
		cp := &models.Checkpoint{
			Phase:           w.phase,
			LastMarketIndex: w.nextMarket,
			TradesStored:    w.stored,
			TradesFetched:   w.fetched,
		}
		if err := w.checkpoints.Save(ctx, cp); err != nil {
			w.logger.Warn("checkpoint save failed", xlogger.String("phase", w.phase), xlogger.Error(err))
		}
	}
	return true
}

func (w *TradeWriter) notify() {
	if w.onProgress != nil {
		w.onProgress(w.fetched, w.stored)
	}
}
