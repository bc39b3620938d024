package usecase

import (
	"context"
	"sync/atomic"

	"PredPull/internal/domain/models"
	drepo "PredPull/internal/domain/repository"
	mid "PredPull/internal/middleware"
	"PredPull/internal/service/polymarket"
	"PredPull/internal/transform"
	xlogger "PredPull/pkg/logger"
)

// TradeStream is the subset of the market stream the ingestor drives.
type TradeStream interface {
	On(eventType string, h polymarket.Handler)
	Connect(ctx context.Context) error
	Disconnect() error
	Subscribe(ctx context.Context, assetIDs []string) error
	Unsubscribe(ctx context.Context, assetIDs []string) error
	Status() polymarket.StreamStatus
	IsConnected() bool
}

// RealtimeStatus is the caller-visible snapshot of the ingestion service.
type RealtimeStatus struct {
	Connection polymarket.StreamStatus `json:"connection"`
	Received   uint64                  `json:"received"`
	Stored     uint64                  `json:"stored"`
	Errors     uint64                  `json:"errors"`
}

// StoreProc writes single trades through Storage and optionally fans
// them out to the message bus. It is the downstream of the realtime
// pipeline; the publisher failing never fails the write.
type StoreProc struct {
	store  drepo.Storage
	pub    drepo.Publisher
	logger *xlogger.Logger
}

func NewStoreProc(store drepo.Storage, pub drepo.Publisher, logger *xlogger.Logger) *StoreProc {
	return &StoreProc{store: store, pub: pub, logger: logger}
}

func (p *StoreProc) Process(ctx context.Context, t *models.Trade) error {
	if err := p.store.StoreTrades(ctx, []*models.Trade{t}); err != nil {
		return err
	}
	if p.pub != nil {
		if err := p.pub.PublishTrade(ctx, t); err != nil {
			p.logger.Warn("trade publish failed", xlogger.String("asset", t.AssetID), xlogger.Error(err))
		}
	}
	return nil
}

// RealtimeIngestor consumes the Polymarket market channel and writes
// trade messages through the same storage path as the batch pipeline,
// with its own received/stored/error counters.
type RealtimeIngestor struct {
	stream  TradeStream
	pipe    *mid.RealtimePipeline
	metrics drepo.Metrics
	logger  *xlogger.Logger

	received atomic.Uint64
	stored   atomic.Uint64
	errors   atomic.Uint64
}

func NewRealtimeIngestor(stream TradeStream, pipe *mid.RealtimePipeline, metrics drepo.Metrics, logger *xlogger.Logger) *RealtimeIngestor {
	ing := &RealtimeIngestor{stream: stream, pipe: pipe, metrics: metrics, logger: logger}
	stream.On("last_trade_price", ing.onTrade)
	stream.On("price_change", ing.onPriceChange)
	stream.On("book", ing.onBook)
	return ing
}

// Connect dials the feed and starts the buffered write-through.
func (s *RealtimeIngestor) Connect(ctx context.Context) error {
	if err := s.stream.Connect(ctx); err != nil {
		return err
	}
	s.pipe.Start(ctx)
	return nil
}

// Disconnect closes the feed. The desired-subscription set is kept, so
// a later Connect resubscribes everything.
func (s *RealtimeIngestor) Disconnect() error {
	s.pipe.Stop()
	return s.stream.Disconnect()
}

func (s *RealtimeIngestor) Subscribe(ctx context.Context, assetIDs []string) error {
	return s.stream.Subscribe(ctx, assetIDs)
}

func (s *RealtimeIngestor) Unsubscribe(ctx context.Context, assetIDs []string) error {
	return s.stream.Unsubscribe(ctx, assetIDs)
}

func (s *RealtimeIngestor) IsConnected() bool { return s.stream.IsConnected() }

func (s *RealtimeIngestor) Status() RealtimeStatus {
	return RealtimeStatus{
		Connection: s.stream.Status(),
		Received:   s.received.Load(),
		Stored:     s.stored.Load(),
		Errors:     s.errors.Load(),
	}
}

func (s *RealtimeIngestor) onTrade(msg *models.PolymarketWSMessage) {
	s.received.Add(1)
	s.metrics.RecordWSMessage("last_trade_price")
	t := transform.PolymarketWSTrade(msg)
	if t == nil {
		s.errors.Add(1)
		return
	}
	if err := s.pipe.Process(context.Background(), t); err != nil {
		s.errors.Add(1)
		return
	}
	s.stored.Add(1)
}

func (s *RealtimeIngestor) onPriceChange(msg *models.PolymarketWSMessage) {
	s.metrics.RecordWSMessage("price_change")
}

func (s *RealtimeIngestor) onBook(msg *models.PolymarketWSMessage) {
	s.metrics.RecordWSMessage("book")
}
