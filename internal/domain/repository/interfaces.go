package repository

import (
	"context"
	"errors"

	"PredPull/internal/domain/models"
)

// ErrCheckpointNotFound is returned when no checkpoint exists for a phase.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// Storage persists enriched records. All writes are append/merge-only; the
// backing engine dedups rows sharing the same identity key, so reinserting
// overlapping batches is a data-level no-op.
type Storage interface {
	StoreEvents(ctx context.Context, events []*models.Event) error
	StoreMarkets(ctx context.Context, markets []*models.Market) error
	StoreTrades(ctx context.Context, trades []*models.Trade) error
	StoreTraders(ctx context.Context, traders []*models.Trader) error
	StorePositions(ctx context.Context, positions []*models.Position) error
	StoreOrderbooks(ctx context.Context, books []*models.OrderbookSnapshot) error
	RecordRun(ctx context.Context, run *models.PipelineRun) error
	Health(ctx context.Context) error
	Close() error
}

// CheckpointStore persists phase-scoped resume markers. Last write wins.
type CheckpointStore interface {
	Save(ctx context.Context, cp *models.Checkpoint) error
	Load(ctx context.Context, phase string) (*models.Checkpoint, error)
	Clear(ctx context.Context, phase string) error
}

// Publisher fans enriched trades out to a message bus.
type Publisher interface {
	PublishTrade(ctx context.Context, t *models.Trade) error
	PublishTrades(ctx context.Context, trades []*models.Trade) error
	Close() error
}

// Metrics records pipeline observability signals.
type Metrics interface {
	RecordFetched(protocol, category string, n int)
	RecordStored(protocol, category string, n int)
	RecordError(kind string)
	RecordPhase(protocol, phase string)
	RecordLatency(op string, seconds float64)
	RecordWSMessage(kind string)
}

// CredentialProvider supplies per-venue auth headers. Opaque to the core.
type CredentialProvider interface {
	Headers(ctx context.Context, method, path string) (map[string]string, error)
}
