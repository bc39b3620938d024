package usecase

import (
	"context"
	"time"

	"PredPull/internal/domain/models"
	"PredPull/internal/service/kalshi"
	"PredPull/internal/service/polymarket"
	"PredPull/internal/transform"
	xlogger "PredPull/pkg/logger"
)

// VenueProgress delivers one market's enriched trades. Returning stop
// ends the trades phase early without refetching remaining markets.
type VenueProgress func(marketIndex int, trades []*models.Trade) (stop bool, err error)

// Venue is the per-protocol fetch surface the orchestrator drives.
// FetchEvents caches raw events inside the adapter: event aggregates
// depend on the market set, so enriched events are only produced by
// Events once markets are available.
type Venue interface {
	Protocol() string
	FetchEvents(ctx context.Context, max int) (int, error)
	FetchMarkets(ctx context.Context, max int) ([]*models.Market, error)
	Events(markets []*models.Market) []*models.Event
	// FetchPrices refreshes derived price fields in place and returns how
	// many markets were updated. Venues without a separate price source
	// return 0.
	FetchPrices(ctx context.Context, markets []*models.Market) int
	// FetchOrderbooks captures book snapshots and applies top-of-book
	// prices to the markets. Per-market failures are logged and skipped.
	FetchOrderbooks(ctx context.Context, markets []*models.Market) []*models.OrderbookSnapshot
	FetchTrades(ctx context.Context, markets []*models.Market, startIndex, perMarketCap int, delay time.Duration, progress VenueProgress) error
	FetchTraders(ctx context.Context, limit int) ([]*models.Trader, error)
	// FetchPositions pulls holdings for each trader. Per-trader failures
	// are logged and skipped.
	FetchPositions(ctx context.Context, traders []*models.Trader, limit int) []*models.Position
}

// PolymarketVenue adapts the Gamma/CLOB/Data clients to the Venue surface.
type PolymarketVenue struct {
	client *polymarket.Client
	logger *xlogger.Logger

	rawEvents []*models.PolymarketEvent
}

func NewPolymarketVenue(client *polymarket.Client, logger *xlogger.Logger) *PolymarketVenue {
	return &PolymarketVenue{client: client, logger: logger}
}

func (v *PolymarketVenue) Protocol() string { return models.ProtocolPolymarket }

func (v *PolymarketVenue) FetchEvents(ctx context.Context, max int) (int, error) {
	raws, err := v.client.FetchEvents(ctx, true, max)
	if err != nil {
		return 0, err
	}
	v.rawEvents = raws
	return len(raws), nil
}

func (v *PolymarketVenue) FetchMarkets(ctx context.Context, max int) ([]*models.Market, error) {
	raws, err := v.client.FetchMarkets(ctx, true, max)
	if err != nil {
		return nil, err
	}
	return transform.PolymarketMarkets(raws), nil
}

func (v *PolymarketVenue) Events(markets []*models.Market) []*models.Event {
	return transform.PolymarketEvents(v.rawEvents, markets)
}

func (v *PolymarketVenue) FetchPrices(ctx context.Context, markets []*models.Market) int {
	tokens := make([]string, 0, len(markets))
	for _, m := range markets {
		if len(m.TokenIDs) > 0 {
			tokens = append(tokens, m.TokenIDs[0])
		}
	}
	if len(tokens) == 0 {
		return 0
	}
	mids := v.client.FetchMidpoints(ctx, tokens)
	updated := 0
	for _, m := range markets {
		if len(m.TokenIDs) == 0 {
			continue
		}
		mid, ok := mids[m.TokenIDs[0]]
		if !ok || mid <= 0 {
			continue
		}
		m.MidPrice = mid
		if m.BestBid > 0 && m.BestAsk > 0 {
			m.Spread = m.BestAsk - m.BestBid
		}
		updated++
	}
	return updated
}

func (v *PolymarketVenue) FetchOrderbooks(ctx context.Context, markets []*models.Market) []*models.OrderbookSnapshot {
	out := make([]*models.OrderbookSnapshot, 0, len(markets))
	for _, m := range markets {
		if len(m.TokenIDs) == 0 {
			continue
		}
		raw, err := v.client.FetchBook(ctx, m.TokenIDs[0])
		if err != nil {
			v.logger.Warn("orderbook fetch failed, skipping market",
				xlogger.String("market", m.MarketID), xlogger.Error(err))
			continue
		}
		snap := transform.PolymarketBook(raw)
		if snap == nil {
			continue
		}
		if snap.MarketID == "" {
			snap.MarketID = m.MarketID
		}
		transform.ApplyBook(m, snap)
		out = append(out, snap)
	}
	return out
}

func (v *PolymarketVenue) FetchTrades(ctx context.Context, markets []*models.Market, startIndex, perMarketCap int, delay time.Duration, progress VenueProgress) error {
	ids := make([]string, 0, len(markets))
	for _, m := range markets {
		ids = append(ids, m.MarketID)
	}
	return v.client.FetchTradesForMarkets(ctx, ids, startIndex, perMarketCap, delay,
		func(i int, raws []*models.PolymarketTrade) (bool, error) {
			return progress(i, transform.PolymarketTrades(raws))
		})
}

func (v *PolymarketVenue) FetchTraders(ctx context.Context, limit int) ([]*models.Trader, error) {
	raws, err := v.client.FetchLeaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	return transform.PolymarketLeaderboard(raws), nil
}

func (v *PolymarketVenue) FetchPositions(ctx context.Context, traders []*models.Trader, limit int) []*models.Position {
	out := make([]*models.Position, 0, len(traders))
	for _, t := range traders {
		raws, err := v.client.FetchPositions(ctx, t.Address, limit)
		if err != nil {
			v.logger.Warn("positions fetch failed, skipping trader",
				xlogger.String("address", t.Address), xlogger.Error(err))
			continue
		}
		out = append(out, transform.PolymarketPositions(raws)...)
	}
	return out
}

// KalshiVenue adapts the Kalshi Trade API client to the Venue surface.
// Kalshi quotes prices inline with markets and exposes no public
// leaderboard, so the price, orderbook and trader phases are no-ops.
type KalshiVenue struct {
	client *kalshi.Client
	logger *xlogger.Logger

	rawEvents []*models.KalshiEvent
}

func NewKalshiVenue(client *kalshi.Client, logger *xlogger.Logger) *KalshiVenue {
	return &KalshiVenue{client: client, logger: logger}
}

func (v *KalshiVenue) Protocol() string { return models.ProtocolKalshi }

func (v *KalshiVenue) FetchEvents(ctx context.Context, max int) (int, error) {
	raws, err := v.client.FetchEvents(ctx, true, max)
	if err != nil {
		return 0, err
	}
	v.rawEvents = raws
	return len(raws), nil
}

func (v *KalshiVenue) FetchMarkets(ctx context.Context, max int) ([]*models.Market, error) {
	raws, err := v.client.FetchMarkets(ctx, true, max)
	if err != nil {
		return nil, err
	}
	return transform.KalshiMarkets(raws), nil
}

func (v *KalshiVenue) Events(markets []*models.Market) []*models.Event {
	return transform.KalshiEvents(v.rawEvents, markets)
}

func (v *KalshiVenue) FetchPrices(ctx context.Context, markets []*models.Market) int {
	return 0
}

func (v *KalshiVenue) FetchOrderbooks(ctx context.Context, markets []*models.Market) []*models.OrderbookSnapshot {
	return nil
}

func (v *KalshiVenue) FetchTrades(ctx context.Context, markets []*models.Market, startIndex, perMarketCap int, delay time.Duration, progress VenueProgress) error {
	tickers := make([]string, 0, len(markets))
	for _, m := range markets {
		tickers = append(tickers, m.MarketID)
	}
	return v.client.FetchTradesForMarkets(ctx, tickers, startIndex, perMarketCap, delay,
		func(i int, raws []*models.KalshiTrade) (bool, error) {
			return progress(i, transform.KalshiTrades(raws))
		})
}

func (v *KalshiVenue) FetchTraders(ctx context.Context, limit int) ([]*models.Trader, error) {
	return nil, nil
}

func (v *KalshiVenue) FetchPositions(ctx context.Context, traders []*models.Trader, limit int) []*models.Position {
	return nil
}
