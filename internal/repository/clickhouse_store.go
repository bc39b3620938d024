package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "fmt"
    "strings"

    "PredPull/internal/domain/models"
    "PredPull/internal/domain/repository"
)

// ClickHouseStore implements Storage for ClickHouse. Data tables use
// ReplacingMergeTree keyed by the record identity, so reinserting rows with
// the same key is deduplicated by the engine's background merge. The run
// audit table is plain MergeTree and append-only.
type ClickHouseStore struct {
    db       *sql.DB
    database string
}

// NewClickHouseStore creates ClickHouse storage.
func NewClickHouseStore(db *sql.DB, database string) repository.Storage {
    return &ClickHouseStore{db: db, database: database}
}

func (s *ClickHouseStore) table(name string) string {
    return s.database + "." + name
}

// insertBatch builds one multi-row VALUES insert to reduce round-trips.
func (s *ClickHouseStore) insertBatch(ctx context.Context, table, columns, placeholder string, rows [][]interface{}) error {
    if len(rows) == 0 {
        return nil
    }
    values := make([]string, 0, len(rows))
    args := make([]interface{}, 0, len(rows)*8)
    for _, row := range rows {
        values = append(values, placeholder)
        args = append(args, row...)
    }
    q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table(table), columns, strings.Join(values, ","))
    if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
        return fmt.Errorf("insert %s: %w", table, err)
    }
    return nil
}

func (s *ClickHouseStore) StoreEvents(ctx context.Context, events []*models.Event) error {
    rows := make([][]interface{}, 0, len(events))
    for _, e := range events {
        if e == nil || e.EventID == "" {
            continue
        }
        rows = append(rows, []interface{}{
            e.Protocol, e.EventID, e.Slug, e.Title, e.Category,
            e.StartDate, e.EndDate, e.MarketCount, e.ActiveCount, e.ClosedCount,
            e.TotalVolume, e.TotalLiquidity, e.FetchedAt,
        })
    }
    return s.insertBatch(ctx, "events",
        "protocol, event_id, slug, title, category, start_date, end_date, market_count, active_count, closed_count, total_volume, total_liquidity, fetched_at",
        "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", rows)
}

func (s *ClickHouseStore) StoreMarkets(ctx context.Context, markets []*models.Market) error {
    rows := make([][]interface{}, 0, len(markets))
    for _, m := range markets {
        if m == nil || m.MarketID == "" {
            continue
        }
        outcomes, _ := json.Marshal(m.Outcomes)
        tokens, _ := json.Marshal(m.TokenIDs)
        prices, _ := json.Marshal(m.OutcomePrices)
        rows = append(rows, []interface{}{
            m.Protocol, m.MarketID, m.EventID, m.Slug, m.Question,
            string(outcomes), string(tokens), string(prices),
            m.BestBid, m.BestAsk, m.MidPrice, m.Spread, m.LastPrice,
            m.Volume24h, m.Liquidity, m.Active, m.Closed, m.EndDate, m.FetchedAt,
        })
    }
    return s.insertBatch(ctx, "markets",
        "protocol, market_id, event_id, slug, question, outcomes, token_ids, outcome_prices, best_bid, best_ask, mid_price, spread, last_price, volume_24h, liquidity, active, closed, end_date, fetched_at",
        "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", rows)
}

func (s *ClickHouseStore) StoreTrades(ctx context.Context, trades []*models.Trade) error {
    rows := make([][]interface{}, 0, len(trades))
    for _, t := range trades {
        if t == nil || t.MarketID == "" {
            continue
        }
        rows = append(rows, []interface{}{
            t.Protocol, t.TradeID, t.MarketID, t.AssetID, t.Maker, t.Taker,
            t.Side, t.Outcome, t.Price, t.Size, t.ValueUSD, t.Timestamp, t.FetchedAt,
        })
    }
    return s.insertBatch(ctx, "trades",
        "protocol, trade_id, market_id, asset_id, maker, taker, side, outcome, price, size, value_usd, ts, fetched_at",
        "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", rows)
}

func (s *ClickHouseStore) StoreTraders(ctx context.Context, traders []*models.Trader) error {
    rows := make([][]interface{}, 0, len(traders))
    for _, t := range traders {
        if t == nil || t.Address == "" {
            continue
        }
        rows = append(rows, []interface{}{
            t.Protocol, t.Address, t.Name, t.Volume, t.Profit, t.Rank, t.FetchedAt,
        })
    }
    return s.insertBatch(ctx, "traders",
        "protocol, address, name, volume, profit, trader_rank, fetched_at",
        "(?, ?, ?, ?, ?, ?, ?)", rows)
}

func (s *ClickHouseStore) StorePositions(ctx context.Context, positions []*models.Position) error {
    rows := make([][]interface{}, 0, len(positions))
    for _, p := range positions {
        if p == nil || p.Address == "" || p.MarketID == "" {
            continue
        }
        rows = append(rows, []interface{}{
            p.Protocol, p.Address, p.MarketID, p.AssetID, p.Outcome,
            p.Size, p.AvgPrice, p.ValueUSD, p.FetchedAt,
        })
    }
    return s.insertBatch(ctx, "positions",
        "protocol, address, market_id, asset_id, outcome, size, avg_price, value_usd, fetched_at",
        "(?, ?, ?, ?, ?, ?, ?, ?, ?)", rows)
}

func (s *ClickHouseStore) StoreOrderbooks(ctx context.Context, books []*models.OrderbookSnapshot) error {
    rows := make([][]interface{}, 0, len(books))
    for _, b := range books {
        if b == nil || b.AssetID == "" {
            continue
        }
        bids, _ := json.Marshal(b.Bids)
        asks, _ := json.Marshal(b.Asks)
        rows = append(rows, []interface{}{
            b.Protocol, b.MarketID, b.AssetID, string(bids), string(asks),
            b.BestBid, b.BestAsk, b.MidPrice, b.Spread, b.FetchedAt,
        })
    }
    return s.insertBatch(ctx, "orderbooks",
        "protocol, market_id, asset_id, bids, asks, best_bid, best_ask, mid_price, spread, fetched_at",
        "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", rows)
}

// RecordRun appends one audit row. Terminal rows carry the final counters.
func (s *ClickHouseStore) RecordRun(ctx context.Context, run *models.PipelineRun) error {
    if run == nil {
        return nil
    }
    q := fmt.Sprintf(
        "INSERT INTO %s (run_id, protocol, status, started_at, completed_at, events_stored, markets_stored, trades_stored, error_message) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
        s.table("pipeline_runs"))
    _, err := s.db.ExecContext(ctx, q,
        run.RunID, run.Protocol, run.Status, run.StartedAt, run.CompletedAt,
        run.EventsStored, run.MarketStored, run.TradesStored, run.ErrorMessage)
    if err != nil {
        return fmt.Errorf("record run: %w", err)
    }
    return nil
}

func (s *ClickHouseStore) Health(ctx context.Context) error {
    return s.db.PingContext(ctx)
}

func (s *ClickHouseStore) Close() error {
    return nil // pool managed by pkg/clickhouse
}
