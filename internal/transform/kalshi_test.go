package transform

import (
    "testing"

    "PredPull/internal/domain/models"
)

func TestKalshiMarkets(t *testing.T) {
    ms := KalshiMarkets([]*models.KalshiMarket{
        {Ticker: "FED-24", EventTicker: "FED", Title: "rate hike", Status: "active",
            YesBid: 40, YesAsk: 44, LastPrice: 42, Volume24h: 1000, CloseTime: "2026-01-01T00:00:00Z"},
    })
    if len(ms) != 1 {
        t.Fatalf("expected one market")
    }
    m := ms[0]
    if m.BestBid != 0.40 || m.BestAsk != 0.44 || m.LastPrice != 0.42 {
        t.Fatalf("cents not converted: %+v", m)
    }
    if m.MidPrice != 0.42 {
        t.Fatalf("unexpected mid %v", m.MidPrice)
    }
    if !m.Active || m.Closed {
        t.Fatalf("status mapping wrong: %+v", m)
    }
    if len(m.OutcomePrices) != 2 || m.OutcomePrices[1] != 1-0.42 {
        t.Fatalf("unexpected outcome prices %v", m.OutcomePrices)
    }
}

func TestKalshiTradesTakerSide(t *testing.T) {
    trades := KalshiTrades([]*models.KalshiTrade{
        {TradeID: "t1", Ticker: "FED-24", Count: 5, YesPrice: 42, NoPrice: 58, TakerSide: "no",
            CreatedTime: "2026-02-01T10:00:00Z"},
    })
    if len(trades) != 1 {
        t.Fatalf("expected one trade")
    }
    tr := trades[0]
    if tr.Price != 0.58 || tr.Outcome != "No" {
        t.Fatalf("taker side not honored: %+v", tr)
    }
    if tr.ValueUSD != 0.58*5 {
        t.Fatalf("unexpected value %v", tr.ValueUSD)
    }
}

func TestKalshiEventsAggregation(t *testing.T) {
    markets := KalshiMarkets([]*models.KalshiMarket{
        {Ticker: "FED-24A", EventTicker: "FED", Status: "active", Volume24h: 10},
        {Ticker: "FED-24B", EventTicker: "FED", Status: "settled", Volume24h: 20},
    })
    events := KalshiEvents([]*models.KalshiEvent{{EventTicker: "FED", Title: "fed meeting"}}, markets)
    if len(events) != 1 {
        t.Fatalf("expected one event")
    }
    e := events[0]
    if e.MarketCount != 2 || e.ActiveCount != 1 || e.ClosedCount != 1 || e.TotalVolume != 30 {
        t.Fatalf("unexpected aggregates %+v", e)
    }
}
