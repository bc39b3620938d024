package transform

import (
    "testing"

    "PredPull/internal/domain/models"
    "PredPull/pkg/util"
)

func TestJSONStringsMalformed(t *testing.T) {
    cases := []string{"", "not json", "{\"a\":1}", "[1,2", "null"}
    for _, c := range cases {
        if got := JSONStrings(c); len(got) != 0 {
            t.Fatalf("input %q: expected empty, got %v", c, got)
        }
    }
    if got := JSONStrings(`["Yes","No"]`); len(got) != 2 || got[0] != "Yes" {
        t.Fatalf("unexpected %v", got)
    }
}

func TestJSONFloatsStringEncoded(t *testing.T) {
    got := JSONFloats(`["0.52","0.48"]`)
    if len(got) != 2 || got[0] != 0.52 || got[1] != 0.48 {
        t.Fatalf("unexpected %v", got)
    }
    if got := JSONFloats("oops"); len(got) != 0 {
        t.Fatalf("expected empty, got %v", got)
    }
}

func rawMarket(id, eventID string) *models.PolymarketMarket {
    return &models.PolymarketMarket{
        ID:             id,
        Question:       "will it resolve yes",
        Outcomes:       `["Yes","No"]`,
        OutcomePrices:  `["0.6","0.4"]`,
        ClobTokenIDs:   `["tok1","tok2"]`,
        BestBid:        0.58,
        BestAsk:        0.62,
        LastTradePrice: 0.6,
        Volume24hr:     100,
        Liquidity:      50,
        Active:         true,
        Events: []struct {
            ID string `json:"id"`
        }{{ID: eventID}},
    }
}

func TestPolymarketMarketsIdempotentUpToFetchedAt(t *testing.T) {
    raws := []*models.PolymarketMarket{rawMarket("m1", "e1")}
    a := PolymarketMarkets(raws)
    b := PolymarketMarkets(raws)
    if len(a) != 1 || len(b) != 1 {
        t.Fatalf("expected one market")
    }
    x, y := *a[0], *b[0]
    if x.MarketID != y.MarketID || x.MidPrice != y.MidPrice || x.Spread != y.Spread ||
        len(x.Outcomes) != len(y.Outcomes) || x.EventID != y.EventID {
        t.Fatalf("transform not deterministic: %+v vs %+v", x, y)
    }
}

func TestPolymarketMarketDerivedFields(t *testing.T) {
    m := PolymarketMarkets([]*models.PolymarketMarket{rawMarket("m1", "e1")})[0]
    if m.MidPrice != 0.6 {
        t.Fatalf("mid from bid/ask average, got %v", m.MidPrice)
    }
    if m.Spread < 0.039 || m.Spread > 0.041 {
        t.Fatalf("unexpected spread %v", m.Spread)
    }

    // no quotes: fall back to last trade
    raw := rawMarket("m2", "e1")
    raw.BestBid, raw.BestAsk = 0, 0
    m = PolymarketMarkets([]*models.PolymarketMarket{raw})[0]
    if m.MidPrice != 0.6 || m.Spread != 0 {
        t.Fatalf("expected last-trade fallback, got mid=%v spread=%v", m.MidPrice, m.Spread)
    }

    // nothing at all: zero
    raw = rawMarket("m3", "e1")
    raw.BestBid, raw.BestAsk, raw.LastTradePrice = 0, 0, 0
    m = PolymarketMarkets([]*models.PolymarketMarket{raw})[0]
    if m.MidPrice != 0 {
        t.Fatalf("expected zero fallback, got %v", m.MidPrice)
    }
}

func TestPolymarketEventAggregation(t *testing.T) {
    markets := PolymarketMarkets([]*models.PolymarketMarket{
        rawMarket("m1", "e1"),
        rawMarket("m2", "e1"),
        rawMarket("m3", ""), // orphan, excluded from aggregates
    })
    events := PolymarketEvents([]*models.PolymarketEvent{
        {ID: "e1", Title: "election"},
    }, markets)
    if len(events) != 1 {
        t.Fatalf("expected one event, got %d", len(events))
    }
    e := events[0]
    if e.MarketCount != 2 || e.ActiveCount != 2 || e.ClosedCount != 0 {
        t.Fatalf("unexpected counts %+v", e)
    }
    if e.TotalVolume != 200 || e.TotalLiquidity != 100 {
        t.Fatalf("unexpected aggregates volume=%v liquidity=%v", e.TotalVolume, e.TotalLiquidity)
    }
}

func TestPolymarketTradesSentinelTimestamp(t *testing.T) {
    trades := PolymarketTrades([]*models.PolymarketTrade{
        {ConditionID: "c1", Asset: "tok1", Price: 0.5, Size: 10, Timestamp: 0},
    })
    if len(trades) != 1 {
        t.Fatalf("expected one trade")
    }
    if !trades[0].Timestamp.Equal(util.EpochSentinel) {
        t.Fatalf("expected sentinel timestamp, got %v", trades[0].Timestamp)
    }
    if trades[0].ValueUSD != 5 {
        t.Fatalf("unexpected value %v", trades[0].ValueUSD)
    }
}

func TestPolymarketBookDerivation(t *testing.T) {
    snap := PolymarketBook(&models.PolymarketBook{
        Market:  "c1",
        AssetID: "tok1",
        Bids:    []models.PolymarketBookLevel{{Price: "0.55", Size: "10"}, {Price: "0.50", Size: "5"}},
        Asks:    []models.PolymarketBookLevel{{Price: "0.60", Size: "7"}, {Price: "0.65", Size: "3"}},
    })
    if snap.BestBid != 0.55 || snap.BestAsk != 0.60 {
        t.Fatalf("unexpected top of book %v/%v", snap.BestBid, snap.BestAsk)
    }
    if snap.MidPrice < 0.574 || snap.MidPrice > 0.576 {
        t.Fatalf("unexpected mid %v", snap.MidPrice)
    }

    m := &models.Market{MarketID: "c1", MidPrice: 0.5}
    ApplyBook(m, snap)
    if m.MidPrice != snap.MidPrice || m.BestBid != 0.55 {
        t.Fatalf("book-derived values should win: %+v", m)
    }
}

func TestPolymarketWSTrade(t *testing.T) {
    tr := PolymarketWSTrade(&models.PolymarketWSMessage{
        EventType: "trade",
        AssetID:   "tok1",
        Market:    "c1",
        Price:     "0.42",
        Size:      "12",
        Side:      "BUY",
        Timestamp: "1716000000000",
    })
    if tr == nil || tr.Price != 0.42 || tr.Size != 12 {
        t.Fatalf("unexpected trade %+v", tr)
    }
    if tr.Timestamp.Year() != 2024 {
        t.Fatalf("millis timestamp not parsed: %v", tr.Timestamp)
    }
    if PolymarketWSTrade(&models.PolymarketWSMessage{}) != nil {
        t.Fatalf("empty message should map to nil")
    }
}
