package transform

import (
	"strconv"
	"time"

	"PredPull/internal/domain/models"
	"PredPull/pkg/util"
)

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// midAndSpread derives mid price and spread with the fallback chain:
// best bid/ask average, then last trade price, then zero.
func midAndSpread(bestBid, bestAsk, lastTrade float64) (mid, spread float64) {
	if bestBid > 0 && bestAsk > 0 {
		return (bestBid + bestAsk) / 2, bestAsk - bestBid
	}
	if lastTrade > 0 {
		return lastTrade, 0
	}
	return 0, 0
}

// PolymarketMarkets maps raw Gamma markets onto the unified schema.
// FetchedAt is fixed once per invocation, so all records of one batch share
// an identical timestamp.
func PolymarketMarkets(raws []*models.PolymarketMarket) []*models.Market {
	fetchedAt := time.Now().UTC()
	out := make([]*models.Market, 0, len(raws))
	for _, r := range raws {
		if r == nil || r.ID == "" {
			continue
		}
		m := &models.Market{
			Protocol:      models.ProtocolPolymarket,
			MarketID:      r.ID,
			Slug:          r.Slug,
			Question:      r.Question,
			Outcomes:      JSONStrings(r.Outcomes),
			TokenIDs:      JSONStrings(r.ClobTokenIDs),
			OutcomePrices: JSONFloats(r.OutcomePrices),
			BestBid:       r.BestBid,
			BestAsk:       r.BestAsk,
			LastPrice:     r.LastTradePrice,
			Volume24h:     r.Volume24hr,
			Liquidity:     r.Liquidity,
			Active:        r.Active,
			Closed:        r.Closed,
			EndDate:       util.ParseTimeSentinel(r.EndDate),
			FetchedAt:     fetchedAt,
		}
		if len(r.Events) > 0 {
			m.EventID = r.Events[0].ID
		}
		m.MidPrice, m.Spread = midAndSpread(m.BestBid, m.BestAsk, m.LastPrice)
		out = append(out, m)
	}
	return out
}

// PolymarketEvents maps raw Gamma events and aggregates per-event figures
// from the already-enriched markets. Markets with no resolvable parent are
// stored individually but excluded from any event's aggregates.
func PolymarketEvents(raws []*models.PolymarketEvent, markets []*models.Market) []*models.Event {
	fetchedAt := time.Now().UTC()

	byEvent := make(map[string][]*models.Market)
	for _, m := range markets {
		if m == nil || m.EventID == "" {
			continue
		}
		byEvent[m.EventID] = append(byEvent[m.EventID], m)
	}

	out := make([]*models.Event, 0, len(raws))
	for _, r := range raws {
		if r == nil || r.ID == "" {
			continue
		}
		e := &models.Event{
			Protocol:  models.ProtocolPolymarket,
			EventID:   r.ID,
			Slug:      r.Slug,
			Title:     r.Title,
			Category:  r.Category,
			StartDate: util.ParseTimeSentinel(r.StartDate),
			EndDate:   util.ParseTimeSentinel(r.EndDate),
			FetchedAt: fetchedAt,
		}
		for _, m := range byEvent[r.ID] {
			e.MarketCount++
			if m.Closed {
				e.ClosedCount++
			} else if m.Active {
				e.ActiveCount++
			}
			e.TotalVolume += m.Volume24h
			e.TotalLiquidity += m.Liquidity
		}
		if e.TotalVolume == 0 {
			e.TotalVolume = r.Volume
		}
		if e.TotalLiquidity == 0 {
			e.TotalLiquidity = r.Liquidity
		}
		out = append(out, e)
	}
	return out
}

// PolymarketTrades maps raw Data API trades onto the unified schema.
func PolymarketTrades(raws []*models.PolymarketTrade) []*models.Trade {
	fetchedAt := time.Now().UTC()
	out := make([]*models.Trade, 0, len(raws))
	for _, r := range raws {
		if r == nil || r.ConditionID == "" {
			continue
		}
		id := r.TransactionHash
		if id == "" {
			id = r.Asset + "-" + strconv.FormatInt(r.Timestamp, 10)
		}
		out = append(out, &models.Trade{
			Protocol:  models.ProtocolPolymarket,
			TradeID:   id,
			MarketID:  r.ConditionID,
			AssetID:   r.Asset,
			Maker:     r.ProxyWallet,
			Side:      r.Side,
			Outcome:   r.Outcome,
			Price:     r.Price,
			Size:      r.Size,
			ValueUSD:  r.Price * r.Size,
			Timestamp: tradeTime(r.Timestamp),
			FetchedAt: fetchedAt,
		})
	}
	return out
}

func tradeTime(unix int64) time.Time {
	if unix <= 0 {
		return util.EpochSentinel
	}
	return time.Unix(unix, 0).UTC()
}

// PolymarketBook maps a raw CLOB book onto a snapshot, deriving best
// bid/ask, mid and spread from the top of book.
func PolymarketBook(raw *models.PolymarketBook) *models.OrderbookSnapshot {
	if raw == nil {
		return nil
	}
	fetchedAt := time.Now().UTC()
	snap := &models.OrderbookSnapshot{
		Protocol:  models.ProtocolPolymarket,
		MarketID:  raw.Market,
		AssetID:   raw.AssetID,
		Bids:      bookLevels(raw.Bids),
		Asks:      bookLevels(raw.Asks),
		FetchedAt: fetchedAt,
	}
	for _, b := range snap.Bids {
		if b.Price > snap.BestBid {
			snap.BestBid = b.Price
		}
	}
	for _, a := range snap.Asks {
		if snap.BestAsk == 0 || a.Price < snap.BestAsk {
			snap.BestAsk = a.Price
		}
	}
	snap.MidPrice, snap.Spread = midAndSpread(snap.BestBid, snap.BestAsk, 0)
	return snap
}

func bookLevels(raw []models.PolymarketBookLevel) []models.OrderbookLevel {
	out := make([]models.OrderbookLevel, 0, len(raw))
	for _, l := range raw {
		out = append(out, models.OrderbookLevel{Price: parseFloat(l.Price), Size: parseFloat(l.Size)})
	}
	return out
}

// ApplyBook overrides a market's derived prices with orderbook-derived
// values, the strongest link of the fallback chain.
func ApplyBook(m *models.Market, snap *models.OrderbookSnapshot) {
	if m == nil || snap == nil || snap.MidPrice == 0 {
		return
	}
	m.BestBid = snap.BestBid
	m.BestAsk = snap.BestAsk
	m.MidPrice = snap.MidPrice
	m.Spread = snap.Spread
}

// PolymarketLeaderboard maps leaderboard entries onto Trader records.
func PolymarketLeaderboard(raws []*models.PolymarketLeaderboardEntry) []*models.Trader {
	fetchedAt := time.Now().UTC()
	out := make([]*models.Trader, 0, len(raws))
	for _, r := range raws {
		if r == nil || r.ProxyWallet == "" {
			continue
		}
		out = append(out, &models.Trader{
			Protocol:  models.ProtocolPolymarket,
			Address:   r.ProxyWallet,
			Name:      r.Name,
			Volume:    r.Amount,
			Profit:    r.Pnl,
			Rank:      r.Rank,
			FetchedAt: fetchedAt,
		})
	}
	return out
}

// PolymarketPositions maps raw positions onto the unified schema.
func PolymarketPositions(raws []*models.PolymarketPosition) []*models.Position {
	fetchedAt := time.Now().UTC()
	out := make([]*models.Position, 0, len(raws))
	for _, r := range raws {
		if r == nil || r.ProxyWallet == "" || r.ConditionID == "" {
			continue
		}
		out = append(out, &models.Position{
			Protocol:  models.ProtocolPolymarket,
			Address:   r.ProxyWallet,
			MarketID:  r.ConditionID,
			AssetID:   r.Asset,
			Outcome:   r.Outcome,
			Size:      r.Size,
			AvgPrice:  r.AvgPrice,
			ValueUSD:  r.CurrentValue,
			FetchedAt: fetchedAt,
		})
	}
	return out
}

// PolymarketWSTrade maps one market-channel trade message onto the unified
// trade schema used by the batch pipeline.
func PolymarketWSTrade(msg *models.PolymarketWSMessage) *models.Trade {
	if msg == nil || msg.AssetID == "" {
		return nil
	}
	fetchedAt := time.Now().UTC()
	price := parseFloat(msg.Price)
	size := parseFloat(msg.Size)
	return &models.Trade{
		Protocol:  models.ProtocolPolymarket,
		TradeID:   msg.AssetID + "-" + msg.Timestamp,
		MarketID:  msg.Market,
		AssetID:   msg.AssetID,
		Side:      msg.Side,
		Price:     price,
		Size:      size,
		ValueUSD:  price * size,
		Timestamp: util.ParseTimeSentinel(msg.Timestamp),
		FetchedAt: fetchedAt,
	}
}
