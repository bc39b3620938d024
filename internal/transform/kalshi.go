package transform

import (
	"time"

	"PredPull/internal/domain/models"
	"PredPull/pkg/util"
)

// Kalshi quotes prices in integer cents.
func centsToProb(c int) float64 { return float64(c) / 100 }

// KalshiMarkets maps raw Kalshi markets onto the unified schema.
func KalshiMarkets(raws []*models.KalshiMarket) []*models.Market {
	fetchedAt := time.Now().UTC()
	out := make([]*models.Market, 0, len(raws))
	for _, r := range raws {
		if r == nil || r.Ticker == "" {
			continue
		}
		m := &models.Market{
			Protocol:  models.ProtocolKalshi,
			MarketID:  r.Ticker,
			EventID:   r.EventTicker,
			Question:  r.Title,
			Outcomes:  []string{"Yes", "No"},
			BestBid:   centsToProb(r.YesBid),
			BestAsk:   centsToProb(r.YesAsk),
			LastPrice: centsToProb(r.LastPrice),
			Volume24h: float64(r.Volume24h),
			Liquidity: r.Liquidity,
			Active:    r.Status == "active",
			Closed:    r.Status == "closed" || r.Status == "settled",
			EndDate:   util.ParseTimeSentinel(r.CloseTime),
			FetchedAt: fetchedAt,
		}
		m.OutcomePrices = []float64{m.LastPrice, 1 - m.LastPrice}
		m.MidPrice, m.Spread = midAndSpread(m.BestBid, m.BestAsk, m.LastPrice)
		out = append(out, m)
	}
	return out
}

// KalshiEvents maps raw Kalshi events, aggregating from enriched markets
// grouped by event ticker.
func KalshiEvents(raws []*models.KalshiEvent, markets []*models.Market) []*models.Event {
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
		if r == nil || r.EventTicker == "" {
			continue
		}
		e := &models.Event{
			Protocol:  models.ProtocolKalshi,
			EventID:   r.EventTicker,
			Slug:      r.SeriesTicker,
			Title:     r.Title,
			Category:  r.Category,
			EndDate:   util.ParseTimeSentinel(r.StrikeDate),
			FetchedAt: fetchedAt,
		}
		for _, m := range byEvent[r.EventTicker] {
			e.MarketCount++
			if m.Closed {
				e.ClosedCount++
			} else if m.Active {
				e.ActiveCount++
			}
			e.TotalVolume += m.Volume24h
			e.TotalLiquidity += m.Liquidity
		}
		out = append(out, e)
	}
	return out
}

// KalshiTrades maps raw Kalshi trades onto the unified schema.
func KalshiTrades(raws []*models.KalshiTrade) []*models.Trade {
	fetchedAt := time.Now().UTC()
	out := make([]*models.Trade, 0, len(raws))
	for _, r := range raws {
		if r == nil || r.Ticker == "" {
			continue
		}
		price := centsToProb(r.YesPrice)
		outcome := "Yes"
		if r.TakerSide == "no" {
			price = centsToProb(r.NoPrice)
			outcome = "No"
		}
		size := float64(r.Count)
		out = append(out, &models.Trade{
			Protocol:  models.ProtocolKalshi,
			TradeID:   r.TradeID,
			MarketID:  r.Ticker,
			Side:      r.TakerSide,
			Outcome:   outcome,
			Price:     price,
			Size:      size,
			ValueUSD:  price * size,
			Timestamp: util.ParseTimeSentinel(r.CreatedTime),
			FetchedAt: fetchedAt,
		})
	}
	return out
}
