package models

import "time"

// Enriched records share one unified schema across venues. Every record
// carries its protocol discriminator and a FetchedAt timestamp fixed at
// enrichment time.

// Event is an aggregated parent of one or more markets.
type Event struct {
	Protocol       string
	EventID        string
	Slug           string
	Title          string
	Category       string
	StartDate      time.Time
	EndDate        time.Time
	MarketCount    int
	ActiveCount    int
	ClosedCount    int
	TotalVolume    float64
	TotalLiquidity float64
	FetchedAt      time.Time
}

// Market is a single tradeable question.
type Market struct {
	Protocol      string
	MarketID      string
	EventID       string
	Slug          string
	Question      string
	Outcomes      []string
	TokenIDs      []string
	OutcomePrices []float64
	BestBid       float64
	BestAsk       float64
	MidPrice      float64
	Spread        float64
	LastPrice     float64
	Volume24h     float64
	Liquidity     float64
	Active        bool
	Closed        bool
	EndDate       time.Time
	FetchedAt     time.Time
}

// Trade identity for dedup is (Protocol, MarketID, Timestamp, TradeID).
type Trade struct {
	Protocol  string
	TradeID   string
	MarketID  string
	AssetID   string
	Maker     string
	Taker     string
	Side      string
	Outcome   string
	Price     float64
	Size      float64
	ValueUSD  float64
	Timestamp time.Time
	FetchedAt time.Time
}

// Trader is a leaderboard entry.
type Trader struct {
	Protocol  string
	Address   string
	Name      string
	Volume    float64
	Profit    float64
	Rank      int
	FetchedAt time.Time
}

// Position is a trader's holding in one market outcome.
type Position struct {
	Protocol  string
	Address   string
	MarketID  string
	AssetID   string
	Outcome   string
	Size      float64
	AvgPrice  float64
	ValueUSD  float64
	FetchedAt time.Time
}

// OrderbookLevel is one price level of a book side.
type OrderbookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderbookSnapshot is a point-in-time book capture for one asset.
type OrderbookSnapshot struct {
	Protocol  string
	MarketID  string
	AssetID   string
	Bids      []OrderbookLevel
	Asks      []OrderbookLevel
	BestBid   float64
	BestAsk   float64
	MidPrice  float64
	Spread    float64
	FetchedAt time.Time
}
