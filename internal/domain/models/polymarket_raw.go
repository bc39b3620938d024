package models

// Raw Polymarket shapes as returned by the Gamma, Data and CLOB APIs.
// Numeric fields frequently arrive as strings and several array fields are
// JSON-encoded strings; the transform layer parses them defensively.

type PolymarketEvent struct {
	ID        string  `json:"id"`
	Slug      string  `json:"slug"`
	Title     string  `json:"title"`
	Category  string  `json:"category"`
	StartDate string  `json:"startDate"`
	EndDate   string  `json:"endDate"`
	Volume    float64 `json:"volume"`
	Liquidity float64 `json:"liquidity"`
	Active    bool    `json:"active"`
	Closed    bool    `json:"closed"`
}

type PolymarketMarket struct {
	ID             string  `json:"id"`
	ConditionID    string  `json:"conditionId"`
	Slug           string  `json:"slug"`
	Question       string  `json:"question"`
	EndDate        string  `json:"endDate"`
	Outcomes       string  `json:"outcomes"`       // JSON-encoded []string
	OutcomePrices  string  `json:"outcomePrices"`  // JSON-encoded []string
	ClobTokenIDs   string  `json:"clobTokenIds"`   // JSON-encoded []string
	BestBid        float64 `json:"bestBid"`
	BestAsk        float64 `json:"bestAsk"`
	LastTradePrice float64 `json:"lastTradePrice"`
	Volume24hr     float64 `json:"volume24hr"`
	Liquidity      float64 `json:"liquidityNum"`
	Active         bool    `json:"active"`
	Closed         bool    `json:"closed"`
	Events         []struct {
		ID string `json:"id"`
	} `json:"events"`
}

type PolymarketTrade struct {
	TransactionHash string  `json:"transactionHash"`
	ProxyWallet     string  `json:"proxyWallet"`
	ConditionID     string  `json:"conditionId"`
	Asset           string  `json:"asset"`
	Side            string  `json:"side"`
	Outcome         string  `json:"outcome"`
	Price           float64 `json:"price"`
	Size            float64 `json:"size"`
	Timestamp       int64   `json:"timestamp"`
}

type PolymarketBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type PolymarketBook struct {
	Market  string                `json:"market"`
	AssetID string                `json:"asset_id"`
	Bids    []PolymarketBookLevel `json:"bids"`
	Asks    []PolymarketBookLevel `json:"asks"`
}

type PolymarketLeaderboardEntry struct {
	ProxyWallet string  `json:"proxyWallet"`
	Name        string  `json:"name"`
	Amount      float64 `json:"amount"`
	Pnl         float64 `json:"pnl"`
	Rank        int     `json:"rank"`
}

type PolymarketPosition struct {
	ProxyWallet string  `json:"proxyWallet"`
	ConditionID string  `json:"conditionId"`
	Asset       string  `json:"asset"`
	Outcome     string  `json:"outcome"`
	Size        float64 `json:"size"`
	AvgPrice    float64 `json:"avgPrice"`
	CurrentValue float64 `json:"currentValue"`
}

// PolymarketWSMessage is the envelope of the CLOB market channel. Payloads
// are dispatched by EventType; unknown types are logged and ignored.
type PolymarketWSMessage struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"`
	Timestamp string `json:"timestamp"`
}
