package models

// Raw Kalshi shapes from the Trade API. Prices are integer cents;
// pagination is cursor based.

type KalshiEvent struct {
	EventTicker  string `json:"event_ticker"`
	SeriesTicker string `json:"series_ticker"`
	Title        string `json:"title"`
	Category     string `json:"category"`
	StrikeDate   string `json:"strike_date"`
}

type KalshiMarket struct {
	Ticker       string  `json:"ticker"`
	EventTicker  string  `json:"event_ticker"`
	Title        string  `json:"title"`
	Status       string  `json:"status"` // initialized, active, closed, settled
	YesBid       int     `json:"yes_bid"`
	YesAsk       int     `json:"yes_ask"`
	LastPrice    int     `json:"last_price"`
	Volume24h    int64   `json:"volume_24h"`
	OpenInterest int64   `json:"open_interest"`
	Liquidity    float64 `json:"liquidity"`
	CloseTime    string  `json:"close_time"`
}

type KalshiTrade struct {
	TradeID     string `json:"trade_id"`
	Ticker      string `json:"ticker"`
	Count       int    `json:"count"`
	YesPrice    int    `json:"yes_price"`
	NoPrice     int    `json:"no_price"`
	TakerSide   string `json:"taker_side"` // yes or no
	CreatedTime string `json:"created_time"`
}

// KalshiEventsPage is one page of /events.
type KalshiEventsPage struct {
	Cursor string        `json:"cursor"`
	Events []KalshiEvent `json:"events"`
}

// KalshiMarketsPage is one page of /markets.
type KalshiMarketsPage struct {
	Cursor  string         `json:"cursor"`
	Markets []KalshiMarket `json:"markets"`
}

// KalshiTradesPage is one page of /markets/trades.
type KalshiTradesPage struct {
	Cursor string        `json:"cursor"`
	Trades []KalshiTrade `json:"trades"`
}
