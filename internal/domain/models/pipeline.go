package models

import "time"

// Protocol tags for the upstream venues.
const (
	ProtocolPolymarket = "polymarket"
	ProtocolKalshi     = "kalshi"
)

// Phase names of a pipeline run. Phases execute strictly in this order;
// optional phases are skipped per config flags.
const (
	PhaseIdle            = "IDLE"
	PhaseFetchEvents     = "FETCHING_EVENTS"
	PhaseFetchMarkets    = "FETCHING_MARKETS"
	PhaseFetchPrices     = "FETCHING_PRICES"
	PhaseFetchOrderbooks = "FETCHING_ORDERBOOKS"
	PhaseFetchTrades     = "FETCHING_TRADES"
	PhaseFetchTraders    = "FETCHING_TRADERS"
	PhaseCompleted       = "COMPLETED"
	PhaseFailed          = "FAILED"
)

// Run statuses for the audit log.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// PipelineRun is an append-only audit row. Never mutated after the
// terminal status is recorded.
type PipelineRun struct {
	RunID        string
	Protocol     string
	Status       string
	StartedAt    time.Time
	CompletedAt  time.Time
	EventsStored uint64
	MarketStored uint64
	TradesStored uint64
	ErrorMessage string
}

// PipelineConfig holds feature flags and bounded caps for a run.
// A cap of 0 means unlimited.
type PipelineConfig struct {
	Preset           string `json:"preset"`
	EnableOrderbook  bool   `json:"enableOrderbook"`
	EnableActivity   bool   `json:"enableActivity"`
	EnablePositions  bool   `json:"enablePositions"`
	MaxEvents        int    `json:"maxEvents"`
	MaxMarkets       int    `json:"maxMarkets"`
	MaxTotalTrades   int    `json:"maxTotalTrades"`
	TradesPerMarket  int    `json:"tradesPerMarket"`
	InterMarketDelay time.Duration
}

// Presets expand to concrete caps. Lookup is by PipelineConfig.Preset;
// explicit non-zero caps in the request still override the preset.
var presets = map[string]PipelineConfig{
	"quick": {
		MaxEvents:       50,
		MaxMarkets:      20,
		MaxTotalTrades:  500,
		TradesPerMarket: 100,
	},
	"moderate": {
		MaxEvents:       500,
		MaxMarkets:      200,
		MaxTotalTrades:  10000,
		TradesPerMarket: 1000,
	},
	"production": {
		EnableOrderbook: true,
		EnableActivity:  true,
		EnablePositions: true,
	},
}

// DefaultPipelineConfig returns the baseline config a request is merged over.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		TradesPerMarket:  5000,
		InterMarketDelay: 200 * time.Millisecond,
	}
}

// Expand resolves the preset (if any) and overlays explicit values.
func (c PipelineConfig) Expand() PipelineConfig {
	return c.ExpandWith(DefaultPipelineConfig())
}

// ExpandWith is Expand over a caller-supplied baseline, letting deploy
// configuration replace the built-in trade pacing defaults. Zero base
// fields fall back to the defaults.
func (c PipelineConfig) ExpandWith(base PipelineConfig) PipelineConfig {
	def := DefaultPipelineConfig()
	if base.TradesPerMarket <= 0 {
		base.TradesPerMarket = def.TradesPerMarket
	}
	if base.InterMarketDelay <= 0 {
		base.InterMarketDelay = def.InterMarketDelay
	}
	out := base
	if p, ok := presets[c.Preset]; ok {
		p.InterMarketDelay = out.InterMarketDelay
		p.Preset = c.Preset
		if p.TradesPerMarket == 0 {
			p.TradesPerMarket = out.TradesPerMarket
		}
		out = p
	}
	if c.MaxEvents > 0 {
		out.MaxEvents = c.MaxEvents
	}
	if c.MaxMarkets > 0 {
		out.MaxMarkets = c.MaxMarkets
	}
	if c.MaxTotalTrades > 0 {
		out.MaxTotalTrades = c.MaxTotalTrades
	}
	if c.TradesPerMarket > 0 {
		out.TradesPerMarket = c.TradesPerMarket
	}
	out.EnableOrderbook = out.EnableOrderbook || c.EnableOrderbook
	out.EnableActivity = out.EnableActivity || c.EnableActivity
	out.EnablePositions = out.EnablePositions || c.EnablePositions
	if c.InterMarketDelay > 0 {
		out.InterMarketDelay = c.InterMarketDelay
	}
	return out
}

// Progress holds per-category fetched/stored counts. Counters are
// monotonically non-decreasing within a run.
type Progress struct {
	EventsFetched     uint64 `json:"eventsFetched"`
	EventsStored      uint64 `json:"eventsStored"`
	MarketsFetched    uint64 `json:"marketsFetched"`
	MarketsStored     uint64 `json:"marketsStored"`
	TradesFetched     uint64 `json:"tradesFetched"`
	TradesStored      uint64 `json:"tradesStored"`
	OrderbooksFetched uint64 `json:"orderbooksFetched"`
	OrderbooksStored  uint64 `json:"orderbooksStored"`
	TradersFetched    uint64 `json:"tradersFetched"`
	TradersStored     uint64 `json:"tradersStored"`
	PositionsStored   uint64 `json:"positionsStored"`
}

// PipelineStatus is the caller-visible snapshot of a run. Always exposed
// by copy, never by reference.
type PipelineStatus struct {
	RunID        string    `json:"runId"`
	Protocol     string    `json:"protocol"`
	IsRunning    bool      `json:"isRunning"`
	CurrentPhase string    `json:"currentPhase"`
	Progress     Progress  `json:"progress"`
	StartedAt    time.Time `json:"startedAt"`
	CompletedAt  time.Time `json:"completedAt,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// Checkpoint is the phase-scoped resume marker. Written only after the
// corresponding batch is durably stored; cleared on full phase success.
type Checkpoint struct {
	Phase           string    `json:"phase"`
	LastMarketIndex int       `json:"lastMarketIndex"`
	TradesStored    uint64    `json:"tradesStored"`
	TradesFetched   uint64    `json:"tradesFetched"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
