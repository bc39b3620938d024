package models

// Requests for the pipeline HTTP endpoints. Defined in domain for consistency and reuse.

type StartPipelineRequest struct {
	Protocol        string `json:"protocol" default:"polymarket" validate:"oneof=polymarket kalshi"`
	Preset          string `json:"preset" validate:"omitempty,oneof=quick moderate production"`
	EnableOrderbook bool   `json:"enableOrderbook"`
	EnableActivity  bool   `json:"enableActivity"`
	EnablePositions bool   `json:"enablePositions"`
	MaxEvents       int    `json:"maxEvents" validate:"gte=0"`
	MaxMarkets      int    `json:"maxMarkets" validate:"gte=0"`
	MaxTotalTrades  int    `json:"maxTotalTrades" validate:"gte=0"`
}

// Config maps the request onto a pipeline config; preset expansion
// happens on Start.
func (r StartPipelineRequest) Config() PipelineConfig {
	return PipelineConfig{
		Preset:          r.Preset,
		EnableOrderbook: r.EnableOrderbook,
		EnableActivity:  r.EnableActivity,
		EnablePositions: r.EnablePositions,
		MaxEvents:       r.MaxEvents,
		MaxMarkets:      r.MaxMarkets,
		MaxTotalTrades:  r.MaxTotalTrades,
	}
}

type SubscribeRequest struct {
	AssetIDs []string `json:"assetIds" validate:"required,min=1"`
}
